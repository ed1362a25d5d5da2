package swrender

import (
	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// cameraAxes recovers the camera's right/up/forward basis from a view
// matrix's rows. LookAt stores zAxis = normalize(eye-target) (mat4.go) in
// row 2, i.e. the camera's *back* direction, so forward is its negation;
// every equation below is built from this same triple, so the -forward
// convention only has to be correct in one place.
func cameraAxes(view Matrix4) (right, up, forward math32.Vector3) {
	right = math32.Vec3(view[0], view[1], view[2])
	up = math32.Vec3(view[4], view[5], view[6])
	back := math32.Vec3(view[8], view[9], view[10])
	forward = back.MulScalar(-1)
	return
}

// ToCameraSpace transforms a world point into the camera-space convention
// this package's clip and projection helpers share: x/y as LookAt's view
// matrix produces them, and z positive in front of the camera (the
// negation of the view matrix's raw row-2 output, which is OpenGL-style
// negative-forward). Clip3DByZNear and ProjectCameraSpaceToScreen both
// assume this convention.
func ToCameraSpace(view Matrix4, world math32.Vector3) math32.Vector3 {
	x, y, z, _ := view.TransformPoint(world)
	return math32.Vec3(x, y, -z)
}

// ProjectCameraSpaceToScreen maps a point already in ToCameraSpace's
// camera-space convention to pixel coordinates, mirroring
// CameraMatrices.ProjectToScreen's world-space formula but starting one
// stage later in the pipeline (after clipping has already happened in
// camera space). ok is false if the point is at or behind the camera.
func ProjectCameraSpaceToScreen(proj Matrix4, cam math32.Vector3, width, height int) (x, y, invZ float32, ok bool) {
	if cam.Z <= 1e-6 {
		return 0, 0, 0, false
	}
	cx := proj[0] * cam.X
	cy := proj[5] * cam.Y
	invZ = 1 / cam.Z
	ndcX := cx * invZ
	ndcY := cy * invZ
	x = (ndcX*0.5 + 0.5) * float32(width)
	y = (1 - (ndcY*0.5 + 0.5)) * float32(height)
	return x, y, invZ, true
}

// screenProjectionConstants derives the affine map from camera-space
// x/cam_z (resp. y/cam_z) to screen pixel coordinates, inverting
// ProjectCameraSpaceToScreen's ndcX/ndcY -> x/y steps. Used to convert a
// polygon's camera-space plane/tex-coord equations into screen-space
// equations once per draw call (the viewport doesn't change per-polygon).
func screenProjectionConstants(proj Matrix4, width, height int) (mx, my, bx, by float32) {
	mx = 2 / (float32(width) * proj[0])
	bx = -1 / proj[0]
	my = -2 / (float32(height) * proj[5])
	by = 1 / proj[5]
	return
}

// cameraSpacePlaneEquation expresses a world-space plane (n.v = d) as a
// camera-space equation inv_z = a*camX/camZ_hat... reduced to the three
// coefficients screenDepthEquation needs: eq.X/Y/Z are the plane normal's
// components along camera right/up/forward, w is the plane's signed
// distance from the eye along its own normal.
func cameraSpacePlaneEquation(cam CameraMatrices, plane bsp.Plane) (eq math32.Vector3, w float32) {
	right, up, forward := cameraAxes(cam.View)
	a := plane.Normal.Dot(right)
	b := plane.Normal.Dot(up)
	c := plane.Normal.Dot(forward)
	k := plane.Dist - plane.Normal.Dot(cam.Position)
	return math32.Vec3(a, b, c), k
}

// cameraSpaceTCEquation is cameraSpacePlaneEquation's counterpart for a
// tex-coord plane tc(v) = n.v + d (bsp.Polygon.TCEquation's convention).
func cameraSpaceTCEquation(cam CameraMatrices, tc bsp.Plane) (eq math32.Vector3, w float32) {
	right, up, forward := cameraAxes(cam.View)
	au := tc.Normal.Dot(right)
	bu := tc.Normal.Dot(up)
	cu := tc.Normal.Dot(forward)
	ku := tc.Normal.Dot(cam.Position) + tc.Dist
	return math32.Vec3(au, bu, cu), ku
}

// screenDepthEquation converts a camera-space plane equation into the
// screen-space affine form the rasterizer walks: inv_z(sx,sy) = a*sx +
// b*sy + c. Derived by substituting the viewport's camX/camZ = mx*sx+bx
// (and the y equivalent) into eq.X*camX + eq.Y*camY + eq.Z*camZ = w.
func screenDepthEquation(eq math32.Vector3, w float32, mx, my, bx, by float32) [3]float32 {
	k := safeDiv(1, w)
	return [3]float32{
		eq.X * mx * k,
		eq.Y * my * k,
		(eq.X*bx + eq.Y*by + eq.Z) * k,
	}
}

// screenTCEquation converts a camera-space tex-coord equation into the
// TexCoordEquation coefficients polyraster.go's rasterizer multiplies by
// z = 1/inv_z, given the polygon's already-converted depth equation.
func screenTCEquation(tcEq math32.Vector3, tcW float32, depth [3]float32, mx, my, bx, by float32) [3]float32 {
	return [3]float32{
		tcW*depth[0] + tcEq.X*mx,
		tcW*depth[1] + tcEq.Y*my,
		tcW*depth[2] + tcEq.X*bx + tcEq.Y*by + tcEq.Z,
	}
}

// evalScreenEquation evaluates a screen-space affine equation (as produced
// by screenDepthEquation/screenTCEquation) at a pixel position.
func evalScreenEquation(eq [3]float32, sx, sy float32) float32 {
	return eq[0]*sx + eq[1]*sy + eq[2]
}

// uvJacobian computes the analytic partial derivatives of (u,v) w.r.t.
// screen (x,y) at one screen point, via the quotient rule applied to
// u = (Ux*sx+Uy*sy+Uc) / inv_z(sx,sy).
func uvJacobian(depth, tcU, tcV [3]float32, sx, sy float32) (du, dv [2]float32) {
	invZ := evalScreenEquation(depth, sx, sy)
	if invZ <= 0 {
		return
	}
	z := 1 / invZ
	u := evalScreenEquation(tcU, sx, sy) * z
	v := evalScreenEquation(tcV, sx, sy) * z
	du = [2]float32{z * (tcU[0] - depth[0]*u), z * (tcU[1] - depth[1]*u)}
	dv = [2]float32{z * (tcV[0] - depth[0]*v), z * (tcV[1] - depth[1]*v)}
	return
}

// projectedVertex is one polygon vertex after camera-space clipping and
// screen projection, shared by buildVisibleSurfaces (for mip/rect
// selection) and the draw walk (for rasterization).
type projectedVertex struct {
	X, Y, InvZ float32
}

// projectPolygon clips a world-space polygon against the camera near
// plane and projects the surviving vertices to screen space, sharing the
// same camera-space convention as shadow map and triangle-mesh projection
// (ToCameraSpace/Clip3DByZNear/ProjectCameraSpaceToScreen) so all three
// drawing paths (polygons, shadow maps, meshes) clip consistently.
func projectPolygon(cam CameraMatrices, worldVerts []math32.Vector3, width, height int) ([]projectedVertex, bool) {
	n := len(worldVerts)
	if n > maxClipVertices {
		n = maxClipVertices
	}
	var camBuf [maxClipVertices]Vertex3
	for i := 0; i < n; i++ {
		camBuf[i] = Vertex3{Pos: ToCameraSpace(cam.View, worldVerts[i])}
	}
	var clipBuf [maxClipVertices + 6]Vertex3
	count := Clip3DByZNear(camBuf[:n], ZNear, clipBuf[:])
	if count < 3 {
		return nil, false
	}
	out := make([]projectedVertex, 0, count)
	for i := 0; i < count; i++ {
		x, y, invZ, ok := ProjectCameraSpaceToScreen(cam.Proj, clipBuf[i].Pos, width, height)
		if !ok {
			return nil, false
		}
		out = append(out, projectedVertex{X: x, Y: y, InvZ: invZ})
	}
	return out, true
}

// projectToScreen is the shared project-callback shape DepthRenderer.DrawMap
// and DrawTriangleMesh both expect: world position in, clipped screen
// position + inverse depth out.
func projectToScreen(cam CameraMatrices, width, height int) func(pos [3]float32) (x, y, invZ float32, ok bool) {
	return func(pos [3]float32) (float32, float32, float32, bool) {
		camPos := ToCameraSpace(cam.View, math32.Vec3(pos[0], pos[1], pos[2]))
		if camPos.Z <= ZNear {
			return 0, 0, 0, false
		}
		x, y, invZ, ok := ProjectCameraSpaceToScreen(cam.Proj, camPos, width, height)
		return x, y, invZ, ok
	}
}

// projectCameraSpaceFunc adapts ProjectCameraSpaceToScreen to the
// project-callback shape DrawTriangleMesh expects, for callers (the
// dynamic-object draw pass) that have already transformed their vertices
// into camera space themselves and must not be re-transformed by a second,
// world-space-assuming project function such as projectToScreen.
func projectCameraSpaceFunc(cam CameraMatrices, width, height int) func(pos [3]float32) (x, y, invZ float32, ok bool) {
	return func(pos [3]float32) (float32, float32, float32, bool) {
		return ProjectCameraSpaceToScreen(cam.Proj, math32.Vec3(pos[0], pos[1], pos[2]), width, height)
	}
}

// depthMapProjectFunc adapts projectToScreen's (x,y,invZ,ok) shape to
// DepthRenderer.DrawMap's ScreenDepthVertex-returning callback.
func depthMapProjectFunc(cam CameraMatrices, width, height int) func(p [3]float32) (ScreenDepthVertex, bool) {
	project := projectToScreen(cam, width, height)
	return func(p [3]float32) (ScreenDepthVertex, bool) {
		x, y, invZ, ok := project(p)
		if !ok {
			return ScreenDepthVertex{}, false
		}
		return ScreenDepthVertex{X: x, Y: y, InvZ: invZ}, true
	}
}
