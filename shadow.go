package swrender

import (
	"math"

	"cogentcore.org/core/math32"
)

const halfPi = 1.5707963267948966

// CubeShadowMap holds six depth faces for a point light, each S x S.
type CubeShadowMap struct {
	Size  int
	Faces [6]DepthBuffer
}

// cubeFaceAxes gives the (forward, up) basis for each of the 6 cube faces
// in the conventional +X,-X,+Y,-Y,+Z,-Z order.
var cubeFaceAxes = [6]struct{ Forward, Up math32.Vector3 }{
	{math32.Vec3(1, 0, 0), math32.Vec3(0, -1, 0)},
	{math32.Vec3(-1, 0, 0), math32.Vec3(0, -1, 0)},
	{math32.Vec3(0, 1, 0), math32.Vec3(0, 0, 1)},
	{math32.Vec3(0, -1, 0), math32.Vec3(0, 0, -1)},
	{math32.Vec3(0, 0, 1), math32.Vec3(0, -1, 0)},
	{math32.Vec3(0, 0, -1), math32.Vec3(0, -1, 0)},
}

// ChooseCubeShadowMapSize picks S in [64, 256] from the light radius and
// distance to the closest occluding point:
// S = 2^(round(log2(128*R/d)) + shadowQualityBias).
func ChooseCubeShadowMapSize(radius, distanceToClosestPoint, shadowQualityBias float32) int {
	if distanceToClosestPoint < 1e-3 {
		distanceToClosestPoint = 1e-3
	}
	exp := roundF32(log2F32(128*radius/distanceToClosestPoint) + shadowQualityBias)
	size := 1 << int(exp)
	if size < 64 {
		size = 64
	}
	if size > 256 {
		size = 256
	}
	return size
}

// ChooseProjectorShadowMapSize picks S in [32, 1024] by the same rule used
// for cube maps.
func ChooseProjectorShadowMapSize(radius, distanceToClosestPoint, shadowQualityBias float32) int {
	if distanceToClosestPoint < 1e-3 {
		distanceToClosestPoint = 1e-3
	}
	exp := roundF32(log2F32(128*radius/distanceToClosestPoint) + shadowQualityBias)
	size := 1 << int(exp)
	if size < 32 {
		size = 32
	}
	if size > 1024 {
		size = 1024
	}
	return size
}

func log2F32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	// The fast inverse-sqrt-backed reciprocal machinery would lose too
	// much precision for a log; one-shot per-light setup math can afford
	// the standard library, unlike the rasterizer's inner loops.
	return float32(math.Log2(float64(x)))
}

// BuildCubeFace renders the static BSP and all submodels, visibility-culled
// from the light's position, into one face of a cube shadow map.
func BuildCubeFace(face *DepthBuffer, lightPos math32.Vector3, faceIndex int, renderDepth func(cam CameraMatrices, buf *DepthBuffer)) {
	axes := cubeFaceAxes[faceIndex]
	view := LookAt(lightPos, lightPos.Add(axes.Forward), axes.Up)
	proj := PerspectiveFOV(halfPi, 1, PortalZNear, 1<<20)
	cam := CameraMatrices{
		View:     view,
		Planes:   view,
		Proj:     proj,
		ViewProj: MulMatrix4(proj, view),
		Position: lightPos,
	}
	renderDepth(cam, face)
}

// cubeShadowMapFetch returns 1 if the point at vecToPoint (the vector from
// the light to the shaded point) is lit, 0 if shadowed, single-tap. Face
// selection and the in-face projection both derive from cubeFaceAxes, the
// same basis BuildCubeFace renders through, so the fetch samples exactly
// the hemisphere that was drawn.
func cubeShadowMapFetch(m *CubeShadowMap, vecToPoint math32.Vector3) float32 {
	ax, ay, az := abs32(vecToPoint.X), abs32(vecToPoint.Y), abs32(vecToPoint.Z)

	var face int
	switch {
	case ax >= ay && ax >= az:
		face = 0
		if vecToPoint.X < 0 {
			face = 1
		}
	case ay >= ax && ay >= az:
		face = 2
		if vecToPoint.Y < 0 {
			face = 3
		}
	default:
		face = 4
		if vecToPoint.Z < 0 {
			face = 5
		}
	}

	axes := cubeFaceAxes[face]
	z := axes.Forward.Dot(vecToPoint)
	if z <= 0 {
		return 0
	}
	// The face was rendered through LookAt(light, light+Forward, Up), whose
	// right axis is Up x (-Forward); screen y grows downward, hence the
	// negated Up term.
	right := axes.Up.Cross(axes.Forward).MulScalar(-1)
	u := right.Dot(vecToPoint)
	v := -axes.Up.Dot(vecToPoint)

	depth := InvFast(z)
	buf := &m.Faces[face]
	su := int((u/z*0.5 + 0.5) * float32(buf.Width))
	sv := int((v/z*0.5 + 0.5) * float32(buf.Height))
	if su < 0 || su >= buf.Width || sv < 0 || sv >= buf.Height {
		return 0
	}
	stored := buf.Values[sv*buf.Width+su]
	if stored == 0 {
		return 1 // nothing rendered at this texel: treat as unoccluded
	}
	if depth >= stored {
		return 1
	}
	return 0
}

// ProjectorShadowMap is the single-depth-buffer shadow map for a
// spotlight.
type ProjectorShadowMap struct {
	Depth    DepthBuffer
	ViewProj Matrix4
	FOV      float32
}

// BuildProjectorMap fills a projector shadow map and zeroes out texels
// outside the inscribed disk of the map, approximating a cone with a
// square depth buffer.
func BuildProjectorMap(p *ProjectorShadowMap, lightPos, lightDir, up math32.Vector3, fov float32, renderDepth func(cam CameraMatrices, buf *DepthBuffer)) {
	view := LookAt(lightPos, lightPos.Add(lightDir), up)
	proj := PerspectiveFOV(fov, 1, PortalZNear, 1<<20)
	p.FOV = fov
	p.ViewProj = MulMatrix4(proj, view)
	cam := CameraMatrices{View: view, Planes: view, Proj: proj, ViewProj: p.ViewProj, Position: lightPos}
	renderDepth(cam, &p.Depth)

	cx, cy := float32(p.Depth.Width)/2, float32(p.Depth.Height)/2
	r2 := cx * cx
	for y := 0; y < p.Depth.Height; y++ {
		for x := 0; x < p.Depth.Width; x++ {
			dx, dy := float32(x)+0.5-cx, float32(y)+0.5-cy
			if dx*dx+dy*dy > r2 {
				p.Depth.Values[y*p.Depth.Width+x] = 0
			}
		}
	}
}

// projectorShadowMapFetch projects a world point through the projector's
// view-projection, checks it lies in-frustum and inside the masked disk,
// and compares depth, single-tap.
func projectorShadowMapFetch(p *ProjectorShadowMap, worldPos math32.Vector3) float32 {
	x, y, z, w := p.ViewProj.TransformPoint(worldPos)
	if w <= 1e-6 {
		return 0
	}
	ndcX, ndcY := x/w, y/w
	if ndcX < -1 || ndcX > 1 || ndcY < -1 || ndcY > 1 {
		return 0
	}
	sx := int((ndcX*0.5 + 0.5) * float32(p.Depth.Width))
	sy := int((1 - (ndcY*0.5 + 0.5)) * float32(p.Depth.Height))
	if sx < 0 || sx >= p.Depth.Width || sy < 0 || sy >= p.Depth.Height {
		return 0
	}
	stored := p.Depth.Values[sy*p.Depth.Width+sx]
	if stored == 0 {
		return 0
	}
	depth := InvFast(z)
	if depth >= stored {
		return 1
	}
	return 0
}

// DynamicLight is a point or projector light with an optional shadow
// map.
type DynamicLight struct {
	Position     math32.Vector3
	Radius       float32
	InvSqrRadius float32
	Color        [3]float32

	Shadow ShadowKind

	CubeMap      *CubeShadowMap
	ProjectorMap *ProjectorShadowMap
}

// ShadowKind tags which (if any) shadow map a DynamicLight carries.
type ShadowKind uint8

const (
	ShadowNone ShadowKind = iota
	ShadowCube
	ShadowProjector
)

// ShadowFactor returns the single-tap shadow term (1 lit, 0 shadowed).
// vecToLight points from the shaded point to the light; the cube fetch
// flips it to the light-to-point direction its faces were rendered along.
// worldPos is used by the projector variant.
func (l *DynamicLight) ShadowFactor(vecToLight math32.Vector3, worldPos math32.Vector3) float32 {
	switch l.Shadow {
	case ShadowCube:
		if l.CubeMap == nil {
			return 1
		}
		return cubeShadowMapFetch(l.CubeMap, vecToLight.MulScalar(-1))
	case ShadowProjector:
		if l.ProjectorMap == nil {
			return 1
		}
		return projectorShadowMapFetch(l.ProjectorMap, worldPos)
	default:
		return 1
	}
}
