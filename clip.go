package swrender

import "cogentcore.org/core/math32"

// ZNear is the default near-clip distance in world units.
const ZNear float32 = 1.0

// PortalZNear is the much smaller near-clip distance used for portal
// clipping, to avoid cutting away portal geometry the camera is nearly
// touching.
const PortalZNear float32 = 1.0 / 4096.0

// Vertex3 is a clip-space vertex carrying optional interpolated attributes
// (texture coordinates and per-vertex light), used by the 3D clipper for
// triangle/sprite rasterization. Polygon rasterization clips
// plain positions and derives tex coords analytically afterward, so it
// only needs Pos.
type Vertex3 struct {
	Pos   math32.Vector3
	TC    [2]float32
	Light Color
}

func lerpVertex3(a, b Vertex3, t float32) Vertex3 {
	return Vertex3{
		Pos: a.Pos.Lerp(b.Pos, t),
		TC: [2]float32{
			a.TC[0] + (b.TC[0]-a.TC[0])*t,
			a.TC[1] + (b.TC[1]-a.TC[1])*t,
		},
		Light: a.Light.Lerp(b.Light, t),
	}
}

// signedDistance3 returns the signed distance of v from the plane
// (nx,ny,nz,d) with the convention dot(n, v) - d.
func signedDistance3(n math32.Vector3, d float32, v math32.Vector3) float32 {
	return n.Dot(v) - d
}

// Clip3DByPlane clips a 3D polygon (convex, vertex_count >= 3) against the
// half-space dot(n, v) >= d using Sutherland-Hodgman. out must have
// capacity at least len(in)+6. Returns the number of vertices
// written to out. A result of < 3 means the polygon was entirely clipped
// away and must be silently dropped.
func Clip3DByPlane(in []Vertex3, n math32.Vector3, d float32, out []Vertex3) int {
	if len(in) < 3 {
		return 0
	}
	count := 0
	prev := in[len(in)-1]
	prevDist := signedDistance3(n, d, prev.Pos)
	for _, cur := range in {
		curDist := signedDistance3(n, d, cur.Pos)
		if curDist >= 0 {
			if prevDist < 0 {
				t := prevDist / (prevDist - curDist)
				out[count] = lerpVertex3(prev, cur, t)
				count++
			}
			out[count] = cur
			count++
		} else if prevDist >= 0 {
			t := prevDist / (prevDist - curDist)
			out[count] = lerpVertex3(prev, cur, t)
			count++
		}
		prev = cur
		prevDist = curDist
	}
	return count
}

// Clip3DByZNear clips against the camera-space plane z = near (keeping
// z >= near), the standard first clip step before projection.
func Clip3DByZNear(in []Vertex3, near float32, out []Vertex3) int {
	return Clip3DByPlane(in, math32.Vec3(0, 0, 1), near, out)
}

// Point2 is a 2D screen-space point with an optional interpolated texture
// coordinate, used by Clip2D.
type Point2 struct {
	X, Y  float32
	TC    [2]float32
	Light Color
}

func lerpPoint2(a, b Point2, t float32) Point2 {
	return Point2{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		TC: [2]float32{
			a.TC[0] + (b.TC[0]-a.TC[0])*t,
			a.TC[1] + (b.TC[1]-a.TC[1])*t,
		},
		Light: a.Light.Lerp(b.Light, t),
	}
}

// clip2DOnePlane clips a polygon against a single half-plane
// (keep if nx*x+ny*y+d >= 0), writing into out (capacity >= len(in)+1).
func clip2DOnePlane(in []Point2, plane ClipPlane, out []Point2) int {
	if len(in) == 0 {
		return 0
	}
	count := 0
	prev := in[len(in)-1]
	prevDist := plane.NX*prev.X + plane.NY*prev.Y + plane.D
	for _, cur := range in {
		curDist := plane.NX*cur.X + plane.NY*cur.Y + plane.D
		if curDist >= 0 {
			if prevDist < 0 {
				t := prevDist / (prevDist - curDist)
				out[count] = lerpPoint2(prev, cur, t)
				count++
			}
			out[count] = cur
			count++
		} else if prevDist >= 0 {
			t := prevDist / (prevDist - curDist)
			out[count] = lerpPoint2(prev, cur, t)
			count++
		}
		prev = cur
		prevDist = curDist
	}
	return count
}

// Clip2D clips a polygon against a sequence of half-planes (typically the
// 4 or 8 planes from ClippingPolygon.BoxClipPlanes/ClipPlanes), using
// double-buffering between scratchA and scratchB so no allocation is
// required across the whole plane sequence. Returns the final vertex
// slice (aliasing one of the two scratch buffers) and its length.
func Clip2D(in []Point2, planes []ClipPlane, scratchA, scratchB []Point2) ([]Point2, int) {
	cur := in
	bufs := [2][]Point2{scratchA, scratchB}
	bi := 0
	for _, pl := range planes {
		if len(cur) == 0 {
			return cur, 0
		}
		n := clip2DOnePlane(cur, pl, bufs[bi])
		cur = bufs[bi][:n]
		bi = 1 - bi
	}
	return cur, len(cur)
}
