package swrender

import (
	"sort"

	"cogentcore.org/core/math32"
)

// Plane3 is a 3D half-space plane (dot(n,v) >= d keeps), used for
// leaf-boundary clipping of dynamic triangles.
type Plane3 struct {
	N math32.Vector3
	D float32
}

// MeshTriangle is one triangle of a dynamic mesh, indexing into the mesh's
// shared vertex slice.
type MeshTriangle struct {
	Indices [3]int
}

// TriMeshVertex is one camera-space mesh vertex: position, texture
// coordinate, and per-vertex light (already evaluated by the surface/light
// pass upstream).
type TriMeshVertex = Vertex3

// SortTrianglesBackToFront orders tris by descending max(v.z) across their
// three vertices, required before fan-rasterizing alpha-blended meshes.
func SortTrianglesBackToFront(tris []MeshTriangle, verts []TriMeshVertex) {
	maxZ := func(t MeshTriangle) float32 {
		z := verts[t.Indices[0]].Pos.Z
		for _, i := range t.Indices[1:] {
			if verts[i].Pos.Z > z {
				z = verts[i].Pos.Z
			}
		}
		return z
	}
	sort.SliceStable(tris, func(i, j int) bool {
		return maxZ(tris[i]) > maxZ(tris[j])
	})
}

// clipPlanesForTriangle selects the subset of leaf clip planes the
// triangle actually straddles, so a fully-inside triangle costs one znear
// clip and nothing else. A triangle found to lie
// entirely outside any one plane returns (nil, false): nothing to draw.
func clipPlanesForTriangle(tri [3]Vertex3, leafPlanes []Plane3) ([]Plane3, bool) {
	var crossing []Plane3
	for _, pl := range leafPlanes {
		anyIn, anyOut := false, false
		for _, v := range tri {
			d := signedDistance3(pl.N, pl.D, v.Pos)
			if d >= 0 {
				anyIn = true
			} else {
				anyOut = true
			}
		}
		if anyIn && anyOut {
			crossing = append(crossing, pl)
		} else if anyOut && !anyIn {
			return nil, false
		}
	}
	return crossing, true
}

// DrawTriangleMesh clips, projects, and rasterizes one dynamic mesh's
// triangles into dst, an HDR accumulation buffer (width*height Color
// values, row-major with the given pitch — matching the partial
// renderer's own accumulation buffer rather than a packed Framebuffer, so
// a lit mesh vertex's light contribution composites the same way a
// surface-cache texel does). project maps a camera-space point to
// (x, y, invZ, ok); leafPlanes are the 3D
// clip planes of the leaf(s) the mesh currently occupies, already filtered
// to those whose bbox the mesh crosses. screenClip is the viewport
// octagon's half-planes (from ClippingPolygon.ClipPlanes/BoxClipPlanes).
func DrawTriangleMesh(
	dst []Color,
	pitch, width, height int,
	tris []MeshTriangle,
	verts []TriMeshVertex,
	leafPlanes []Plane3,
	screenClip []ClipPlane,
	texture *TextureMip,
	blend BlendMode,
	project func(pos [3]float32) (x, y, invZ float32, ok bool),
) {
	blendFn := blendFuncColor(blend)
	var bufA, bufB [maxClipVertices]Vertex3
	var pointsBuf [maxClipVertices]Point2
	var screenA, screenB [maxClipVertices]Point2

	for _, tri := range tris {
		poly := [3]Vertex3{verts[tri.Indices[0]], verts[tri.Indices[1]], verts[tri.Indices[2]]}

		crossing, keep := clipPlanesForTriangle(poly, leafPlanes)
		if !keep {
			continue
		}

		cur := bufA[:3]
		copy(cur, poly[:])
		n := Clip3DByZNear(cur, ZNear, bufB[:])
		if n < 3 {
			continue
		}
		cur = bufB[:n]

		toggle := false
		for _, pl := range crossing {
			dest := bufA[:]
			if toggle {
				dest = bufB[:]
			}
			n = Clip3DByPlane(cur, pl.N, pl.D, dest)
			if n < 3 {
				cur = nil
				break
			}
			cur = dest[:n]
			toggle = !toggle
		}
		if len(cur) < 3 {
			continue
		}

		screenPts := pointsBuf[:0]
		ok := true
		for _, v := range cur {
			x, y, invZ, valid := project([3]float32{v.Pos.X, v.Pos.Y, v.Pos.Z})
			if !valid {
				ok = false
				break
			}
			screenPts = append(screenPts, Point2{X: x, Y: y, TC: v.TC, Light: v.Light})
			_ = invZ
		}
		if !ok || len(screenPts) < 3 {
			continue
		}

		clipped, m := Clip2D(screenPts, screenClip, screenA[:0], screenB[:0])
		if m < 3 {
			continue
		}

		fanRasterize(dst, pitch, width, height, clipped, texture, blendFn)
	}
}

func fanRasterize(dst []Color, pitch, width, height int, poly []Point2, texture *TextureMip, blendFn func(Color, Color) Color) {
	for i := 1; i+1 < len(poly); i++ {
		rasterizeAffineTri(dst, pitch, width, height, poly[0], poly[i], poly[i+1], texture, blendFn)
	}
}

// rasterizeAffineTri fills one screen-space triangle with affine (tc,
// light) interpolation only; triangle meshes never need the full/line-z
// perspective modes the polygon rasterizer uses for large static polygons
// since each triangle is small.
func rasterizeAffineTri(dst []Color, pitch, width, height int, a, b, c Point2, texture *TextureMip, blendFn func(Color, Color) Color) {
	minY, maxY := a.Y, a.Y
	for _, p := range [3]Point2{a, b, c} {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	y0, y1 := int(minY), int(maxY)+1
	if y0 < 0 {
		y0 = 0
	}
	if y1 > height {
		y1 = height
	}

	area := edgeFn(a, b, c)
	if area == 0 {
		return
	}

	minX, maxX := a.X, a.X
	for _, p := range [3]Point2{a, b, c} {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
	}
	x0, x1 := int(minX), int(maxX)+1
	if x0 < 0 {
		x0 = 0
	}
	if x1 > width {
		x1 = width
	}

	for y := y0; y < y1; y++ {
		rowOff := y * pitch
		fy := float32(y) + 0.5
		for x := x0; x < x1; x++ {
			fx := float32(x) + 0.5
			p := Point2{X: fx, Y: fy}
			w0 := edgeFn(b, c, p)
			w1 := edgeFn(c, a, p)
			w2 := edgeFn(a, b, p)
			if (w0 < 0 || w1 < 0 || w2 < 0) && (w0 > 0 || w1 > 0 || w2 > 0) {
				continue
			}
			inv := safeDiv(1, area)
			l0, l1, l2 := w0*inv, w1*inv, w2*inv
			u := l0*a.TC[0] + l1*b.TC[0] + l2*c.TC[0]
			v := l0*a.TC[1] + l1*b.TC[1] + l2*c.TC[1]
			light := a.Light.Scale(l0).Add(b.Light.Scale(l1)).Add(c.Light.Scale(l2))
			texel := texture.SampleTiled(int(u), int(v)).Mul(light)
			idx := rowOff + x
			if idx < 0 || idx >= len(dst) {
				continue
			}
			dst[idx] = blendFn(dst[idx], texel)
		}
	}
}

func edgeFn(a, b, p Point2) float32 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// TessellationLevel picks the N in an NxN sub-quad grid for a sprite from
// its near/far camera-space z extent (max_z / min_z). A sprite whose near
// edge crosses the camera (min_z <= 0) always gets the maximum level.
func TessellationLevel(minZ, maxZ float32) int {
	if minZ <= 0 {
		return 4
	}
	ratio := maxZ / minZ
	switch {
	case ratio >= 8:
		return 4
	case ratio >= 4:
		return 3
	case ratio >= 2:
		return 2
	default:
		return 1
	}
}

// BuildSpriteQuad subdivides a camera-facing sprite quad (given its four
// camera-space corners, tc at each corner, and a uniform light) into an
// NxN grid of sub-quads, each expressed as two triangles ready for
// DrawTriangleMesh; every sub-quad goes through the same draw pipeline.
func BuildSpriteQuad(corners [4]Vertex3, level int) ([]TriMeshVertex, []MeshTriangle) {
	if level < 1 {
		level = 1
	}
	verts := make([]TriMeshVertex, 0, (level+1)*(level+1))
	for j := 0; j <= level; j++ {
		v := float32(j) / float32(level)
		top := lerpVertex3(corners[0], corners[1], v)
		bottom := lerpVertex3(corners[3], corners[2], v)
		for i := 0; i <= level; i++ {
			u := float32(i) / float32(level)
			verts = append(verts, lerpVertex3(top, bottom, u))
		}
	}

	stride := level + 1
	tris := make([]MeshTriangle, 0, level*level*2)
	for j := 0; j < level; j++ {
		for i := 0; i < level; i++ {
			i00 := j*stride + i
			i10 := j*stride + i + 1
			i01 := (j+1)*stride + i
			i11 := (j+1)*stride + i + 1
			tris = append(tris,
				MeshTriangle{Indices: [3]int{i00, i10, i11}},
				MeshTriangle{Indices: [3]int{i00, i11, i01}},
			)
		}
	}
	return verts, tris
}
