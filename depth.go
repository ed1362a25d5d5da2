package swrender

import "github.com/kestrelforge/swrender/bsp"

// DepthBuffer is a plane of inverse-depth (1/z) values, written by the
// depth rasterizer and read by the shadow-map fetch and the
// main-pass depth test.
type DepthBuffer struct {
	Width, Height int
	Values        []float32 // inv_z; 0 means untouched
}

// NewDepthBuffer allocates a buffer filled with 0 (meaning "nothing drawn
// here yet").
func NewDepthBuffer(width, height int) *DepthBuffer {
	return &DepthBuffer{Width: width, Height: height, Values: make([]float32, width*height)}
}

// Clear resets every value to 0.
func (d *DepthBuffer) Clear() {
	for i := range d.Values {
		d.Values[i] = 0
	}
}

// depthBiasConstant keeps self-shadowing at bay: a small constant epsilon
// subtracted from every inverse depth a polygon writes. No slope-scaled
// term is applied.
const depthBiasConstant = 1.0 / float32(1<<20)

// FillConvexPolygon rasterizes a single convex, screen-space-projected
// polygon's inverse depth into d, clipped to [minX,maxX) x [minY,maxY).
// vertices are screen-space (x, y, invZ) triples, invZ > 0 guaranteed by
// the caller.
func (d *DepthBuffer) FillConvexPolygon(vertices []ScreenDepthVertex, minX, minY, maxX, maxY int) {
	if len(vertices) < 3 {
		return
	}
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > d.Width {
		maxX = d.Width
	}
	if maxY > d.Height {
		maxY = d.Height
	}
	if minX >= maxX || minY >= maxY {
		return
	}

	scanline := buildScanlineEdges(vertices)
	for y := minY; y < maxY; y++ {
		left, right, invZLeft, invZRight, ok := scanline.spanAt(float32(y) + 0.5)
		if !ok {
			continue
		}
		xStart := int(left)
		if xStart < minX {
			xStart = minX
		}
		xEnd := int(right)
		if xEnd > maxX {
			xEnd = maxX
		}
		if xStart >= xEnd {
			continue
		}
		span := right - left
		if span < 1e-6 {
			span = 1e-6
		}
		for x := xStart; x < xEnd; x++ {
			t := (float32(x) + 0.5 - left) / span
			invZ := invZLeft + (invZRight-invZLeft)*t
			invZ -= depthBiasConstant
			if invZ <= 0 {
				continue
			}
			idx := y*d.Width + x
			if invZ > d.Values[idx] {
				d.Values[idx] = invZ
			}
		}
	}
}

// ScreenDepthVertex is a screen-projected vertex carrying inverse depth,
// the minimal input the depth rasterizer needs.
type ScreenDepthVertex struct {
	X, Y, InvZ float32
}

// scanlineEdges is a precomputed left/right edge walk for one convex
// polygon, built once per FillConvexPolygon call: both edge lists are
// walked simultaneously in screen-y, specialized here to depth-only
// output.
type scanlineEdges struct {
	minY, maxY          float32
	leftX, rightX       []float32
	leftInvZ, rightInvZ []float32
	yStart              float32
}

func buildScanlineEdges(vertices []ScreenDepthVertex) scanlineEdges {
	n := len(vertices)
	minIdx := 0
	for i := 1; i < n; i++ {
		if vertices[i].Y < vertices[minIdx].Y {
			minIdx = i
		}
	}

	minY, maxY := vertices[minIdx].Y, vertices[minIdx].Y
	for _, v := range vertices {
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	rows := int(maxY-minY) + 2
	if rows < 1 {
		rows = 1
	}
	e := scanlineEdges{
		minY: minY, maxY: maxY, yStart: minY,
		leftX: make([]float32, rows), rightX: make([]float32, rows),
		leftInvZ: make([]float32, rows), rightInvZ: make([]float32, rows),
	}
	for i := range e.leftX {
		e.leftX[i] = 1e30
		e.rightX[i] = -1e30
	}

	walkEdge := func(a, b ScreenDepthVertex) {
		if a.Y == b.Y {
			return
		}
		lo, hi := a, b
		if lo.Y > hi.Y {
			lo, hi = hi, lo
		}
		dy := hi.Y - lo.Y
		y0 := int(lo.Y - minY)
		y1 := int(hi.Y - minY)
		if y0 < 0 {
			y0 = 0
		}
		if y1 >= rows {
			y1 = rows - 1
		}
		for y := y0; y <= y1; y++ {
			fy := float32(y) + minY
			t := (fy - lo.Y) / dy
			x := lo.X + (hi.X-lo.X)*t
			invZ := lo.InvZ + (hi.InvZ-lo.InvZ)*t
			if x < e.leftX[y] {
				e.leftX[y] = x
				e.leftInvZ[y] = invZ
			}
			if x > e.rightX[y] {
				e.rightX[y] = x
				e.rightInvZ[y] = invZ
			}
		}
	}

	for i := 0; i < n; i++ {
		walkEdge(vertices[i], vertices[(i+1)%n])
	}
	return e
}

func (e scanlineEdges) spanAt(y float32) (left, right, invZLeft, invZRight float32, ok bool) {
	row := int(y - e.minY)
	if row < 0 || row >= len(e.leftX) {
		return 0, 0, 0, 0, false
	}
	if e.leftX[row] > e.rightX[row] {
		return 0, 0, 0, 0, false
	}
	return e.leftX[row], e.rightX[row], e.leftInvZ[row], e.rightInvZ[row], true
}

// DepthRenderer walks the visible BSP tree back-to-front (matching the
// main rasterizer's traversal order, reused here so shadow-casting
// decisions stay consistent between the depth pre-pass and the final
// image) and fills a DepthBuffer.
type DepthRenderer struct {
	m          *bsp.Compact
	visibility *VisibilityCalculator
}

// NewDepthRenderer constructs a depth renderer sharing the map with the
// rest of the frame's components.
func NewDepthRenderer(m *bsp.Compact) *DepthRenderer {
	return &DepthRenderer{m: m, visibility: NewVisibilityCalculator(m)}
}

// DrawMap renders the static BSP into buf from the given camera, using the
// renderer's own visibility pass (a depth pre-pass runs visibility
// independently of the main partial renderer, since shadow map builds
// happen before the main frame's visibility is finalized).
func (d *DepthRenderer) DrawMap(buf *DepthBuffer, cam CameraMatrices, project func(p [3]float32) (ScreenDepthVertex, bool)) {
	frameBounds := ClippingPolygonFromBox(0, 0, float32(buf.Width), float32(buf.Height))
	d.visibility.UpdateVisibility(cam, frameBounds, buf.Width, buf.Height)

	d.drawTree(buf, cam, d.m.RootNode(), project)
}

func (d *DepthRenderer) drawTree(buf *DepthBuffer, cam CameraMatrices, index uint32, project func([3]float32) (ScreenDepthVertex, bool)) {
	if leafIndex, ok := bsp.IsLeaf(index); ok {
		if _, visible := d.visibility.LeafBounds(leafIndex); visible {
			d.drawLeaf(buf, leafIndex, project)
		}
		return
	}
	node := &d.m.Nodes[index]
	w := node.Plane.Normal.Dot(cam.Position) - node.Plane.Dist
	mask := 0
	if w >= 0 {
		mask = 1
	}
	for i := 0; i < 2; i++ {
		d.drawTree(buf, cam, node.Children[i^mask], project)
	}
}

func (d *DepthRenderer) drawLeaf(buf *DepthBuffer, leafIndex uint32, project func([3]float32) (ScreenDepthVertex, bool)) {
	leaf := &d.m.Leaves[leafIndex]
	for _, polyIdx := range d.m.LeafPolygonIndices(leaf) {
		poly := &d.m.Polygons[polyIdx]
		verts := d.m.PolygonVertices(poly)
		screen := make([]ScreenDepthVertex, 0, len(verts))
		ok := true
		for _, v := range verts {
			sv, valid := project([3]float32{v.X, v.Y, v.Z})
			if !valid {
				ok = false
				break
			}
			screen = append(screen, sv)
		}
		if !ok || len(screen) < 3 {
			continue
		}
		minX, minY, maxX, maxY := screenBounds(screen)
		buf.FillConvexPolygon(screen, minX, minY, maxX, maxY)
	}
}

func screenBounds(verts []ScreenDepthVertex) (minX, minY, maxX, maxY int) {
	fminX, fminY := verts[0].X, verts[0].Y
	fmaxX, fmaxY := verts[0].X, verts[0].Y
	for _, v := range verts[1:] {
		if v.X < fminX {
			fminX = v.X
		}
		if v.X > fmaxX {
			fmaxX = v.X
		}
		if v.Y < fminY {
			fminY = v.Y
		}
		if v.Y > fmaxY {
			fmaxY = v.Y
		}
	}
	return int(fminX), int(fminY), int(fmaxX) + 1, int(fmaxY) + 1
}
