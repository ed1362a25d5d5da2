package swrender

// clipAxis is a min/max interval along one of the four octagon axes.
type clipAxis struct {
	Min, Max float32
}

func (a clipAxis) validNonEmpty() bool {
	return a.Min < a.Max
}

func (a clipAxis) contains(o clipAxis) bool {
	return o.Min >= a.Min && o.Max <= a.Max
}

func (a *clipAxis) extend(o clipAxis) {
	if o.Min < a.Min {
		a.Min = o.Min
	}
	if o.Max > a.Max {
		a.Max = o.Max
	}
}

func (a *clipAxis) extendPoint(p float32) {
	if p < a.Min {
		a.Min = p
	}
	if p > a.Max {
		a.Max = p
	}
}

func (a *clipAxis) intersect(o clipAxis) {
	if o.Min > a.Min {
		a.Min = o.Min
	}
	if o.Max < a.Max {
		a.Max = o.Max
	}
}

func (a *clipAxis) scaleRelativeCenter(scale float32) {
	center := (a.Min + a.Max) * 0.5
	half := (a.Max - a.Min) * 0.5 * scale
	a.Min = center - half
	a.Max = center + half
}

func (a *clipAxis) increase(delta float32) {
	a.Min -= delta
	a.Max += delta
}

// ClippingPolygon is the axis-aligned octagon bound used throughout
// visibility culling: four intervals over the projections onto
// x, y, x+y, and x-y. This gives a fixed-size, branch-free representative
// that unions/intersects cheaply yet is tight enough to cull aggressively.
type ClippingPolygon struct {
	x, y, xPlusY, xMinusY clipAxis
}

// ClipPlane is a 2D half-plane (nx, ny, d) with the keep rule
// nx*x + ny*y + d >= 0, as consumed by Clip2D.
type ClipPlane struct {
	NX, NY, D float32
}

// ClippingPolygonFromBox builds the tightest octagon bound containing the
// axis-aligned box [minX,maxX] x [minY,maxY].
func ClippingPolygonFromBox(minX, minY, maxX, maxY float32) ClippingPolygon {
	return ClippingPolygon{
		x:       clipAxis{minX, maxX},
		y:       clipAxis{minY, maxY},
		xPlusY:  clipAxis{minX + minY, maxX + maxY},
		xMinusY: clipAxis{minX - maxY, maxX - minY},
	}
}

// ClippingPolygonFromPoint builds a degenerate (zero-area) octagon at a
// single point; useful as a seed before repeated ExtendWithPoint calls.
func ClippingPolygonFromPoint(x, y float32) ClippingPolygon {
	return ClippingPolygon{
		x:       clipAxis{x, x},
		y:       clipAxis{y, y},
		xPlusY:  clipAxis{x + y, x + y},
		xMinusY: clipAxis{x - y, x - y},
	}
}

// Empty reports whether the polygon is empty or invalid on any axis
// (min >= max on at least one of the four axes).
func (p ClippingPolygon) Empty() bool {
	return !(p.x.validNonEmpty() && p.y.validNonEmpty() && p.xPlusY.validNonEmpty() && p.xMinusY.validNonEmpty())
}

// Contains reports whether o lies entirely within p on all four axes.
func (p ClippingPolygon) Contains(o ClippingPolygon) bool {
	return p.x.contains(o.x) && p.y.contains(o.y) && p.xPlusY.contains(o.xPlusY) && p.xMinusY.contains(o.xMinusY)
}

// Extend grows p (in place) so the result contains both p and o.
func (p *ClippingPolygon) Extend(o ClippingPolygon) {
	p.x.extend(o.x)
	p.y.extend(o.y)
	p.xPlusY.extend(o.xPlusY)
	p.xMinusY.extend(o.xMinusY)
}

// ExtendWithPoint grows p (in place) so the result contains (x, y).
func (p *ClippingPolygon) ExtendWithPoint(x, y float32) {
	p.x.extendPoint(x)
	p.y.extendPoint(y)
	p.xPlusY.extendPoint(x + y)
	p.xMinusY.extendPoint(x - y)
}

// ExtendWithPolygon grows p (in place) to contain every point in pts.
func (p *ClippingPolygon) ExtendWithPolygon(pts [][2]float32) {
	for _, pt := range pts {
		p.ExtendWithPoint(pt[0], pt[1])
	}
}

// Intersect shrinks p (in place) to the overlap of p and o.
func (p *ClippingPolygon) Intersect(o ClippingPolygon) {
	p.x.intersect(o.x)
	p.y.intersect(o.y)
	p.xPlusY.intersect(o.xPlusY)
	p.xMinusY.intersect(o.xMinusY)
}

// IntersectWithPolygon shrinks p (in place) to the overlap of p and the
// bounding octagon of pts. pts must be non-empty.
func (p *ClippingPolygon) IntersectWithPolygon(pts [][2]float32) {
	bound := ClippingPolygonFromPoint(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		bound.ExtendWithPoint(pt[0], pt[1])
	}
	p.Intersect(bound)
}

// ScaleRelativeCenter scales every axis about its own center.
func (p *ClippingPolygon) ScaleRelativeCenter(scale float32) {
	p.x.scaleRelativeCenter(scale)
	p.y.scaleRelativeCenter(scale)
	p.xPlusY.scaleRelativeCenter(scale)
	p.xMinusY.scaleRelativeCenter(scale)
}

// Increase grows every axis outward by delta.
func (p *ClippingPolygon) Increase(delta float32) {
	p.x.increase(delta)
	p.y.increase(delta)
	p.xPlusY.increase(delta)
	p.xMinusY.increase(delta)
}

// ClipPlanes returns the 8 half-planes bounding the octagon, for use by
// Clip2D.
func (p ClippingPolygon) ClipPlanes() [8]ClipPlane {
	return [8]ClipPlane{
		{-1, 0, p.x.Max},
		{1, 0, -p.x.Min},
		{0, -1, p.y.Max},
		{0, 1, -p.y.Min},
		{-1, -1, p.xPlusY.Max},
		{1, 1, -p.xPlusY.Min},
		{-1, 1, p.xMinusY.Max},
		{1, -1, -p.xMinusY.Min},
	}
}

// BoxClipPlanes returns only the 4 axis-aligned half-planes (no diagonal
// clipping), for callers that only need box-level rejection.
func (p ClippingPolygon) BoxClipPlanes() [4]ClipPlane {
	full := p.ClipPlanes()
	return [4]ClipPlane{full[0], full[1], full[2], full[3]}
}
