package swrender

import "cogentcore.org/core/math32"

// DrawRecordParentKind distinguishes a polygon belonging to a map leaf from
// one belonging to a submodel (door, platform, ...).
type DrawRecordParentKind uint8

const (
	ParentLeaf DrawRecordParentKind = iota
	ParentSubmodel
)

// DrawRecord is the mutable, per-polygon frame state parallel to
// bsp.Compact.Polygons by index. It is reset the first time a polygon
// is visited in a given frame (visibleFrame tagging, same scheme as
// VisibilityCalculator's leaf/portal records).
type DrawRecord struct {
	ParentKind DrawRecordParentKind
	ParentID   uint32 // leaf or submodel index, depending on ParentKind

	// BasisU/BasisV/BasisStart recover a world-space position from a
	// surface texel (u, v): pos = BasisStart + u*BasisU + v*BasisV. For
	// submodel polygons these are the map-space basis vectors transformed
	// through the submodel's current world matrix.
	BasisU, BasisV, BasisStart math32.Vector3

	VisibleFrame uint32

	// DepthEq is the polygon plane transformed into camera space, used by
	// the rasterizer to derive per-pixel inv_z without re-transforming the
	// plane per pixel.
	DepthEq math32.Vector3
	DepthW  float32

	// TCEq is the camera-space texture-coordinate equation, one per
	// coordinate axis.
	TCEq [2]math32.Vector3
	TCW  [2]float32

	SurfacePixelsOffset int
	SurfaceSize         [2]int
	Mip                 int
	SurfaceTCMin        [2]int32

	InterpMode TexInterpMode
	Blend      BlendMode

	// ScreenVerts/ScreenDepth/ScreenTC are the polygon's screen-space
	// rasterizer inputs, computed once in buildVisibleSurfaces and reused
	// unchanged by the draw walk: ScreenTC's coefficients already fold in
	// the chosen mip's scale and the surface-cache rect's SurfaceTCMin
	// offset, so the rasterizer can sample the reserved surface slice
	// directly as a TextureMip with no per-pixel adjustment.
	ScreenVerts []PolygonVertexProjected
	ScreenDepth [3]float32
	ScreenTC    TexCoordEquation
}

// DrawRecords is the renderer-owned array of per-polygon draw records,
// indexed identically to bsp.Compact.Polygons.
type DrawRecords struct {
	records []DrawRecord
}

// NewDrawRecords allocates one record per polygon.
func NewDrawRecords(numPolygons int) *DrawRecords {
	return &DrawRecords{records: make([]DrawRecord, numPolygons)}
}

// lookup returns the record for polygonIndex without resetting it, and
// whether it was actually touched this frame. Used by readers (the draw
// walk) that must never see a stale record from a prior frame as if it
// were current.
func (d *DrawRecords) lookup(polygonIndex uint32, frame uint32) (*DrawRecord, bool) {
	rec := &d.records[polygonIndex]
	if rec.VisibleFrame != frame {
		return nil, false
	}
	return rec, true
}

// Visit returns a pointer to the record for polygonIndex, resetting it to
// a fresh state for frame if it hasn't been touched this frame yet, and
// reports whether this call was that first visit.
func (d *DrawRecords) Visit(polygonIndex uint32, frame uint32) (rec *DrawRecord, firstVisitThisFrame bool) {
	rec = &d.records[polygonIndex]
	if rec.VisibleFrame != frame {
		*rec = DrawRecord{VisibleFrame: frame}
		return rec, true
	}
	return rec, false
}
