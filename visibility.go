package swrender

import (
	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// maxClipVertices bounds the vertex count a single 3D clip pass operates
// on; portals and map polygons are never authored with more sides than
// this in practice.
const maxClipVertices = 64

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// maxStartLeafs bounds the number of leaves a single visibility pass can
// seed a search from, covering the "camera sits almost exactly on a portal
// plane" case where more than one adjoining leaf must be treated as fully
// visible from the start.
const maxStartLeafs = 32

// maxSearchDepth bounds the portal-graph BFS, guarding against an
// ill-formed (cyclic beyond reason) portal graph.
const maxSearchDepth = 1024

// LeafID indexes bsp.Compact.Leaves.
type LeafID = uint32

type leafVisData struct {
	visibleFrame      uint32
	currentBounds     ClippingPolygon
	lastPushIteration int32 // BFS iteration this leaf was last enqueued on; -1 if never
}

type portalVisData struct {
	visibleFrame      uint32
	hasProjection     bool
	currentProjection ClippingPolygon
}

// VisibilityCalculator computes, for a single frame, which BSP leaves are
// reachable from a camera through the portal graph and the screen-space
// bounds under which each is visible. One instance is reused across
// frames; frame-tagged records (visibleFrame) let it skip clearing its
// leaf/portal tables between frames.
type VisibilityCalculator struct {
	m *bsp.Compact

	currentFrame uint32
	leafs        []leafVisData
	portals      []portalVisData

	curWave  []uint32
	nextWave []uint32

	// width/height of the viewport the current pass projects into, in
	// pixels; set per UpdateVisibility/ComputeFromLeaves call.
	width, height int

	insideLeafVolume bool

	// cullCoveredPortals enables the "portal fully covered by leaf
	// polygons" filter (off by default; see
	// Config.CullPortalsCoveredByGeometry).
	cullCoveredPortals bool
}

// SetCullCoveredPortals toggles the covered-portal filter for subsequent
// visibility passes.
func (v *VisibilityCalculator) SetCullCoveredPortals(enabled bool) {
	v.cullCoveredPortals = enabled
}

// NewVisibilityCalculator allocates a calculator sized for m. The map must
// not change for the calculator's lifetime.
func NewVisibilityCalculator(m *bsp.Compact) *VisibilityCalculator {
	return &VisibilityCalculator{
		m:                m,
		leafs:            make([]leafVisData, len(m.Leaves)),
		portals:          make([]portalVisData, len(m.Portals)),
		insideLeafVolume: true,
	}
}

func (v *VisibilityCalculator) nextFrame() {
	v.currentFrame++
	if v.currentFrame == 0 {
		// Wrapped past the sentinel "never visible" value; every record's
		// stored frame number is now stale by construction since none of
		// them can equal 0 until this calculator is reused this many
		// times, which in practice never happens within a session.
		v.currentFrame = 1
	}
}

// findCurrentLeaf descends the BSP tree from the root, classifying the
// camera position against each splitting plane, and returns the leaf
// containing it.
func (v *VisibilityCalculator) findCurrentLeaf(camPos math32.Vector3) uint32 {
	index := v.m.RootNode()
	for {
		if leafIndex, ok := bsp.IsLeaf(index); ok {
			return leafIndex
		}
		node := &v.m.Nodes[index]
		w := node.Plane.Normal.Dot(camPos) - node.Plane.Dist
		if w >= 0 {
			index = node.Children[0]
		} else {
			index = node.Children[1]
		}
	}
}

// UpdateVisibility recomputes visibility for a primary camera view: it
// locates the leaf containing the camera, seeds the search from that leaf
// (plus any neighboring leaf across a portal the camera sits almost on
// top of), and floods the portal graph from there. frameBounds and
// the width/height pair are both in viewport pixels.
func (v *VisibilityCalculator) UpdateVisibility(cam CameraMatrices, frameBounds ClippingPolygon, width, height int) {
	v.nextFrame()
	v.width, v.height = width, height
	currentLeaf := v.findCurrentLeaf(cam.Position)

	var startLeafs [maxStartLeafs]uint32
	startLeafs[0] = currentLeaf
	numStart := 1

	leaf := &v.m.Leaves[currentLeaf]
	for _, portalIdx := range v.m.LeafPortalIndices(leaf) {
		portal := &v.m.Portals[portalIdx]
		scaledDist := portal.Plane.Normal.Dot(cam.Position) - portal.Plane.Dist
		eps := ZNear * 2
		if abs32(scaledDist) <= eps*portal.Plane.Normal.Length() {
			nextLeaf := portal.Leafs[1]
			if portal.Leafs[0] != currentLeaf {
				nextLeaf = portal.Leafs[0]
			}
			if numStart < maxStartLeafs {
				startLeafs[numStart] = nextLeaf
				numStart++
			}
		}
	}

	v.markReachableLeafs(startLeafs[:numStart], cam, frameBounds)
	v.insideLeafVolume = v.isInsideLeafVolume(cam, currentLeaf)
}

// ComputeFromLeaves recomputes visibility seeded from an explicit leaf set
// rather than the camera's containing leaf, for a viewpoint that is not
// usefully inside the tree. The partial renderer's portal and mirror
// sub-views do not call it; each child renderer runs UpdateVisibility from
// its own camera.
func (v *VisibilityCalculator) ComputeFromLeaves(startLeaves []LeafID, bounds ClippingPolygon, cam CameraMatrices, width, height int) {
	v.nextFrame()
	v.width, v.height = width, height
	v.markReachableLeafs(startLeaves, cam, bounds)
	v.insideLeafVolume = true // can't be determined for a synthetic viewpoint
}

func (v *VisibilityCalculator) markReachableLeafs(startLeafs []uint32, cam CameraMatrices, startBounds ClippingPolygon) {
	v.curWave = v.curWave[:0]
	v.nextWave = v.nextWave[:0]

	for _, start := range startLeafs {
		v.curWave = append(v.curWave, start)
		v.leafs[start].currentBounds = startBounds
		v.leafs[start].visibleFrame = v.currentFrame
		v.leafs[start].lastPushIteration = 0
	}

	depth := int32(0)
	for len(v.curWave) > 0 {
		depth++
		for _, leafIdx := range v.curWave {
			leafBounds := v.leafs[leafIdx].currentBounds
			leaf := &v.m.Leaves[leafIdx]

			for _, portalIdx := range v.m.LeafPortalIndices(leaf) {
				portal := &v.m.Portals[portalIdx]

				portalPlanePos := portal.Plane.Normal.Dot(cam.Position) - portal.Plane.Dist

				var nextLeaf uint32
				if portal.Leafs[0] == leafIdx {
					if portalPlanePos <= 0 {
						continue
					}
					nextLeaf = portal.Leafs[1]
				} else {
					if portalPlanePos >= 0 {
						continue
					}
					nextLeaf = portal.Leafs[0]
				}

				pd := &v.portals[portalIdx]
				if pd.visibleFrame != v.currentFrame {
					pd.visibleFrame = v.currentFrame
					if v.cullCoveredPortals && v.portalCoveredByLeafPolygons(portal) {
						pd.hasProjection = false
					} else {
						pd.currentProjection, pd.hasProjection = projectPortal(v.m, portal, cam, v.width, v.height)
					}
				}
				if !pd.hasProjection {
					continue
				}

				boundsIntersection := pd.currentProjection
				boundsIntersection.Intersect(leafBounds)
				if boundsIntersection.Empty() {
					continue
				}

				nd := &v.leafs[nextLeaf]
				if nd.visibleFrame != v.currentFrame {
					nd.visibleFrame = v.currentFrame
					nd.currentBounds = boundsIntersection
					nd.lastPushIteration = -1
				} else {
					if nd.currentBounds.Contains(boundsIntersection) {
						continue
					}
					nd.currentBounds.Extend(boundsIntersection)
				}

				// Enqueue this leaf at most once per BFS iteration: later
				// portals reaching the already-merged bounds in the same
				// iteration would otherwise requeue it redundantly.
				if nd.lastPushIteration != depth {
					nd.lastPushIteration = depth
					v.nextWave = append(v.nextWave, nextLeaf)
				}
			}
		}

		v.curWave, v.nextWave = v.nextWave, v.curWave[:0]

		if depth > maxSearchDepth {
			break
		}
	}
}

// portalCoveredByLeafPolygons reports whether a polygon in either adjacent
// leaf lies coplanar with the portal and spans its full extent, i.e. the
// portal opening is walled off and flooding through it is pure overdraw.
// Conservative: only an axis-aligned bounding-box containment test on
// coplanar polygons, so a partially covering polygon never culls.
func (v *VisibilityCalculator) portalCoveredByLeafPolygons(portal *bsp.Portal) bool {
	const eps = 1e-3
	pMin, pMax := vertexBounds(v.m.PortalVertices(portal))
	pNorm := portal.Plane.Normal.Normal()
	pDist := portal.Plane.Dist / portal.Plane.Normal.Length()

	for _, leafIndex := range portal.Leafs {
		leaf := &v.m.Leaves[leafIndex]
		for _, polyIdx := range v.m.LeafPolygonIndices(leaf) {
			poly := &v.m.Polygons[polyIdx]
			nLen := poly.Plane.Normal.Length()
			if nLen < eps {
				continue
			}
			n := poly.Plane.Normal.MulScalar(1 / nLen)
			d := poly.Plane.Dist / nLen
			dot := n.Dot(pNorm)
			aligned := dot > 1-eps && abs32(d-pDist) <= eps
			opposed := dot < -(1-eps) && abs32(d+pDist) <= eps
			if !aligned && !opposed {
				continue
			}
			qMin, qMax := vertexBounds(v.m.PolygonVertices(poly))
			if qMin.X <= pMin.X+eps && qMin.Y <= pMin.Y+eps && qMin.Z <= pMin.Z+eps &&
				qMax.X >= pMax.X-eps && qMax.Y >= pMax.Y-eps && qMax.Z >= pMax.Z-eps {
				return true
			}
		}
	}
	return false
}

func vertexBounds(verts []math32.Vector3) (min, max math32.Vector3) {
	min, max = verts[0], verts[0]
	for _, p := range verts[1:] {
		min.SetMin(p)
		max.SetMax(p)
	}
	return min, max
}

func (v *VisibilityCalculator) isInsideLeafVolume(cam CameraMatrices, leafIndex uint32) bool {
	leaf := &v.m.Leaves[leafIndex]
	for _, polyIdx := range v.m.LeafPolygonIndices(leaf) {
		poly := &v.m.Polygons[polyIdx]
		w := poly.Plane.Normal.Dot(cam.Position) - poly.Plane.Dist
		if w < 0 {
			return false
		}
	}
	return true
}

// LeafBounds returns the screen-space clipping bounds under which leafIndex
// was found visible this frame, and whether it was visible at all. Frame 0
// is the zero-value sentinel every record starts at, so before the first
// visibility pass nothing reads as visible.
func (v *VisibilityCalculator) LeafBounds(leafIndex uint32) (ClippingPolygon, bool) {
	ld := &v.leafs[leafIndex]
	if v.currentFrame == 0 || ld.visibleFrame != v.currentFrame {
		return ClippingPolygon{}, false
	}
	return ld.currentBounds, true
}

// IsCameraInsideLeafVolume reports whether the camera's position was found
// strictly inside its containing leaf's convex polygon set on the last
// UpdateVisibility call (not ComputeFromLeaves, which can't determine this
// and conservatively reports true).
func (v *VisibilityCalculator) IsCameraInsideLeafVolume() bool {
	return v.insideLeafVolume
}

// projectPortal transforms a portal's vertices into camera space, clips
// them against the (very close) portal near plane, and returns the
// pixel-space bounding ClippingPolygon of the projected result — the same
// coordinate space the viewport frame-bounds live in, so the two intersect
// meaningfully. ok is false if the portal is entirely behind the camera.
func projectPortal(m *bsp.Compact, portal *bsp.Portal, cam CameraMatrices, width, height int) (ClippingPolygon, bool) {
	verts := m.PortalVertices(portal)
	n := len(verts)
	if n > maxClipVertices {
		n = maxClipVertices
	}

	transformed := make([]Vertex3, n)
	for i := 0; i < n; i++ {
		// Same camera-space convention as ToCameraSpace: z positive in
		// front, so the z-near clip below keeps what the camera sees.
		transformed[i].Pos = ToCameraSpace(cam.View, verts[i])
	}

	clipped := make([]Vertex3, n+6)
	count := Clip3DByZNear(transformed, PortalZNear, clipped)
	if count < 3 {
		return ClippingPolygon{}, false
	}

	var bounds ClippingPolygon
	seeded := false
	for i := 0; i < count; i++ {
		x, y, _, ok := ProjectCameraSpaceToScreen(cam.Proj, clipped[i].Pos, width, height)
		if !ok {
			continue
		}
		if !seeded {
			bounds = ClippingPolygonFromPoint(x, y)
			seeded = true
		} else {
			bounds.ExtendWithPoint(x, y)
		}
	}
	return bounds, seeded
}
