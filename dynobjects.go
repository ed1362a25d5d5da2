package swrender

import (
	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// DynamicObjectID indexes into one DynamicObjectsIndex's per-frame object
// set (model, decal, or light — whichever position call last populated the
// index).
type DynamicObjectID = uint32

// DynamicObjectsIndex answers "which leafs is object X in" and "which
// objects are in leaf Y" for one frame's dynamic objects, rebuilt each
// frame from scratch. Leaf-side slices are cleared but not deallocated
// between frames so repeated frames with a similar object count do no
// extra heap work.
type DynamicObjectsIndex struct {
	m *bsp.Compact

	leafObjects [][]DynamicObjectID
	objectLeafs [][]uint32
}

// NewDynamicObjectsIndex allocates an index sized to the map's leaf count.
func NewDynamicObjectsIndex(m *bsp.Compact) *DynamicObjectsIndex {
	return &DynamicObjectsIndex{
		m:           m,
		leafObjects: make([][]DynamicObjectID, len(m.Leaves)),
	}
}

// LeafObjects returns the objects placed in the given leaf during the most
// recent Place* call.
func (idx *DynamicObjectsIndex) LeafObjects(leafIndex uint32) []DynamicObjectID {
	return idx.leafObjects[leafIndex]
}

// ObjectLeafs returns the leafs the given object occupies.
func (idx *DynamicObjectsIndex) ObjectLeafs(id DynamicObjectID) []uint32 {
	if int(id) >= len(idx.objectLeafs) {
		return nil
	}
	return idx.objectLeafs[id]
}

func (idx *DynamicObjectsIndex) reset(numObjects int) {
	for i := range idx.leafObjects {
		idx.leafObjects[i] = idx.leafObjects[i][:0]
	}
	if len(idx.objectLeafs) < numObjects {
		grown := make([][]uint32, numObjects)
		copy(grown, idx.objectLeafs)
		idx.objectLeafs = grown
	}
	for i := 0; i < numObjects; i++ {
		idx.objectLeafs[i] = idx.objectLeafs[i][:0]
	}
}

func (idx *DynamicObjectsIndex) record(id DynamicObjectID, leafIndex uint32) {
	idx.leafObjects[leafIndex] = append(idx.leafObjects[leafIndex], id)
	idx.objectLeafs[id] = append(idx.objectLeafs[id], leafIndex)
}

// PlaceBoundingBox descends the BSP from the root, recursing into both
// children whenever the transformed box's 8 corners straddle a node's
// plane, and records id against every leaf any corner reaches. Model
// entities use this test against their animation-pose bounding box.
func (idx *DynamicObjectsIndex) PlaceBoundingBox(id DynamicObjectID, localMin, localMax math32.Vector3, transform Matrix4) {
	corners := boxCorners(localMin, localMax)
	var world [8]math32.Vector3
	for i, c := range corners {
		x, y, z, w := transform.TransformPoint(c)
		if w != 0 && w != 1 {
			x, y, z = x/w, y/w, z/w
		}
		world[i] = math32.Vec3(x, y, z)
	}
	idx.placeConvexHullFrom(id, world[:], idx.m.RootNode())
}

func boxCorners(min, max math32.Vector3) [8]math32.Vector3 {
	return [8]math32.Vector3{
		math32.Vec3(min.X, min.Y, min.Z), math32.Vec3(max.X, min.Y, min.Z),
		math32.Vec3(min.X, max.Y, min.Z), math32.Vec3(max.X, max.Y, min.Z),
		math32.Vec3(min.X, min.Y, max.Z), math32.Vec3(max.X, min.Y, max.Z),
		math32.Vec3(min.X, max.Y, max.Z), math32.Vec3(max.X, max.Y, max.Z),
	}
}

// PlaceConvexHull places an arbitrary convex hull (given as world-space
// vertices, e.g. a projector light's frustum pyramid) into the BSP,
// recursing into a child whenever at least one vertex is strictly in front
// of the splitting plane and at least one is not, which conservatively
// visits both sides whenever the hull may straddle.
func (idx *DynamicObjectsIndex) PlaceConvexHull(id DynamicObjectID, worldVertices []math32.Vector3) {
	idx.placeConvexHullFrom(id, worldVertices, idx.m.RootNode())
}

func (idx *DynamicObjectsIndex) placeConvexHullFrom(id DynamicObjectID, vertices []math32.Vector3, nodeIndex uint32) {
	if leafIndex, ok := bsp.IsLeaf(nodeIndex); ok {
		idx.record(id, leafIndex)
		return
	}
	node := &idx.m.Nodes[nodeIndex]
	plane := node.Plane

	front := 0
	for _, v := range vertices {
		if plane.Normal.Dot(v) > plane.Dist {
			front++
		}
	}

	if front > 0 {
		idx.placeConvexHullFrom(id, vertices, node.Children[0])
	}
	if front < len(vertices) {
		idx.placeConvexHullFrom(id, vertices, node.Children[1])
	}
}

// PlaceSphere places a sphere (e.g. a point light's influence radius) into
// the BSP, recursing into a child whenever the sphere may cross that
// child's half of the splitting plane, scaling the radius by the plane
// normal's magnitude since compact BSP planes are not guaranteed unit
// length.
func (idx *DynamicObjectsIndex) PlaceSphere(id DynamicObjectID, center math32.Vector3, radius float32) {
	idx.placeSphereFrom(id, center, radius, idx.m.RootNode())
}

func (idx *DynamicObjectsIndex) placeSphereFrom(id DynamicObjectID, center math32.Vector3, radius float32, nodeIndex uint32) {
	if leafIndex, ok := bsp.IsLeaf(nodeIndex); ok {
		idx.record(id, leafIndex)
		return
	}
	node := &idx.m.Nodes[nodeIndex]
	plane := node.Plane

	normalLen := planeNormalMagnitude(plane)
	scaledRadius := radius * normalLen
	scaledDist := center.Dot(plane.Normal)

	if scaledDist+scaledRadius >= plane.Dist {
		idx.placeSphereFrom(id, center, radius, node.Children[0])
	}
	if scaledDist-scaledRadius <= plane.Dist {
		idx.placeSphereFrom(id, center, radius, node.Children[1])
	}
}

func planeNormalMagnitude(p bsp.Plane) float32 {
	n := p.Normal
	return 1 / InvSqrtFast(n.X*n.X+n.Y*n.Y+n.Z*n.Z)
}

// PositionModels resets the index and places every non-view-model
// ModelEntity by its bounding box. View models are never placed: they
// always draw in camera space regardless of visibility culling.
func (idx *DynamicObjectsIndex) PositionModels(models []ModelEntity) {
	idx.reset(len(models))
	for i, model := range models {
		if model.IsViewModel {
			continue
		}
		idx.PlaceBoundingBox(DynamicObjectID(i), model.LocalBoundsMin, model.LocalBoundsMax, objectMatrix(model.Position, model.Rotation, 1))
	}
}

// PositionDecals resets the index and places every decal by a unit cube
// scaled/rotated/translated into place.
func (idx *DynamicObjectsIndex) PositionDecals(decals []Decal) {
	idx.reset(len(decals))
	unitMin, unitMax := math32.Vec3(-1, -1, -1), math32.Vec3(1, 1, 1)
	for i, d := range decals {
		idx.PlaceBoundingBox(DynamicObjectID(i), unitMin, unitMax, objectMatrix(d.Position, d.Rotation, d.Scale))
	}
}

// PositionSprites resets the index and places every sprite by a sphere
// enclosing its largest half-extent.
func (idx *DynamicObjectsIndex) PositionSprites(sprites []Sprite) {
	idx.reset(len(sprites))
	for i, s := range sprites {
		radius := s.HalfSize[0]
		if s.HalfSize[1] > radius {
			radius = s.HalfSize[1]
		}
		idx.PlaceSphere(DynamicObjectID(i), s.Position, radius)
	}
}

// PositionSubmodels resets the index and places every submodel entity by
// the local bounding box of its polygons' vertices, transformed through the
// entity's current pose.
func (idx *DynamicObjectsIndex) PositionSubmodels(entities []SubmodelEntity) {
	idx.reset(len(entities))
	for i, e := range entities {
		if int(e.SubmodelIndex) >= len(idx.m.Submodels) {
			continue
		}
		sm := &idx.m.Submodels[e.SubmodelIndex]
		localMin, localMax, ok := submodelLocalBounds(idx.m, sm)
		if !ok {
			continue
		}
		idx.PlaceBoundingBox(DynamicObjectID(i), localMin, localMax, objectMatrix(e.Position, e.Rotation, 1))
	}
}

func submodelLocalBounds(m *bsp.Compact, sm *bsp.Submodel) (min, max math32.Vector3, ok bool) {
	first := true
	for p := sm.FirstPolygon; p < sm.FirstPolygon+sm.NumPolygons; p++ {
		for _, v := range m.PolygonVertices(&m.Polygons[p]) {
			if first {
				min, max = v, v
				first = false
				continue
			}
			min.SetMin(v)
			max.SetMax(v)
		}
	}
	return min, max, !first
}

// PositionDynamicLights resets the index and places every dynamic light:
// projector lights by their frustum pyramid hull, point/cube lights by a
// sphere of their influence radius. frameLights may be shorter than lights;
// missing entries read as a zero pose.
func (idx *DynamicObjectsIndex) PositionDynamicLights(lights []DynamicLight, frameLights []FrameLight) {
	idx.reset(len(lights))
	for i := range lights {
		var fl FrameLight
		if i < len(frameLights) {
			fl = frameLights[i]
		}
		if lights[i].Shadow == ShadowProjector {
			halfWidth := lights[i].Radius * tanApprox(fl.FOV*0.5)
			matrix := objectMatrix(lights[i].Position, fl.Rotation, 1)
			local := [5]math32.Vector3{
				math32.Vec3(0, 0, 0),
				math32.Vec3(lights[i].Radius, halfWidth, halfWidth),
				math32.Vec3(lights[i].Radius, halfWidth, -halfWidth),
				math32.Vec3(lights[i].Radius, -halfWidth, halfWidth),
				math32.Vec3(lights[i].Radius, -halfWidth, -halfWidth),
			}
			world := make([]math32.Vector3, len(local))
			for j, v := range local {
				x, y, z, w := matrix.TransformPoint(v)
				if w != 0 && w != 1 {
					x, y, z = x/w, y/w, z/w
				}
				world[j] = math32.Vec3(x, y, z)
			}
			idx.PlaceConvexHull(DynamicObjectID(i), world)
		} else {
			idx.PlaceSphere(DynamicObjectID(i), lights[i].Position, lights[i].Radius)
		}
	}
}

// SampleLightGrid returns the ambient light probe nearest to pos from the
// map's light grid of precomputed probes, used to shade dynamic models
// that touch no surface. Returns ok=false when the map
// carries no grid or the containing cell has no samples.
func SampleLightGrid(m *bsp.Compact, pos math32.Vector3) (Color, bool) {
	g := &m.LightGrid
	if g.Dims[0] == 0 || g.Dims[1] == 0 || g.Dims[2] == 0 || len(m.LightGridColumns) == 0 {
		return Color{}, false
	}
	cell := func(v, origin, size float32, dim uint32) int {
		if size <= 0 {
			return 0
		}
		i := int((v - origin) / size)
		if i < 0 {
			i = 0
		}
		if i >= int(dim) {
			i = int(dim) - 1
		}
		return i
	}
	cx := cell(pos.X, g.Origin.X, g.CellSize.X, g.Dims[0])
	cy := cell(pos.Y, g.Origin.Y, g.CellSize.Y, g.Dims[1])
	cz := cell(pos.Z, g.Origin.Z, g.CellSize.Z, g.Dims[2])

	column := cx + cy*int(g.Dims[0])
	if column >= len(m.LightGridColumns) {
		return Color{}, false
	}
	offset := m.LightGridColumns[column]
	if offset == ^uint32(0) {
		return Color{}, false
	}
	idx := int(offset) + cz
	if idx >= len(m.LightGridSamples) {
		return Color{}, false
	}
	a := m.LightGridSamples[idx].Ambient
	return Color{R: a[0], G: a[1], B: a[2], A: 1}, true
}

// objectMatrix builds a uniform-scale object-to-world transform from a
// position, Euler rotation, and scale factor.
func objectMatrix(position math32.Vector3, rotation math32.Vector3, scale float32) Matrix4 {
	rz := rotationZ(rotation.Z)
	ry := rotationY(rotation.Y)
	rx := rotationX(rotation.X)
	rot := MulMatrix4(MulMatrix4(rz, ry), rx)
	s := Matrix4{
		scale, 0, 0, 0,
		0, scale, 0, 0,
		0, 0, scale, 0,
		0, 0, 0, 1,
	}
	t := Matrix4{
		1, 0, 0, position.X,
		0, 1, 0, position.Y,
		0, 0, 1, position.Z,
		0, 0, 0, 1,
	}
	return MulMatrix4(t, MulMatrix4(rot, s))
}

func rotationX(a float32) Matrix4 {
	c, s := cosApprox(a), sinApprox(a)
	return Matrix4{1, 0, 0, 0, 0, c, -s, 0, 0, s, c, 0, 0, 0, 0, 1}
}

func rotationY(a float32) Matrix4 {
	c, s := cosApprox(a), sinApprox(a)
	return Matrix4{c, 0, s, 0, 0, 1, 0, 0, -s, 0, c, 0, 0, 0, 0, 1}
}

func rotationZ(a float32) Matrix4 {
	c, s := cosApprox(a), sinApprox(a)
	return Matrix4{c, -s, 0, 0, s, c, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func sinApprox(x float32) float32 { return sinF32(x) }
func cosApprox(x float32) float32 { return sinF32(x + halfPiF32) }
func tanApprox(x float32) float32 { return safeDiv(sinApprox(x), cosApprox(x)) }

const halfPiF32 = float32(halfPi)
