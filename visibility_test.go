package swrender

import (
	"testing"

	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// twoLeafVisibilityMap builds a minimal two-leaf map split by a node plane
// at z=5: leaf 0 occupies z>5, leaf 1 occupies z<5 (the node's plane normal
// points from leaf 1 towards leaf 0, per the w>=0 -> children[0] rule),
// connected by one portal on the splitting plane. Mirrors
// bsp/format_test.go's twoLeafMap shape, reconstructed here since that
// helper lives in the bsp package.
func twoLeafVisibilityMap() *bsp.Compact {
	var texName [bsp.MaxTextureNameLen]byte
	copy(texName[:], "wall")

	return &bsp.Compact{
		Vertices: []math32.Vector3{
			{X: 0, Y: 0, Z: 10}, {X: 1, Y: 0, Z: 10}, {X: 1, Y: 1, Z: 10}, // leaf 0 (z>5) triangle
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, // leaf 1 (z<5) triangle
			{X: -1, Y: -1, Z: 5}, {X: 2, Y: -1, Z: 5}, {X: 2, Y: 2, Z: 5}, {X: -1, Y: 2, Z: 5}, // portal quad
		},
		Polygons: []bsp.Polygon{
			{FirstVertex: 0, NumVertices: 3, Plane: bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: 10}, TCMax: [2]float32{1, 1}, Texture: 0, LightmapData: bsp.NoLightmap},
			{FirstVertex: 3, NumVertices: 3, Plane: bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: 0}, TCMax: [2]float32{1, 1}, Texture: 0, LightmapData: bsp.NoLightmap},
		},
		Portals: []bsp.Portal{
			{Leafs: [2]uint32{0, 1}, Plane: bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: 5}, FirstVertex: 6, NumVertices: 4},
		},
		LeafPortals: []uint32{0, 0},
		Leaves: []bsp.Leaf{
			{FirstPolygon: 0, NumPolygons: 1, FirstLeafPortal: 0, NumLeafPortals: 1},
			{FirstPolygon: 1, NumPolygons: 1, FirstLeafPortal: 1, NumLeafPortals: 1},
		},
		Nodes: []bsp.Node{
			{Children: [2]uint32{bsp.MakeLeafIndex(0), bsp.MakeLeafIndex(1)}, Plane: bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: 5}},
		},
		Textures: [][bsp.MaxTextureNameLen]byte{texName},
	}
}

func camAt(pos, forward math32.Vector3) CameraMatrices {
	cam := NewCamera(1)
	cam.SetPose(pos, forward, math32.Vec3(0, 1, 0))
	return cam.Matrices()
}

func TestFindCurrentLeafPicksContainingSide(t *testing.T) {
	m := twoLeafVisibilityMap()
	v := NewVisibilityCalculator(m)

	far := camAt(math32.Vec3(0.3, 0.3, 9), math32.Vec3(0, 0, -1))
	if got := v.findCurrentLeaf(far.Position); got != 0 {
		t.Errorf("camera at z=9 (leaf 0 side, z>5) found leaf %d, want 0", got)
	}

	near := camAt(math32.Vec3(0.3, 0.3, 1), math32.Vec3(0, 0, 1))
	if got := v.findCurrentLeaf(near.Position); got != 1 {
		t.Errorf("camera at z=1 (leaf 1 side, z<5) found leaf %d, want 1", got)
	}
}

func TestUpdateVisibilityMarksOwnLeafVisible(t *testing.T) {
	m := twoLeafVisibilityMap()
	v := NewVisibilityCalculator(m)
	cam := camAt(math32.Vec3(0.3, 0.3, 1), math32.Vec3(0, 0, 1))

	v.UpdateVisibility(cam, ClippingPolygonFromBox(0, 0, 64, 64), 64, 64)
	if _, visible := v.LeafBounds(1); !visible {
		t.Error("the leaf containing the camera should always be marked visible")
	}
}

func TestUpdateVisibilityFloodsThroughPortal(t *testing.T) {
	m := twoLeafVisibilityMap()
	v := NewVisibilityCalculator(m)
	cam := camAt(math32.Vec3(0.3, 0.3, 1), math32.Vec3(0, 0, 1))

	v.UpdateVisibility(cam, ClippingPolygonFromBox(0, 0, 64, 64), 64, 64)
	if _, visible := v.LeafBounds(0); !visible {
		t.Error("leaf 0 should become visible through the shared portal when facing it")
	}
}

func TestUpdateVisibilityFrameTaggingAdvancesEachCall(t *testing.T) {
	m := twoLeafVisibilityMap()
	v := NewVisibilityCalculator(m)
	cam := camAt(math32.Vec3(0.3, 0.3, 1), math32.Vec3(0, 0, 1))

	v.UpdateVisibility(cam, ClippingPolygonFromBox(0, 0, 64, 64), 64, 64)
	firstFrame := v.currentFrame

	v.UpdateVisibility(cam, ClippingPolygonFromBox(0, 0, 64, 64), 64, 64)
	if v.currentFrame != firstFrame+1 {
		t.Errorf("currentFrame = %d, want %d (advances by exactly 1 per call)", v.currentFrame, firstFrame+1)
	}
	if _, visible := v.LeafBounds(1); !visible {
		t.Error("leaf should remain visible after a second UpdateVisibility call")
	}
}

func TestLeafBoundsFalseForUncomputedLeaf(t *testing.T) {
	m := twoLeafVisibilityMap()
	v := NewVisibilityCalculator(m)
	if _, visible := v.LeafBounds(0); visible {
		t.Error("LeafBounds before any UpdateVisibility call should report not visible")
	}
}

func TestComputeFromLeavesMarksInsideLeafVolumeTrue(t *testing.T) {
	m := twoLeafVisibilityMap()
	v := NewVisibilityCalculator(m)
	cam := camAt(math32.Vec3(0.3, 0.3, 9), math32.Vec3(0, 0, -1))
	v.ComputeFromLeaves([]LeafID{0}, ClippingPolygonFromBox(0, 0, 64, 64), cam, 64, 64)
	if !v.IsCameraInsideLeafVolume() {
		t.Error("ComputeFromLeaves should conservatively report the camera as inside its leaf volume")
	}
	if _, visible := v.LeafBounds(0); !visible {
		t.Error("the explicitly seeded leaf should be marked visible")
	}
}
