package swrender

import (
	"testing"

	"cogentcore.org/core/math32"
)

func TestSortTrianglesBackToFrontOrdersByMaxZ(t *testing.T) {
	verts := []TriMeshVertex{
		{Pos: math32.Vec3(0, 0, 1)},
		{Pos: math32.Vec3(0, 0, 5)},
		{Pos: math32.Vec3(0, 0, 10)},
	}
	tris := []MeshTriangle{
		{Indices: [3]int{0, 0, 0}}, // max z = 1 (nearest)
		{Indices: [3]int{2, 2, 2}}, // max z = 10 (farthest)
		{Indices: [3]int{1, 1, 1}}, // max z = 5
	}
	SortTrianglesBackToFront(tris, verts)
	if tris[0].Indices[0] != 2 || tris[1].Indices[0] != 1 || tris[2].Indices[0] != 0 {
		t.Errorf("expected farthest-to-nearest order [2,1,0], got %v", tris)
	}
}

func TestClipPlanesForTriangleFullyOutsideIsDropped(t *testing.T) {
	tri := [3]Vertex3{
		{Pos: math32.Vec3(-10, 0, 0)},
		{Pos: math32.Vec3(-11, 1, 0)},
		{Pos: math32.Vec3(-10, -1, 0)},
	}
	planes := []Plane3{{N: math32.Vec3(1, 0, 0), D: 0}}
	_, keep := clipPlanesForTriangle(tri, planes)
	if keep {
		t.Error("a triangle entirely outside a leaf plane should be dropped")
	}
}

func TestClipPlanesForTriangleFullyInsideNeedsNoClip(t *testing.T) {
	tri := [3]Vertex3{
		{Pos: math32.Vec3(10, 0, 0)},
		{Pos: math32.Vec3(11, 1, 0)},
		{Pos: math32.Vec3(10, -1, 0)},
	}
	planes := []Plane3{{N: math32.Vec3(1, 0, 0), D: 0}}
	crossing, keep := clipPlanesForTriangle(tri, planes)
	if !keep {
		t.Fatal("a triangle entirely inside should be kept")
	}
	if len(crossing) != 0 {
		t.Errorf("a fully-inside triangle should need no crossing planes, got %d", len(crossing))
	}
}

func TestClipPlanesForTriangleStraddlingCrosses(t *testing.T) {
	tri := [3]Vertex3{
		{Pos: math32.Vec3(-1, 0, 0)},
		{Pos: math32.Vec3(1, 1, 0)},
		{Pos: math32.Vec3(1, -1, 0)},
	}
	planes := []Plane3{{N: math32.Vec3(1, 0, 0), D: 0}}
	crossing, keep := clipPlanesForTriangle(tri, planes)
	if !keep || len(crossing) != 1 {
		t.Errorf("a straddling triangle should keep the plane as crossing, got keep=%v crossing=%v", keep, crossing)
	}
}

func TestTessellationLevelBounds(t *testing.T) {
	if got := TessellationLevel(-1, 10); got != 4 {
		t.Errorf("min_z <= 0 should always tessellate at max level 4, got %d", got)
	}
	if got := TessellationLevel(1, 1); got != 1 {
		t.Errorf("equal near/far should tessellate at minimum level 1, got %d", got)
	}
	if got := TessellationLevel(1, 100); got != 4 {
		t.Errorf("large ratio should tessellate at max level 4, got %d", got)
	}
}

func TestBuildSpriteQuadVertexAndTriangleCounts(t *testing.T) {
	corners := [4]Vertex3{
		{Pos: math32.Vec3(0, 1, 0)},
		{Pos: math32.Vec3(1, 1, 0)},
		{Pos: math32.Vec3(1, 0, 0)},
		{Pos: math32.Vec3(0, 0, 0)},
	}
	level := 3
	verts, tris := BuildSpriteQuad(corners, level)
	if want := (level + 1) * (level + 1); len(verts) != want {
		t.Errorf("vertex count = %d, want %d", len(verts), want)
	}
	if want := level * level * 2; len(tris) != want {
		t.Errorf("triangle count = %d, want %d", len(tris), want)
	}
	for _, tri := range tris {
		for _, idx := range tri.Indices {
			if idx < 0 || idx >= len(verts) {
				t.Fatalf("triangle index %d out of range [0,%d)", idx, len(verts))
			}
		}
	}
}

func TestBuildSpriteQuadClampsLevelBelowOne(t *testing.T) {
	corners := [4]Vertex3{{}, {}, {}, {}}
	verts, tris := BuildSpriteQuad(corners, 0)
	if len(verts) != 4 || len(tris) != 2 {
		t.Errorf("level<1 should clamp to 1 (4 verts, 2 tris), got %d verts, %d tris", len(verts), len(tris))
	}
}

func TestEdgeFnSignFlipsWithWinding(t *testing.T) {
	a := Point2{X: 0, Y: 0}
	b := Point2{X: 1, Y: 0}
	c := Point2{X: 0, Y: 1}
	cw := edgeFn(a, b, c)
	ccw := edgeFn(a, c, b)
	if (cw > 0) == (ccw > 0) {
		t.Error("reversing triangle winding should flip the edge function's sign")
	}
}
