package swrender

import (
	"context"
	"testing"

	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// cubeRoomMap builds a single-leaf cube room with six inward-facing quad
// walls at +-64 on each axis.
func cubeRoomMap() *bsp.Compact {
	var texName [bsp.MaxTextureNameLen]byte
	copy(texName[:], "wall")

	type wall struct {
		normal math32.Vector3
		dist   float32
		verts  [4]math32.Vector3
		tcU    bsp.Plane
		tcV    bsp.Plane
	}
	const s = 64
	walls := []wall{
		{math32.Vec3(-1, 0, 0), -s, [4]math32.Vector3{{s, -s, -s}, {s, s, -s}, {s, s, s}, {s, -s, s}},
			bsp.Plane{Normal: math32.Vec3(0, 1, 0), Dist: s}, bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: s}},
		{math32.Vec3(1, 0, 0), -s, [4]math32.Vector3{{-s, -s, -s}, {-s, s, -s}, {-s, s, s}, {-s, -s, s}},
			bsp.Plane{Normal: math32.Vec3(0, 1, 0), Dist: s}, bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: s}},
		{math32.Vec3(0, -1, 0), -s, [4]math32.Vector3{{-s, s, -s}, {s, s, -s}, {s, s, s}, {-s, s, s}},
			bsp.Plane{Normal: math32.Vec3(1, 0, 0), Dist: s}, bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: s}},
		{math32.Vec3(0, 1, 0), -s, [4]math32.Vector3{{-s, -s, -s}, {s, -s, -s}, {s, -s, s}, {-s, -s, s}},
			bsp.Plane{Normal: math32.Vec3(1, 0, 0), Dist: s}, bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: s}},
		{math32.Vec3(0, 0, -1), -s, [4]math32.Vector3{{-s, -s, s}, {s, -s, s}, {s, s, s}, {-s, s, s}},
			bsp.Plane{Normal: math32.Vec3(1, 0, 0), Dist: s}, bsp.Plane{Normal: math32.Vec3(0, 1, 0), Dist: s}},
		{math32.Vec3(0, 0, 1), -s, [4]math32.Vector3{{-s, -s, -s}, {s, -s, -s}, {s, s, -s}, {-s, s, -s}},
			bsp.Plane{Normal: math32.Vec3(1, 0, 0), Dist: s}, bsp.Plane{Normal: math32.Vec3(0, 1, 0), Dist: s}},
	}

	m := &bsp.Compact{Textures: [][bsp.MaxTextureNameLen]byte{texName}}
	for _, w := range walls {
		first := uint32(len(m.Vertices))
		m.Vertices = append(m.Vertices, w.verts[:]...)
		m.Polygons = append(m.Polygons, bsp.Polygon{
			FirstVertex:  first,
			NumVertices:  4,
			Plane:        bsp.Plane{Normal: w.normal, Dist: w.dist},
			TCEquation:   [2]bsp.Plane{w.tcU, w.tcV},
			TCMax:        [2]float32{2 * s, 2 * s},
			Texture:      0,
			LightmapData: bsp.NoLightmap,
		})
	}
	m.Leaves = []bsp.Leaf{{FirstPolygon: 0, NumPolygons: uint32(len(m.Polygons))}}
	m.Nodes = []bsp.Node{{
		Children: [2]uint32{bsp.MakeLeafIndex(0), bsp.MakeLeafIndex(0)},
		Plane:    bsp.Plane{Normal: math32.Vec3(1, 0, 0), Dist: 1000},
	}}
	return m
}

// emptyLeafMap builds a map with one leaf and no polygons, for tests that
// only exercise dynamic-object drawing.
func emptyLeafMap() *bsp.Compact {
	return &bsp.Compact{
		Leaves: []bsp.Leaf{{}},
		Nodes: []bsp.Node{{
			Children: [2]uint32{bsp.MakeLeafIndex(0), bsp.MakeLeafIndex(0)},
			Plane:    bsp.Plane{Normal: math32.Vec3(1, 0, 0), Dist: 1000},
		}},
	}
}

func whiteTextureMip(n int) *TextureMip {
	pixels := make([]Color, n*n)
	for i := range pixels {
		pixels[i] = Color{R: 1, G: 1, B: 1, A: 1}
	}
	return &TextureMip{Width: n, Height: n, Pixels: pixels}
}

func packedBlack() uint32 {
	return EncodeSRGB(Tonemap(ColorBlack, DefaultExposure))
}

// Single room, one central point light: every wall is lit, nothing renders
// pure black, and the wall point closest to the light is the brightest —
// the cosine-weighted 1/r^2 falloff must survive to the output.
func TestCubeRoomCentralLightFalloff(t *testing.T) {
	m := cubeRoomMap()
	renderer := NewRenderer(m, oneLeafMaterials(), DefaultConfig(), 32, 32)

	cam := NewCamera(1)
	cam.SetPose(math32.Vector3{}, math32.Vec3(1, 0, 0), math32.Vec3(0, 0, 1))
	fi := &FrameInfo{
		CameraMatrices: cam.Matrices(),
		Lights: []DynamicLight{{
			Position: math32.Vector3{},
			Radius:   300,
			Color:    [3]float32{3000, 3000, 3000},
		}},
	}
	dst := NewFramebuffer(32, 32)
	if err := renderer.RenderFrame(context.Background(), fi, dst); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	black := packedBlack()
	for y := 2; y < 30; y++ {
		for x := 2; x < 30; x++ {
			if dst.Pixels[y*32+x] == black {
				t.Fatalf("pixel (%d,%d) is pure black in a room with a central light", x, y)
			}
		}
	}
	// With a 90 degree FOV from the cube's center, the viewport shows
	// exactly the facing wall; its center pixel looks at the wall point
	// nearest the light and must beat a near-corner pixel.
	red := func(x, y int) uint32 { return dst.Pixels[y*32+x] & 0xFF }
	if center, corner := red(16, 16), red(2, 2); center <= corner {
		t.Errorf("wall center brightness %d should exceed near-corner brightness %d", center, corner)
	}
}

// Portal visibility wrap: the far leaf's bound stays inside the portal's
// projected bound, and turning the camera away loses the far leaf.
func TestPortalVisibilityBoundSubsetAndRotation(t *testing.T) {
	m := twoLeafVisibilityMap()
	v := NewVisibilityCalculator(m)

	cam := camAt(math32.Vec3(0.5, 0.5, 9), math32.Vec3(0, 0, -1))
	viewport := ClippingPolygonFromBox(0, 0, 64, 64)
	v.UpdateVisibility(cam, viewport, 64, 64)

	farBounds, visible := v.LeafBounds(1)
	if !visible {
		t.Fatal("leaf 1 should be visible through the portal")
	}
	portalBound, ok := projectPortal(m, &m.Portals[0], cam, 64, 64)
	if !ok {
		t.Fatal("portal should project in front of the camera")
	}
	if !portalBound.Contains(farBounds) {
		t.Error("the far leaf's bound should be a subset of the portal's projected bound")
	}

	away := camAt(math32.Vec3(0.5, 0.5, 9), math32.Vec3(0, 0, 1))
	v.UpdateVisibility(away, viewport, 64, 64)
	if _, stillVisible := v.LeafBounds(1); stillVisible {
		t.Error("with the camera facing away from the portal, the far leaf should not be visible")
	}
}

// Mirror portal: the derived child camera is the parent reflected through
// the portal plane, and recursion stops after one level.
func TestMirrorPortalReflectsCameraAndRecursesOnce(t *testing.T) {
	camUp := NewCamera(1)
	camUp.SetPose(math32.Vec3(0, -100, 50), math32.Vec3(0, 1, 0), math32.Vec3(0, 0, 1))
	cam := camUp.Matrices()
	vp := &ViewPortal{
		IsMirror: true,
		Plane:    bsp.Plane{Normal: math32.Vec3(0, 1, 0), Dist: 0},
	}
	child, ok := portalCamera(cam, vp)
	if !ok {
		t.Fatal("portalCamera should succeed for a well-formed mirror plane")
	}
	want := math32.Vec3(0, 100, 50)
	if child.Position.Sub(want).Length() > 1e-3 {
		t.Errorf("mirrored camera position = %v, want %v", child.Position, want)
	}

	m := emptyLeafMap()
	r := NewPartialRenderer(m, MaterialRegistry{}, DefaultConfig(), 16, 16, 1)
	camFwd := camAt(math32.Vector3{}, math32.Vec3(0, 0, 1))
	fi := &FrameInfo{
		CameraMatrices: camFwd,
		Portals: []ViewPortal{{
			IsMirror: true,
			Plane:    bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: 4},
			Vertices: []math32.Vector3{{X: -1, Y: -1, Z: 4}, {X: 1, Y: -1, Z: 4}, {X: 1, Y: 1, Z: 4}, {X: -1, Y: 1, Z: 4}},
		}},
	}
	prep, err := r.PrepareFrame(context.Background(), fi)
	if err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}
	if len(prep.portals) != 1 {
		t.Fatalf("prepared %d portals, want 1", len(prep.portals))
	}
	out := make([]Color, 16*16)
	r.DrawFrame(context.Background(), prep, out, 16, 16)

	r0 := NewPartialRenderer(m, MaterialRegistry{}, DefaultConfig(), 16, 16, 0)
	prep0, err := r0.PrepareFrame(context.Background(), fi)
	if err != nil {
		t.Fatalf("PrepareFrame at depth 0: %v", err)
	}
	if len(prep0.portals) != 0 {
		t.Errorf("at recursion depth 0 no portal should be prepared, got %d", len(prep0.portals))
	}
}

// Projector shadow compare direction: a far-everywhere depth map leaves an
// in-cone point lit; a near-everywhere map shadows it.
func TestProjectorShadowMapCompareDirection(t *testing.T) {
	p := &ProjectorShadowMap{Depth: *NewDepthBuffer(32, 32)}
	fill := func(v float32) func(cam CameraMatrices, buf *DepthBuffer) {
		return func(cam CameraMatrices, buf *DepthBuffer) {
			for i := range buf.Values {
				buf.Values[i] = v
			}
		}
	}
	lightPos := math32.Vec3(0, 0, 128)
	dir := math32.Vec3(0, 0, -1)
	up := math32.Vec3(0, 1, 0)

	BuildProjectorMap(p, lightPos, dir, up, 1.0, fill(1e-6))
	point := math32.Vec3(0, 0, 28) // 100 units in front, on the cone axis
	if got := projectorShadowMapFetch(p, point); got != 1 {
		t.Errorf("point in front of everything stored in the map should be lit, got %v", got)
	}

	BuildProjectorMap(p, lightPos, dir, up, 1.0, fill(1.0))
	if got := projectorShadowMapFetch(p, point); got != 0 {
		t.Errorf("point behind a very near occluder should be shadowed, got %v", got)
	}
}

// Mip selection: doubling the projected texel gradient steps the mip up by
// one, and a +1 bias shifts every level by one.
func TestChooseMipStepsWithDistanceAndBias(t *testing.T) {
	base := ChooseMip([2]float32{1, 0}, [2]float32{0, 0}, 0)
	doubled := ChooseMip([2]float32{2, 0}, [2]float32{0, 0}, 0)
	if doubled != base+1 {
		t.Errorf("doubling the gradient: mip %d -> %d, want a single step", base, doubled)
	}
	biased := ChooseMip([2]float32{1, 0}, [2]float32{0, 0}, 1)
	if biased != base+1 {
		t.Errorf("+1 bias: mip %d -> %d, want a single step", base, biased)
	}
}

func TestPrepareFrameModelsSurviveLightPlacement(t *testing.T) {
	m := emptyLeafMap()
	r := NewPartialRenderer(m, MaterialRegistry{}, DefaultConfig(), 8, 8, 0)
	cam := camAt(math32.Vector3{}, math32.Vec3(0, 0, 1))
	fi := &FrameInfo{
		CameraMatrices: cam,
		ModelEntities: []ModelEntity{{
			Position:       math32.Vec3(0, 0, 3),
			LocalBoundsMin: math32.Vec3(-1, -1, -1),
			LocalBoundsMax: math32.Vec3(1, 1, 1),
		}},
		Lights: []DynamicLight{{Position: math32.Vec3(5, 5, 5), Radius: 10}},
	}
	if _, err := r.PrepareFrame(context.Background(), fi); err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}
	if got := r.modelsIndex.LeafObjects(0); len(got) != 1 {
		t.Errorf("model placement should survive light placement, leaf 0 models = %v", got)
	}
	if got := r.lightsIndex.LeafObjects(0); len(got) != 1 {
		t.Errorf("light should be placed in its own index, leaf 0 lights = %v", got)
	}
}

func dynamicDrawFrame(t *testing.T, fi *FrameInfo) []Color {
	t.Helper()
	m := emptyLeafMap()
	cfg := DefaultConfig()
	r := NewPartialRenderer(m, MaterialRegistry{}, cfg, 16, 16, 0)
	prep, err := r.PrepareFrame(context.Background(), fi)
	if err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}
	out := make([]Color, 16*16)
	r.DrawFrame(context.Background(), prep, out, 16, 16)
	return out
}

func anyNonBlack(out []Color) bool {
	for _, c := range out {
		if c != (Color{}) {
			return true
		}
	}
	return false
}

func TestDrawFrameDrawsSprite(t *testing.T) {
	fi := &FrameInfo{
		CameraMatrices: camAt(math32.Vector3{}, math32.Vec3(0, 0, 1)),
		Sprites: []Sprite{{
			Position: math32.Vec3(0, 0, 3),
			HalfSize: [2]float32{1, 1},
			Texture:  whiteTextureMip(2),
		}},
	}
	if !anyNonBlack(dynamicDrawFrame(t, fi)) {
		t.Error("a sprite in front of the camera should draw at least one pixel")
	}
}

func TestDrawFrameDrawsDecal(t *testing.T) {
	fi := &FrameInfo{
		CameraMatrices: camAt(math32.Vector3{}, math32.Vec3(0, 0, 1)),
		Decals: []Decal{{
			Position: math32.Vec3(0, 0, 3),
			Scale:    1,
			Texture:  whiteTextureMip(2),
		}},
	}
	if !anyNonBlack(dynamicDrawFrame(t, fi)) {
		t.Error("a decal in front of the camera should draw at least one pixel")
	}
}

func triangleMesh() *MeshAsset {
	return &MeshAsset{
		Vertices: []TriMeshVertex{
			{Pos: math32.Vec3(-1, -1, 0), Light: Color{R: 1, G: 1, B: 1, A: 1}},
			{Pos: math32.Vec3(1, -1, 0), Light: Color{R: 1, G: 1, B: 1, A: 1}},
			{Pos: math32.Vec3(0, 1, 0), Light: Color{R: 1, G: 1, B: 1, A: 1}},
		},
		Triangles: []MeshTriangle{{Indices: [3]int{0, 1, 2}}},
		Texture:   whiteTextureMip(2),
	}
}

func TestDrawFrameDrawsViewModelUnlessThirdPerson(t *testing.T) {
	model := ModelEntity{
		Position:       math32.Vec3(0, 0, 3),
		LocalBoundsMin: math32.Vec3(-1, -1, -1),
		LocalBoundsMax: math32.Vec3(1, 1, 1),
		Mesh:           triangleMesh(),
		IsViewModel:    true,
	}
	fi := &FrameInfo{
		CameraMatrices: camAt(math32.Vector3{}, math32.Vec3(0, 0, 1)),
		ModelEntities:  []ModelEntity{model},
	}
	if !anyNonBlack(dynamicDrawFrame(t, fi)) {
		t.Error("a first-person view model should be drawn")
	}

	fi.IsThirdPersonView = true
	if anyNonBlack(dynamicDrawFrame(t, fi)) {
		t.Error("in third-person view the view model should be skipped")
	}
}

func TestAnimateModelsSortsTrianglesBackToFront(t *testing.T) {
	mesh := &MeshAsset{
		Vertices: []TriMeshVertex{
			{Pos: math32.Vec3(-1, -1, 1)}, {Pos: math32.Vec3(1, -1, 1)}, {Pos: math32.Vec3(0, 1, 1)},
			{Pos: math32.Vec3(-1, -1, 5)}, {Pos: math32.Vec3(1, -1, 5)}, {Pos: math32.Vec3(0, 1, 5)},
		},
		Triangles: []MeshTriangle{
			{Indices: [3]int{0, 1, 2}}, // near
			{Indices: [3]int{3, 4, 5}}, // far
		},
		Texture: whiteTextureMip(2),
	}
	m := emptyLeafMap()
	r := NewPartialRenderer(m, MaterialRegistry{}, DefaultConfig(), 8, 8, 0)
	fi := &FrameInfo{
		CameraMatrices: camAt(math32.Vector3{}, math32.Vec3(0, 0, 1)),
		ModelEntities: []ModelEntity{{
			LocalBoundsMin: math32.Vec3(-1, -1, 0),
			LocalBoundsMax: math32.Vec3(1, 1, 6),
			Mesh:           mesh,
		}},
	}
	prep, err := r.PrepareFrame(context.Background(), fi)
	if err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}
	tris := prep.modelTris[0]
	if len(tris) != 2 {
		t.Fatalf("got %d sorted triangles, want 2", len(tris))
	}
	if tris[0].Indices != [3]int{3, 4, 5} {
		t.Errorf("farthest triangle should sort first, got %v", tris[0].Indices)
	}
}

// submodelRoomMap is oneLeafMap plus one submodel polygon (a quad) outside
// every leaf's polygon range.
func submodelRoomMap() *bsp.Compact {
	m := oneLeafMap()
	first := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices,
		math32.Vec3(-1, -1, 4), math32.Vec3(1, -1, 4), math32.Vec3(1, 1, 4), math32.Vec3(-1, 1, 4))
	m.Polygons = append(m.Polygons, bsp.Polygon{
		FirstVertex: first,
		NumVertices: 4,
		Plane:       bsp.Plane{Normal: math32.Vec3(0, 0, -1), Dist: -4},
		TCEquation: [2]bsp.Plane{
			{Normal: math32.Vec3(1, 0, 0), Dist: 1},
			{Normal: math32.Vec3(0, 1, 0), Dist: 1},
		},
		TCMax:        [2]float32{2, 2},
		Texture:      0,
		LightmapData: bsp.NoLightmap,
	})
	m.Submodels = []bsp.Submodel{{FirstPolygon: 1, NumPolygons: 1, RootNode: 0}}
	return m
}

func TestSubmodelSurfacePreparedWithRotatedParent(t *testing.T) {
	m := submodelRoomMap()
	r := NewPartialRenderer(m, oneLeafMaterials(), DefaultConfig(), 16, 16, 0)
	fi := &FrameInfo{
		CameraMatrices:   camAt(math32.Vector3{}, math32.Vec3(0, 0, 1)),
		SubmodelEntities: []SubmodelEntity{{SubmodelIndex: 0}},
	}
	if _, err := r.PrepareFrame(context.Background(), fi); err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}
	rec, ok := r.drawRecs.lookup(1, r.frame)
	if !ok {
		t.Fatal("the submodel polygon's draw record should be populated")
	}
	if rec.ParentKind != ParentSubmodel || rec.ParentID != 0 {
		t.Errorf("submodel record parent = (%v, %d), want (ParentSubmodel, 0)", rec.ParentKind, rec.ParentID)
	}
	if rec.SurfaceSize[0] <= 0 || rec.SurfaceSize[1] <= 0 {
		t.Errorf("submodel surface size = %v, want non-empty", rec.SurfaceSize)
	}
}

func TestTransformPlaneTranslatesAlongNormal(t *testing.T) {
	plane := bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: 4}
	moved := transformPlane(objectMatrix(math32.Vec3(0, 0, 2), math32.Vector3{}, 1), plane)
	if abs32(moved.Dist-6) > 1e-4 {
		t.Errorf("plane z=4 moved +2 along z should sit at 6, got %v", moved.Dist)
	}
	if moved.Normal.Sub(plane.Normal).Length() > 1e-5 {
		t.Errorf("translation should not change the normal, got %v", moved.Normal)
	}
}

func TestDrawFrameFillsSkyboxBackground(t *testing.T) {
	sky := &Material{Name: "sky", EffectKind: EffectSkybox}
	var src TexturePyramid
	for i := range src.Mips {
		n := 4 >> uint(i)
		if n < 1 {
			n = 1
		}
		pixels := make([]Color, n*n)
		for j := range pixels {
			pixels[j] = Color{R: 0.2, G: 0.4, B: 0.9, A: 1}
		}
		src.Mips[i] = TextureMip{Width: n, Height: n, Pixels: pixels}
	}
	sky.Effect = &SkyboxEffect{Source: &src}

	m := emptyLeafMap()
	r := NewPartialRenderer(m, MaterialRegistry{"sky": sky}, DefaultConfig(), 8, 8, 0)
	fi := &FrameInfo{CameraMatrices: camAt(math32.Vector3{}, math32.Vec3(0, 0, 1))}
	prep, err := r.PrepareFrame(context.Background(), fi)
	if err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}
	out := make([]Color, 8*8)
	r.DrawFrame(context.Background(), prep, out, 8, 8)
	for i, c := range out {
		if c == (Color{}) {
			t.Fatalf("pixel %d not covered by the skybox background", i)
		}
	}
}

func TestRenderFrameDebugDrawDepth(t *testing.T) {
	m := oneLeafMap()
	cfg := DefaultConfig()
	cfg.DebugDrawDepth = true
	renderer := NewRenderer(m, oneLeafMaterials(), cfg, 16, 16)

	cam := NewCamera(1)
	cam.SetPose(math32.Vector3{}, math32.Vec3(0, 0, 1), math32.Vec3(0, 1, 0))
	fi := &FrameInfo{CameraMatrices: cam.Matrices()}
	dst := NewFramebuffer(16, 16)
	if err := renderer.RenderFrame(context.Background(), fi, dst); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	black := packedBlack()
	nonBlack := 0
	for _, p := range dst.Pixels {
		if p != black {
			nonBlack++
		}
	}
	if nonBlack == 0 {
		t.Error("the depth view of a polygon in front of the camera should contain non-black pixels")
	}
}

func TestCullCoveredPortalsStopsFlood(t *testing.T) {
	m := twoLeafVisibilityMap()
	// A wall polygon coplanar with the portal and larger than it.
	first := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices,
		math32.Vec3(-2, -2, 5), math32.Vec3(3, -2, 5), math32.Vec3(3, 3, 5), math32.Vec3(-2, 3, 5))
	m.Polygons = append(m.Polygons, bsp.Polygon{
		FirstVertex: first, NumVertices: 4,
		Plane:        bsp.Plane{Normal: math32.Vec3(0, 0, 1), Dist: 5},
		TCMax:        [2]float32{1, 1},
		LightmapData: bsp.NoLightmap,
	})
	// The new polygon lands after leaf 1's range start, so extending that
	// range adopts it.
	m.Leaves[1].NumPolygons = 2

	viewport := ClippingPolygonFromBox(0, 0, 64, 64)
	cam := camAt(math32.Vec3(0.5, 0.5, 9), math32.Vec3(0, 0, -1))

	v := NewVisibilityCalculator(m)
	v.UpdateVisibility(cam, viewport, 64, 64)
	if _, visible := v.LeafBounds(1); !visible {
		t.Fatal("without the cull the covered portal should still flood")
	}

	v.SetCullCoveredPortals(true)
	v.UpdateVisibility(cam, viewport, 64, 64)
	if _, visible := v.LeafBounds(1); visible {
		t.Error("with the cull enabled, a portal fully covered by a coplanar wall should not flood")
	}
}
