package swrender

import (
	"context"
	"math"

	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// MaterialRegistry maps a texture name, as stored in the compact BSP, to
// its Material.
type MaterialRegistry map[string]*Material

// maxObjectsPerLeaf bounds the per-leaf back-to-front object ordering
// work; objects beyond it draw unordered.
const maxObjectsPerLeaf = 12

// noOwnerLeaf marks a polygonLeaf entry for a polygon not owned by any
// static leaf (submodel polygons; they're drawn through their entity, not
// the leaf walk's static range).
const noOwnerLeaf = ^uint32(0)

// PartialRenderer serves exactly one viewport — either the screen or one
// portal's render target. A portal's child renderer is a fresh
// PartialRenderer constructed with a smaller target and one less
// remaining recursion depth.
type PartialRenderer struct {
	m         *bsp.Compact
	materials MaterialRegistry

	visibility *VisibilityCalculator

	// Each dynamic-object class gets its own placement index: placement
	// resets the whole index, so sharing one across classes would clobber
	// an earlier class's leaf lists.
	modelsIndex    *DynamicObjectsIndex
	lightsIndex    *DynamicObjectsIndex
	decalsIndex    *DynamicObjectsIndex
	spritesIndex   *DynamicObjectsIndex
	submodelsIndex *DynamicObjectsIndex

	drawRecs *DrawRecords
	surfaces *SurfaceCache
	depth    *DepthBuffer
	hdr      []Color

	// shadowDepth renders the static BSP into a shadow map's depth buffer
	// from a light's point of view, independently of the main viewport's
	// own visibility pass.
	shadowDepth *DepthRenderer

	// polygonLeaf is polygonIndex -> owning leaf index, built once from the
	// map's static leaf/polygon ranges so polygonVisible is an O(1) lookup
	// rather than a per-frame scan over every leaf. Submodel
	// polygons hold noOwnerLeaf.
	polygonLeaf []uint32

	// leafPlanes[leafIndex] is the sequence of BSP splitting-plane
	// half-spaces (in world space) that bound that leaf's convex volume,
	// collected once from the root-to-leaf path, used to clip dynamic
	// mesh triangles to the leaf(s) they're drawn in.
	leafPlanes [][]Plane3

	// skybox is the first registry material carrying a skybox effect, if
	// any; it backs the background fill.
	skybox *Material

	cfg  Config
	pool *Pool

	width, height int

	mipBias float32

	remainingPortalDepth int
	portalPool           *PortalPool

	frame uint32
}

// NewPartialRenderer constructs a root partial renderer for a width x
// height viewport, with maxPortalDepth further levels of portal recursion
// permitted beneath it.
func NewPartialRenderer(m *bsp.Compact, materials MaterialRegistry, cfg Config, width, height, maxPortalDepth int) *PartialRenderer {
	visibility := NewVisibilityCalculator(m)
	visibility.SetCullCoveredPortals(cfg.CullPortalsCoveredByGeometry)
	return &PartialRenderer{
		m:                    m,
		materials:            materials,
		visibility:           visibility,
		modelsIndex:          NewDynamicObjectsIndex(m),
		lightsIndex:          NewDynamicObjectsIndex(m),
		decalsIndex:          NewDynamicObjectsIndex(m),
		spritesIndex:         NewDynamicObjectsIndex(m),
		submodelsIndex:       NewDynamicObjectsIndex(m),
		drawRecs:             NewDrawRecords(len(m.Polygons)),
		surfaces:             NewSurfaceCache(1024 * 256),
		depth:                NewDepthBuffer(width, height),
		shadowDepth:          NewDepthRenderer(m),
		hdr:                  make([]Color, width*height),
		polygonLeaf:          buildPolygonLeafIndex(m),
		leafPlanes:           buildLeafBoundPlanes(m),
		skybox:               findSkyboxMaterial(materials),
		cfg:                  cfg,
		pool:                 NewPool(cfg.clampNumThreads(4)),
		width:                width,
		height:               height,
		remainingPortalDepth: maxPortalDepth,
		portalPool:           NewPortalPool(),
	}
}

func findSkyboxMaterial(materials MaterialRegistry) *Material {
	for _, mat := range materials {
		if mat.EffectKind == EffectSkybox {
			return mat
		}
	}
	return nil
}

// buildPolygonLeafIndex builds the polygonIndex -> leafIndex reverse index
// once from each leaf's contiguous FirstPolygon/NumPolygons range; polygons
// outside every leaf range (submodels) map to noOwnerLeaf.
func buildPolygonLeafIndex(m *bsp.Compact) []uint32 {
	out := make([]uint32, len(m.Polygons))
	for i := range out {
		out[i] = noOwnerLeaf
	}
	for i := range m.Leaves {
		leaf := &m.Leaves[i]
		for p := leaf.FirstPolygon; p < leaf.FirstPolygon+leaf.NumPolygons; p++ {
			out[p] = uint32(i)
		}
	}
	return out
}

// buildLeafBoundPlanes walks every root-to-leaf path once, recording the
// splitting plane (oriented into the half-space actually taken) at each
// step, giving every leaf its own convex bounding-plane list.
func buildLeafBoundPlanes(m *bsp.Compact) [][]Plane3 {
	out := make([][]Plane3, len(m.Leaves))
	var walk func(nodeIndex uint32, path []Plane3)
	walk = func(nodeIndex uint32, path []Plane3) {
		if leafIndex, ok := bsp.IsLeaf(nodeIndex); ok {
			cp := make([]Plane3, len(path))
			copy(cp, path)
			out[leafIndex] = cp
			return
		}
		node := &m.Nodes[nodeIndex]
		front := Plane3{N: node.Plane.Normal, D: node.Plane.Dist}
		back := Plane3{N: node.Plane.Normal.MulScalar(-1), D: -node.Plane.Dist}
		walk(node.Children[0], append(append([]Plane3{}, path...), front))
		walk(node.Children[1], append(append([]Plane3{}, path...), back))
	}
	walk(m.RootNode(), nil)
	return out
}

func (r *PartialRenderer) childViewport(w, h int) *PartialRenderer {
	child := NewPartialRenderer(r.m, r.materials, r.cfg, w, h, r.remainingPortalDepth-1)
	child.portalPool = r.portalPool
	return child
}

// preparedPortal is one visible portal, resolved to its destination camera
// and held alongside the rendered child target ready for sampling by the
// main pass's polygon rasterizer.
type preparedPortal struct {
	portal *ViewPortal
	target *PortalTarget
}

// preparedFrame is everything PrepareFrame computed and DrawFrame
// consumes, an explicit intermediate value rather than hidden renderer
// state, for testability.
type preparedFrame struct {
	cam     CameraMatrices
	bounds  ClippingPolygon
	portals []preparedPortal
	lights  []SurfaceLightSource

	models    []ModelEntity
	decals    []Decal
	sprites   []Sprite
	submodels []SubmodelEntity

	// modelVerts[i] holds models[i]'s camera-space vertices, animated in
	// parallel during PrepareFrame; modelTris[i] is its triangle list,
	// already sorted back-to-front. Both alias disjoint ranges of one
	// shared arena each; nil for mesh-less entities.
	modelVerts [][]TriMeshVertex
	modelTris  [][]MeshTriangle

	skyboxRotation math32.Vector3
	thirdPerson    bool
}

// PrepareFrame runs every per-frame setup step in order: visibility,
// object placement, shadow maps, material regeneration, surface build,
// parallel model animation, and (depth permitting) recursive portal
// preparation.
func (r *PartialRenderer) PrepareFrame(ctx context.Context, fi *FrameInfo) (*preparedFrame, error) {
	r.frame++
	cam := fi.CameraMatrices
	bounds := ClippingPolygonFromBox(0, 0, float32(r.width), float32(r.height))

	r.visibility.UpdateVisibility(cam, bounds, r.width, r.height)

	r.modelsIndex.PositionModels(fi.ModelEntities)
	r.decalsIndex.PositionDecals(fi.Decals)
	r.spritesIndex.PositionSprites(fi.Sprites)
	r.submodelsIndex.PositionSubmodels(fi.SubmodelEntities)

	lightSources := make([]SurfaceLightSource, len(fi.Lights))
	for i := range fi.Lights {
		lightSources[i] = SurfaceLightSource{Light: &fi.Lights[i]}
	}
	r.lightsIndex.PositionDynamicLights(fi.Lights, fi.FrameLights)
	r.buildShadowMaps(fi)

	if r.cfg.DynamicMipBias {
		r.mipBias = AdaptiveMipBias(r.mipBias, r.surfaces.Len())
	} else {
		r.mipBias = r.cfg.TexturesMipBias
	}

	if err := r.regenerateMaterials(ctx, fi.GameTimeS); err != nil {
		return nil, err
	}

	r.surfaces.BeginFrame()
	if err := r.buildVisibleSurfaces(ctx, cam, lightSources, fi.GameTimeS); err != nil {
		return nil, err
	}
	if err := r.buildSubmodelSurfaces(ctx, cam, lightSources, fi); err != nil {
		return nil, err
	}

	prep := &preparedFrame{
		cam:            cam,
		bounds:         bounds,
		lights:         lightSources,
		models:         fi.ModelEntities,
		decals:         fi.Decals,
		sprites:        fi.Sprites,
		submodels:      fi.SubmodelEntities,
		skyboxRotation: fi.SkyboxRotation,
		thirdPerson:    fi.IsThirdPersonView,
	}
	if err := r.animateModels(ctx, cam, prep); err != nil {
		return nil, err
	}

	if r.remainingPortalDepth > 0 {
		if err := r.prepareViewPortals(ctx, fi, cam, prep); err != nil {
			return nil, err
		}
	}

	return prep, nil
}

// animateModels transforms every model mesh's vertices into camera space
// in parallel and sorts its triangles back-to-front, one task per mesh
// writing into its own pre-assigned, disjoint range of the shared arenas.
func (r *PartialRenderer) animateModels(ctx context.Context, cam CameraMatrices, prep *preparedFrame) error {
	models := prep.models
	prep.modelVerts = make([][]TriMeshVertex, len(models))
	prep.modelTris = make([][]MeshTriangle, len(models))

	vertOffsets := make([]int, len(models)+1)
	triOffsets := make([]int, len(models)+1)
	for i := range models {
		vertOffsets[i+1] = vertOffsets[i]
		triOffsets[i+1] = triOffsets[i]
		if models[i].Mesh != nil {
			vertOffsets[i+1] += len(models[i].Mesh.Vertices)
			triOffsets[i+1] += len(models[i].Mesh.Triangles)
		}
	}

	vertArena := newSharedSlice(make([]TriMeshVertex, vertOffsets[len(models)]))
	triArena := newSharedSlice(make([]MeshTriangle, triOffsets[len(models)]))

	err := r.pool.ForEach(ctx, len(models), func(i int) error {
		model := &models[i]
		if model.Mesh == nil {
			return nil
		}
		verts := vertArena.Sub(vertOffsets[i], vertOffsets[i+1])
		obj := objectMatrix(model.Position, model.Rotation, 1)
		// Unlit vertices pick up the ambient probe nearest the model;
		// authored per-vertex light is left alone.
		gridLight, hasGrid := SampleLightGrid(r.m, model.Position)
		for j, v := range model.Mesh.Vertices {
			x, y, z, w := obj.TransformPoint(v.Pos)
			if w != 0 && w != 1 {
				x, y, z = x/w, y/w, z/w
			}
			pos := math32.Vec3(x, y, z)
			// View-model poses are authored directly in camera space and
			// skip the view transform.
			if !model.IsViewModel {
				pos = ToCameraSpace(cam.View, pos)
			}
			light := v.Light
			if light == (Color{}) && hasGrid {
				light = gridLight
			}
			verts[j] = TriMeshVertex{Pos: pos, TC: v.TC, Light: light}
		}
		tris := triArena.Sub(triOffsets[i], triOffsets[i+1])
		copy(tris, model.Mesh.Triangles)
		SortTrianglesBackToFront(tris, verts)
		return nil
	})
	if err != nil {
		return err
	}

	for i := range models {
		if models[i].Mesh == nil {
			continue
		}
		prep.modelVerts[i] = vertArena.Sub(vertOffsets[i], vertOffsets[i+1])
		prep.modelTris[i] = triArena.Sub(triOffsets[i], triOffsets[i+1])
	}
	return nil
}

// prepareViewPortals renders each view portal's destination scene into a
// pooled target via a child partial renderer. For a mirror the
// child camera is the parent camera reflected through the portal plane; for
// a camera-style portal it is the supplied destination view.
func (r *PartialRenderer) prepareViewPortals(ctx context.Context, fi *FrameInfo, cam CameraMatrices, prep *preparedFrame) error {
	for i := range fi.Portals {
		vp := &fi.Portals[i]
		w, h := r.portalTargetSize(cam, vp)
		if w <= 0 || h <= 0 {
			continue
		}
		childCam, ok := portalCamera(cam, vp)
		if !ok {
			continue
		}
		target := r.portalPool.Acquire(w, h)
		child := r.childViewport(w, h)
		childFI := *fi
		childFI.CameraMatrices = childCam
		childFI.Portals = nil
		childPrepared, err := child.PrepareFrame(ctx, &childFI)
		if err != nil {
			r.portalPool.Release(target)
			return err
		}
		for j := range target.Pixels {
			target.Pixels[j] = ColorBlack
		}
		child.DrawFrame(ctx, childPrepared, target.Pixels, w, h)
		prep.portals = append(prep.portals, preparedPortal{portal: vp, target: target})
	}
	return nil
}

// portalCamera derives the child camera for one view portal.
func portalCamera(cam CameraMatrices, vp *ViewPortal) (CameraMatrices, bool) {
	var view Matrix4
	var pos math32.Vector3
	if vp.IsMirror {
		nLen := vp.Plane.Normal.Length()
		if nLen < 1e-6 {
			return CameraMatrices{}, false
		}
		n := vp.Plane.Normal.MulScalar(1 / nLen)
		d := vp.Plane.Dist / nLen
		view = MulMatrix4(cam.View, ReflectionMatrix(n, d))
		pos = ReflectPoint(n, d, cam.Position)
	} else {
		view = vp.Transform
		inv := view.Inverse()
		pos = math32.Vec3(inv[3], inv[7], inv[11])
	}
	return CameraMatrices{
		View:     view,
		Planes:   view,
		Proj:     cam.Proj,
		ViewProj: MulMatrix4(cam.Proj, view),
		Position: pos,
	}, true
}

// portalTargetSize sizes a portal's render target at its projected screen
// rect, clamped to the parent viewport; a portal with no on-screen
// projection gets no target at all.
func (r *PartialRenderer) portalTargetSize(cam CameraMatrices, vp *ViewPortal) (int, int) {
	if len(vp.Vertices) < 3 {
		return 0, 0
	}
	projected, ok := projectPolygon(cam, vp.Vertices, r.width, r.height)
	if !ok || len(projected) < 3 {
		return 0, 0
	}
	minX, minY := projected[0].X, projected[0].Y
	maxX, maxY := minX, minY
	for _, p := range projected[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	w := int(ceilF32(maxX - minX))
	h := int(ceilF32(maxY - minY))
	if w < 1 || h < 1 {
		return 0, 0
	}
	if w > r.width {
		w = r.width
	}
	if h > r.height {
		h = r.height
	}
	return w, h
}

func (r *PartialRenderer) regenerateMaterials(ctx context.Context, timeSeconds float32) error {
	names := make([]string, 0, len(r.materials))
	for name := range r.materials {
		names = append(names, name)
	}
	return r.pool.ForEach(ctx, len(names), func(i int) error {
		r.materials[names[i]].RegenerateOutput(timeSeconds)
		return nil
	})
}

// buildShadowMaps refreshes every light's shadow map (cube or projector)
// before surfaces are built from it, so the surface builder's
// DynamicLight.ShadowFactor calls see this frame's occluders rather than a
// stale or permanently-unlit map. Lights with ShadowNone are left
// untouched.
func (r *PartialRenderer) buildShadowMaps(fi *FrameInfo) {
	for i := range fi.Lights {
		light := &fi.Lights[i]
		switch light.Shadow {
		case ShadowCube:
			r.buildCubeShadowMap(light)
		case ShadowProjector:
			var fl FrameLight
			if i < len(fi.FrameLights) {
				fl = fi.FrameLights[i]
			}
			r.buildProjectorShadowMap(light, fl)
		}
	}
}

// distanceToClosestShadowCaster approximates the distance-to-closest-
// occluder input of the shadow-map-size formulas. Lacking
// an explicit nearest-surface query, a fraction of the light's own radius
// stands in: a tightly bounded light gets a correspondingly modest map.
func distanceToClosestShadowCaster(light *DynamicLight) float32 {
	d := light.Radius * 0.25
	if d < 1 {
		d = 1
	}
	return d
}

func (r *PartialRenderer) buildCubeShadowMap(light *DynamicLight) {
	size := ChooseCubeShadowMapSize(light.Radius, distanceToClosestShadowCaster(light), r.cfg.ShadowsQuality)
	if light.CubeMap == nil || light.CubeMap.Size != size {
		cm := &CubeShadowMap{Size: size}
		for f := range cm.Faces {
			cm.Faces[f] = *NewDepthBuffer(size, size)
		}
		light.CubeMap = cm
	}
	for face := 0; face < 6; face++ {
		light.CubeMap.Faces[face].Clear()
		BuildCubeFace(&light.CubeMap.Faces[face], light.Position, face, func(cam CameraMatrices, buf *DepthBuffer) {
			r.shadowDepth.DrawMap(buf, cam, depthMapProjectFunc(cam, buf.Width, buf.Height))
		})
	}
}

func (r *PartialRenderer) buildProjectorShadowMap(light *DynamicLight, fl FrameLight) {
	size := ChooseProjectorShadowMapSize(light.Radius, distanceToClosestShadowCaster(light), r.cfg.ShadowsQuality)
	if light.ProjectorMap == nil || light.ProjectorMap.Depth.Width != size {
		light.ProjectorMap = &ProjectorShadowMap{Depth: *NewDepthBuffer(size, size)}
	} else {
		light.ProjectorMap.Depth.Clear()
	}

	matrix := objectMatrix(light.Position, fl.Rotation, 1)
	dir := matrix.TransformDir(math32.Vec3(1, 0, 0)).Normal()
	up := matrix.TransformDir(math32.Vec3(0, 0, 1)).Normal()
	BuildProjectorMap(light.ProjectorMap, light.Position, dir, up, fl.FOV, func(cam CameraMatrices, buf *DepthBuffer) {
		r.shadowDepth.DrawMap(buf, cam, depthMapProjectFunc(cam, buf.Width, buf.Height))
	})
}

// surfaceBuildJob is one polygon's already-reserved surface-cache slice
// plus everything the parallel fill pass needs.
type surfaceBuildJob struct {
	rec      *DrawRecord
	inputs   SurfaceInputs
	lightmap *LightmapInputs
}

// buildVisibleSurfaces builds a lit surface for every visible static
// polygon. Visibility, projection, mip/rect selection, and
// SurfaceCache.Reserve all run sequentially first — SurfaceCache.Reserve's
// own contract requires every reservation for the frame to happen before
// any of the parallel fill tasks start, since Reserve is what hands out
// the disjoint slices those tasks write into. Only the actual texel fill,
// which touches nothing but its own job's slice, runs across r.pool.
func (r *PartialRenderer) buildVisibleSurfaces(ctx context.Context, cam CameraMatrices, lights []SurfaceLightSource, timeSeconds float32) error {
	jobs := make([]surfaceBuildJob, 0, len(r.m.Polygons))

	for polyIdx := range r.m.Polygons {
		leafIndex, visible := r.polygonVisible(uint32(polyIdx))
		if !visible {
			continue
		}
		rec, first := r.drawRecs.Visit(uint32(polyIdx), r.frame)
		if !first {
			continue
		}
		poly := &r.m.Polygons[polyIdx]
		job, ok := r.prepareSurface(cam, rec, poly, r.m.PolygonVertices(poly), poly.Plane, poly.TCEquation, lights, timeSeconds)
		if !ok {
			continue
		}
		rec.ParentKind = ParentLeaf
		rec.ParentID = leafIndex
		jobs = append(jobs, job)
	}

	return r.runSurfaceJobs(ctx, jobs)
}

// buildSubmodelSurfaces is buildVisibleSurfaces' counterpart for submodel
// entities: each submodel polygon's plane, tc equation, and vertices are
// first transformed through the entity's world matrix, so the recovered
// surface basis vectors rotate with the submodel and dynamic lighting
// lands in the right frame.
func (r *PartialRenderer) buildSubmodelSurfaces(ctx context.Context, cam CameraMatrices, lights []SurfaceLightSource, fi *FrameInfo) error {
	var jobs []surfaceBuildJob

	for entityIdx := range fi.SubmodelEntities {
		e := &fi.SubmodelEntities[entityIdx]
		if int(e.SubmodelIndex) >= len(r.m.Submodels) {
			continue
		}
		if !r.submodelVisible(uint32(entityIdx)) {
			continue
		}
		sm := &r.m.Submodels[e.SubmodelIndex]
		matrix := objectMatrix(e.Position, e.Rotation, 1)

		for p := sm.FirstPolygon; p < sm.FirstPolygon+sm.NumPolygons; p++ {
			rec, first := r.drawRecs.Visit(p, r.frame)
			if !first {
				continue
			}
			poly := &r.m.Polygons[p]
			worldVerts := transformVertices(matrix, r.m.PolygonVertices(poly))
			plane := transformPlane(matrix, poly.Plane)
			tcEq := [2]bsp.Plane{
				transformTCEquation(matrix, poly.TCEquation[0]),
				transformTCEquation(matrix, poly.TCEquation[1]),
			}
			job, ok := r.prepareSurface(cam, rec, poly, worldVerts, plane, tcEq, lights, fi.GameTimeS)
			if !ok {
				continue
			}
			rec.ParentKind = ParentSubmodel
			rec.ParentID = uint32(entityIdx)
			jobs = append(jobs, job)
		}
	}

	return r.runSurfaceJobs(ctx, jobs)
}

func (r *PartialRenderer) submodelVisible(entityIdx uint32) bool {
	for _, leafIndex := range r.submodelsIndex.ObjectLeafs(entityIdx) {
		if _, visible := r.visibility.LeafBounds(leafIndex); visible {
			return true
		}
	}
	return false
}

func transformVertices(m Matrix4, verts []math32.Vector3) []math32.Vector3 {
	out := make([]math32.Vector3, len(verts))
	for i, v := range verts {
		x, y, z, w := m.TransformPoint(v)
		if w != 0 && w != 1 {
			x, y, z = x/w, y/w, z/w
		}
		out[i] = math32.Vec3(x, y, z)
	}
	return out
}

// transformPlane maps a model-space plane dot(n,v)=d through a rigid
// transform: the normal rotates, the distance shifts by the translation's
// projection onto the rotated normal.
func transformPlane(m Matrix4, p bsp.Plane) bsp.Plane {
	n := m.TransformDir(p.Normal)
	t := math32.Vec3(m[3], m[7], m[11])
	return bsp.Plane{Normal: n, Dist: p.Dist + n.Dot(t)}
}

// transformTCEquation maps a model-space tc form tc(v) = dot(n,v)+d through
// a rigid transform: tc(w) = dot(Rn, w) + (d - dot(Rn, t)).
func transformTCEquation(m Matrix4, tc bsp.Plane) bsp.Plane {
	n := m.TransformDir(tc.Normal)
	t := math32.Vec3(m[3], m[7], m[11])
	return bsp.Plane{Normal: n, Dist: tc.Dist - n.Dot(t)}
}

// prepareSurface runs the shared per-polygon surface pipeline — screen
// projection, interpolation-mode and mip/rect selection, lightmap lookup,
// surface-cache reservation — and returns the fill job. ok is false when
// the polygon contributes no pixels this frame.
func (r *PartialRenderer) prepareSurface(
	cam CameraMatrices,
	rec *DrawRecord,
	poly *bsp.Polygon,
	worldVerts []math32.Vector3,
	plane bsp.Plane,
	tcEq [2]bsp.Plane,
	lights []SurfaceLightSource,
	timeSeconds float32,
) (surfaceBuildJob, bool) {
	mat := r.materials[r.m.TextureName(poly.Texture)]
	if mat == nil {
		return surfaceBuildJob{}, false
	}
	rec.Blend = mat.Blending

	projected, okProj := projectPolygon(cam, worldVerts, r.width, r.height)
	if !okProj || len(projected) < 3 {
		return surfaceBuildJob{}, false
	}

	mx, my, bx, by := screenProjectionConstants(cam.Proj, r.width, r.height)
	depthEq, depthW := cameraSpacePlaneEquation(cam, plane)
	tcUEq, tcUW := cameraSpaceTCEquation(cam, tcEq[0])
	tcVEq, tcVW := cameraSpaceTCEquation(cam, tcEq[1])
	screenDepth := screenDepthEquation(depthEq, depthW, mx, my, bx, by)
	screenTCU := screenTCEquation(tcUEq, tcUW, screenDepth, mx, my, bx, by)
	screenTCV := screenTCEquation(tcVEq, tcVW, screenDepth, mx, my, bx, by)

	rec.DepthEq, rec.DepthW = depthEq, depthW
	rec.TCEq = [2]math32.Vector3{tcUEq, tcVEq}
	rec.TCW = [2]float32{tcUW, tcVW}
	rec.ScreenDepth = screenDepth

	screenVerts := make([]PolygonVertexProjected, len(projected))
	uVals := make([]float32, len(projected))
	vVals := make([]float32, len(projected))
	var observedMin, observedMax [2]float32
	maxInvZIdx, minInvZIdx := 0, 0
	for i, pv := range projected {
		screenVerts[i] = PolygonVertexProjected{X: FixedFromFloat(pv.X), Y: FixedFromFloat(pv.Y), InvZ: pv.InvZ}
		z := safeDiv(1, pv.InvZ)
		u := evalScreenEquation(screenTCU, pv.X, pv.Y) * z
		v := evalScreenEquation(screenTCV, pv.X, pv.Y) * z
		uVals[i], vVals[i] = u, v
		if i == 0 || u < observedMin[0] {
			observedMin[0] = u
		}
		if i == 0 || u > observedMax[0] {
			observedMax[0] = u
		}
		if i == 0 || v < observedMin[1] {
			observedMin[1] = v
		}
		if i == 0 || v > observedMax[1] {
			observedMax[1] = v
		}
		if pv.InvZ > projected[maxInvZIdx].InvZ {
			maxInvZIdx = i
		}
		if pv.InvZ < projected[minInvZIdx].InvZ {
			minInvZIdx = i
		}
	}

	du, dv := uvJacobian(screenDepth, screenTCU, screenTCV, projected[maxInvZIdx].X, projected[maxInvZIdx].Y)
	mip := ChooseMip(du, dv, r.mipBias)
	mipScale := float32(1) / float32(int(1)<<uint(mip))

	mipTCMin := [2]float32{observedMin[0] * mipScale, observedMin[1] * mipScale}
	mipTCMax := [2]float32{observedMax[0] * mipScale, observedMax[1] * mipScale}
	// The polygon's tc bounds are widened outward to whole lightmap samples
	// before they clamp the observed range.
	lmScale := float32(int(1) << bsp.LightmapScaleLog2)
	polyTCMin := [2]float32{floorF32(poly.TCMin[0]/lmScale) * lmScale * mipScale, floorF32(poly.TCMin[1]/lmScale) * lmScale * mipScale}
	polyTCMax := [2]float32{ceilF32(poly.TCMax[0]/lmScale) * lmScale * mipScale, ceilF32(poly.TCMax[1]/lmScale) * lmScale * mipScale}
	rect := ChooseSurfaceRect(mipTCMin, mipTCMax, polyTCMin, polyTCMax)

	rec.Mip = mip
	rec.SurfaceSize = [2]int{int(rect.Size[0]), int(rect.Size[1])}
	rec.SurfaceTCMin = rect.Min

	if rec.SurfaceSize[0] <= 0 || rec.SurfaceSize[1] <= 0 {
		return surfaceBuildJob{}, false
	}

	rec.InterpMode = ChooseInterpMode(uVals[maxInvZIdx], uVals[minInvZIdx], vVals[maxInvZIdx], vVals[minInvZIdx], projected[maxInvZIdx].InvZ, projected[minInvZIdx].InvZ)
	// InterpAffine expects a tc equation linear in screen (x, y)
	// directly (no per-pixel 1/z term); the equation this pass builds
	// is always the tc*inv_z form the other two modes need, so affine
	// mode is downgraded to line-z here rather than risk sampling an
	// un-divided tc (see polyraster.go's fillAffine).
	if rec.InterpMode == InterpAffine {
		rec.InterpMode = InterpLineZ
	}
	rec.ScreenVerts = screenVerts

	tcMinF := [2]float32{float32(rec.SurfaceTCMin[0]), float32(rec.SurfaceTCMin[1])}
	var finalU, finalV [3]float32
	for i := 0; i < 3; i++ {
		finalU[i] = screenTCU[i]*mipScale - tcMinF[0]*screenDepth[i]
		finalV[i] = screenTCV[i]*mipScale - tcMinF[1]*screenDepth[i]
	}
	rec.ScreenTC = TexCoordEquation{U: finalU, V: finalV}

	offset, _ := r.surfaces.Reserve(rec.SurfaceSize[0], rec.SurfaceSize[1])
	rec.SurfacePixelsOffset = offset

	output := mat.Output()
	inputs := SurfaceInputs{
		Size:       rec.SurfaceSize,
		TCMin:      rec.SurfaceTCMin,
		Texture:    &output.Mips[rec.Mip],
		Emissive:   mat.Emissive,
		Plane:      plane,
		TCEquation: tcEq,
		Lights:     surfaceLights(plane, worldVerts, lights),
	}
	if mat.ScrollSpeed != [2]float32{} {
		inputs.TexShift = [2]int32{
			int32(mat.ScrollSpeed[0] * timeSeconds * mipScale),
			int32(mat.ScrollSpeed[1] * timeSeconds * mipScale),
		}
	}
	if mat.NormalMap != nil && len(mat.NormalMap.Mips[rec.Mip].Pixels) > 0 {
		inputs.NormalMap = &mat.NormalMap.Mips[rec.Mip]
	}

	return surfaceBuildJob{rec: rec, inputs: inputs, lightmap: r.polygonLightmap(poly, rec)}, true
}

// surfaceLights narrows the frame's light set to those that can reach this
// polygon, capped at maxSurfaceLights. A light is kept when it sits on
// the lit side of the plane within its radius and its influence sphere
// overlaps the polygon's bounding box.
func surfaceLights(plane bsp.Plane, worldVerts []math32.Vector3, lights []SurfaceLightSource) []SurfaceLightSource {
	if len(lights) == 0 || len(worldVerts) == 0 {
		return nil
	}
	nLen := plane.Normal.Length()
	if nLen < 1e-12 {
		return nil
	}
	bMin, bMax := vertexBounds(worldVerts)
	var out []SurfaceLightSource
	for _, ls := range lights {
		l := ls.Light
		planeDist := (plane.Normal.Dot(l.Position) - plane.Dist) / nLen
		if planeDist <= 0 || planeDist > l.Radius {
			continue
		}
		if l.Position.X+l.Radius < bMin.X || l.Position.X-l.Radius > bMax.X ||
			l.Position.Y+l.Radius < bMin.Y || l.Position.Y-l.Radius > bMax.Y ||
			l.Position.Z+l.Radius < bMin.Z || l.Position.Z-l.Radius > bMax.Z {
			continue
		}
		out = append(out, ls)
		if len(out) == maxSurfaceLights {
			break
		}
	}
	return out
}

// polygonLightmap locates a polygon's baked lightmap window for the chosen
// mip, selecting the directional variant when configured and present.
func (r *PartialRenderer) polygonLightmap(poly *bsp.Polygon, rec *DrawRecord) *LightmapInputs {
	if poly.LightmapData == bsp.NoLightmap {
		return nil
	}
	lmBaseU := int(floorF32(poly.TCMin[0])) >> bsp.LightmapScaleLog2
	lmBaseV := int(floorF32(poly.TCMin[1])) >> bsp.LightmapScaleLog2
	lmW := (int(ceilF32(poly.TCMax[0]))>>bsp.LightmapScaleLog2)-lmBaseU + 2
	lmH := (int(ceilF32(poly.TCMax[1]))>>bsp.LightmapScaleLog2)-lmBaseV + 2
	if lmW < 1 || lmH < 1 {
		return nil
	}
	base := int(poly.LightmapData)
	n := lmW * lmH

	scaleLog2 := bsp.LightmapScaleLog2 - rec.Mip
	if scaleLog2 < 0 {
		scaleLog2 = 0
	}
	lm := &LightmapInputs{
		Size:      [2]int{lmW, lmH},
		ScaleLog2: scaleLog2,
		TCShift: [2]int{
			int(rec.SurfaceTCMin[0]) - lmBaseU<<uint(scaleLog2),
			int(rec.SurfaceTCMin[1]) - lmBaseV<<uint(scaleLog2),
		},
	}
	if r.cfg.UseDirectionalLightmaps && base+n <= len(r.m.DirectionalLightmaps) {
		lm.Directional = r.m.DirectionalLightmaps[base : base+n]
		return lm
	}
	if base+n <= len(r.m.Lightmaps) {
		lm.Samples = r.m.Lightmaps[base : base+n]
		return lm
	}
	return nil
}

// runSurfaceJobs dispatches the parallel texel fill, one task per reserved
// surface.
func (r *PartialRenderer) runSurfaceJobs(ctx context.Context, jobs []surfaceBuildJob) error {
	return r.pool.ForEach(ctx, len(jobs), func(i int) error {
		job := &jobs[i]
		size := job.rec.SurfaceSize
		surface := r.surfaces.Slice(job.rec.SurfacePixelsOffset, size[0], size[1])
		if job.lightmap != nil {
			BuildSurfaceWithLightmap(surface, &job.inputs, job.lightmap)
		} else {
			BuildSurfaceDynamicOnly(surface, &job.inputs)
		}
		return nil
	})
}

// polygonVisible reports whether polyIdx's owning leaf is currently marked
// visible, via the precomputed reverse index rather than a per-call scan.
func (r *PartialRenderer) polygonVisible(polyIdx uint32) (uint32, bool) {
	leafIndex := r.polygonLeaf[polyIdx]
	if leafIndex == noOwnerLeaf {
		return 0, false
	}
	_, ok := r.visibility.LeafBounds(leafIndex)
	return leafIndex, ok
}

// DrawFrame walks the BSP back-to-front, drawing the skybox background,
// leaves, and submodels into the given output buffer. The BSP walk is
// split across r.pool into disjoint horizontal bands; each band
// rasterizes the full visible polygon set but clipped
// to its own rows, so writes to out never overlap across bands. Dynamic
// objects, portals, and view models draw in final single-threaded passes.
func (r *PartialRenderer) DrawFrame(ctx context.Context, prep *preparedFrame, out []Color, width, height int) {
	if r.cfg.ClearBackground {
		for i := range out {
			out[i] = ColorBlack
		}
	}
	root := r.m.RootNode()
	_ = r.pool.Partition(ctx, height, func(lo, hi int) error {
		clip := ClipRect{MinX: 0, MaxX: width, MinY: lo, MaxY: hi}
		r.drawSkybox(out, width, clip, prep)
		drawnSubmodels := make([]bool, len(prep.submodels))
		r.walkLeavesBackToFront(prep.cam, root, func(leafIndex uint32) {
			r.drawLeaf(out, width, leafIndex, clip, prep, drawnSubmodels)
		})
		return nil
	})
	r.drawDynamicObjects(out, width, height, prep)
	r.drawPortals(out, width, height, prep)
	r.drawViewModels(out, width, height, prep)
}

// drawSkybox fills one band with the skybox material's current texture,
// sampled by per-pixel view direction with the frame's skybox rotation
// applied as a yaw offset. Opaque geometry drawn
// afterwards overwrites everything but the sky gaps.
func (r *PartialRenderer) drawSkybox(out []Color, width int, clip ClipRect, prep *preparedFrame) {
	if r.skybox == nil {
		return
	}
	mip := &r.skybox.Output().Mips[0]
	if mip.Width == 0 || mip.Height == 0 {
		return
	}
	right, up, forward := cameraAxes(prep.cam.View)
	yaw := rotationZ(prep.skyboxRotation.Z)
	fx := prep.cam.Proj[0] * float32(width) / 2
	fy := prep.cam.Proj[5] * float32(r.height) / 2
	cx := float32(width) / 2
	cy := float32(r.height) / 2

	for y := clip.MinY; y < clip.MaxY; y++ {
		rowOff := y * width
		dy := (cy - (float32(y) + 0.5)) / fy
		for x := clip.MinX; x < clip.MaxX; x++ {
			dx := (float32(x) + 0.5 - cx) / fx
			dir := right.MulScalar(dx).Add(up.MulScalar(dy)).Add(forward)
			dir = yaw.TransformDir(dir)
			out[rowOff+x] = sampleSkyDirection(mip, dir)
		}
	}
}

// sampleSkyDirection maps a world direction to an equirectangular texel of
// the skybox texture.
func sampleSkyDirection(mip *TextureMip, dir math32.Vector3) Color {
	length := dir.Length()
	if length < 1e-12 {
		return ColorBlack
	}
	u := (float32(math.Atan2(float64(dir.Y), float64(dir.X)))/twoPi + 0.5) * float32(mip.Width)
	v := (0.5 - float32(math.Asin(float64(dir.Z/length)))/(twoPi/2)) * float32(mip.Height)
	return mip.SampleTiled(int(u), int(v))
}

// walkLeavesBackToFront recurses the BSP tree from the camera's position,
// visiting each leaf in back-to-front draw order.
func (r *PartialRenderer) walkLeavesBackToFront(cam CameraMatrices, nodeIndex uint32, visit func(leafIndex uint32)) {
	if leafIndex, ok := bsp.IsLeaf(nodeIndex); ok {
		visit(leafIndex)
		return
	}
	node := &r.m.Nodes[nodeIndex]
	w := node.Plane.Normal.Dot(cam.Position) - node.Plane.Dist
	mask := 0
	if w >= 0 {
		mask = 1
	}
	for i := 0; i < 2; i++ {
		r.walkLeavesBackToFront(cam, node.Children[i^mask], visit)
	}
}

func (r *PartialRenderer) drawLeaf(out []Color, width int, leafIndex uint32, clip ClipRect, prep *preparedFrame, drawnSubmodels []bool) {
	if _, visible := r.visibility.LeafBounds(leafIndex); !visible {
		return
	}
	leaf := &r.m.Leaves[leafIndex]
	indices := r.m.LeafPolygonIndices(leaf)
	if r.cfg.InvertPolygonsOrder {
		for i := len(indices) - 1; i >= 0; i-- {
			r.drawRecordedPolygon(out, width, clip, indices[i])
		}
	} else {
		for _, polyIdx := range indices {
			r.drawRecordedPolygon(out, width, clip, polyIdx)
		}
	}

	for _, id := range r.submodelsIndex.LeafObjects(leafIndex) {
		if int(id) >= len(drawnSubmodels) || drawnSubmodels[id] {
			continue
		}
		drawnSubmodels[id] = true
		r.drawSubmodel(out, width, clip, prep, id)
	}
}

func (r *PartialRenderer) drawRecordedPolygon(out []Color, width int, clip ClipRect, polyIdx uint32) {
	rec, ok := r.drawRecs.lookup(polyIdx, r.frame)
	if !ok {
		return
	}
	r.drawPolygon(out, width, clip, rec)
}

func (r *PartialRenderer) drawSubmodel(out []Color, width int, clip ClipRect, prep *preparedFrame, entityIdx DynamicObjectID) {
	if int(entityIdx) >= len(prep.submodels) {
		return
	}
	e := &prep.submodels[entityIdx]
	if int(e.SubmodelIndex) >= len(r.m.Submodels) {
		return
	}
	sm := &r.m.Submodels[e.SubmodelIndex]
	for p := sm.FirstPolygon; p < sm.FirstPolygon+sm.NumPolygons; p++ {
		rec, ok := r.drawRecs.lookup(p, r.frame)
		if !ok || rec.ParentKind != ParentSubmodel || rec.ParentID != uint32(entityIdx) {
			continue
		}
		r.drawPolygon(out, width, clip, rec)
	}
}

// drawPolygon rasterizes one already-built surface via the real scanline
// rasterizer: the reserved surface-cache rectangle is wrapped as a small
// TextureMip and sampled through rec's perspective-correct screen-space tc
// equation, clipped to the calling worker's rect.
func (r *PartialRenderer) drawPolygon(out []Color, width int, clip ClipRect, rec *DrawRecord) {
	size := rec.SurfaceSize
	if size[0] <= 0 || size[1] <= 0 || len(rec.ScreenVerts) < 3 {
		return
	}
	surface := r.surfaces.Slice(rec.SurfacePixelsOffset, size[0], size[1])
	surfaceTex := TextureMip{Width: size[0], Height: size[1], Pixels: surface}
	FillPolygonHDR(out, width, clip, rec.ScreenVerts, rec.ScreenTC, &surfaceTex, rec.InterpMode, rec.Blend)
}

// leafDrawEntry is one dynamic object queued for a leaf's ordered draw: its
// class, its index within that class, and its camera-space depth key.
type leafDrawEntry struct {
	kind uint8 // 0 model, 1 sprite, 2 decal
	id   DynamicObjectID
	z    float32
}

// drawDynamicObjects draws every model, sprite, and decal placed in a
// currently-visible leaf, back-to-front both across leaves (BSP order) and
// within each leaf (bubble sort on camera depth, capped at
// maxObjectsPerLeaf), clipping each to the leaf volume.
func (r *PartialRenderer) drawDynamicObjects(out []Color, width, height int, prep *preparedFrame) {
	if len(prep.models) == 0 && len(prep.sprites) == 0 && len(prep.decals) == 0 {
		return
	}
	screenClip := prep.bounds.BoxClipPlanes()
	drawn := make(map[leafDrawEntry]bool)
	r.walkLeavesBackToFront(prep.cam, r.m.RootNode(), func(leafIndex uint32) {
		if _, visible := r.visibility.LeafBounds(leafIndex); !visible {
			return
		}
		r.drawLeafObjects(out, width, height, prep, leafIndex, screenClip[:], drawn)
	})
}

func (r *PartialRenderer) drawLeafObjects(out []Color, width, height int, prep *preparedFrame, leafIndex uint32, screenClip []ClipPlane, drawn map[leafDrawEntry]bool) {
	entries := r.gatherLeafObjects(prep, leafIndex)
	if len(entries) == 0 {
		return
	}
	sorted := entries
	if len(sorted) > maxObjectsPerLeaf {
		sorted = sorted[:maxObjectsPerLeaf]
	}
	sortLeafEntriesBackToFront(sorted)

	camPlanes := r.cameraSpaceLeafPlanes(prep.cam, leafIndex)
	project := projectCameraSpaceFunc(prep.cam, width, height)
	for _, e := range entries {
		key := leafDrawEntry{kind: e.kind, id: e.id}
		if drawn[key] {
			continue
		}
		drawn[key] = true
		switch e.kind {
		case 0:
			r.drawModelEntity(out, width, height, prep, e.id, camPlanes, screenClip, project)
		case 1:
			r.drawSprite(out, width, height, prep, e.id, camPlanes, screenClip, project)
		case 2:
			r.drawDecal(out, width, height, prep, e.id, camPlanes, screenClip, project)
		}
	}
}

func (r *PartialRenderer) gatherLeafObjects(prep *preparedFrame, leafIndex uint32) []leafDrawEntry {
	var entries []leafDrawEntry
	for _, id := range r.modelsIndex.LeafObjects(leafIndex) {
		if int(id) >= len(prep.models) || prep.models[id].Mesh == nil || prep.models[id].IsViewModel {
			continue
		}
		z := ToCameraSpace(prep.cam.View, prep.models[id].Position).Z
		entries = append(entries, leafDrawEntry{kind: 0, id: id, z: z})
	}
	for _, id := range r.spritesIndex.LeafObjects(leafIndex) {
		if int(id) >= len(prep.sprites) || prep.sprites[id].Texture == nil {
			continue
		}
		z := ToCameraSpace(prep.cam.View, prep.sprites[id].Position).Z
		entries = append(entries, leafDrawEntry{kind: 1, id: id, z: z})
	}
	for _, id := range r.decalsIndex.LeafObjects(leafIndex) {
		if int(id) >= len(prep.decals) || prep.decals[id].Texture == nil {
			continue
		}
		z := ToCameraSpace(prep.cam.View, prep.decals[id].Position).Z
		entries = append(entries, leafDrawEntry{kind: 2, id: id, z: z})
	}
	return entries
}

// sortLeafEntriesBackToFront bubble-sorts a leaf's (small, capped) object
// list by descending camera depth.
func sortLeafEntriesBackToFront(entries []leafDrawEntry) {
	for i := 0; i < len(entries); i++ {
		for j := 0; j+1 < len(entries)-i; j++ {
			if entries[j].z < entries[j+1].z {
				entries[j], entries[j+1] = entries[j+1], entries[j]
			}
		}
	}
}

func (r *PartialRenderer) drawModelEntity(out []Color, width, height int, prep *preparedFrame, id DynamicObjectID, camPlanes []Plane3, screenClip []ClipPlane, project func(pos [3]float32) (x, y, invZ float32, ok bool)) {
	model := &prep.models[id]
	verts := prep.modelVerts[id]
	tris := prep.modelTris[id]
	if len(verts) == 0 || len(tris) == 0 {
		return
	}
	DrawTriangleMesh(out, width, width, height, tris, verts, camPlanes, screenClip, model.Mesh.Texture, model.Mesh.Blend, project)
}

func (r *PartialRenderer) drawSprite(out []Color, width, height int, prep *preparedFrame, id DynamicObjectID, camPlanes []Plane3, screenClip []ClipPlane, project func(pos [3]float32) (x, y, invZ float32, ok bool)) {
	s := &prep.sprites[id]
	center := ToCameraSpace(prep.cam.View, s.Position)
	hx, hy := s.HalfSize[0], s.HalfSize[1]
	w := float32(s.Texture.Width)
	h := float32(s.Texture.Height)
	light := s.Light
	if light == (Color{}) {
		light = Color{R: 1, G: 1, B: 1, A: 1}
	}
	corners := [4]Vertex3{
		{Pos: center.Add(math32.Vec3(-hx, hy, 0)), TC: [2]float32{0, 0}, Light: light},
		{Pos: center.Add(math32.Vec3(hx, hy, 0)), TC: [2]float32{w, 0}, Light: light},
		{Pos: center.Add(math32.Vec3(hx, -hy, 0)), TC: [2]float32{w, h}, Light: light},
		{Pos: center.Add(math32.Vec3(-hx, -hy, 0)), TC: [2]float32{0, h}, Light: light},
	}
	minZ, maxZ := corners[0].Pos.Z, corners[0].Pos.Z
	for _, c := range corners[1:] {
		if c.Pos.Z < minZ {
			minZ = c.Pos.Z
		}
		if c.Pos.Z > maxZ {
			maxZ = c.Pos.Z
		}
	}
	verts, tris := BuildSpriteQuad(corners, TessellationLevel(minZ, maxZ))
	DrawTriangleMesh(out, width, width, height, tris, verts, camPlanes, screenClip, s.Texture, s.Blend, project)
}

func (r *PartialRenderer) drawDecal(out []Color, width, height int, prep *preparedFrame, id DynamicObjectID, camPlanes []Plane3, screenClip []ClipPlane, project func(pos [3]float32) (x, y, invZ float32, ok bool)) {
	d := &prep.decals[id]
	matrix := objectMatrix(d.Position, d.Rotation, d.Scale)
	w := float32(d.Texture.Width)
	h := float32(d.Texture.Height)
	light := d.Light
	if light == (Color{}) {
		light = Color{R: 1, G: 1, B: 1, A: 1}
	}
	local := [4]math32.Vector3{
		math32.Vec3(-1, 1, 0),
		math32.Vec3(1, 1, 0),
		math32.Vec3(1, -1, 0),
		math32.Vec3(-1, -1, 0),
	}
	tc := [4][2]float32{{0, 0}, {w, 0}, {w, h}, {0, h}}
	verts := make([]TriMeshVertex, 4)
	for i, lv := range local {
		x, y, z, wc := matrix.TransformPoint(lv)
		if wc != 0 && wc != 1 {
			x, y, z = x/wc, y/wc, z/wc
		}
		verts[i] = TriMeshVertex{Pos: ToCameraSpace(prep.cam.View, math32.Vec3(x, y, z)), TC: tc[i], Light: light}
	}
	tris := []MeshTriangle{{Indices: [3]int{0, 1, 2}}, {Indices: [3]int{0, 2, 3}}}
	DrawTriangleMesh(out, width, width, height, tris, verts, camPlanes, screenClip, d.Texture, BlendAlphaBlend, project)
}

// drawPortals rasterizes every prepared portal's surface polygon, sampling
// its rendered child target, then releases the targets back to the pool.
func (r *PartialRenderer) drawPortals(out []Color, width, height int, prep *preparedFrame) {
	clip := ClipRect{MinX: 0, MinY: 0, MaxX: width, MaxY: height}
	for _, pp := range prep.portals {
		r.drawPortalPolygon(out, width, clip, prep.cam, pp)
		r.portalPool.Release(pp.target)
	}
	prep.portals = nil
}

func (r *PartialRenderer) drawPortalPolygon(out []Color, width int, clip ClipRect, cam CameraMatrices, pp preparedPortal) {
	projected, ok := projectPolygon(cam, pp.portal.Vertices, r.width, r.height)
	if !ok || len(projected) < 3 {
		return
	}
	minX, minY := projected[0].X, projected[0].Y
	maxX, maxY := minX, minY
	screenVerts := make([]PolygonVertexProjected, len(projected))
	for i, pv := range projected {
		screenVerts[i] = PolygonVertexProjected{X: FixedFromFloat(pv.X), Y: FixedFromFloat(pv.Y), InvZ: pv.InvZ}
		if pv.X < minX {
			minX = pv.X
		}
		if pv.X > maxX {
			maxX = pv.X
		}
		if pv.Y < minY {
			minY = pv.Y
		}
		if pv.Y > maxY {
			maxY = pv.Y
		}
	}
	spanX := maxX - minX
	spanY := maxY - minY
	if spanX < 1e-3 || spanY < 1e-3 {
		return
	}

	// The child view was rendered at the portal's projected rect, so the
	// target maps affinely onto that rect in screen space.
	target := pp.target
	sx := float32(target.Width) / spanX
	sy := float32(target.Height) / spanY
	tcEq := TexCoordEquation{
		U: [3]float32{sx, 0, -minX * sx},
		V: [3]float32{0, sy, -minY * sy},
	}
	tex := TextureMip{Width: target.Width, Height: target.Height, Pixels: target.Pixels}
	FillPolygonHDR(out, width, clip, screenVerts, tcEq, &tex, InterpAffine, pp.portal.Blend)
}

// drawViewModels draws first-person view models last, in camera space, with
// no BSP placement or leaf clipping. Skipped
// entirely in third-person view.
func (r *PartialRenderer) drawViewModels(out []Color, width, height int, prep *preparedFrame) {
	if prep.thirdPerson {
		return
	}
	screenClip := prep.bounds.BoxClipPlanes()
	project := projectCameraSpaceFunc(prep.cam, width, height)
	for i := range prep.models {
		model := &prep.models[i]
		if !model.IsViewModel || model.Mesh == nil {
			continue
		}
		verts := prep.modelVerts[i]
		tris := prep.modelTris[i]
		if len(verts) == 0 || len(tris) == 0 {
			continue
		}
		DrawTriangleMesh(out, width, width, height, tris, verts, nil, screenClip[:], model.Mesh.Texture, model.Mesh.Blend, project)
	}
}

func (r *PartialRenderer) cameraSpaceLeafPlanes(cam CameraMatrices, leafIndex uint32) []Plane3 {
	world := r.leafPlanes[leafIndex]
	out := make([]Plane3, len(world))
	for i, pl := range world {
		eq, w := cameraSpacePlaneEquation(cam, bsp.Plane{Normal: pl.N, Dist: pl.D})
		out[i] = Plane3{N: eq, D: w}
	}
	return out
}
