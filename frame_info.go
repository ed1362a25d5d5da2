package swrender

import (
	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// FrameInfo is the complete per-frame scene description the renderer
// consumes: everything needed to render one frame besides the static map
// and the config.
type FrameInfo struct {
	CameraMatrices CameraMatrices
	GameTimeS      float32

	SubmodelEntities []SubmodelEntity
	ModelEntities    []ModelEntity
	Decals           []Decal
	Sprites          []Sprite
	Lights           []DynamicLight
	FrameLights      []FrameLight // parallel to Lights; per-frame projector pose
	Portals          []ViewPortal

	SkyboxRotation    math32.Vector3
	IsThirdPersonView bool
}

// SubmodelEntity places one BSP submodel (a moving brush entity, e.g. a
// door) at a world transform; submodels reuse the static map's polygons
// but are drawn with their own leaf and position.
type SubmodelEntity struct {
	SubmodelIndex uint32
	Position      math32.Vector3
	Rotation      math32.Vector3
}

// ModelEntity places one animated triangle mesh in the world.
type ModelEntity struct {
	Position math32.Vector3
	Rotation math32.Vector3

	LocalBoundsMin math32.Vector3
	LocalBoundsMax math32.Vector3

	// Mesh is the entity's geometry and material, in local (object) space.
	// A nil Mesh still participates in visibility placement (e.g. a
	// trigger volume with no visible geometry) but the draw walk skips it.
	Mesh *MeshAsset

	// IsViewModel marks a first-person weapon/hands model: always drawn
	// last in camera space, never placed in the BSP or visibility-culled.
	IsViewModel bool
}

// MeshAsset bundles one dynamic mesh's static geometry and its material, in
// local (object) space, so a ModelEntity references shared triangle/vertex
// buffers instead of embedding them inline. DrawTriangleMesh draws exactly
// this shape of data once it is transformed to camera space by the owning
// entity's pose.
type MeshAsset struct {
	Triangles []MeshTriangle
	Vertices  []TriMeshVertex // local-space Pos; TC and Light as authored
	Texture   *TextureMip
	Blend     BlendMode
}

// Decal is a flat, alpha-blended quad stamped onto the geometry it
// overlaps, placed by its unit-cube bounding volume.
type Decal struct {
	Position math32.Vector3
	Rotation math32.Vector3
	Scale    float32

	Texture *TextureMip
	Light   Color
}

// Sprite is a camera-facing quad, tessellated per TessellationLevel before
// rasterization.
type Sprite struct {
	Position math32.Vector3
	HalfSize [2]float32
	Light    Color

	Texture *TextureMip
	Blend   BlendMode
}

// FrameLight carries the per-frame pose data a DynamicLight needs that
// isn't part of its persistent shadow-map state: a projector's orientation
// and field of view.
type FrameLight struct {
	Rotation math32.Vector3
	FOV      float32
}

// ViewPortal is one portal surface visible this frame, queued for
// recursive rendering into a child partial renderer and then drawn as a
// textured polygon during the main pass.
type ViewPortal struct {
	PortalIndex uint32
	DestLeaf    uint32

	// Transform is the destination view matrix for a camera-style portal.
	// For a mirror it is ignored: the child view is derived by reflecting
	// the parent camera through Plane.
	Transform Matrix4
	IsMirror  bool

	// Plane and Vertices describe the portal's surface polygon in world
	// space; the main pass rasterizes them sampling the child render
	// target.
	Plane    bsp.Plane
	Vertices []math32.Vector3

	Blend BlendMode
}
