package swrender

import "cogentcore.org/core/math32"

// Camera holds the inputs needed to derive a frame's view and projection
// matrices: position, orientation, and vertical field of view, with a
// dirty-flag cache over the more expensive 4x4 work.
type Camera struct {
	Position math32.Vector3
	Forward  math32.Vector3
	Up       math32.Vector3

	FovY   float32
	Aspect float32
	Near   float32
	Far    float32

	viewMatrix   Matrix4
	planesMatrix Matrix4
	projMatrix   Matrix4
	viewProj     Matrix4
	dirty        bool
}

// NewCamera returns a Camera looking down -Z from the origin with a 90
// degree vertical FOV, matching the engine's conventional default.
func NewCamera(aspect float32) *Camera {
	return &Camera{
		Position: math32.Vector3{},
		Forward:  math32.Vec3(0, 0, -1),
		Up:       math32.Vec3(0, 1, 0),
		FovY:     1.5708, // pi/2
		Aspect:   aspect,
		Near:     ZNear,
		Far:      65536,
		dirty:    true,
	}
}

// SetPose updates position and orientation and marks the cached matrices
// dirty. Called once per frame by the caller before CameraMatrices.
func (c *Camera) SetPose(position, forward, up math32.Vector3) {
	c.Position = position
	c.Forward = forward
	c.Up = up
	c.dirty = true
}

// SetLens updates the projection parameters.
func (c *Camera) SetLens(fovY, aspect, near, far float32) {
	c.FovY, c.Aspect, c.Near, c.Far = fovY, aspect, near, far
	c.dirty = true
}

// MarkDirty forces recomputation on the next Matrices call.
func (c *Camera) MarkDirty() {
	c.dirty = true
}

// CameraMatrices are the derived matrices a frame needs: the view matrix,
// its plane-transform companion (the inverse transpose, used to carry BSP
// plane equations into camera space), the projection matrix, and
// their combined product.
type CameraMatrices struct {
	View     Matrix4
	Planes   Matrix4
	Proj     Matrix4
	ViewProj Matrix4
	Position math32.Vector3
}

// Matrices returns the camera's derived matrices, recomputing them only if
// the pose or lens changed since the last call.
func (c *Camera) Matrices() CameraMatrices {
	if c.dirty {
		target := c.Position.Add(c.Forward)
		c.viewMatrix = LookAt(c.Position, target, c.Up)
		// The view matrix is rigid (rotation + translation, no scale), so
		// its inverse transpose keeps the rotation, zeroes the translation
		// column, and carries the camera position in the bottom row;
		// caching it avoids inverting on every use.
		c.planesMatrix = c.viewMatrix
		c.planesMatrix[3] = 0
		c.planesMatrix[7] = 0
		c.planesMatrix[11] = 0
		c.planesMatrix[12] = c.Position.X
		c.planesMatrix[13] = c.Position.Y
		c.planesMatrix[14] = c.Position.Z
		c.projMatrix = PerspectiveFOV(c.FovY, c.Aspect, c.Near, c.Far)
		c.viewProj = MulMatrix4(c.projMatrix, c.viewMatrix)
		c.dirty = false
	}
	return CameraMatrices{
		View:     c.viewMatrix,
		Planes:   c.planesMatrix,
		Proj:     c.projMatrix,
		ViewProj: c.viewProj,
		Position: c.Position,
	}
}

// ProjectToScreen projects a world-space point through ViewProj and maps
// the result into pixel coordinates for a framebuffer of the given size.
// Returns ok=false if the point is behind the camera (w <= 0).
func (m CameraMatrices) ProjectToScreen(v math32.Vector3, width, height int) (x, y, invW float32, ok bool) {
	cx, cy, cz, cw := m.ViewProj.TransformPoint(v)
	_ = cz
	if cw <= 1e-6 {
		return 0, 0, 0, false
	}
	invW = 1 / cw
	ndcX := cx * invW
	ndcY := cy * invW
	x = (ndcX*0.5 + 0.5) * float32(width)
	y = (1 - (ndcY*0.5 + 0.5)) * float32(height)
	return x, y, invW, true
}
