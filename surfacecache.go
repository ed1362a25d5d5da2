package swrender

// SurfaceCache is the single linear arena holding every visible polygon's
// lit-texel surface for the current frame. Growth is monotonic within a
// frame and the arena is truncated, not zeroed, at BeginFrame, so
// steady-state frames reuse the same backing storage.
type SurfaceCache struct {
	pixels []Color
	used   int
}

// NewSurfaceCache allocates an arena with an initial capacity hint.
func NewSurfaceCache(initialCapacityTexels int) *SurfaceCache {
	return &SurfaceCache{pixels: make([]Color, 0, initialCapacityTexels)}
}

// BeginFrame truncates the arena back to empty without releasing its
// backing storage, so steady-state frames allocate nothing here.
func (c *SurfaceCache) BeginFrame() {
	c.used = 0
}

// Reserve grows the arena (if needed) and returns the texel offset of a
// fresh region of exactly w*h texels, plus a slice view over it. A later
// Reserve that grows the arena moves its backing storage, so the view is
// only valid until the next Reserve; use Slice(offset, w, h) after that.
// Reserve is not safe for concurrent use: surface building reserves every
// polygon's region on the main thread before dispatching the per-polygon
// writes in parallel.
func (c *SurfaceCache) Reserve(w, h int) (offset int, surface []Color) {
	n := w * h
	offset = c.used
	needed := c.used + n
	if needed > cap(c.pixels) {
		grown := make([]Color, needed, max(needed*2, 1024))
		copy(grown, c.pixels[:c.used])
		c.pixels = grown
	}
	c.pixels = c.pixels[:needed]
	c.used = needed
	return offset, c.pixels[offset:needed]
}

// Slice returns the surface texels at [offset, offset+w*h) without
// allocating a new reservation, for readers (the rasterizer) consuming a
// surface built earlier this frame.
func (c *SurfaceCache) Slice(offset, w, h int) []Color {
	return c.pixels[offset : offset+w*h]
}

// Len reports the number of texels currently reserved this frame.
func (c *SurfaceCache) Len() int {
	return c.used
}
