package swrender

import (
	lru "github.com/hashicorp/golang-lru"
)

// PortalTarget is one reusable portal/mirror render target: an HDR
// linear-light color buffer plus the size it was allocated at.
type PortalTarget struct {
	Width, Height int
	Pixels        []Color
}

func newPortalTarget(w, h int) *PortalTarget {
	return &PortalTarget{Width: w, Height: h, Pixels: make([]Color, w*h)}
}

// portalPoolCapacity bounds how many distinct (width, height) buffers the
// pool keeps alive at once; recursion depth is already capped by
// MaxPortalDepth, so this mainly protects against a frame with many
// differently-sized portal views in flight simultaneously. LRU-backed
// since portal target sizes vary per-portal rather than rounding to a
// fixed power-of-two bucket.
const portalPoolCapacity = 32

// PortalPool hands out reusable PortalTarget buffers keyed by exact
// (width, height), evicting the least-recently-used size bucket once the
// pool holds more distinct sizes than portalPoolCapacity.
type PortalPool struct {
	cache *lru.Cache
}

// NewPortalPool constructs an empty pool.
func NewPortalPool() *PortalPool {
	c, err := lru.New(portalPoolCapacity)
	if err != nil {
		// Only possible error is a non-positive size, which
		// portalPoolCapacity never is.
		panic(err)
	}
	return &PortalPool{cache: c}
}

type portalPoolKey struct{ w, h int }

// Acquire returns a free buffer of exactly (w, h), reusing a previously
// released one of the same size if available, or allocating a fresh one.
func (p *PortalPool) Acquire(w, h int) *PortalTarget {
	key := portalPoolKey{w, h}
	if v, ok := p.cache.Get(key); ok {
		stack := v.([]*PortalTarget)
		if len(stack) > 0 {
			target := stack[len(stack)-1]
			p.cache.Add(key, stack[:len(stack)-1])
			return target
		}
	}
	return newPortalTarget(w, h)
}

// Release returns a buffer to the pool for reuse by a later portal of the
// same size, without clearing its contents (the next Acquire's caller is
// expected to overwrite every texel it draws, matching the main
// framebuffer's contract).
func (p *PortalPool) Release(t *PortalTarget) {
	if t == nil {
		return
	}
	key := portalPoolKey{t.Width, t.Height}
	var stack []*PortalTarget
	if v, ok := p.cache.Get(key); ok {
		stack = v.([]*PortalTarget)
	}
	p.cache.Add(key, append(stack, t))
}
