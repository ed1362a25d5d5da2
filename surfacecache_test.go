package swrender

import "testing"

func TestSurfaceCacheReserveDisjointRanges(t *testing.T) {
	c := NewSurfaceCache(16)
	off1, s1 := c.Reserve(4, 4)
	off2, s2 := c.Reserve(2, 3)
	if off1 != 0 {
		t.Errorf("first reservation offset = %d, want 0", off1)
	}
	if off2 != 16 {
		t.Errorf("second reservation offset = %d, want 16 (after a 4x4 = 16 texel block)", off2)
	}
	if len(s1) != 16 || len(s2) != 6 {
		t.Errorf("reserved slice lengths = %d, %d, want 16, 6", len(s1), len(s2))
	}
}

func TestSurfaceCacheReserveWritesStayInBounds(t *testing.T) {
	c := NewSurfaceCache(4)
	offset, surface := c.Reserve(3, 3)
	if offset+len(surface) > c.Len() {
		t.Errorf("reservation [%d, %d) exceeds arena length %d", offset, offset+len(surface), c.Len())
	}
}

func TestSurfaceCacheBeginFrameTruncatesWithoutLosingCapacity(t *testing.T) {
	c := NewSurfaceCache(8)
	_, _ = c.Reserve(4, 4)
	priorCap := cap(c.pixels)
	c.BeginFrame()
	if c.Len() != 0 {
		t.Errorf("Len() after BeginFrame = %d, want 0", c.Len())
	}
	if cap(c.pixels) != priorCap {
		t.Errorf("BeginFrame released backing storage: cap %d -> %d", priorCap, cap(c.pixels))
	}
}

func TestSurfaceCacheGrowsPastInitialCapacity(t *testing.T) {
	c := NewSurfaceCache(2)
	offset, surface := c.Reserve(10, 10)
	if offset != 0 || len(surface) != 100 {
		t.Fatalf("Reserve(10,10) = (%d, len %d), want (0, 100)", offset, len(surface))
	}
	surface[0] = Color{R: 1}
	if got := c.Slice(0, 10, 10)[0]; got.R != 1 {
		t.Errorf("Slice after growth did not see the write, got %+v", got)
	}
}

func TestSurfaceCacheSliceIndependentOfReserve(t *testing.T) {
	c := NewSurfaceCache(16)
	off1, s1 := c.Reserve(2, 2)
	s1[0] = Color{G: 1}
	off2, s2 := c.Reserve(2, 2)
	s2[0] = Color{B: 1}

	if got := c.Slice(off1, 2, 2)[0]; got.G != 1 {
		t.Errorf("first surface corrupted: %+v", got)
	}
	if got := c.Slice(off2, 2, 2)[0]; got.B != 1 {
		t.Errorf("second surface corrupted: %+v", got)
	}
}
