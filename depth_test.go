package swrender

import (
	"math"
	"testing"
)

func TestDepthBufferFillConvexPolygonWritesPositiveValues(t *testing.T) {
	buf := NewDepthBuffer(20, 20)
	tri := []ScreenDepthVertex{
		{X: 2, Y: 2, InvZ: 0.5},
		{X: 16, Y: 2, InvZ: 0.5},
		{X: 9, Y: 16, InvZ: 0.5},
	}
	buf.FillConvexPolygon(tri, 0, 0, 20, 20)

	wrote := false
	for _, v := range buf.Values {
		if v != 0 {
			wrote = true
			if v <= 0 {
				t.Errorf("depth buffer contains non-positive written value %v", v)
			}
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Errorf("depth buffer contains NaN/Inf value %v", v)
			}
		}
	}
	if !wrote {
		t.Fatal("FillConvexPolygon wrote nothing for a triangle inside bounds")
	}
}

func TestDepthBufferFillClampsToBufferBounds(t *testing.T) {
	buf := NewDepthBuffer(4, 4)
	tri := []ScreenDepthVertex{
		{X: -10, Y: -10, InvZ: 1},
		{X: 100, Y: -10, InvZ: 1},
		{X: 0, Y: 100, InvZ: 1},
	}
	// Should not panic despite vertices far outside the buffer.
	buf.FillConvexPolygon(tri, -100, -100, 100, 100)
	for _, v := range buf.Values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Errorf("out-of-bounds fill produced NaN/Inf")
		}
	}
}

func TestDepthBufferDegeneratePolygonNoOp(t *testing.T) {
	buf := NewDepthBuffer(4, 4)
	buf.FillConvexPolygon([]ScreenDepthVertex{{X: 1, Y: 1, InvZ: 1}, {X: 2, Y: 2, InvZ: 1}}, 0, 0, 4, 4)
	for _, v := range buf.Values {
		if v != 0 {
			t.Errorf("a 2-vertex polygon should write nothing, got %v", v)
		}
	}
}

func TestDepthBufferClearResetsValues(t *testing.T) {
	buf := NewDepthBuffer(4, 4)
	tri := []ScreenDepthVertex{
		{X: 0, Y: 0, InvZ: 1},
		{X: 3, Y: 0, InvZ: 1},
		{X: 1, Y: 3, InvZ: 1},
	}
	buf.FillConvexPolygon(tri, 0, 0, 4, 4)
	buf.Clear()
	for _, v := range buf.Values {
		if v != 0 {
			t.Fatal("Clear() left a nonzero value")
		}
	}
}

func TestDepthBufferNearerSurfaceWinsHigherInvZ(t *testing.T) {
	buf := NewDepthBuffer(10, 10)
	far := []ScreenDepthVertex{
		{X: 1, Y: 1, InvZ: 0.1},
		{X: 8, Y: 1, InvZ: 0.1},
		{X: 4, Y: 8, InvZ: 0.1},
	}
	near := []ScreenDepthVertex{
		{X: 1, Y: 1, InvZ: 0.9},
		{X: 8, Y: 1, InvZ: 0.9},
		{X: 4, Y: 8, InvZ: 0.9},
	}
	buf.FillConvexPolygon(far, 0, 0, 10, 10)
	buf.FillConvexPolygon(near, 0, 0, 10, 10)
	idx := buf.Width*4 + 4
	if buf.Values[idx] < 0.8 {
		t.Errorf("nearer (higher inv_z) surface should win at overlapping pixel, got %v", buf.Values[idx])
	}
}
