package swrender

import (
	"context"
	"testing"

	"cogentcore.org/core/math32"
)

func TestPrepareFrameBuildsNonEmptySurfaceForVisiblePolygon(t *testing.T) {
	m := oneLeafMap()
	r := NewPartialRenderer(m, oneLeafMaterials(), DefaultConfig(), 8, 8, 0)

	cam := NewCamera(1)
	cam.SetPose(math32.Vec3(0, 0, 0), math32.Vec3(0, 0, 1), math32.Vec3(0, 1, 0))
	fi := &FrameInfo{CameraMatrices: cam.Matrices()}

	if _, err := r.PrepareFrame(context.Background(), fi); err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}

	rec, ok := r.drawRecs.lookup(0, r.frame)
	if !ok {
		t.Fatal("polygon 0's draw record should be populated after PrepareFrame")
	}
	if rec.SurfaceSize[0] <= 0 || rec.SurfaceSize[1] <= 0 {
		t.Errorf("SurfaceSize = %v, want a non-empty rect", rec.SurfaceSize)
	}
	if rec.Mip < 0 || rec.Mip > MaxMip {
		t.Errorf("Mip = %d, out of range [0,%d]", rec.Mip, MaxMip)
	}
}

func TestPolygonVisibleFalseWhenLeafNotVisible(t *testing.T) {
	m := oneLeafMap()
	r := NewPartialRenderer(m, oneLeafMaterials(), DefaultConfig(), 8, 8, 0)
	if _, visible := r.polygonVisible(0); visible {
		t.Error("before any UpdateVisibility call, no polygon should be reported visible")
	}
}

func TestDrawFrameClearsBackgroundWhenConfigured(t *testing.T) {
	m := oneLeafMap()
	cfg := DefaultConfig()
	cfg.ClearBackground = true
	r := NewPartialRenderer(m, oneLeafMaterials(), cfg, 8, 8, 0)

	cam := NewCamera(1)
	cam.SetPose(math32.Vec3(0, 0, 0), math32.Vec3(0, 0, 1), math32.Vec3(0, 1, 0))
	fi := &FrameInfo{CameraMatrices: cam.Matrices()}

	prep, err := r.PrepareFrame(context.Background(), fi)
	if err != nil {
		t.Fatalf("PrepareFrame: %v", err)
	}
	out := make([]Color, 8*8)
	out[5] = Color{R: 9, G: 9, B: 9, A: 1}
	r.DrawFrame(context.Background(), prep, out, 8, 8)

	if out[5].R == 9 {
		t.Error("DrawFrame with ClearBackground should have overwritten the stale pixel before drawing")
	}
}
