package swrender

import (
	"math"
	"testing"
)

func TestSampleTiledWrapsNegativeCoordinates(t *testing.T) {
	m := TextureMip{
		Width: 2, Height: 2,
		Pixels: []Color{
			{R: 0}, {R: 1},
			{R: 2}, {R: 3},
		},
	}
	if got := m.SampleTiled(-1, 0); got.R != 1 {
		t.Errorf("SampleTiled(-1,0) = %v, want 1 (wraps to x=1)", got.R)
	}
	if got := m.SampleTiled(2, 2); got.R != 0 {
		t.Errorf("SampleTiled(2,2) = %v, want 0 (wraps to (0,0))", got.R)
	}
}

func TestWrapModMatchesRemEuclid(t *testing.T) {
	cases := []struct{ v, n, want int }{
		{-1, 4, 3},
		{4, 4, 0},
		{5, 4, 1},
		{-5, 4, 3},
		{0, 4, 0},
	}
	for _, c := range cases {
		if got := wrapMod(c.v, c.n); got != c.want {
			t.Errorf("wrapMod(%d, %d) = %d, want %d", c.v, c.n, got, c.want)
		}
	}
}

// TestPackNormalRoughnessRoundTrip: "Packing a normal+roughness
// into 32 bits and unpacking yields values within 1.5 * 2^-7 relative
// error on each component."
func TestPackNormalRoughnessRoundTrip(t *testing.T) {
	const maxRelErr = 1.5 / 128.0 // 1.5 * 2^-7

	cases := []struct {
		n         [3]float32
		roughness float32
	}{
		{[3]float32{0, 0, 1}, 0.5},
		{[3]float32{0.6, 0.8, 0}, 1.0},
		{[3]float32{-0.5, -0.5, 0.7071}, 0.1},
		{[3]float32{0, 0, -1}, 0.9},
	}
	for _, c := range cases {
		word := PackNormalRoughness(c.n, c.roughness)
		n, r := UnpackNormalRoughness(word)
		for i := 0; i < 3; i++ {
			if math.Abs(float64(c.n[i])) > 1e-6 {
				compErr := math.Abs(float64(n[i]-c.n[i])) / math.Abs(float64(c.n[i]))
				if compErr > maxRelErr {
					t.Errorf("component %d: got %v, want ~%v (relative error %v > %v)", i, n[i], c.n[i], compErr, maxRelErr)
				}
			}
		}
		roughErr := math.Abs(float64(r-c.roughness)) / float64(c.roughness)
		if roughErr > maxRelErr {
			t.Errorf("roughness: got %v, want ~%v (relative error %v > %v)", r, c.roughness, roughErr, maxRelErr)
		}
	}
}

func TestQuantizeSignedClampsRange(t *testing.T) {
	if q := quantizeSigned(5, 10); q != uint32(1<<10-1) {
		t.Errorf("quantizeSigned(5, 10) = %d, want max value %d (clamped)", q, uint32(1<<10-1))
	}
	if q := quantizeSigned(-5, 10); q != 0 {
		t.Errorf("quantizeSigned(-5, 10) = %d, want 0 (clamped)", q)
	}
}

func TestSqrtApproxZeroAndNegative(t *testing.T) {
	if sqrtApprox(0) != 0 {
		t.Errorf("sqrtApprox(0) = %v, want 0", sqrtApprox(0))
	}
	if sqrtApprox(-1) != 0 {
		t.Errorf("sqrtApprox(-1) = %v, want 0 (guarded)", sqrtApprox(-1))
	}
	got := sqrtApprox(4)
	if math.Abs(float64(got-2)) > 0.05 {
		t.Errorf("sqrtApprox(4) = %v, want ~2", got)
	}
}
