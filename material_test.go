package swrender

import "testing"

func solidMip(w, h int, c Color) TextureMip {
	pixels := make([]Color, w*h)
	for i := range pixels {
		pixels[i] = c
	}
	return TextureMip{Width: w, Height: h, Pixels: pixels}
}

func TestTurbulenceEffectPreservesTexelCount(t *testing.T) {
	base := &TexturePyramid{}
	for i := range base.Mips {
		base.Mips[i] = solidMip(4, 4, Color{R: 1, G: 1, B: 1, A: 1})
	}
	eff := &TurbulenceEffect{Params: TurbParams{Amplitude: 1, WaveLength: 4, Frequency: 1}, Base: base}
	if got := eff.EstimatedTexelCount(); got != NumMips*16 {
		t.Errorf("EstimatedTexelCount = %d, want %d", got, NumMips*16)
	}

	var out TexturePyramid
	eff.Update(0.5, &out)
	for mip := 0; mip < NumMips; mip++ {
		if len(out.Mips[mip].Pixels) != len(base.Mips[mip].Pixels) {
			t.Errorf("mip %d: output pixel count %d, want %d", mip, len(out.Mips[mip].Pixels), len(base.Mips[mip].Pixels))
		}
	}
}

func TestTurbulenceEffectZeroAmplitudeIsIdentity(t *testing.T) {
	base := &TexturePyramid{}
	base.Mips[0] = solidMip(3, 3, Color{R: 0.2, G: 0.4, B: 0.6, A: 1})
	for i := 1; i < NumMips; i++ {
		base.Mips[i] = solidMip(1, 1, Color{})
	}
	eff := &TurbulenceEffect{Params: TurbParams{Amplitude: 0, WaveLength: 4, Frequency: 1}, Base: base}
	var out TexturePyramid
	eff.Update(1.23, &out)
	for i, px := range out.Mips[0].Pixels {
		if px != base.Mips[0].Pixels[i] {
			t.Errorf("pixel %d = %+v, want unchanged %+v with zero amplitude", i, px, base.Mips[0].Pixels[i])
		}
	}
}

func TestLayeredAnimationEffectCopiesBaseLayer(t *testing.T) {
	base := &TexturePyramid{}
	for i := range base.Mips {
		base.Mips[i] = solidMip(2, 2, Color{R: 0.5, G: 0.5, B: 0.5, A: 1})
	}
	eff := &LayeredAnimationEffect{Layers: []LayeredAnimationLayer{{Source: base, Blend: BlendAlphaBlend}}}
	var out TexturePyramid
	eff.Update(0, &out)
	for i, px := range out.Mips[0].Pixels {
		if px != base.Mips[0].Pixels[i] {
			t.Errorf("single-layer output pixel %d = %+v, want copy of base %+v", i, px, base.Mips[0].Pixels[i])
		}
	}
}

func TestLayeredAnimationEffectNoLayersLeavesOutputUntouched(t *testing.T) {
	eff := &LayeredAnimationEffect{}
	out := &TexturePyramid{}
	out.Mips[0] = solidMip(1, 1, Color{R: 9, G: 9, B: 9, A: 1})
	eff.Update(0, out)
	if out.Mips[0].Pixels[0].R != 9 {
		t.Error("Update with no layers should not touch the output pyramid")
	}
}

func TestBlendPixelAdditiveSumsChannels(t *testing.T) {
	dst := Color{R: 0.3, G: 0.2, B: 0.1, A: 1}
	src := Color{R: 0.4, G: 0.4, B: 0.4, A: 1}
	got := blendPixel(BlendAdditive, dst, src)
	want := dst.Add(src)
	if got != want {
		t.Errorf("blendPixel(additive) = %+v, want %+v", got, want)
	}
}

func TestBlendPixelAlphaTestDiscardsLowAlpha(t *testing.T) {
	dst := Color{R: 1, G: 1, B: 1, A: 1}
	src := Color{R: 0, G: 0, B: 0, A: 0.1}
	if got := blendPixel(BlendAlphaTest, dst, src); got != dst {
		t.Errorf("blendPixel(alphaTest) with low src alpha = %+v, want dst unchanged %+v", got, dst)
	}
}

func TestBlendPixelAlphaTestKeepsHighAlpha(t *testing.T) {
	dst := Color{R: 1, G: 1, B: 1, A: 1}
	src := Color{R: 0, G: 0, B: 0, A: 0.9}
	if got := blendPixel(BlendAlphaTest, dst, src); got != src {
		t.Errorf("blendPixel(alphaTest) with high src alpha = %+v, want src %+v", got, src)
	}
}

func TestIsNearWhiteDetectsOffWhite(t *testing.T) {
	if !isNearWhite(Color{R: 1, G: 1, B: 1}) {
		t.Error("pure white should be near-white")
	}
	if isNearWhite(Color{R: 0.5, G: 1, B: 1}) {
		t.Error("(0.5,1,1) should not be near-white")
	}
}

func TestMaterialRegenerateOutputWithoutEffectReturnsDiffuse(t *testing.T) {
	m := &Material{EffectKind: EffectNone}
	m.Diffuse.Mips[0] = solidMip(1, 1, Color{R: 0.7, G: 0, B: 0, A: 1})
	out := m.RegenerateOutput(0)
	if out != &m.Diffuse {
		t.Error("RegenerateOutput with EffectNone should return a pointer to Diffuse")
	}
}

func TestMaterialRegenerateOutputWithEffectRunsUpdate(t *testing.T) {
	base := &TexturePyramid{}
	for i := range base.Mips {
		base.Mips[i] = solidMip(2, 2, Color{R: 1, G: 1, B: 1, A: 1})
	}
	eff := &TurbulenceEffect{Params: TurbParams{Amplitude: 0, WaveLength: 4, Frequency: 1}, Base: base}
	m := &Material{EffectKind: EffectTurbulence, Effect: eff}
	out := m.RegenerateOutput(0)
	if out == &m.Diffuse {
		t.Error("RegenerateOutput with an effect should not return the raw Diffuse pyramid")
	}
	if len(out.Mips[0].Pixels) != 4 {
		t.Errorf("regenerated output mip 0 has %d pixels, want 4", len(out.Mips[0].Pixels))
	}
}
