package swrender

import "cogentcore.org/core/cie"

// ReinhardExposure scales linear-light color before the Reinhard curve is
// applied, letting brighter scenes be pulled down into range rather than
// clipping.
type ReinhardExposure float32

// DefaultExposure is a neutral exposure (no scaling before tonemap).
const DefaultExposure ReinhardExposure = 1.0

// reinhardComp maps one linear-light channel value in [0, inf) to [0, 1)
// via x / (1 + x), the classic Reinhard operator.
func reinhardComp(x float32) float32 {
	if x < 0 {
		x = 0
	}
	return x / (1 + x)
}

// Tonemap applies exposure then the Reinhard curve to one HDR linear-light
// color, leaving it in linear space in [0, 1) for the sRGB encode step.
func Tonemap(c Color, exposure ReinhardExposure) Color {
	e := float32(exposure)
	return Color{
		R: reinhardComp(c.R * e),
		G: reinhardComp(c.G * e),
		B: reinhardComp(c.B * e),
		A: c.A,
	}
}

// EncodeSRGB converts a tonemapped linear-light color to gamma-encoded
// sRGB and packs it to the framebuffer's 8-bit-per-channel format. The
// lightmap/surface pipeline works in linear light throughout, so the only
// place gamma belongs is this final encode before packing.
func EncodeSRGB(c Color) uint32 {
	r, g, b := cie.SRGBFmLinear(c.R, c.G, c.B)
	clamp := func(v float32) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v*255 + 0.5)
	}
	a := c.A
	if a <= 0 {
		a = 1
	}
	return PackColor(clamp(r), clamp(g), clamp(b), clamp(a))
}

// Postprocess runs the tonemap + sRGB encode pass over every texel of an
// HDR linear-light accumulation buffer, writing the display-ready packed
// result into dst.
func Postprocess(dst *Framebuffer, hdr []Color, exposure ReinhardExposure) {
	PostprocessRows(dst, hdr, exposure, 0, dst.Height)
}

// PostprocessRows tonemaps rows [yStart, yEnd), the per-thread unit of the
// driver's row-partitioned tonemap phase. Rows are disjoint across workers,
// so no two calls touch the same output byte.
func PostprocessRows(dst *Framebuffer, hdr []Color, exposure ReinhardExposure, yStart, yEnd int) {
	for y := yStart; y < yEnd; y++ {
		srcRow := hdr[y*dst.Width : (y+1)*dst.Width]
		dstRow := dst.Pixels[y*dst.Pitch : y*dst.Pitch+dst.Width]
		for x, c := range srcRow {
			dstRow[x] = EncodeSRGB(Tonemap(c, exposure))
		}
	}
}
