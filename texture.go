package swrender

import (
	"image"

	"github.com/disintegration/imaging"
)

// NumMips is the fixed mip pyramid depth every texture and material output
// carries.
const NumMips = 5

// MaxMip is the highest selectable mip index for surface building.
const MaxMip = 4

// TextureMip is one level of a texture pyramid: packed RGBA texels, tiled
// with wraparound addressing (rem_euclid semantics, see SampleTiled).
type TextureMip struct {
	Width, Height int
	Pixels        []Color
}

// SampleTiled fetches the texel at (x, y), wrapping both coordinates
// modulo the mip's dimensions (Go's %, unlike Rust's rem_euclid, can return
// negative results for negative operands, so this normalizes explicitly).
func (m *TextureMip) SampleTiled(x, y int) Color {
	x = wrapMod(x, m.Width)
	y = wrapMod(y, m.Height)
	return m.Pixels[y*m.Width+x]
}

func wrapMod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// TexturePyramid is a complete mip chain for one texture or material
// output, plus an optional normal+roughness map and emissive layer of the
// same shape.
type TexturePyramid struct {
	Mips        [NumMips]TextureMip
	NormalRough [NumMips]TextureMip // optional; zero-length Pixels means absent
	Emissive    [NumMips]TextureMip // optional
}

// BuildPyramid resizes a base image down through NumMips levels with box
// filtering.
func BuildPyramid(base image.Image) TexturePyramid {
	var pyr TexturePyramid
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	for mip := 0; mip < NumMips; mip++ {
		mw, mh := w>>mip, h>>mip
		if mw < 1 {
			mw = 1
		}
		if mh < 1 {
			mh = 1
		}
		var resized image.Image
		if mip == 0 {
			resized = base
		} else {
			resized = imaging.Resize(base, mw, mh, imaging.Box)
		}
		pyr.Mips[mip] = imageToTextureMip(resized, mw, mh)
	}
	return pyr
}

func imageToTextureMip(img image.Image, w, h int) TextureMip {
	pixels := make([]Color, w*h)
	b := img.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pixels[y*w+x] = Color{
				R: float32(r) / 65535,
				G: float32(g) / 65535,
				B: float32(bl) / 65535,
				A: float32(a) / 65535,
			}
		}
	}
	return TextureMip{Width: w, Height: h, Pixels: pixels}
}

// PackNormalRoughness packs a unit normal and a roughness scalar into one
// 32-bit word: 10 bits each for x and y (signed, biased), roughly 1 bit
// implied for the reconstructed z sign, and 11 bits for roughness. Paired
// with UnpackNormalRoughness below; round-trips within 1.5 * 2^-7
// relative error on each component.
func PackNormalRoughness(n [3]float32, roughness float32) uint32 {
	qx := quantizeSigned(n[0], 10)
	qy := quantizeSigned(n[1], 10)
	zSign := uint32(0)
	if n[2] < 0 {
		zSign = 1
	}
	qr := quantizeUnsigned(roughness, 11)
	return qx | (qy << 10) | (zSign << 20) | (qr << 21)
}

// UnpackNormalRoughness is the inverse of PackNormalRoughness. The z
// component is reconstructed from x and y assuming a unit normal
// (z = sqrt(max(0, 1-x^2-y^2))), with its sign restored from the packed
// sign bit.
func UnpackNormalRoughness(word uint32) (n [3]float32, roughness float32) {
	qx := word & 0x3FF
	qy := (word >> 10) & 0x3FF
	zSign := (word >> 20) & 0x1
	qr := (word >> 21) & 0x7FF

	x := dequantizeSigned(qx, 10)
	y := dequantizeSigned(qy, 10)
	z2 := 1 - x*x - y*y
	if z2 < 0 {
		z2 = 0
	}
	z := sqrtApprox(z2)
	if zSign == 1 {
		z = -z
	}
	return [3]float32{x, y, z}, dequantizeUnsigned(qr, 11)
}

func quantizeSigned(v float32, bits int) uint32 {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	maxVal := float32(int(1)<<uint(bits) - 1)
	return uint32((v*0.5 + 0.5) * maxVal)
}

func dequantizeSigned(q uint32, bits int) float32 {
	maxVal := float32(int(1)<<uint(bits) - 1)
	return (float32(q)/maxVal)*2 - 1
}

func quantizeUnsigned(v float32, bits int) uint32 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	maxVal := float32(int(1)<<uint(bits) - 1)
	return uint32(v * maxVal)
}

func dequantizeUnsigned(q uint32, bits int) float32 {
	maxVal := float32(int(1)<<uint(bits) - 1)
	return float32(q) / maxVal
}

func sqrtApprox(x float32) float32 {
	if x <= 0 {
		return 0
	}
	return x * InvSqrtFast(x)
}
