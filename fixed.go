package swrender

import "math"

// Fixed16 is a 16.16 fixed-point number, used by the polygon rasterizer's
// inner scanline loops to avoid cumulative floating-point error across
// long spans.
type Fixed16 int32

const fixedShift = 16
const fixedOne = 1 << fixedShift

// FixedFromFloat converts a float32 to 16.16 fixed point.
func FixedFromFloat(v float32) Fixed16 {
	return Fixed16(math.Round(float64(v) * fixedOne))
}

// Float returns f as a float32.
func (f Fixed16) Float() float32 {
	return float32(f) / fixedOne
}

// FixedMul multiplies two 16.16 values using a 64-bit intermediate
// accumulator (Go has no native 32-bit-only wide mul).
func FixedMul(a, b Fixed16) Fixed16 {
	return Fixed16((int64(a) * int64(b)) >> fixedShift)
}

// FixedDiv divides two 16.16 values using a widened dividend.
func FixedDiv(a, b Fixed16) Fixed16 {
	if b == 0 {
		return 0
	}
	return Fixed16((int64(a) << fixedShift) / int64(b))
}

// Floor returns the integer part of f, rounding toward negative infinity.
func (f Fixed16) Floor() int {
	return int(f >> fixedShift)
}

// Ceil returns the smallest integer >= f.
func (f Fixed16) Ceil() int {
	return int((f + fixedOne - 1) >> fixedShift)
}

// Frac returns the fractional part of f as a 16.16 value in [0, 1).
func (f Fixed16) Frac() Fixed16 {
	return f & (fixedOne - 1)
}

// epsDiv is the minimum magnitude a divisor is clamped to before division;
// every division in the hot paths goes through this guard.
const epsDiv = 1e-8

// safeDiv divides a by b, clamping |b| away from zero first.
func safeDiv(a, b float32) float32 {
	if b >= 0 && b < epsDiv {
		b = epsDiv
	} else if b < 0 && b > -epsDiv {
		b = -epsDiv
	}
	return a / b
}

// InvSqrtFast computes an approximate 1/sqrt(x) using the classic
// bit-hack, standing in for the SSE `rsqrtss` intrinsic. Relative error
// < 1.5*2^-12 for x in [2^-30, 2^30], refined with two Newton-Raphson
// iterations to land comfortably inside that bound.
func InvSqrtFast(x float32) float32 {
	if x <= 0 {
		return 0
	}
	i := math.Float32bits(x)
	i = 0x5f3759df - (i >> 1)
	y := math.Float32frombits(i)
	y = y * (1.5 - 0.5*x*y*y)
	y = y * (1.5 - 0.5*x*y*y)
	return y
}

// InvFast computes an approximate 1/x via InvSqrtFast squared, standing
// in for the SSE `rcpss` intrinsic.
func InvFast(x float32) float32 {
	r := InvSqrtFast(x)
	return r * r
}
