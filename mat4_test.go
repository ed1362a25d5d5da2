package swrender

import (
	"math"
	"testing"

	"cogentcore.org/core/math32"
)

func approxEqualF32(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) < eps
}

func TestMulMatrix4Identity(t *testing.T) {
	m := Matrix4{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	got := MulMatrix4(m, IdentityMatrix4)
	for i := range m {
		if got[i] != m[i] {
			t.Errorf("m * I differs at index %d: got %v, want %v", i, got[i], m[i])
		}
	}
}

func TestTransformPointTranslation(t *testing.T) {
	translate := Matrix4{
		1, 0, 0, 10,
		0, 1, 0, 20,
		0, 0, 1, 30,
		0, 0, 0, 1,
	}
	x, y, z, w := translate.TransformPoint(math32.Vec3(1, 1, 1))
	if !approxEqualF32(x, 11, 1e-4) || !approxEqualF32(y, 21, 1e-4) || !approxEqualF32(z, 31, 1e-4) || w != 1 {
		t.Errorf("TransformPoint = (%v,%v,%v,%v), want (11,21,31,1)", x, y, z, w)
	}
}

func TestInverseOfIdentityIsIdentity(t *testing.T) {
	got := IdentityMatrix4.Inverse()
	for i := range got {
		if got[i] != IdentityMatrix4[i] {
			t.Errorf("Inverse(I) differs at index %d: got %v, want %v", i, got[i], IdentityMatrix4[i])
		}
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := LookAt(math32.Vec3(3, 4, 5), math32.Vec3(0, 0, 0), math32.Vec3(0, 1, 0))
	inv := m.Inverse()
	product := MulMatrix4(m, inv)
	for i, v := range product {
		want := IdentityMatrix4[i]
		if !approxEqualF32(v, want, 1e-2) {
			t.Errorf("M * M^-1 differs at index %d: got %v, want %v", i, v, want)
		}
	}
}

func TestLookAtMapsEyeToOrigin(t *testing.T) {
	eye := math32.Vec3(0, 0, 10)
	view := LookAt(eye, math32.Vec3(0, 0, 0), math32.Vec3(0, 1, 0))
	x, y, z, _ := view.TransformPoint(eye)
	if !approxEqualF32(x, 0, 1e-3) || !approxEqualF32(y, 0, 1e-3) || !approxEqualF32(z, 0, 1e-3) {
		t.Errorf("camera's own eye point in view space = (%v,%v,%v), want (0,0,0)", x, y, z)
	}
}

func TestPerspectiveFOVProjectsForwardPointInFront(t *testing.T) {
	proj := PerspectiveFOV(math.Pi/2, 1, 1, 100)
	x, y, z, w := proj.TransformPoint(math32.Vec3(0, 0, -10))
	if w <= 0 {
		t.Fatalf("point in front of camera projected to w=%v, want > 0", w)
	}
	if !approxEqualF32(x, 0, 1e-3) || !approxEqualF32(y, 0, 1e-3) {
		t.Errorf("on-axis point projected off-axis: (%v,%v)", x, y)
	}
	_ = z
}

func TestTransformPlaneIdentity(t *testing.T) {
	nx, ny, nz, d := IdentityMatrix4.TransformPlane(1, 0, 0, 5)
	if nx != 1 || ny != 0 || nz != 0 || d != 5 {
		t.Errorf("TransformPlane under identity = (%v,%v,%v,%v), want (1,0,0,5)", nx, ny, nz, d)
	}
}

func TestReflectionMatrixIsInvolution(t *testing.T) {
	n := math32.Vec3(0, 0, 1)
	r := ReflectionMatrix(n, 4)
	rr := MulMatrix4(r, r)
	for i := range rr {
		if abs32(rr[i]-IdentityMatrix4[i]) > 1e-4 {
			t.Fatalf("reflecting twice should be the identity, element %d = %v", i, rr[i])
		}
	}
}

func TestReflectPointThroughOffsetPlane(t *testing.T) {
	n := math32.Vec3(0, 0, 1)
	got := ReflectPoint(n, 4, math32.Vec3(1, 2, 7))
	want := math32.Vec3(1, 2, 1)
	if got.Sub(want).Length() > 1e-5 {
		t.Errorf("ReflectPoint = %v, want %v", got, want)
	}
}

func TestReflectionMatrixMatchesReflectPoint(t *testing.T) {
	n := math32.Vec3(0, 1, 0)
	m := ReflectionMatrix(n, -2)
	p := math32.Vec3(3, 5, -1)
	x, y, z, w := m.TransformPoint(p)
	if w != 1 {
		t.Fatalf("reflection should keep w = 1, got %v", w)
	}
	want := ReflectPoint(n, -2, p)
	if math32.Vec3(x, y, z).Sub(want).Length() > 1e-4 {
		t.Errorf("matrix reflection = (%v,%v,%v), want %v", x, y, z, want)
	}
}
