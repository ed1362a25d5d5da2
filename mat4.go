package swrender

import (
	"math"

	"cogentcore.org/core/math32"
)

// Matrix4 is a row-major 4x4 matrix used for the camera's view matrix and
// its plane-transform companion.
type Matrix4 [16]float32

// IdentityMatrix4 is the identity matrix.
var IdentityMatrix4 = Matrix4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// MulMatrix4 multiplies two 4x4 matrices: result = m * o.
func MulMatrix4(m, o Matrix4) Matrix4 {
	var r Matrix4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * o[k*4+col]
			}
			r[row*4+col] = sum
		}
	}
	return r
}

// TransformPoint applies m to a point (w=1 implied), returning the
// homogeneous result before the perspective divide.
func (m Matrix4) TransformPoint(v math32.Vector3) (x, y, z, w float32) {
	x = m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3]
	y = m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7]
	z = m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11]
	w = m[12]*v.X + m[13]*v.Y + m[14]*v.Z + m[15]
	return
}

// TransformDir applies the linear (non-translating) part of m to a
// direction vector.
func (m Matrix4) TransformDir(v math32.Vector3) math32.Vector3 {
	return math32.Vec3(
		m[0]*v.X+m[1]*v.Y+m[2]*v.Z,
		m[4]*v.X+m[5]*v.Y+m[6]*v.Z,
		m[8]*v.X+m[9]*v.Y+m[10]*v.Z,
	)
}

// TransformPlane transforms a plane equation (nx, ny, nz, d) by m, returning
// a new plane equation. Used with the inverse-transpose planes matrix so
// that plane equations transform correctly under non-uniform transforms; for the camera's rigid view matrix the inverse
// transpose is built directly (without a general inverse) as
// CameraMatrices.Planes in camera.go.
func (m Matrix4) TransformPlane(nx, ny, nz, d float32) (rnx, rny, rnz, rd float32) {
	rnx = m[0]*nx + m[1]*ny + m[2]*nz + m[3]*d
	rny = m[4]*nx + m[5]*ny + m[6]*nz + m[7]*d
	rnz = m[8]*nx + m[9]*ny + m[10]*nz + m[11]*d
	rd = m[12]*nx + m[13]*ny + m[14]*nz + m[15]*d
	return
}

// Transpose returns the transpose of m.
func (m Matrix4) Transpose() Matrix4 {
	var r Matrix4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			r[col*4+row] = m[row*4+col]
		}
	}
	return r
}

// Inverse computes the general 4x4 matrix inverse via cofactor expansion.
// Returns the identity matrix if m is singular (determinant within eps of
// zero) — callers in this package only ever invert well-conditioned camera
// matrices, so this is a defensive fallback, not a hot path.
func (m Matrix4) Inverse() Matrix4 {
	a := m
	var inv Matrix4

	inv[0] = a[5]*a[10]*a[15] - a[5]*a[11]*a[14] - a[9]*a[6]*a[15] + a[9]*a[7]*a[14] + a[13]*a[6]*a[11] - a[13]*a[7]*a[10]
	inv[4] = -a[4]*a[10]*a[15] + a[4]*a[11]*a[14] + a[8]*a[6]*a[15] - a[8]*a[7]*a[14] - a[12]*a[6]*a[11] + a[12]*a[7]*a[10]
	inv[8] = a[4]*a[9]*a[15] - a[4]*a[11]*a[13] - a[8]*a[5]*a[15] + a[8]*a[7]*a[13] + a[12]*a[5]*a[11] - a[12]*a[7]*a[9]
	inv[12] = -a[4]*a[9]*a[14] + a[4]*a[10]*a[13] + a[8]*a[5]*a[14] - a[8]*a[6]*a[13] - a[12]*a[5]*a[10] + a[12]*a[6]*a[9]

	inv[1] = -a[1]*a[10]*a[15] + a[1]*a[11]*a[14] + a[9]*a[2]*a[15] - a[9]*a[3]*a[14] - a[13]*a[2]*a[11] + a[13]*a[3]*a[10]
	inv[5] = a[0]*a[10]*a[15] - a[0]*a[11]*a[14] - a[8]*a[2]*a[15] + a[8]*a[3]*a[14] + a[12]*a[2]*a[11] - a[12]*a[3]*a[10]
	inv[9] = -a[0]*a[9]*a[15] + a[0]*a[11]*a[13] + a[8]*a[1]*a[15] - a[8]*a[3]*a[13] - a[12]*a[1]*a[11] + a[12]*a[3]*a[9]
	inv[13] = a[0]*a[9]*a[14] - a[0]*a[10]*a[13] - a[8]*a[1]*a[14] + a[8]*a[2]*a[13] + a[12]*a[1]*a[10] - a[12]*a[2]*a[9]

	inv[2] = a[1]*a[6]*a[15] - a[1]*a[7]*a[14] - a[5]*a[2]*a[15] + a[5]*a[3]*a[14] + a[13]*a[2]*a[7] - a[13]*a[3]*a[6]
	inv[6] = -a[0]*a[6]*a[15] + a[0]*a[7]*a[14] + a[4]*a[2]*a[15] - a[4]*a[3]*a[14] - a[12]*a[2]*a[7] + a[12]*a[3]*a[6]
	inv[10] = a[0]*a[5]*a[15] - a[0]*a[7]*a[13] - a[4]*a[1]*a[15] + a[4]*a[3]*a[13] + a[12]*a[1]*a[7] - a[12]*a[3]*a[5]
	inv[14] = -a[0]*a[5]*a[14] + a[0]*a[6]*a[13] + a[4]*a[1]*a[14] - a[4]*a[2]*a[13] - a[12]*a[1]*a[6] + a[12]*a[2]*a[5]

	inv[3] = -a[1]*a[6]*a[11] + a[1]*a[7]*a[10] + a[5]*a[2]*a[11] - a[5]*a[3]*a[10] - a[9]*a[2]*a[7] + a[9]*a[3]*a[6]
	inv[7] = a[0]*a[6]*a[11] - a[0]*a[7]*a[10] - a[4]*a[2]*a[11] + a[4]*a[3]*a[10] + a[8]*a[2]*a[7] - a[8]*a[3]*a[6]
	inv[11] = -a[0]*a[5]*a[11] + a[0]*a[7]*a[9] + a[4]*a[1]*a[11] - a[4]*a[3]*a[9] - a[8]*a[1]*a[7] + a[8]*a[3]*a[5]
	inv[15] = a[0]*a[5]*a[10] - a[0]*a[6]*a[9] - a[4]*a[1]*a[10] + a[4]*a[2]*a[9] + a[8]*a[1]*a[6] - a[8]*a[2]*a[5]

	det := a[0]*inv[0] + a[1]*inv[4] + a[2]*inv[8] + a[3]*inv[12]
	if det > -1e-20 && det < 1e-20 {
		return IdentityMatrix4
	}
	invDet := 1 / det
	for i := range inv {
		inv[i] *= invDet
	}
	return inv
}

// ReflectionMatrix builds the world-space reflection through the plane
// dot(n, v) = d, with n unit length: I - 2*n*n^T plus a 2*d*n translation.
// Composed onto a view matrix it turns a camera into its mirror image for
// mirror-portal rendering.
func ReflectionMatrix(n math32.Vector3, d float32) Matrix4 {
	return Matrix4{
		1 - 2*n.X*n.X, -2*n.X*n.Y, -2*n.X*n.Z, 2 * d * n.X,
		-2*n.Y*n.X, 1 - 2*n.Y*n.Y, -2*n.Y*n.Z, 2 * d * n.Y,
		-2*n.Z*n.X, -2*n.Z*n.Y, 1 - 2*n.Z*n.Z, 2 * d * n.Z,
		0, 0, 0, 1,
	}
}

// ReflectPoint mirrors a point through the plane dot(n, v) = d (n unit).
func ReflectPoint(n math32.Vector3, d float32, p math32.Vector3) math32.Vector3 {
	k := 2 * (n.Dot(p) - d)
	return p.Sub(n.MulScalar(k))
}

// LookAt builds a right-handed view matrix placing the camera at eye,
// looking toward target, with the given up direction.
func LookAt(eye, target, up math32.Vector3) Matrix4 {
	zAxis := eye.Sub(target).Normal()
	xAxis := up.Cross(zAxis).Normal()
	yAxis := zAxis.Cross(xAxis)

	return Matrix4{
		xAxis.X, xAxis.Y, xAxis.Z, -xAxis.Dot(eye),
		yAxis.X, yAxis.Y, yAxis.Z, -yAxis.Dot(eye),
		zAxis.X, zAxis.Y, zAxis.Z, -zAxis.Dot(eye),
		0, 0, 0, 1,
	}
}

// PerspectiveFOV builds a right-handed perspective projection matrix from a
// vertical field of view (radians), aspect ratio, and near/far planes.
func PerspectiveFOV(fovY, aspect, near, far float32) Matrix4 {
	f := float32(1 / math.Tan(float64(fovY)/2))
	nf := 1 / (near - far)
	return Matrix4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, 2 * far * near * nf,
		0, 0, -1, 0,
	}
}
