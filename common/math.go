// Package common provides small math helpers shared by the loader, the
// animator, and the preview rasterizer. All heavy lifting is done by mgl32;
// this file only covers the pieces it does not ship.
package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// degenerateScaleEpsilon is the threshold below which a decomposed scale axis
// is considered collapsed and the whole transform falls back to identity.
const degenerateScaleEpsilon = 1e-5

// Clamp01 clamps v to the [0, 1] range.
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LerpVec3 linearly interpolates between a and b by alpha.
//
// Parameters:
//   - a: the start vector
//   - b: the end vector
//   - alpha: the interpolation factor (0 = a, 1 = b)
//
// Returns:
//   - mgl32.Vec3: the interpolated vector
func LerpVec3(a, b mgl32.Vec3, alpha float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(alpha))
}

// SlerpShortest spherically interpolates between two unit quaternions along
// the shorter arc and renormalizes the result. mgl32.QuatSlerp alone does not
// flip the sign of the second quaternion, so opposing hemispheres would take
// the long way around.
//
// Parameters:
//   - a: the start rotation (unit quaternion)
//   - b: the end rotation (unit quaternion)
//   - alpha: the interpolation factor (0 = a, 1 = b)
//
// Returns:
//   - mgl32.Quat: the interpolated unit quaternion
func SlerpShortest(a, b mgl32.Quat, alpha float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, alpha).Normalize()
}

// TRSMat4 composes a local matrix from translation, rotation, and scale so
// that scale applies first, then rotation, then translation.
//
// Parameters:
//   - t: the translation
//   - r: the rotation (unit quaternion)
//   - s: the per-axis scale
//
// Returns:
//   - mgl32.Mat4: the composed local matrix
func TRSMat4(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	m := r.Mat4()

	// Fold the scale into the rotation columns and write the translation
	// directly instead of multiplying three full matrices.
	m[0] *= s.X()
	m[1] *= s.X()
	m[2] *= s.X()
	m[4] *= s.Y()
	m[5] *= s.Y()
	m[6] *= s.Y()
	m[8] *= s.Z()
	m[9] *= s.Z()
	m[10] *= s.Z()
	m[12] = t.X()
	m[13] = t.Y()
	m[14] = t.Z()

	return m
}

// DecomposeTRS splits a column-major transform matrix into translation,
// rotation, and scale. Shear is not representable and is discarded. A
// degenerate matrix (collapsed scale axis or non-finite values) decomposes to
// the identity transform.
//
// Parameters:
//   - m: the matrix to decompose
//
// Returns:
//   - mgl32.Vec3: the translation
//   - mgl32.Quat: the rotation (unit quaternion)
//   - mgl32.Vec3: the per-axis scale
func DecomposeTRS(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	for _, v := range m {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1}
		}
	}

	t := mgl32.Vec3{m[12], m[13], m[14]}

	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if sx < degenerateScaleEpsilon || sy < degenerateScaleEpsilon || sz < degenerateScaleEpsilon {
		return t, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1}
	}

	rot := mgl32.Mat4{
		m[0] / sx, m[1] / sx, m[2] / sx, 0,
		m[4] / sy, m[5] / sy, m[6] / sy, 0,
		m[8] / sz, m[9] / sz, m[10] / sz, 0,
		0, 0, 0, 1,
	}
	q := mgl32.Mat4ToQuat(rot).Normalize()

	return t, q, mgl32.Vec3{sx, sy, sz}
}
