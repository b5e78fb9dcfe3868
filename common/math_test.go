package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-4

func approxEqual(a, b float32) bool {
	return float32(math.Abs(float64(a-b))) < epsilon
}

func TestClamp01(t *testing.T) {
	if got := Clamp01(-0.5); got != 0 {
		t.Errorf("Clamp01(-0.5) = %v, want 0", got)
	}
	if got := Clamp01(1.5); got != 1 {
		t.Errorf("Clamp01(1.5) = %v, want 1", got)
	}
	if got := Clamp01(0.25); got != 0.25 {
		t.Errorf("Clamp01(0.25) = %v, want 0.25", got)
	}
}

func TestLerpVec3(t *testing.T) {
	a := mgl32.Vec3{0, 0, 0}
	b := mgl32.Vec3{2, 4, 6}

	got := LerpVec3(a, b, 0.5)
	want := mgl32.Vec3{1, 2, 3}
	for i := 0; i < 3; i++ {
		if !approxEqual(got[i], want[i]) {
			t.Fatalf("LerpVec3 midpoint = %v, want %v", got, want)
		}
	}

	if got := LerpVec3(a, b, 0); got != a {
		t.Errorf("LerpVec3 at 0 = %v, want %v", got, a)
	}
	if got := LerpVec3(a, b, 1); got != b {
		t.Errorf("LerpVec3 at 1 = %v, want %v", got, b)
	}
}

func TestSlerpShortestTakesShortArc(t *testing.T) {
	a := mgl32.QuatRotate(0, mgl32.Vec3{0, 1, 0})
	// Same orientation as a small positive rotation, but expressed on the
	// opposite hemisphere (negated quaternion).
	b := mgl32.QuatRotate(0.2, mgl32.Vec3{0, 1, 0}).Scale(-1)

	got := SlerpShortest(a, b, 0.5)
	want := mgl32.QuatRotate(0.1, mgl32.Vec3{0, 1, 0})

	// Compare by absolute dot: q and -q are the same rotation.
	d := float32(math.Abs(float64(got.Dot(want))))
	if d < 1-epsilon {
		t.Errorf("SlerpShortest took long arc: |dot| = %v", d)
	}
	if !approxEqual(got.Len(), 1) {
		t.Errorf("SlerpShortest result not normalized: len = %v", got.Len())
	}
}

func TestTRSMat4AppliesScaleThenRotationThenTranslation(t *testing.T) {
	tr := mgl32.Vec3{1, 2, 3}
	rot := mgl32.QuatRotate(float32(math.Pi/2), mgl32.Vec3{0, 0, 1})
	sc := mgl32.Vec3{2, 2, 2}

	m := TRSMat4(tr, rot, sc)

	// (1, 0, 0) scaled to (2, 0, 0), rotated 90deg about Z to (0, 2, 0),
	// translated to (1, 4, 3).
	got := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	want := mgl32.Vec3{1, 4, 3}
	for i := 0; i < 3; i++ {
		if !approxEqual(got[i], want[i]) {
			t.Fatalf("TRSMat4 transform = %v, want %v", got, want)
		}
	}
}

func TestDecomposeTRSRoundTrip(t *testing.T) {
	tr := mgl32.Vec3{-1, 5, 0.5}
	rot := mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}.Normalize())
	sc := mgl32.Vec3{2, 3, 0.5}

	gt, gr, gs := DecomposeTRS(TRSMat4(tr, rot, sc))

	for i := 0; i < 3; i++ {
		if !approxEqual(gt[i], tr[i]) {
			t.Errorf("translation[%d] = %v, want %v", i, gt[i], tr[i])
		}
		if !approxEqual(gs[i], sc[i]) {
			t.Errorf("scale[%d] = %v, want %v", i, gs[i], sc[i])
		}
	}
	if d := float32(math.Abs(float64(gr.Dot(rot)))); d < 1-epsilon {
		t.Errorf("rotation |dot| = %v, want ~1", d)
	}
}

func TestDecomposeTRSDegenerateFallsBackToIdentity(t *testing.T) {
	collapsed := TRSMat4(mgl32.Vec3{1, 1, 1}, mgl32.QuatIdent(), mgl32.Vec3{0, 1, 1})

	_, r, s := DecomposeTRS(collapsed)
	if r != mgl32.QuatIdent() {
		t.Errorf("degenerate rotation = %v, want identity", r)
	}
	if s != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("degenerate scale = %v, want unit", s)
	}

	nan := mgl32.Mat4{}
	nan[0] = float32(math.NaN())
	gt, gr, gs := DecomposeTRS(nan)
	if gt != (mgl32.Vec3{}) || gr != mgl32.QuatIdent() || gs != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("NaN matrix did not decompose to identity transform")
	}
}
