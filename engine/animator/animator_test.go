package animator

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/engine/model"
)

// testSkeleton builds a two-bone chain with identity bind transforms and
// identity inverse-bind matrices.
func testSkeleton() *model.Skeleton {
	s := &model.Skeleton{
		Bones: []model.Bone{
			{Name: "root", ParentIndex: -1, InverseBindMatrix: mgl32.Ident4(), BindTransform: model.IdentityTransform()},
			{Name: "child", ParentIndex: 0, InverseBindMatrix: mgl32.Ident4(), BindTransform: model.IdentityTransform()},
		},
		RootBoneIndices: []int32{0},
	}
	s.BuildNameIndex()
	return s
}

// rotationClip animates the root bone from identity to angle radians about Y
// over one second.
func rotationClip(name string, boneCount int, angle float32, loop bool) *model.AnimationClip {
	tracks := model.NewTrackSet(boneCount)
	tracks.Put(model.BoneTrack{
		BoneIndex: 0,
		RotationKeys: []model.QuaternionKeyframe{
			{Time: 0, Value: mgl32.QuatIdent()},
			{Time: 1, Value: mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})},
		},
	})
	return &model.AnimationClip{Name: name, Duration: 1, Loop: loop, Tracks: tracks}
}

// translationClip holds the root bone at a constant x translation.
func translationClip(name string, boneCount int, x float32) *model.AnimationClip {
	tracks := model.NewTrackSet(boneCount)
	tracks.Put(model.BoneTrack{
		BoneIndex: 0,
		PositionKeys: []model.VectorKeyframe{
			{Time: 0, Value: mgl32.Vec3{x, 0, 0}},
			{Time: 1, Value: mgl32.Vec3{x, 0, 0}},
		},
	})
	return &model.AnimationClip{Name: name, Duration: 1, Loop: true, Tracks: tracks}
}

func testAsset(clips ...*model.AnimationClip) *model.Asset {
	asset := &model.Asset{
		Name:     "rig",
		Skeleton: testSkeleton(),
		Clips:    clips,
	}
	asset.InternClips()
	return asset
}

func quatAngle(q mgl32.Quat) float64 {
	w := float64(q.W)
	if w > 1 {
		w = 1
	}
	if w < -1 {
		w = -1
	}
	return 2 * math.Acos(math.Abs(w))
}

func TestSamplePoseBindFallback(t *testing.T) {
	skeleton := testSkeleton()
	pose := skeleton.NewPose()

	// Pollute the buffer, then sample with no clip.
	pose[0].Translation = mgl32.Vec3{9, 9, 9}
	SamplePose(nil, skeleton, 0.5, pose)

	for i := range pose {
		if pose[i].Translation != (mgl32.Vec3{}) {
			t.Errorf("bone %d: translation = %v, want bind pose", i, pose[i].Translation)
		}
		if pose[i].Scale != (mgl32.Vec3{1, 1, 1}) {
			t.Errorf("bone %d: scale = %v, want bind pose", i, pose[i].Scale)
		}
	}
}

func TestSamplePoseSingleKeyConstant(t *testing.T) {
	skeleton := testSkeleton()
	tracks := model.NewTrackSet(len(skeleton.Bones))
	tracks.Put(model.BoneTrack{
		BoneIndex:    0,
		PositionKeys: []model.VectorKeyframe{{Time: 0.3, Value: mgl32.Vec3{5, 0, 0}}},
	})
	clip := &model.AnimationClip{Name: "hold", Duration: 1, Tracks: tracks}

	pose := skeleton.NewPose()
	for _, tm := range []float32{0, 0.3, 0.9} {
		SamplePose(clip, skeleton, tm, pose)
		if pose[0].Translation != (mgl32.Vec3{5, 0, 0}) {
			t.Errorf("t=%f: translation = %v, want constant", tm, pose[0].Translation)
		}
	}
}

func TestSamplePoseMidpointRotation(t *testing.T) {
	skeleton := testSkeleton()
	clip := rotationClip("idle", len(skeleton.Bones), float32(math.Pi/2), true)

	pose := skeleton.NewPose()
	SamplePose(clip, skeleton, 0.5, pose)

	got := quatAngle(pose[0].Rotation)
	if math.Abs(got-math.Pi/4) > 1e-3 {
		t.Errorf("midpoint rotation angle = %f rad, want ~pi/4", got)
	}
	if math.Abs(float64(pose[0].Rotation.Len()-1)) > 1e-5 {
		t.Errorf("sampled rotation not unit length: %f", pose[0].Rotation.Len())
	}
}

func TestSamplePoseClampsOutsideKeyRange(t *testing.T) {
	skeleton := testSkeleton()
	clip := rotationClip("idle", len(skeleton.Bones), float32(math.Pi/2), false)

	pose := skeleton.NewPose()
	SamplePose(clip, skeleton, 5, pose)
	if got := quatAngle(pose[0].Rotation); math.Abs(got-math.Pi/2) > 1e-3 {
		t.Errorf("past-end sample angle = %f, want pi/2", got)
	}

	SamplePose(clip, skeleton, -5, pose)
	if got := quatAngle(pose[0].Rotation); got > 1e-3 {
		t.Errorf("pre-start sample angle = %f, want 0", got)
	}
}

func TestSamplePoseZeroSpanBracket(t *testing.T) {
	skeleton := testSkeleton()
	tracks := model.NewTrackSet(len(skeleton.Bones))
	tracks.Put(model.BoneTrack{
		BoneIndex: 0,
		PositionKeys: []model.VectorKeyframe{
			{Time: 0.5, Value: mgl32.Vec3{1, 0, 0}},
			{Time: 0.5, Value: mgl32.Vec3{2, 0, 0}},
		},
	})
	clip := &model.AnimationClip{Name: "step", Duration: 1, Tracks: tracks}

	pose := skeleton.NewPose()
	SamplePose(clip, skeleton, 0.5, pose)
	if pose[0].Translation != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("zero-span bracket should return the left value, got %v", pose[0].Translation)
	}
}

func TestBlendPosesEndpoints(t *testing.T) {
	skeleton := testSkeleton()
	a := skeleton.NewPose()
	b := skeleton.NewPose()
	a[0].Translation = mgl32.Vec3{1, 2, 3}
	b[0].Translation = mgl32.Vec3{-1, 0, 7}
	b[0].Rotation = mgl32.QuatRotate(1, mgl32.Vec3{0, 0, 1})

	dst := skeleton.NewPose()
	BlendPoses(dst, a, b, 0)
	if dst[0].Translation != a[0].Translation {
		t.Errorf("alpha=0: got %v, want pose A", dst[0].Translation)
	}

	BlendPoses(dst, a, b, 1)
	if dst[0].Translation != b[0].Translation {
		t.Errorf("alpha=1: got %v, want pose B", dst[0].Translation)
	}
	if math.Abs(float64(dst[0].Rotation.Dot(b[0].Rotation))) < 1-1e-5 {
		t.Errorf("alpha=1: rotation %v differs from pose B", dst[0].Rotation)
	}
}

func TestComposeIdentity(t *testing.T) {
	skeleton := testSkeleton()
	pose := skeleton.NewPose()
	skins := make([]mgl32.Mat4, len(skeleton.Bones))

	var c poseComposer
	c.Compose(skeleton, pose, skins)

	for i, m := range skins {
		if !m.ApproxEqualThreshold(mgl32.Ident4(), 1e-6) {
			t.Errorf("bone %d: identity rest pose produced non-identity skin matrix %v", i, m)
		}
	}
}

func TestComposeHierarchyChains(t *testing.T) {
	skeleton := testSkeleton()
	pose := skeleton.NewPose()
	pose[0].Translation = mgl32.Vec3{0, 1, 0}
	pose[1].Translation = mgl32.Vec3{0, 2, 0}

	skins := make([]mgl32.Mat4, len(skeleton.Bones))
	var c poseComposer
	c.Compose(skeleton, pose, skins)

	// With identity inverse binds, the child's skin matrix is its model
	// matrix: both translations chained.
	p := skins[1].Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.Vec3().ApproxEqualThreshold(mgl32.Vec3{0, 3, 0}, 1e-5) {
		t.Errorf("chained translation = %v, want (0,3,0)", p.Vec3())
	}
}

func TestAnimatorUnknownClipIgnored(t *testing.T) {
	asset := testAsset(rotationClip("idle", 2, float32(math.Pi/2), true))
	a := NewAnimator(asset)

	a.Play("no_such_clip", true)
	if a.ActiveClip() != model.ClipIDInvalid {
		t.Error("unknown Play should leave the animator Idle")
	}

	a.CrossFade("no_such_clip", 0.5)
	a.Update(0.1)
	if a.ActiveClip() != model.ClipIDInvalid {
		t.Error("unknown CrossFade should leave the animator Idle")
	}
}

func TestAnimatorIdleEmitsBindPose(t *testing.T) {
	asset := testAsset(rotationClip("idle", 2, float32(math.Pi/2), true))
	a := NewAnimator(asset)
	a.Update(0.25)

	for i, m := range a.SkinTransforms() {
		if !m.ApproxEqualThreshold(mgl32.Ident4(), 1e-6) {
			t.Errorf("bone %d: Idle skin matrix = %v, want identity", i, m)
		}
	}
}

func TestAnimatorLoopWrapEquivalence(t *testing.T) {
	asset := testAsset(rotationClip("idle", 2, float32(math.Pi/2), true))

	a1 := NewAnimator(asset)
	a1.Play("idle", false)
	a1.Update(0.5)

	a2 := NewAnimator(asset)
	a2.Play("idle", false)
	a2.Update(1.5) // wraps to 0.5

	q1 := a1.CurrentPose()[0].Rotation
	q2 := a2.CurrentPose()[0].Rotation
	if math.Abs(float64(q1.Dot(q2))) < 1-1e-5 {
		t.Errorf("wrapped pose differs: %v vs %v", q1, q2)
	}
	if got := quatAngle(q1); math.Abs(got-math.Pi/4) > 1e-3 {
		t.Errorf("t=0.5 angle = %f, want ~pi/4", got)
	}
}

func TestAnimatorNonLoopClamps(t *testing.T) {
	asset := testAsset(rotationClip("bash", 2, float32(math.Pi/2), false))
	a := NewAnimator(asset)
	a.Play("bash", false)
	a.Update(5)

	if got := quatAngle(a.CurrentPose()[0].Rotation); math.Abs(got-math.Pi/2) > 1e-3 {
		t.Errorf("clamped angle = %f, want pi/2", got)
	}

	// Further updates hold the final pose.
	a.Update(1)
	if got := quatAngle(a.CurrentPose()[0].Rotation); math.Abs(got-math.Pi/2) > 1e-3 {
		t.Errorf("held angle = %f, want pi/2", got)
	}
}

func TestAnimatorCrossFade(t *testing.T) {
	asset := testAsset(
		translationClip("idle", 2, 0),
		translationClip("walk", 2, 2),
	)
	a := NewAnimator(asset)

	a.Play("idle", true)
	a.CrossFade("walk", 1.0)
	a.Update(0.5)

	x := a.CurrentPose()[0].Translation.X()
	if x < 0.7 || x > 1.3 {
		t.Errorf("mid-fade root x = %f, want ~1.0", x)
	}

	a.Update(0.6)
	walkID, _ := asset.ClipByName("walk")
	if a.ActiveClip() != walkID {
		t.Errorf("after fade completes, active clip = %d, want walk (%d)", a.ActiveClip(), walkID)
	}

	// Playback continues in phase: the target's elapsed time carries over.
	x = a.CurrentPose()[0].Translation.X()
	if math.Abs(float64(x-2)) > 1e-5 {
		t.Errorf("post-fade root x = %f, want 2", x)
	}
}

func TestAnimatorCrossFadeSameClipNoOp(t *testing.T) {
	asset := testAsset(rotationClip("idle", 2, float32(math.Pi/2), true))
	a := NewAnimator(asset)

	a.Play("idle", false)
	a.Update(0.5)
	before := a.CurrentPose()[0].Rotation

	a.CrossFade("idle", 1.0)
	a.Update(0) // no time advance; pose must not snap back to t=0
	after := a.CurrentPose()[0].Rotation

	if math.Abs(float64(before.Dot(after))) < 1-1e-5 {
		t.Errorf("same-clip CrossFade restarted playback: %v vs %v", before, after)
	}
}

func TestAnimatorCrossFadeFromIdle(t *testing.T) {
	asset := testAsset(translationClip("walk", 2, 2))
	a := NewAnimator(asset)

	a.CrossFade("walk", 1.0)
	a.Update(0.1)

	walkID, _ := asset.ClipByName("walk")
	if a.ActiveClip() != walkID {
		t.Error("CrossFade from Idle should behave like Play")
	}
	if x := a.CurrentPose()[0].Translation.X(); math.Abs(float64(x-2)) > 1e-5 {
		t.Errorf("root x = %f, want 2 (no blend from Idle)", x)
	}
}

func TestAnimatorZeroDurationCrossFadeCollapsesImmediately(t *testing.T) {
	asset := testAsset(
		translationClip("idle", 2, 0),
		translationClip("walk", 2, 2),
	)
	a := NewAnimator(asset)
	a.Play("idle", true)
	a.CrossFade("walk", 0)
	a.Update(0.016)

	walkID, _ := asset.ClipByName("walk")
	if a.ActiveClip() != walkID {
		t.Error("zero-duration fade should collapse on the first Update")
	}
}
