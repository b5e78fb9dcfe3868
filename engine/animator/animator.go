package animator

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/common"
	"github.com/rholdorf/nort/engine/model"
)

// transitionEpsilon is the minimum cross-fade duration; shorter requests are
// clamped up so the alpha division stays finite.
const transitionEpsilon = 1e-4

// animatorState is the clip playback state.
type animatorState int

const (
	// animatorIdle has no clip selected; the skin matrices hold the bind pose.
	animatorIdle animatorState = iota

	// animatorPlaying advances a single active clip.
	animatorPlaying

	// animatorTransitioning cross-fades from the active clip to a target
	// clip, each with its own elapsed time.
	animatorTransitioning
)

// animatorImpl is the implementation of the Animator interface.
type animatorImpl struct {
	asset *model.Asset

	state         animatorState
	activeClip    model.ClipID
	activeElapsed float32

	targetClip         model.ClipID
	targetElapsed      float32
	transitionElapsed  float32
	transitionDuration float32

	activePose  model.Pose
	targetPose  model.Pose
	blendedPose model.Pose

	composer     poseComposer
	skinMatrices []mgl32.Mat4
}

// Animator drives clip playback for one entity: a small state machine over
// interned clip identifiers, refreshed once per frame tick. Animators sharing
// one asset share it read-only; each Animator owns its pose and matrix
// buffers exclusively and must not be updated from more than one goroutine.
type Animator interface {
	// Play switches to a clip, restarting it from time zero. Unknown clip
	// names are silently ignored: this path is typically driven by user
	// input and must not take down an interactive session.
	//
	// Parameters:
	//   - name: the clip name
	//   - immediate: when true, the new clip is sampled and composed right
	//     away instead of on the next Update
	Play(name string, immediate bool)

	// CrossFade blends from the current clip into another over the given
	// duration. From Idle it behaves like Play; fading into the already
	// active clip is a no-op. Unknown clip names are silently ignored.
	//
	// Parameters:
	//   - name: the target clip name
	//   - duration: the fade duration in seconds (clamped up to a small
	//     minimum)
	CrossFade(name string, duration float32)

	// Update advances playback by dt seconds, samples the active (and during
	// a transition, target) clip, and refreshes the skin matrices. Looping
	// clips wrap their elapsed time; non-looping clips clamp at the end.
	//
	// Parameters:
	//   - dt: the frame delta time in seconds
	Update(dt float32)

	// SkinTransforms returns the per-bone skin matrices from the most recent
	// Update (or the bind pose before any clip has played). The slice is
	// reused across frames; callers must treat it as read-only.
	//
	// Returns:
	//   - []mgl32.Mat4: one skin matrix per bone
	SkinTransforms() []mgl32.Mat4

	// CurrentPose returns the most recently evaluated pose, one local
	// transform per bone. Read-only, reused across frames.
	//
	// Returns:
	//   - model.Pose: the current pose
	CurrentPose() model.Pose

	// ActiveClip returns the interned identifier of the active clip, or
	// model.ClipIDInvalid when Idle. During a transition this is the clip
	// being faded from.
	//
	// Returns:
	//   - model.ClipID: the active clip id
	ActiveClip() model.ClipID
}

var _ Animator = &animatorImpl{}

// NewAnimator creates an Animator over a loaded asset. It starts Idle with
// its skin matrices composed from the bind pose.
//
// Parameters:
//   - asset: the asset whose skeleton and clips drive this animator
//
// Returns:
//   - Animator: a new animator instance
func NewAnimator(asset *model.Asset) Animator {
	boneCount := len(asset.Skeleton.Bones)
	a := &animatorImpl{
		asset:        asset,
		state:        animatorIdle,
		activeClip:   model.ClipIDInvalid,
		targetClip:   model.ClipIDInvalid,
		activePose:   asset.Skeleton.NewPose(),
		targetPose:   asset.Skeleton.NewPose(),
		blendedPose:  asset.Skeleton.NewPose(),
		skinMatrices: make([]mgl32.Mat4, boneCount),
	}
	a.composer.Compose(asset.Skeleton, a.activePose, a.skinMatrices)
	return a
}

func (a *animatorImpl) Play(name string, immediate bool) {
	id, ok := a.asset.ClipByName(name)
	if !ok {
		return
	}

	a.state = animatorPlaying
	a.activeClip = id
	a.activeElapsed = 0
	a.targetClip = model.ClipIDInvalid

	if immediate {
		SamplePose(a.asset.Clip(id), a.asset.Skeleton, 0, a.activePose)
		a.composer.Compose(a.asset.Skeleton, a.activePose, a.skinMatrices)
	}
}

func (a *animatorImpl) CrossFade(name string, duration float32) {
	id, ok := a.asset.ClipByName(name)
	if !ok {
		return
	}

	if a.state == animatorIdle {
		a.Play(name, false)
		return
	}
	if id == a.activeClip {
		return
	}

	a.state = animatorTransitioning
	a.targetClip = id
	a.targetElapsed = 0
	a.transitionElapsed = 0
	a.transitionDuration = duration
	if a.transitionDuration < transitionEpsilon {
		a.transitionDuration = transitionEpsilon
	}
}

func (a *animatorImpl) Update(dt float32) {
	switch a.state {
	case animatorIdle:
		return

	case animatorPlaying:
		clip := a.asset.Clip(a.activeClip)
		a.activeElapsed = advanceClipTime(a.activeElapsed, dt, clip)
		SamplePose(clip, a.asset.Skeleton, a.activeElapsed, a.activePose)
		a.composer.Compose(a.asset.Skeleton, a.activePose, a.skinMatrices)

	case animatorTransitioning:
		active := a.asset.Clip(a.activeClip)
		target := a.asset.Clip(a.targetClip)

		a.activeElapsed = advanceClipTime(a.activeElapsed, dt, active)
		a.targetElapsed = advanceClipTime(a.targetElapsed, dt, target)
		a.transitionElapsed += dt
		alpha := common.Clamp01(a.transitionElapsed / a.transitionDuration)

		SamplePose(active, a.asset.Skeleton, a.activeElapsed, a.activePose)
		SamplePose(target, a.asset.Skeleton, a.targetElapsed, a.targetPose)
		BlendPoses(a.blendedPose, a.activePose, a.targetPose, alpha)
		a.composer.Compose(a.asset.Skeleton, a.blendedPose, a.skinMatrices)

		if alpha >= 1 {
			// The target keeps its elapsed time so playback continues in
			// phase instead of snapping back to zero.
			a.state = animatorPlaying
			a.activeClip = a.targetClip
			a.activeElapsed = a.targetElapsed
			a.targetClip = model.ClipIDInvalid
			copy(a.activePose, a.targetPose)
		}
	}
}

func (a *animatorImpl) SkinTransforms() []mgl32.Mat4 {
	return a.skinMatrices
}

func (a *animatorImpl) CurrentPose() model.Pose {
	switch a.state {
	case animatorTransitioning:
		return a.blendedPose
	default:
		return a.activePose
	}
}

func (a *animatorImpl) ActiveClip() model.ClipID {
	return a.activeClip
}

// advanceClipTime advances a clip-local elapsed time by dt: looping clips
// wrap modulo the duration, non-looping clips clamp to [0, duration].
func advanceClipTime(elapsed, dt float32, clip *model.AnimationClip) float32 {
	if clip == nil {
		return 0
	}

	elapsed += dt
	if clip.Loop {
		if elapsed >= clip.Duration {
			elapsed = float32(math.Mod(float64(elapsed), float64(clip.Duration)))
		}
		if elapsed < 0 {
			elapsed = 0
		}
		return elapsed
	}

	if elapsed < 0 {
		return 0
	}
	if elapsed > clip.Duration {
		return clip.Duration
	}
	return elapsed
}
