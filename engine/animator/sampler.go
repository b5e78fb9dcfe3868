// Package animator evaluates animation clips into per-frame poses and skin
// matrices: sampling, blending, composition, and the clip state machine that
// drives them. Everything here is single-threaded by design; each Animator
// owns its working buffers exclusively.
package animator

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/common"
	"github.com/rholdorf/nort/engine/model"
)

// timeSpanEpsilon guards interpolation against degenerate key brackets whose
// time span is effectively zero.
const timeSpanEpsilon = 1e-8

// SamplePose evaluates a clip at the given time into pose. The pose is first
// reset to the skeleton's bind pose, so bones without a track (and curves
// without keys) keep their bind values. pose must have one entry per bone.
//
// Parameters:
//   - clip: the clip to sample (nil leaves the bind pose)
//   - skeleton: the skeleton the clip was resolved against
//   - time: the clip-local sample time in seconds
//   - pose: the output pose buffer
func SamplePose(clip *model.AnimationClip, skeleton *model.Skeleton, time float32, pose model.Pose) {
	skeleton.BindPose(pose)
	if clip == nil {
		return
	}

	for _, track := range clip.Tracks.Tracks() {
		if int(track.BoneIndex) >= len(pose) {
			continue
		}
		transform := &pose[track.BoneIndex]

		if len(track.PositionKeys) > 0 {
			transform.Translation = sampleVec3(track.PositionKeys, time)
		}
		if len(track.RotationKeys) > 0 {
			transform.Rotation = sampleQuat(track.RotationKeys, time)
		}
		if len(track.ScaleKeys) > 0 {
			transform.Scale = sampleVec3(track.ScaleKeys, time)
		}
	}
}

// sampleVec3 samples a vector curve: one key is a constant, otherwise a
// linear scan finds the bracketing pair (clamped to the first and last
// brackets) and the values are linearly interpolated. Key counts are small
// and the scan is cache-friendly, so no binary search.
func sampleVec3(keys []model.VectorKeyframe, time float32) mgl32.Vec3 {
	if len(keys) == 1 {
		return keys[0].Value
	}

	k := len(keys) - 2
	for i := 0; i < len(keys)-2; i++ {
		if time < keys[i+1].Time {
			k = i
			break
		}
	}

	span := keys[k+1].Time - keys[k].Time
	if span <= timeSpanEpsilon {
		return keys[k].Value
	}
	alpha := common.Clamp01((time - keys[k].Time) / span)
	return common.LerpVec3(keys[k].Value, keys[k+1].Value, alpha)
}

// sampleQuat is sampleVec3 for rotation curves, with shortest-arc spherical
// interpolation and renormalization.
func sampleQuat(keys []model.QuaternionKeyframe, time float32) mgl32.Quat {
	if len(keys) == 1 {
		return keys[0].Value
	}

	k := len(keys) - 2
	for i := 0; i < len(keys)-2; i++ {
		if time < keys[i+1].Time {
			k = i
			break
		}
	}

	span := keys[k+1].Time - keys[k].Time
	if span <= timeSpanEpsilon {
		return keys[k].Value
	}
	alpha := common.Clamp01((time - keys[k].Time) / span)
	return common.SlerpShortest(keys[k].Value, keys[k+1].Value, alpha)
}
