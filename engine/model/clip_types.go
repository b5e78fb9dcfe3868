package model

import "github.com/go-gl/mathgl/mgl32"

// ClipID is the interned identity of a clip within an Asset. IDs are dense
// indices assigned at load time; playback code passes ClipIDs, never names.
type ClipID int32

// ClipIDInvalid marks the absence of a clip.
const ClipIDInvalid ClipID = -1

// MinClipDuration is the floor for clip durations. Degenerate single-key or
// zero-length clips are clamped up so time wrapping never divides by zero.
const MinClipDuration float32 = 1e-4

// VectorKeyframe stores a 3D vector value at a specific time.
type VectorKeyframe struct {
	// Time is the keyframe timestamp in seconds.
	Time float32

	// Value is the 3D vector value at this keyframe.
	Value mgl32.Vec3
}

// QuaternionKeyframe stores a unit quaternion rotation at a specific time.
type QuaternionKeyframe struct {
	// Time is the keyframe timestamp in seconds.
	Time float32

	// Value is the quaternion value at this keyframe.
	Value mgl32.Quat
}

// BoneTrack contains the keyframe data animating a single bone. Any of the
// three key slices may be empty, in which case that component holds the bone's
// bind value during sampling.
type BoneTrack struct {
	// BoneIndex is the skeleton bone this track animates.
	BoneIndex int32

	// PositionKeys are keyframes for translation, sorted by time.
	PositionKeys []VectorKeyframe

	// RotationKeys are keyframes for rotation, sorted by time.
	RotationKeys []QuaternionKeyframe

	// ScaleKeys are keyframes for scale, sorted by time.
	ScaleKeys []VectorKeyframe
}

// TrackSet stores a clip's bone tracks sparsely: a dense track slice plus a
// presence bitmask indexed by bone. Most clips animate a fraction of the
// skeleton, so per-bone nil checks are replaced with a single bit probe.
type TrackSet struct {
	tracks  []BoneTrack
	trackOf []int32  // bone index -> position in tracks, only valid when the bit is set
	bits    []uint64 // one bit per bone
}

// NewTrackSet creates an empty track set sized for boneCount bones.
func NewTrackSet(boneCount int) *TrackSet {
	return &TrackSet{
		trackOf: make([]int32, boneCount),
		bits:    make([]uint64, (boneCount+63)/64),
	}
}

// Put adds or replaces the track for track.BoneIndex. Out-of-range bone
// indices are ignored.
func (ts *TrackSet) Put(track BoneTrack) {
	bone := int(track.BoneIndex)
	if bone < 0 || bone >= len(ts.trackOf) {
		return
	}
	if ts.Has(track.BoneIndex) {
		ts.tracks[ts.trackOf[bone]] = track
		return
	}
	ts.trackOf[bone] = int32(len(ts.tracks))
	ts.tracks = append(ts.tracks, track)
	ts.bits[bone/64] |= 1 << (bone % 64)
}

// Has reports whether a track exists for the given bone.
func (ts *TrackSet) Has(boneIndex int32) bool {
	bone := int(boneIndex)
	if bone < 0 || bone >= len(ts.trackOf) {
		return false
	}
	return ts.bits[bone/64]&(1<<(bone%64)) != 0
}

// Track returns the track for a bone. Only valid when Has returned true.
func (ts *TrackSet) Track(boneIndex int32) *BoneTrack {
	return &ts.tracks[ts.trackOf[boneIndex]]
}

// Len returns the number of tracks in the set.
func (ts *TrackSet) Len() int {
	return len(ts.tracks)
}

// Tracks returns the dense track slice, in insertion order.
func (ts *TrackSet) Tracks() []BoneTrack {
	return ts.tracks
}

// AnimationClip represents a single animation (walk, run, attack, etc.).
// Clips are immutable after loading and safe to share across animators.
type AnimationClip struct {
	// Name is the animation identifier.
	Name string

	// Duration is the total length of the animation in seconds, always at
	// least MinClipDuration.
	Duration float32

	// Loop indicates whether playback wraps at Duration (true) or clamps at
	// the final pose (false).
	Loop bool

	// Tracks holds the per-bone keyframe data.
	Tracks *TrackSet
}
