package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/engine/model"
)

// errNoAnimations is returned when a document expected to carry clip data
// has none.
var errNoAnimations = errors.New("document contains no animations")

// gltfClipExtractorImpl is the implementation of the gltfClipExtractor
// interface.
type gltfClipExtractorImpl struct {
	parser gltfParser
}

// gltfClipExtractor defines the interface for building animation clips from a
// parsed glTF document. Channel targets are resolved against the model
// skeleton by bone name, so clips may come from separate documents whose node
// indices do not line up with the model's.
type gltfClipExtractor interface {
	// ExtractClips builds one clip per animation in the document. A clip
	// whose channels all fail to resolve is still a valid all-bind-pose
	// clip; unresolvable channels are skipped and counted in report.
	//
	// Parameters:
	//   - skeleton: the skeleton clip targets resolve against
	//   - loopOverrides: per-clip-name loop flag overrides (may be nil)
	//   - report: load diagnostics accumulator (must not be nil)
	//
	// Returns:
	//   - []*model.AnimationClip: the clips, in document order
	//   - error: error if extraction fails
	ExtractClips(skeleton *model.Skeleton, loopOverrides map[string]bool, report *model.LoadReport) ([]*model.AnimationClip, error)
}

var _ gltfClipExtractor = &gltfClipExtractorImpl{}

// newGLTFClipExtractor creates a new clip extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfClipExtractor: the clip extractor
func newGLTFClipExtractor(parser gltfParser) gltfClipExtractor {
	return &gltfClipExtractorImpl{parser: parser}
}

func (e *gltfClipExtractorImpl) ExtractClips(skeleton *model.Skeleton, loopOverrides map[string]bool, report *model.LoadReport) ([]*model.AnimationClip, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	clips := make([]*model.AnimationClip, 0, len(doc.Animations))
	for animIdx := range doc.Animations {
		clip, err := e.extractClip(doc, animIdx, skeleton, loopOverrides, report)
		if err != nil {
			return nil, fmt.Errorf("animation %d: %w", animIdx, err)
		}
		clips = append(clips, clip)
	}

	return clips, nil
}

func (e *gltfClipExtractorImpl) extractClip(doc *gltfDocument, animIdx int, skeleton *model.Skeleton, loopOverrides map[string]bool, report *model.LoadReport) (*model.AnimationClip, error) {
	anim := &doc.Animations[animIdx]

	name := anim.Name
	if name == "" {
		name = fmt.Sprintf("animation_%d", animIdx)
	}

	tracks := model.NewTrackSet(len(skeleton.Bones))
	var duration float32

	for chanIdx := range anim.Channels {
		channel := &anim.Channels[chanIdx]

		boneIdx := e.resolveChannelTarget(doc, channel, skeleton)
		if boneIdx < 0 {
			report.SkippedChannels++
			continue
		}
		if channel.Sampler < 0 || channel.Sampler >= len(anim.Samplers) {
			report.SkippedChannels++
			continue
		}
		sampler := &anim.Samplers[channel.Sampler]

		times, err := e.parser.ReadScalarAccessor(sampler.Input)
		if err != nil {
			return nil, fmt.Errorf("channel %d input: %w", chanIdx, err)
		}
		if len(times) > 0 && times[len(times)-1] > duration {
			duration = times[len(times)-1]
		}

		cubic := sampler.Interpolation == gltfAnimInterpolationCubicSpline

		// STEP is intentionally not distinguished from LINEAR.
		var track model.BoneTrack
		if tracks.Has(boneIdx) {
			track = *tracks.Track(boneIdx)
		}
		track.BoneIndex = boneIdx

		switch channel.Target.Path {
		case gltfAnimPathTranslation:
			values, err := e.readVec3Keys(sampler.Output, times, cubic)
			if err != nil {
				return nil, fmt.Errorf("channel %d translation: %w", chanIdx, err)
			}
			track.PositionKeys = values
		case gltfAnimPathRotation:
			values, err := e.readQuatKeys(sampler.Output, times, cubic)
			if err != nil {
				return nil, fmt.Errorf("channel %d rotation: %w", chanIdx, err)
			}
			track.RotationKeys = values
		case gltfAnimPathScale:
			values, err := e.readVec3Keys(sampler.Output, times, cubic)
			if err != nil {
				return nil, fmt.Errorf("channel %d scale: %w", chanIdx, err)
			}
			track.ScaleKeys = values
		default:
			// Morph weights and unknown paths are not supported.
			report.SkippedChannels++
			continue
		}

		tracks.Put(track)
	}

	if duration < model.MinClipDuration {
		duration = model.MinClipDuration
	}

	loop := clipLoopDefault(name)
	if loopOverrides != nil {
		if v, ok := loopOverrides[name]; ok {
			loop = v
		}
	}

	return &model.AnimationClip{
		Name:     name,
		Duration: duration,
		Loop:     loop,
		Tracks:   tracks,
	}, nil
}

// resolveChannelTarget maps a channel's target node onto a skeleton bone by
// name, using the skeleton's two-tier resolution. Returns -1 when the target
// is absent or unresolvable.
func (e *gltfClipExtractorImpl) resolveChannelTarget(doc *gltfDocument, channel *gltfAnimChannel, skeleton *model.Skeleton) int32 {
	if channel.Target.Node == nil {
		return -1
	}
	nodeIdx := *channel.Target.Node
	if nodeIdx < 0 || nodeIdx >= len(doc.Nodes) {
		return -1
	}

	nodeName := doc.Nodes[nodeIdx].Name
	if nodeName == "" {
		// Matches the skeleton builder's synthesized names, so unnamed rigs
		// from the same export still resolve.
		nodeName = fmt.Sprintf("node_%d", nodeIdx)
	}

	return skeleton.FindBone(nodeName)
}

// readVec3Keys reads a sampler output as vec3 keyframes, collapsing the
// CUBICSPLINE triplet (in-tangent, value, out-tangent) to its value entry.
func (e *gltfClipExtractorImpl) readVec3Keys(accessorIndex int, times []float32, cubic bool) ([]model.VectorKeyframe, error) {
	values, err := e.parser.ReadVec3Accessor(accessorIndex)
	if err != nil {
		return nil, err
	}
	if cubic {
		values = collapseCubic(values)
	}

	count := min(len(times), len(values))
	keys := make([]model.VectorKeyframe, count)
	for i := 0; i < count; i++ {
		keys[i] = model.VectorKeyframe{Time: times[i], Value: mgl32.Vec3(values[i])}
	}
	return keys, nil
}

// readQuatKeys reads a sampler output as quaternion keyframes, collapsing
// CUBICSPLINE triplets and renormalizing every value after decode.
func (e *gltfClipExtractorImpl) readQuatKeys(accessorIndex int, times []float32, cubic bool) ([]model.QuaternionKeyframe, error) {
	values, err := e.parser.ReadVec4Accessor(accessorIndex)
	if err != nil {
		return nil, err
	}
	if cubic {
		values = collapseCubic(values)
	}

	count := min(len(times), len(values))
	keys := make([]model.QuaternionKeyframe, count)
	for i := 0; i < count; i++ {
		v := values[i]
		q := mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
		if q.Len() > 0 {
			q = q.Normalize()
		} else {
			q = mgl32.QuatIdent()
		}
		keys[i] = model.QuaternionKeyframe{Time: times[i], Value: q}
	}
	return keys, nil
}

// collapseCubic keeps the middle (value) entry of each CUBICSPLINE
// (in-tangent, value, out-tangent) triplet. Tangent data is discarded; the
// sampler interpolates linearly between the retained values.
func collapseCubic[T any](values []T) []T {
	collapsed := make([]T, 0, len(values)/3)
	for i := 1; i < len(values); i += 3 {
		collapsed = append(collapsed, values[i])
	}
	return collapsed
}

// clipLoopDefault derives the default loop flag from the clip name: action
// clips like "bash" play once, everything else loops. Load options can
// override this per clip.
func clipLoopDefault(name string) bool {
	return !strings.EqualFold(name, "bash")
}
