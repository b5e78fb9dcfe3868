package model

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// --- Transform & Skeleton Types ---

// Transform represents a decomposed transform for animation interpolation.
type Transform struct {
	// Translation is the position offset.
	Translation mgl32.Vec3

	// Rotation is the orientation as a unit quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis.
	Scale mgl32.Vec3
}

// IdentityTransform returns the identity transform (zero translation, identity
// rotation, unit scale).
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Mat4 composes the transform into a local matrix (scale, then rotation, then
// translation).
func (t Transform) Mat4() mgl32.Mat4 {
	m := t.Rotation.Mat4()
	m[0] *= t.Scale.X()
	m[1] *= t.Scale.X()
	m[2] *= t.Scale.X()
	m[4] *= t.Scale.Y()
	m[5] *= t.Scale.Y()
	m[6] *= t.Scale.Y()
	m[8] *= t.Scale.Z()
	m[9] *= t.Scale.Z()
	m[10] *= t.Scale.Z()
	m[12] = t.Translation.X()
	m[13] = t.Translation.Y()
	m[14] = t.Translation.Z()
	return m
}

// Bone represents a single bone in a skeleton hierarchy.
type Bone struct {
	// Name is the bone's identifier (for debugging and animation targeting).
	Name string

	// ParentIndex is the index of the parent bone (-1 for root bones).
	// Parents always precede their children in Skeleton.Bones.
	ParentIndex int32

	// InverseBindMatrix transforms from model space to bone space at bind pose.
	InverseBindMatrix mgl32.Mat4

	// BindTransform is the bone's rest transform relative to its parent.
	BindTransform Transform
}

// Skeleton represents a bone hierarchy for skeletal animation. It is immutable
// after loading; per-frame pose state lives in Pose buffers owned by callers.
type Skeleton struct {
	// Bones is the array of all bones, ordered so parents precede children.
	Bones []Bone

	// RootBoneIndices are indices of bones with no parent.
	RootBoneIndices []int32

	// BoneNameToIndex maps exact bone names to their indices.
	BoneNameToIndex map[string]int32

	// lowerNameToIndex maps lowercased names to indices (first tier of loose
	// matching); normalizedNameToIndex maps canonicalized names (see
	// NormalizeBoneName) for clip targets exported with different naming
	// conventions. First bone wins on collision in both.
	lowerNameToIndex      map[string]int32
	normalizedNameToIndex map[string]int32
}

// BuildNameIndex populates the name lookup tables from Bones. Must be called
// after the bone array is final; loaders do this before returning a skeleton.
func (s *Skeleton) BuildNameIndex() {
	s.BoneNameToIndex = make(map[string]int32, len(s.Bones))
	s.lowerNameToIndex = make(map[string]int32, len(s.Bones))
	s.normalizedNameToIndex = make(map[string]int32, len(s.Bones))
	for i := range s.Bones {
		name := s.Bones[i].Name
		if _, exists := s.BoneNameToIndex[name]; !exists {
			s.BoneNameToIndex[name] = int32(i)
		}
		lower := lowerASCII(name)
		if _, exists := s.lowerNameToIndex[lower]; !exists {
			s.lowerNameToIndex[lower] = int32(i)
		}
		norm := NormalizeBoneName(name)
		if _, exists := s.normalizedNameToIndex[norm]; !exists {
			s.normalizedNameToIndex[norm] = int32(i)
		}
	}
}

// FindBone resolves a bone name to an index using two tiers: an exact
// case-insensitive match first, then a match on normalized names. Returns -1
// if neither tier matches.
//
// Parameters:
//   - name: the bone name to resolve (typically an animation channel target)
//
// Returns:
//   - int32: the bone index, or -1 if not found
func (s *Skeleton) FindBone(name string) int32 {
	if idx, ok := s.BoneNameToIndex[name]; ok {
		return idx
	}
	if idx, ok := s.lowerNameToIndex[lowerASCII(name)]; ok {
		return idx
	}
	if idx, ok := s.normalizedNameToIndex[NormalizeBoneName(name)]; ok {
		return idx
	}
	return -1
}

// BindPose fills pose with every bone's rest transform. pose must have
// len(s.Bones) entries.
func (s *Skeleton) BindPose(pose Pose) {
	for i := range s.Bones {
		pose[i] = s.Bones[i].BindTransform
	}
}

// NewPose allocates a pose buffer sized for this skeleton, initialized to the
// bind pose.
func (s *Skeleton) NewPose() Pose {
	pose := make(Pose, len(s.Bones))
	s.BindPose(pose)
	return pose
}

// Pose is a per-bone local transform buffer, indexed by bone index. Poses are
// preallocated once and overwritten each frame.
type Pose []Transform

// --- Mesh Types ---

// SkinnedVertex is a single vertex with skinning attributes. Joint indices
// are local to the owning MeshPart's BonePalette.
type SkinnedVertex struct {
	// Position is the vertex position in model space at bind pose.
	Position mgl32.Vec3

	// Normal is the vertex normal in model space at bind pose.
	Normal mgl32.Vec3

	// TexCoord is the UV coordinate.
	TexCoord mgl32.Vec2

	// Joints are up to four palette-local bone indices.
	Joints [4]uint16

	// Weights are the influence weights for Joints. They sum to 1.
	Weights [4]float32
}

// Material holds the surface parameters a renderer needs for one mesh part.
type Material struct {
	// Name is the material identifier.
	Name string

	// BaseColor is the RGBA base color factor.
	BaseColor mgl32.Vec4

	// Texture is the decoded base color texture, or nil for untextured parts
	// (renderers treat nil as flat white).
	Texture *image.NRGBA
}

// MeshPart is a renderable subset of the asset's geometry sharing one material
// and one bone palette.
type MeshPart struct {
	// Name is the part identifier.
	Name string

	// Vertices are the skinned vertices.
	Vertices []SkinnedVertex

	// Indices are triangle indices into Vertices.
	Indices []uint32

	// BonePalette maps palette-local joint indices to skeleton bone indices,
	// sorted ascending. Never empty for a skinned part.
	BonePalette []int32

	// Material is the part's surface parameters.
	Material Material

	// BoundingMin is the minimum corner of the axis-aligned bounding box.
	BoundingMin mgl32.Vec3

	// BoundingMax is the maximum corner of the axis-aligned bounding box.
	BoundingMax mgl32.Vec3
}

// --- Asset ---

// Asset is the immutable runtime bundle produced by the loader: one skeleton,
// its mesh parts, and the clip set keyed by interned ClipID.
type Asset struct {
	// Name is the asset identifier (derived from the source file).
	Name string

	// Skeleton is the bone hierarchy.
	Skeleton *Skeleton

	// MeshParts are the renderable mesh subsets.
	MeshParts []MeshPart

	// Clips are all animation clips, indexed by ClipID.
	Clips []*AnimationClip

	clipIDByName map[string]ClipID
}

// InternClips rebuilds the name-to-ClipID table from Clips. Loaders call this
// once after the clip set is final.
func (a *Asset) InternClips() {
	a.clipIDByName = make(map[string]ClipID, len(a.Clips))
	for i, clip := range a.Clips {
		if _, exists := a.clipIDByName[clip.Name]; !exists {
			a.clipIDByName[clip.Name] = ClipID(i)
		}
	}
}

// ClipByName resolves a clip name to its interned ID. This is the only place
// clip names are hashed; per-frame evaluation works in ClipIDs.
//
// Parameters:
//   - name: the clip name
//
// Returns:
//   - ClipID: the clip's ID (only meaningful when found)
//   - bool: true if the clip exists
func (a *Asset) ClipByName(name string) (ClipID, bool) {
	id, ok := a.clipIDByName[name]
	return id, ok
}

// Clip returns the clip for an ID, or nil if the ID is out of range.
func (a *Asset) Clip(id ClipID) *AnimationClip {
	if id < 0 || int(id) >= len(a.Clips) {
		return nil
	}
	return a.Clips[id]
}

// --- Load Diagnostics ---

// LoadReport collects non-fatal diagnostics from a load: references that were
// skipped rather than failing the whole asset.
type LoadReport struct {
	// SkippedChannels counts animation channels whose target could not be
	// resolved to a bone.
	SkippedChannels int

	// SkippedJoints counts vertex joint references outside the skeleton.
	SkippedJoints int

	// GeneratedNormals counts mesh parts whose normals were synthesized from
	// triangle geometry.
	GeneratedNormals int
}
