// gltf_types.go contains glTF 2.0 data structures for JSON deserialization.
// These types map directly to the glTF 2.0 JSON schema and are internal to the
// loader package.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html
package loader

// --- glTF Root Structure ---

// gltfDocument represents the root of a glTF JSON document.
type gltfDocument struct {
	// Asset contains metadata about the glTF asset.
	Asset gltfAsset `json:"asset"`

	// Scene is the index of the default scene.
	Scene *int `json:"scene,omitempty"`

	// Scenes is an array of scenes.
	Scenes []gltfScene `json:"scenes,omitempty"`

	// Nodes is an array of nodes (transform hierarchy).
	Nodes []gltfNode `json:"nodes,omitempty"`

	// Meshes is an array of meshes.
	Meshes []gltfMesh `json:"meshes,omitempty"`

	// Accessors define how to interpret buffer data.
	Accessors []gltfAccessor `json:"accessors,omitempty"`

	// BufferViews define portions of buffers.
	BufferViews []gltfBufferView `json:"bufferViews,omitempty"`

	// Buffers are raw binary data containers.
	Buffers []gltfBuffer `json:"buffers,omitempty"`

	// Materials is an array of materials.
	Materials []gltfMaterial `json:"materials,omitempty"`

	// Textures is an array of textures.
	Textures []gltfTexture `json:"textures,omitempty"`

	// Images is an array of images.
	Images []gltfImage `json:"images,omitempty"`

	// Skins is an array of skins (skeletal animation binding).
	Skins []gltfSkin `json:"skins,omitempty"`

	// Animations is an array of animations.
	Animations []gltfAnimation `json:"animations,omitempty"`
}

// gltfAsset contains metadata about the glTF asset.
type gltfAsset struct {
	// Version is the glTF version (required, must be "2.x").
	Version string `json:"version"`

	// Generator is the tool that generated this asset.
	Generator string `json:"generator,omitempty"`
}

// --- Scene Graph ---

// gltfScene is a set of root nodes.
type gltfScene struct {
	// Name is an optional name for this scene.
	Name string `json:"name,omitempty"`

	// Nodes are the indices of root nodes in this scene.
	Nodes []int `json:"nodes,omitempty"`
}

// gltfNode is a node in the node hierarchy.
type gltfNode struct {
	// Name is an optional name for this node.
	Name string `json:"name,omitempty"`

	// Children are indices of child nodes.
	Children []int `json:"children,omitempty"`

	// Mesh is the index of the mesh attached to this node.
	Mesh *int `json:"mesh,omitempty"`

	// Skin is the index of the skin for this node.
	Skin *int `json:"skin,omitempty"`

	// Matrix is a 4x4 transformation matrix (column-major), mutually
	// exclusive with the TRS fields.
	Matrix *[16]float32 `json:"matrix,omitempty"`

	// Translation is the node's translation (x, y, z).
	Translation *[3]float32 `json:"translation,omitempty"`

	// Rotation is the node's rotation as a quaternion (x, y, z, w).
	Rotation *[4]float32 `json:"rotation,omitempty"`

	// Scale is the node's scale (x, y, z).
	Scale *[3]float32 `json:"scale,omitempty"`
}

// --- Mesh Data ---

// gltfMesh is a set of primitives to be rendered.
type gltfMesh struct {
	// Name is an optional name for this mesh.
	Name string `json:"name,omitempty"`

	// Primitives defines the geometry to render.
	Primitives []gltfPrimitive `json:"primitives"`
}

// gltfPrimitive defines geometry for one drawable subset.
type gltfPrimitive struct {
	// Attributes is a map of attribute semantic to accessor index.
	// Standard attributes: POSITION, NORMAL, TEXCOORD_0, JOINTS_0, WEIGHTS_0
	Attributes map[string]int `json:"attributes"`

	// Indices is the accessor index for the index buffer.
	Indices *int `json:"indices,omitempty"`

	// Material is the material index.
	Material *int `json:"material,omitempty"`

	// Mode is the primitive topology.
	Mode *int `json:"mode,omitempty"`
}

// Primitive topology constants (the subset the mesh extractor accepts).
const (
	gltfPrimitiveModeTriangles   = 4
	gltfPrimitiveModeTriangleFan = 6
)

// --- Buffer Data ---

// gltfAccessor defines how to interpret buffer data.
type gltfAccessor struct {
	// Name is an optional name.
	Name string `json:"name,omitempty"`

	// BufferView is the index of the bufferView.
	BufferView *int `json:"bufferView,omitempty"`

	// ByteOffset is the offset within the bufferView.
	ByteOffset int `json:"byteOffset,omitempty"`

	// ComponentType is the data type of components.
	// 5120=BYTE, 5121=UNSIGNED_BYTE, 5122=SHORT, 5123=UNSIGNED_SHORT,
	// 5125=UNSIGNED_INT, 5126=FLOAT
	ComponentType int `json:"componentType"`

	// Normalized indicates integer data rescaled to [0,1] or [-1,1].
	Normalized bool `json:"normalized,omitempty"`

	// Count is the number of elements.
	Count int `json:"count"`

	// Type is the element type (SCALAR, VEC2, VEC3, VEC4, MAT4).
	Type string `json:"type"`

	// Sparse defines sparse storage of accessor values. Only its presence is
	// checked; sparse accessors are rejected by the parser.
	Sparse *gltfAccessorSparse `json:"sparse,omitempty"`
}

// ComponentType constants
const (
	gltfComponentTypeByte          = 5120
	gltfComponentTypeUnsignedByte  = 5121
	gltfComponentTypeShort         = 5122
	gltfComponentTypeUnsignedShort = 5123
	gltfComponentTypeUnsignedInt   = 5125
	gltfComponentTypeFloat         = 5126
)

// AccessorType constants
const (
	gltfAccessorTypeScalar = "SCALAR"
	gltfAccessorTypeVec2   = "VEC2"
	gltfAccessorTypeVec3   = "VEC3"
	gltfAccessorTypeVec4   = "VEC4"
	gltfAccessorTypeMat4   = "MAT4"
)

// gltfAccessorSparse marks sparse storage. The Indices/Values sub-objects are
// never read; encoding/json ignores unknown fields.
type gltfAccessorSparse struct {
	// Count is the number of sparse entries.
	Count int `json:"count"`
}

// gltfBufferView represents a subset of a buffer.
type gltfBufferView struct {
	// Buffer is the index of the buffer.
	Buffer int `json:"buffer"`

	// ByteOffset is the offset into the buffer.
	ByteOffset int `json:"byteOffset,omitempty"`

	// ByteLength is the length of the bufferView.
	ByteLength int `json:"byteLength"`

	// ByteStride is the stride for interleaved data (optional).
	ByteStride *int `json:"byteStride,omitempty"`
}

// gltfBuffer represents binary data.
type gltfBuffer struct {
	// URI is the URI of the buffer data (data: URI or external file).
	URI string `json:"uri,omitempty"`

	// ByteLength is the length of the buffer.
	ByteLength int `json:"byteLength"`

	// Data holds the loaded binary data (not part of JSON, populated during
	// load). For the GLB binary chunk this is a view into the source buffer.
	Data []byte `json:"-"`
}

// --- Materials and Textures ---

// gltfMaterial defines the material appearance of a primitive.
type gltfMaterial struct {
	// Name is an optional name.
	Name string `json:"name,omitempty"`

	// PbrMetallicRoughness is the PBR metallic-roughness model.
	PbrMetallicRoughness *gltfPbrMetallicRoughness `json:"pbrMetallicRoughness,omitempty"`
}

// gltfPbrMetallicRoughness is the metallic-roughness material model. Only the
// base color factor and texture are consumed.
type gltfPbrMetallicRoughness struct {
	// BaseColorFactor is the base color (RGBA).
	BaseColorFactor *[4]float32 `json:"baseColorFactor,omitempty"`

	// BaseColorTexture is the base color texture.
	BaseColorTexture *gltfTextureInfo `json:"baseColorTexture,omitempty"`
}

// gltfTextureInfo references a texture.
type gltfTextureInfo struct {
	// Index is the texture index.
	Index int `json:"index"`
}

// gltfTexture references an image source.
type gltfTexture struct {
	// Source is the image index.
	Source *int `json:"source,omitempty"`
}

// gltfImage is a texture image source.
type gltfImage struct {
	// Name is an optional name.
	Name string `json:"name,omitempty"`

	// URI is the image URI (data: URI or external file).
	URI string `json:"uri,omitempty"`

	// MimeType is the MIME type when embedded in a bufferView.
	MimeType string `json:"mimeType,omitempty"`

	// BufferView is the index of the bufferView containing the image.
	BufferView *int `json:"bufferView,omitempty"`
}

// --- Skeletal Animation ---

// gltfSkin defines how a mesh is deformed by a skeleton.
type gltfSkin struct {
	// Name is an optional name.
	Name string `json:"name,omitempty"`

	// InverseBindMatrices is the accessor index for the inverse bind matrices.
	InverseBindMatrices *int `json:"inverseBindMatrices,omitempty"`

	// Joints are the node indices of the skeleton joints (bones).
	Joints []int `json:"joints"`
}

// gltfAnimation defines keyframe animation.
type gltfAnimation struct {
	// Name is an optional name.
	Name string `json:"name,omitempty"`

	// Channels connect samplers to target nodes/properties.
	Channels []gltfAnimChannel `json:"channels"`

	// Samplers define the keyframe data.
	Samplers []gltfAnimSampler `json:"samplers"`
}

// gltfAnimChannel connects a sampler to a target.
type gltfAnimChannel struct {
	// Sampler is the sampler index.
	Sampler int `json:"sampler"`

	// Target specifies what to animate.
	Target gltfAnimTarget `json:"target"`
}

// gltfAnimTarget specifies the animated property.
type gltfAnimTarget struct {
	// Node is the target node index.
	Node *int `json:"node,omitempty"`

	// Path is the animated property: "translation", "rotation", "scale",
	// or "weights" (morph targets, not supported).
	Path string `json:"path"`
}

// gltfAnimSampler defines animation keyframe data.
type gltfAnimSampler struct {
	// Input is the accessor index for keyframe times.
	Input int `json:"input"`

	// Output is the accessor index for keyframe values.
	Output int `json:"output"`

	// Interpolation mode: "LINEAR" (default), "STEP", "CUBICSPLINE".
	Interpolation string `json:"interpolation,omitempty"`
}

// Animation interpolation constants
const (
	gltfAnimInterpolationCubicSpline = "CUBICSPLINE"
)

// Animation path constants
const (
	gltfAnimPathTranslation = "translation"
	gltfAnimPathRotation    = "rotation"
	gltfAnimPathScale       = "scale"
)

// --- GLB Binary Format ---

// gltfGLBHeader is the header of a GLB file (12 bytes).
type gltfGLBHeader struct {
	Magic   uint32 // Must be 0x46546C67 ("glTF" in ASCII)
	Version uint32 // Must be 2
	Length  uint32 // Total file length
}

// gltfGLBChunkHeader is the header of a GLB chunk (8 bytes).
type gltfGLBChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32
}

// GLB magic number and chunk type constants
const (
	gltfGLBMagic     = 0x46546C67 // "glTF" in little-endian ASCII
	gltfGLBVersion   = 2
	gltfGLBChunkJSON = 0x4E4F534A // "JSON" in little-endian ASCII
	gltfGLBChunkBIN  = 0x004E4942 // "BIN\0" in little-endian ASCII
)
