package loader

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/engine/model"
)

// weightEpsilon is the threshold below which a vertex's total influence
// weight counts as zero and the bone-0 fallback kicks in.
const weightEpsilon = 1e-6

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor
// interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor defines the interface for assembling skinned mesh parts
// from a parsed glTF document. Each primitive becomes one MeshPart with its
// vertex influences remapped onto a compact per-part bone palette.
type gltfMeshExtractor interface {
	// ExtractMeshParts assembles every primitive of every mesh-bearing node
	// into mesh parts. Vertex joint indices are resolved through the node's
	// skin onto skeleton bone indices, then compacted onto a per-part
	// palette.
	//
	// Parameters:
	//   - nodeToBone: node index -> bone index table from the skeleton build
	//   - materials: pre-extracted materials, indexed as in the document
	//   - report: load diagnostics accumulator (must not be nil)
	//
	// Returns:
	//   - []model.MeshPart: the assembled parts
	//   - error: error if assembly fails
	ExtractMeshParts(nodeToBone []int32, materials []model.Material, report *model.LoadReport) ([]model.MeshPart, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

// influenceSet is the 4-slot candidate influence accumulator for one vertex.
// Insertion keeps the 4 largest-weight influences seen so far; on a tie the
// earlier insertion keeps its slot.
type influenceSet struct {
	bones   [4]int32
	weights [4]float32
	used    int
}

// insert adds a (bone, weight) pair, evicting the current minimum-weight slot
// when all four are occupied and the new weight is strictly larger.
func (s *influenceSet) insert(bone int32, weight float32) {
	if s.used < 4 {
		s.bones[s.used] = bone
		s.weights[s.used] = weight
		s.used++
		return
	}

	minSlot := 0
	for i := 1; i < 4; i++ {
		if s.weights[i] < s.weights[minSlot] {
			minSlot = i
		}
	}
	if weight > s.weights[minSlot] {
		s.bones[minSlot] = bone
		s.weights[minSlot] = weight
	}
}

// total returns the sum of the occupied slots' weights.
func (s *influenceSet) total() float32 {
	var sum float32
	for i := 0; i < s.used; i++ {
		sum += s.weights[i]
	}
	return sum
}

func (e *gltfMeshExtractorImpl) ExtractMeshParts(nodeToBone []int32, materials []model.Material, report *model.LoadReport) ([]model.MeshPart, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var parts []model.MeshPart

	for nodeIdx := range doc.Nodes {
		node := &doc.Nodes[nodeIdx]
		if node.Mesh == nil {
			continue
		}
		if *node.Mesh < 0 || *node.Mesh >= len(doc.Meshes) {
			return nil, fmt.Errorf("node %d: mesh index %d out of range", nodeIdx, *node.Mesh)
		}
		mesh := &doc.Meshes[*node.Mesh]

		// JOINTS_0 values index into the node's skin joint list; jointToBone
		// carries them onto skeleton bone indices.
		var jointToBone []int32
		if node.Skin != nil && *node.Skin >= 0 && *node.Skin < len(doc.Skins) {
			skin := &doc.Skins[*node.Skin]
			jointToBone = make([]int32, len(skin.Joints))
			for j, jointNodeIdx := range skin.Joints {
				jointToBone[j] = -1
				if jointNodeIdx >= 0 && jointNodeIdx < len(nodeToBone) {
					jointToBone[j] = nodeToBone[jointNodeIdx]
				}
			}
		}

		for primIdx := range mesh.Primitives {
			part, err := e.assemblePrimitive(mesh, primIdx, jointToBone, materials, report)
			if err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, primIdx, err)
			}
			if part != nil {
				parts = append(parts, *part)
			}
		}
	}

	return parts, nil
}

func (e *gltfMeshExtractorImpl) assemblePrimitive(mesh *gltfMesh, primIdx int, jointToBone []int32, materials []model.Material, report *model.LoadReport) (*model.MeshPart, error) {
	prim := &mesh.Primitives[primIdx]

	mode := gltfPrimitiveModeTriangles
	if prim.Mode != nil {
		mode = *prim.Mode
	}
	if mode != gltfPrimitiveModeTriangles && mode != gltfPrimitiveModeTriangleFan {
		return nil, fmt.Errorf("unsupported primitive mode %d", mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return nil, fmt.Errorf("POSITION: %w", err)
	}
	vertexCount := len(positions)

	var normals [][3]float32
	if accIdx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err = e.parser.ReadVec3Accessor(accIdx)
		if err != nil {
			return nil, fmt.Errorf("NORMAL: %w", err)
		}
	}

	var texCoords [][2]float32
	if accIdx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		texCoords, err = e.parser.ReadVec2Accessor(accIdx)
		if err != nil {
			return nil, fmt.Errorf("TEXCOORD_0: %w", err)
		}
	}

	var joints [][4]uint32
	if accIdx, ok := prim.Attributes["JOINTS_0"]; ok {
		joints, err = e.parser.ReadJointsAccessor(accIdx)
		if err != nil {
			return nil, fmt.Errorf("JOINTS_0: %w", err)
		}
	}

	var weights [][4]float32
	if accIdx, ok := prim.Attributes["WEIGHTS_0"]; ok {
		weights, err = e.parser.ReadVec4Accessor(accIdx)
		if err != nil {
			return nil, fmt.Errorf("WEIGHTS_0: %w", err)
		}
	}

	indices, err := e.primitiveIndices(prim, vertexCount, mode)
	if err != nil {
		return nil, err
	}

	// Phase 1: per-vertex candidate influences on global bone indices.
	influences := make([]influenceSet, vertexCount)
	for v := 0; v < vertexCount; v++ {
		if joints == nil || v >= len(joints) {
			continue
		}
		for slot := 0; slot < 4; slot++ {
			var w float32
			if weights != nil && v < len(weights) {
				w = weights[v][slot]
			}
			if w <= 0 {
				continue
			}

			jointIdx := joints[v][slot]
			bone := int32(-1)
			if int(jointIdx) < len(jointToBone) {
				bone = jointToBone[jointIdx]
			}
			if bone < 0 {
				report.SkippedJoints++
				continue
			}
			influences[v].insert(bone, w)
		}
	}

	// Phase 2: fallback + renormalization, collecting the set of bones
	// actually used with nonzero weight.
	usedBones := make(map[int32]struct{})
	for v := range influences {
		inf := &influences[v]
		total := inf.total()
		if total <= weightEpsilon {
			// No valid influence: rigidly attach to bone 0.
			inf.bones = [4]int32{0, 0, 0, 0}
			inf.weights = [4]float32{1, 0, 0, 0}
			inf.used = 1
			usedBones[0] = struct{}{}
			continue
		}
		for i := 0; i < inf.used; i++ {
			inf.weights[i] /= total
			if inf.weights[i] > 0 {
				usedBones[inf.bones[i]] = struct{}{}
			}
		}
	}

	// Phase 3: compact palette, sorted ascending.
	palette := make([]int32, 0, len(usedBones))
	for bone := range usedBones {
		palette = append(palette, bone)
	}
	sort.Slice(palette, func(i, j int) bool { return palette[i] < palette[j] })
	if len(palette) == 0 {
		palette = []int32{0}
	}
	localIndex := make(map[int32]uint16, len(palette))
	for i, bone := range palette {
		localIndex[bone] = uint16(i)
	}

	// Phase 4: build vertices with palette-local influences. Forced or
	// unused slots map to local 0.
	verts := make([]model.SkinnedVertex, vertexCount)
	boundingMin := mgl32.Vec3{f32Max, f32Max, f32Max}
	boundingMax := mgl32.Vec3{-f32Max, -f32Max, -f32Max}
	for v := 0; v < vertexCount; v++ {
		vert := &verts[v]
		vert.Position = mgl32.Vec3(positions[v])

		vert.Normal = mgl32.Vec3{0, 1, 0}
		if normals != nil && v < len(normals) {
			vert.Normal = mgl32.Vec3(normals[v])
		}
		if texCoords != nil && v < len(texCoords) {
			vert.TexCoord = mgl32.Vec2(texCoords[v])
		}

		inf := &influences[v]
		for slot := 0; slot < inf.used; slot++ {
			if local, ok := localIndex[inf.bones[slot]]; ok {
				vert.Joints[slot] = local
			}
			vert.Weights[slot] = inf.weights[slot]
		}

		for axis := 0; axis < 3; axis++ {
			if vert.Position[axis] < boundingMin[axis] {
				boundingMin[axis] = vert.Position[axis]
			}
			if vert.Position[axis] > boundingMax[axis] {
				boundingMax[axis] = vert.Position[axis]
			}
		}
	}

	if normals == nil && len(indices) >= 3 {
		generateNormals(verts, indices)
		report.GeneratedNormals++
	}

	mat := model.Material{Name: "default", BaseColor: mgl32.Vec4{1, 1, 1, 1}}
	if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(materials) {
		mat = materials[*prim.Material]
	}

	name := mesh.Name
	if name == "" {
		name = fmt.Sprintf("mesh_%d", primIdx)
	} else if len(mesh.Primitives) > 1 {
		name = fmt.Sprintf("%s_%d", name, primIdx)
	}

	return &model.MeshPart{
		Name:        name,
		Vertices:    verts,
		Indices:     indices,
		BonePalette: palette,
		Material:    mat,
		BoundingMin: boundingMin,
		BoundingMax: boundingMax,
	}, nil
}

const f32Max = float32(3.4028234663852886e+38)

// primitiveIndices returns the triangle index buffer: the accessor's data for
// TRIANGLES, a fan expansion from the first vertex for TRIANGLE_FAN, and a
// sequential ramp when no index accessor is present.
func (e *gltfMeshExtractorImpl) primitiveIndices(prim *gltfPrimitive, vertexCount, mode int) ([]uint32, error) {
	var raw []uint32
	if prim.Indices != nil {
		var err error
		raw, err = e.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		raw = make([]uint32, vertexCount)
		for i := range raw {
			raw[i] = uint32(i)
		}
	}

	if mode == gltfPrimitiveModeTriangleFan {
		if len(raw) < 3 {
			return nil, nil
		}
		fan := make([]uint32, 0, (len(raw)-2)*3)
		for i := 1; i+1 < len(raw); i++ {
			fan = append(fan, raw[0], raw[i], raw[i+1])
		}
		return fan, nil
	}

	// TRIANGLES: drop any trailing partial triangle.
	return raw[:len(raw)-len(raw)%3], nil
}

// generateNormals synthesizes per-vertex normals by accumulating face normals
// of every triangle touching the vertex, then normalizing.
func generateNormals(verts []model.SkinnedVertex, indices []uint32) {
	for i := range verts {
		verts[i].Normal = mgl32.Vec3{}
	}

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= len(verts) || int(i1) >= len(verts) || int(i2) >= len(verts) {
			continue
		}
		e1 := verts[i1].Position.Sub(verts[i0].Position)
		e2 := verts[i2].Position.Sub(verts[i0].Position)
		face := e1.Cross(e2)

		verts[i0].Normal = verts[i0].Normal.Add(face)
		verts[i1].Normal = verts[i1].Normal.Add(face)
		verts[i2].Normal = verts[i2].Normal.Add(face)
	}

	for i := range verts {
		if verts[i].Normal.Len() > weightEpsilon {
			verts[i].Normal = verts[i].Normal.Normalize()
		} else {
			verts[i].Normal = mgl32.Vec3{0, 1, 0}
		}
	}
}
