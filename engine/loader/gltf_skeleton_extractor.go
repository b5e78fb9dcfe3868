package loader

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/common"
	"github.com/rholdorf/nort/engine/model"
)

// InverseBindSource selects how a bone's inverse-bind matrix is derived.
type InverseBindSource int

const (
	// InverseBindHierarchy derives inverse-bind matrices by inverting the
	// bind-global matrix computed from the node hierarchy. This is the
	// default: it is always consistent with the evaluator's own composition
	// conventions.
	InverseBindHierarchy InverseBindSource = iota

	// InverseBindAccessor takes inverse-bind matrices from the document's
	// skin data where present, falling back to the hierarchy-derived matrix
	// for joints without one.
	InverseBindAccessor
)

// gltfSkeletonExtractorImpl is the implementation of the
// gltfSkeletonExtractor interface.
type gltfSkeletonExtractorImpl struct {
	parser     gltfParser
	bindSource InverseBindSource
}

// gltfSkeletonExtractor defines the interface for building a skeleton from a
// parsed glTF document. The whole node hierarchy becomes the skeleton, in an
// order where parents always precede children, so that the evaluator can
// compose model-space matrices in a single forward pass.
type gltfSkeletonExtractor interface {
	// ExtractSkeleton builds the skeleton from the document's node array.
	//
	// Returns:
	//   - *model.Skeleton: the skeleton, bones in topological order
	//   - []int32: node index -> bone index table (length = node count)
	//   - error: error if extraction fails
	ExtractSkeleton() (*model.Skeleton, []int32, error)
}

var _ gltfSkeletonExtractor = &gltfSkeletonExtractorImpl{}

// newGLTFSkeletonExtractor creates a new skeleton extractor for a parsed
// document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//   - bindSource: how inverse-bind matrices are derived
//
// Returns:
//   - gltfSkeletonExtractor: the skeleton extractor
func newGLTFSkeletonExtractor(parser gltfParser, bindSource InverseBindSource) gltfSkeletonExtractor {
	return &gltfSkeletonExtractorImpl{parser: parser, bindSource: bindSource}
}

func (e *gltfSkeletonExtractorImpl) ExtractSkeleton() (*model.Skeleton, []int32, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, nil, fmt.Errorf("no document loaded")
	}

	nodeCount := len(doc.Nodes)

	// Parent pointers by reverse child lookup. First parent wins; a child
	// listed under two nodes keeps the first.
	parentOfNode := make([]int32, nodeCount)
	for i := range parentOfNode {
		parentOfNode[i] = -1
	}
	for nodeIdx := range doc.Nodes {
		for _, childIdx := range doc.Nodes[nodeIdx].Children {
			if childIdx < 0 || childIdx >= nodeCount {
				continue
			}
			if parentOfNode[childIdx] == -1 {
				parentOfNode[childIdx] = int32(nodeIdx)
			}
		}
	}

	visitOrder := e.visitOrder(doc, parentOfNode)

	// Bone index = position in the visiting order.
	nodeToBone := make([]int32, nodeCount)
	for i := range nodeToBone {
		nodeToBone[i] = -1
	}
	for boneIdx, nodeIdx := range visitOrder {
		nodeToBone[nodeIdx] = int32(boneIdx)
	}

	bones := make([]model.Bone, len(visitOrder))
	bindGlobals := make([]mgl32.Mat4, len(visitOrder))
	var rootBoneIndices []int32

	for boneIdx, nodeIdx := range visitOrder {
		node := &doc.Nodes[nodeIdx]
		bone := &bones[boneIdx]

		bone.Name = node.Name
		if bone.Name == "" {
			bone.Name = fmt.Sprintf("node_%d", nodeIdx)
		}

		// A parent that the traversal emits at or after this bone means the
		// child graph is cyclic at this node; the bone becomes a root so
		// that parents always precede children.
		bone.ParentIndex = -1
		if p := parentOfNode[nodeIdx]; p >= 0 {
			if parentBone := nodeToBone[p]; parentBone >= 0 && parentBone < int32(boneIdx) {
				bone.ParentIndex = parentBone
			}
		}
		if bone.ParentIndex < 0 {
			rootBoneIndices = append(rootBoneIndices, int32(boneIdx))
		}

		bone.BindTransform = gltfExtractNodeTransform(node)

		// Parent bones are visited first, so the parent's bind-global is
		// already computed.
		local := bone.BindTransform.Mat4()
		if bone.ParentIndex >= 0 {
			bindGlobals[boneIdx] = bindGlobals[bone.ParentIndex].Mul4(local)
		} else {
			bindGlobals[boneIdx] = local
		}
		bone.InverseBindMatrix = bindGlobals[boneIdx].Inv()
	}

	if e.bindSource == InverseBindAccessor {
		if err := e.applyAccessorBindMatrices(doc, bones, nodeToBone); err != nil {
			return nil, nil, err
		}
	}

	skeleton := &model.Skeleton{
		Bones:           bones,
		RootBoneIndices: rootBoneIndices,
	}
	skeleton.BuildNameIndex()

	return skeleton, nodeToBone, nil
}

// visitOrder computes the bone visiting order: declared scene roots first,
// then remaining un-parented nodes, then any still-unvisited nodes. Children
// are pushed onto an explicit stack; a visited marker guarantees each node is
// emitted at most once, which also breaks cycles in the child graph (the
// second occurrence of a node is dropped).
func (e *gltfSkeletonExtractorImpl) visitOrder(doc *gltfDocument, parentOfNode []int32) []int {
	nodeCount := len(doc.Nodes)
	visited := make([]bool, nodeCount)
	order := make([]int, 0, nodeCount)

	stack := make([]int, 0, nodeCount)
	push := func(nodeIdx int) {
		if nodeIdx < 0 || nodeIdx >= nodeCount {
			return
		}
		stack = append(stack, nodeIdx)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[idx] {
				continue
			}
			visited[idx] = true
			order = append(order, idx)

			// Push children in reverse so they pop in declaration order.
			children := doc.Nodes[idx].Children
			for c := len(children) - 1; c >= 0; c-- {
				child := children[c]
				if child >= 0 && child < nodeCount && !visited[child] {
					stack = append(stack, child)
				}
			}
		}
	}

	for _, scene := range doc.Scenes {
		for _, rootIdx := range scene.Nodes {
			push(rootIdx)
		}
	}
	for nodeIdx := 0; nodeIdx < nodeCount; nodeIdx++ {
		if parentOfNode[nodeIdx] == -1 {
			push(nodeIdx)
		}
	}
	for nodeIdx := 0; nodeIdx < nodeCount; nodeIdx++ {
		push(nodeIdx)
	}

	return order
}

// applyAccessorBindMatrices overwrites hierarchy-derived inverse-bind
// matrices with the skins' explicit per-joint matrices where present.
func (e *gltfSkeletonExtractorImpl) applyAccessorBindMatrices(doc *gltfDocument, bones []model.Bone, nodeToBone []int32) error {
	for skinIdx := range doc.Skins {
		skin := &doc.Skins[skinIdx]
		if skin.InverseBindMatrices == nil {
			continue
		}

		matrices, err := e.parser.ReadMat4Accessor(*skin.InverseBindMatrices)
		if err != nil {
			return fmt.Errorf("skin %d: failed to read inverse bind matrices: %w", skinIdx, err)
		}

		for jointIdx, nodeIdx := range skin.Joints {
			if jointIdx >= len(matrices) {
				break
			}
			if nodeIdx < 0 || nodeIdx >= len(nodeToBone) {
				continue
			}
			boneIdx := nodeToBone[nodeIdx]
			if boneIdx < 0 {
				continue
			}
			bones[boneIdx].InverseBindMatrix = mgl32.Mat4(matrices[jointIdx])
		}
	}
	return nil
}

// gltfExtractNodeTransform extracts the TRS transform from a glTF node,
// decomposing the matrix form when present. A degenerate matrix decomposes to
// the identity transform.
func gltfExtractNodeTransform(node *gltfNode) model.Transform {
	if node.Matrix != nil {
		t, r, s := common.DecomposeTRS(mgl32.Mat4(*node.Matrix))
		return model.Transform{Translation: t, Rotation: r, Scale: s}
	}

	transform := model.IdentityTransform()
	if node.Translation != nil {
		transform.Translation = mgl32.Vec3(*node.Translation)
	}
	if node.Rotation != nil {
		q := *node.Rotation
		transform.Rotation = mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}.Normalize()
	}
	if node.Scale != nil {
		transform.Scale = mgl32.Vec3(*node.Scale)
	}
	return transform
}
