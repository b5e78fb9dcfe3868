package animator

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/engine/model"
)

// poseComposer turns a pose into skin matrices, reusing its model-matrix
// scratch buffer across frames.
type poseComposer struct {
	modelMatrices []mgl32.Mat4
}

// Compose writes one skin matrix per bone into skinMatrices: local matrices
// are built from each bone's transform (scale, then rotation, then
// translation), chained through the parent's model matrix, and multiplied by
// the bone's inverse-bind matrix. Bones are in topological order, so a single
// forward pass suffices. skinMatrices must have one entry per bone.
func (c *poseComposer) Compose(skeleton *model.Skeleton, pose model.Pose, skinMatrices []mgl32.Mat4) {
	boneCount := len(skeleton.Bones)
	if cap(c.modelMatrices) < boneCount {
		c.modelMatrices = make([]mgl32.Mat4, boneCount)
	}
	c.modelMatrices = c.modelMatrices[:boneCount]

	for i := 0; i < boneCount; i++ {
		local := pose[i].Mat4()
		if parent := skeleton.Bones[i].ParentIndex; parent >= 0 {
			c.modelMatrices[i] = c.modelMatrices[parent].Mul4(local)
		} else {
			c.modelMatrices[i] = local
		}
		skinMatrices[i] = c.modelMatrices[i].Mul4(skeleton.Bones[i].InverseBindMatrix)
	}
}
