package animator

import (
	"github.com/rholdorf/nort/common"
	"github.com/rholdorf/nort/engine/model"
)

// BlendPoses writes the per-bone interpolation of two poses into dst:
// translation and scale blend linearly, rotation blends along the shortest
// arc and is renormalized. alpha is expected pre-clamped to [0,1] by the
// caller. All three poses must have the same length; dst may alias a or b.
func BlendPoses(dst, a, b model.Pose, alpha float32) {
	for i := range dst {
		dst[i].Translation = common.LerpVec3(a[i].Translation, b[i].Translation, alpha)
		dst[i].Rotation = common.SlerpShortest(a[i].Rotation, b[i].Rotation, alpha)
		dst[i].Scale = common.LerpVec3(a[i].Scale, b[i].Scale, alpha)
	}
}
