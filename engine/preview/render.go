package preview

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/engine/model"
)

// rendererImpl is the implementation of the Renderer interface.
type rendererImpl struct {
	size        int
	supersample int
	light       lightConfig
}

// Renderer draws a skinned asset into an NRGBA image with a fixed
// orthographic front view: vertices are skinned on the CPU with the given
// skin matrices, auto-fitted to the frame, and flat-shaded. One Renderer can
// be reused across frames and assets.
type Renderer interface {
	// RenderFrame skins and rasterizes the asset's mesh parts under the
	// given skin matrices (one per skeleton bone, as produced by an
	// Animator). Passing nil matrices draws the bind pose.
	//
	// Parameters:
	//   - asset: the asset to draw
	//   - skinMatrices: per-bone skin matrices, or nil for bind pose
	//
	// Returns:
	//   - *image.NRGBA: the rendered frame at the configured output size
	RenderFrame(asset *model.Asset, skinMatrices []mgl32.Mat4) *image.NRGBA
}

var _ Renderer = &rendererImpl{}

// RendererOption configures a Renderer.
type RendererOption func(*rendererImpl)

// WithSize sets the output image size in pixels (square). Defaults to 256.
func WithSize(size int) RendererOption {
	return func(r *rendererImpl) {
		if size > 0 {
			r.size = size
		}
	}
}

// WithSupersample sets the supersampling factor used before the final
// downscale. Defaults to 2.
func WithSupersample(factor int) RendererOption {
	return func(r *rendererImpl) {
		if factor > 0 {
			r.supersample = factor
		}
	}
}

// NewRenderer creates a preview Renderer.
//
// Parameters:
//   - options: optional configuration
//
// Returns:
//   - Renderer: a new renderer instance
func NewRenderer(options ...RendererOption) Renderer {
	r := &rendererImpl{
		size:        256,
		supersample: 2,
		light:       defaultLightConfig(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *rendererImpl) RenderFrame(asset *model.Asset, skinMatrices []mgl32.Mat4) *image.NRGBA {
	renderSize := r.size * r.supersample

	skinned := make([][]mgl32.Vec3, len(asset.MeshParts))
	for p := range asset.MeshParts {
		skinned[p] = skinPart(&asset.MeshParts[p], skinMatrices)
	}

	minB, maxB, ok := bounds(skinned)
	if !ok {
		return image.NewNRGBA(image.Rect(0, 0, r.size, r.size))
	}

	center := minB.Add(maxB).Mul(0.5)
	span := math.Max(float64(maxB.X()-minB.X()), float64(maxB.Y()-minB.Y()))
	if span < 1e-3 {
		span = 1e-3
	}
	margin := 16 * r.supersample
	scale := float64(renderSize-2*margin) / span
	half := float64(renderSize) / 2

	fb := newFrameBuffer(renderSize, renderSize)

	for p := range asset.MeshParts {
		part := &asset.MeshParts[p]
		verts := skinned[p]
		if len(verts) == 0 {
			continue
		}

		px := make([]float64, len(verts))
		py := make([]float64, len(verts))
		pz := make([]float64, len(verts))
		uv := make([][2]float64, len(verts))
		for i, v := range verts {
			px[i] = (float64(v.X()-center.X()))*scale + half
			// Screen y grows downward.
			py[i] = half - (float64(v.Y()-center.Y()))*scale
			pz[i] = float64(v.Z()-center.Z()) * scale
			uv[i] = [2]float64{float64(part.Vertices[i].TexCoord.X()), float64(part.Vertices[i].TexCoord.Y())}
		}

		base := part.Material.BaseColor
		tex := part.Material.Texture

		for i := 0; i+2 < len(part.Indices); i += 3 {
			i0, i1, i2 := int(part.Indices[i]), int(part.Indices[i+1]), int(part.Indices[i+2])
			if i0 >= len(verts) || i1 >= len(verts) || i2 >= len(verts) {
				continue
			}
			rasterizeTriangle(fb, px, py, pz, uv, i0, i1, i2, tex,
				float64(base.X()), float64(base.Y()), float64(base.Z()), float64(base.W()), &r.light)
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, renderSize, renderSize))
	copy(img.Pix, fb.color)
	return Downsample(img, r.size)
}

// skinPart applies CPU linear-blend skinning to a part's vertices. Joint
// indices are palette-local; skinMatrices nil means bind pose, which under
// this pipeline's conventions is the untransformed vertex.
func skinPart(part *model.MeshPart, skinMatrices []mgl32.Mat4) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(part.Vertices))
	if skinMatrices == nil {
		for i := range part.Vertices {
			out[i] = part.Vertices[i].Position
		}
		return out
	}

	for i := range part.Vertices {
		vert := &part.Vertices[i]
		p := mgl32.Vec4{vert.Position.X(), vert.Position.Y(), vert.Position.Z(), 1}

		var acc mgl32.Vec4
		for slot := 0; slot < 4; slot++ {
			w := vert.Weights[slot]
			if w == 0 {
				continue
			}
			bone := part.BonePalette[vert.Joints[slot]]
			if int(bone) >= len(skinMatrices) {
				continue
			}
			acc = acc.Add(skinMatrices[bone].Mul4x1(p).Mul(w))
		}
		out[i] = acc.Vec3()
	}
	return out
}

// bounds returns the min and max corners over all skinned vertices.
func bounds(parts [][]mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3, bool) {
	minB := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	maxB := minB.Mul(-1)
	any := false
	for _, verts := range parts {
		for _, v := range verts {
			any = true
			for k := 0; k < 3; k++ {
				if v[k] < minB[k] {
					minB[k] = v[k]
				}
				if v[k] > maxB[k] {
					maxB[k] = v[k]
				}
			}
		}
	}
	return minB, maxB, any
}
