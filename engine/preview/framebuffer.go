// Package preview renders skinned assets to images on the CPU: a z-buffered
// flat-shaded rasterizer over the animator's skin matrices, with supersampled
// output downscaled and encoded as WebP. It exists for headless snapshots and
// debugging; it is not a real-time renderer.
package preview

import "math"

// frameBuffer is the render target, held as flat slices for cache locality.
type frameBuffer struct {
	width  int
	height int
	color  []uint8   // RGBA interleaved, len = w*h*4
	depth  []float64 // per-pixel depth, initialized to -inf, larger is closer
}

func newFrameBuffer(w, h int) *frameBuffer {
	n := w * h
	depth := make([]float64, n)
	for i := range depth {
		depth[i] = math.Inf(-1)
	}
	return &frameBuffer{
		width:  w,
		height: h,
		color:  make([]uint8, n*4),
		depth:  depth,
	}
}
