package preview

import (
	"image"
	"math"
)

// rasterizeTriangle draws one flat-shaded triangle with z-buffering. px/py/pz
// are screen-space vertex coordinates; uv holds per-vertex texture
// coordinates (ignored when tex is nil). baseR..baseA is the material base
// color, modulated by the texel when a texture is present.
//
// Hot path: no allocations in the pixel loop.
func rasterizeTriangle(
	fb *frameBuffer,
	px, py, pz []float64,
	uv [][2]float64,
	i0, i1, i2 int,
	tex *image.NRGBA,
	baseR, baseG, baseB, baseA float64,
	lc *lightConfig,
) {
	x0, y0, z0 := px[i0], py[i0], pz[i0]
	x1, y1, z1 := px[i1], py[i1], pz[i1]
	x2, y2, z2 := px[i2], py[i2], pz[i2]

	// Face normal for flat shading.
	e1x, e1y, e1z := x1-x0, y1-y0, z1-z0
	e2x, e2y, e2z := x2-x0, y2-y0, z2-z0
	nx := e1y*e2z - e1z*e2y
	ny := e1z*e2x - e1x*e2z
	nz := e1x*e2y - e1y*e2x
	nl := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if nl < 1e-8 {
		return
	}
	shade := lc.shade(nx/nl, ny/nl, nz/nl)

	minX := int(math.Min(math.Min(x0, x1), x2))
	maxX := int(math.Max(math.Max(x0, x1), x2)) + 1
	minY := int(math.Min(math.Min(y0, y1), y2))
	maxY := int(math.Max(math.Max(y0, y1), y2)) + 1
	if minX < 0 {
		minX = 0
	}
	if maxX >= fb.width {
		maxX = fb.width - 1
	}
	if minY < 0 {
		minY = 0
	}
	if maxY >= fb.height {
		maxY = fb.height - 1
	}
	if minX > maxX || minY > maxY {
		return
	}

	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det
	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) - y2
		rowOff := sy * fb.width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*z0 + w1*z1 + w2*z2
			zIdx := rowOff + sx
			if z <= fb.depth[zIdx] {
				continue
			}

			r, g, b, a := baseR, baseG, baseB, baseA
			if tex != nil {
				u := w0*uv[i0][0] + w1*uv[i1][0] + w2*uv[i2][0]
				v := w0*uv[i0][1] + w1*uv[i1][1] + w2*uv[i2][1]
				tr, tg, tb, ta := sampleBilinear(tex, u, v)
				r *= tr
				g *= tg
				b *= tb
				a *= ta
			}
			if a < 0.03 {
				continue
			}
			fb.depth[zIdx] = z

			pxIdx := zIdx * 4
			fb.color[pxIdx] = clamp255(r * shade * 255)
			fb.color[pxIdx+1] = clamp255(g * shade * 255)
			fb.color[pxIdx+2] = clamp255(b * shade * 255)
			fb.color[pxIdx+3] = clamp255(a * 255)
		}
	}
}

// sampleBilinear filters a texture at wrapped UV coordinates, returning the
// texel as floats in [0,1]. Reads tex.Pix directly.
func sampleBilinear(tex *image.NRGBA, u, v float64) (r, g, b, a float64) {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()
	if w == 0 || h == 0 {
		return 1, 1, 1, 1
	}

	u -= math.Floor(u)
	v -= math.Floor(v)

	fx := u * float64(w-1)
	fy := v * float64(h-1)
	x0 := int(fx)
	y0 := int(fy)
	x1 := (x0 + 1) % w
	y1 := (y0 + 1) % h
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	stride := tex.Stride
	pix := tex.Pix
	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	const inv255 = 1.0 / 255.0
	r = (float64(pix[i00])*w00 + float64(pix[i10])*w10 + float64(pix[i01])*w01 + float64(pix[i11])*w11) * inv255
	g = (float64(pix[i00+1])*w00 + float64(pix[i10+1])*w10 + float64(pix[i01+1])*w01 + float64(pix[i11+1])*w11) * inv255
	b = (float64(pix[i00+2])*w00 + float64(pix[i10+2])*w10 + float64(pix[i01+2])*w01 + float64(pix[i11+2])*w11) * inv255
	a = (float64(pix[i00+3])*w00 + float64(pix[i10+3])*w10 + float64(pix[i01+3])*w01 + float64(pix[i11+3])*w11) * inv255
	return r, g, b, a
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
