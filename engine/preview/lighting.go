package preview

import "math"

// lightConfig holds the fixed lighting rig: one key light, one rim light, a
// hemisphere fill, all flat-shaded per face.
type lightConfig struct {
	lightDir [3]float64
	rimDir   [3]float64
	ambient  float64
	hemi     float64
	direct   float64
	rim      float64
}

func defaultLightConfig() lightConfig {
	return lightConfig{
		lightDir: normalize3(0.4, 0.8, 0.5),
		rimDir:   normalize3(-0.5, 0.3, -0.8),
		ambient:  0.35,
		hemi:     0.25,
		direct:   0.9,
		rim:      0.2,
	}
}

// shade returns the combined lighting scalar for a unit face normal.
// Lambertian terms take the absolute value so back faces light the same as
// front faces; the preview draws double-sided.
func (lc *lightConfig) shade(nx, ny, nz float64) float64 {
	ndl := math.Abs(nx*lc.lightDir[0] + ny*lc.lightDir[1] + nz*lc.lightDir[2])
	ndr := math.Abs(nx*lc.rimDir[0] + ny*lc.rimDir[1] + nz*lc.rimDir[2])
	hemi := (1.0-math.Abs(ny))*0.5 + 0.5
	return lc.ambient + hemi*lc.hemi + ndl*lc.direct + ndr*lc.rim
}

func normalize3(x, y, z float64) [3]float64 {
	l := math.Sqrt(x*x + y*y + z*z)
	return [3]float64{x / l, y / l, z / l}
}
