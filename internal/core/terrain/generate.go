package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// GenerateParams controls procedural terrain. Heights come out in
// [MinHeight, MaxHeight] before the edge falloff is applied.
type GenerateParams struct {
	Width     int     `yaml:"width"`
	Depth     int     `yaml:"depth"`
	CellSize  float64 `yaml:"cell_size"`
	MinHeight float64 `yaml:"min_height"`
	MaxHeight float64 `yaml:"max_height"`
	// Hills is the number of bumps added on top of the noise.
	Hills int `yaml:"hills"`
}

func DefaultGenerateParams() GenerateParams {
	return GenerateParams{
		Width:     128,
		Depth:     128,
		CellSize:  12.5,
		MinHeight: -2,
		MaxHeight: 6,
		Hills:     5,
	}
}

// hash2D is a cheap deterministic pseudo-noise in [0, 1).
func hash2D(x, y float64) float64 {
	h := x*12.9898 + y*78.233
	s := math.Abs(math.Sin(h) * 43758.5453)
	return s - math.Floor(s)
}

func lerpValue(a, b, t float64) float64 {
	return a + t*(b-a)
}

func smoothstepValue(t float64) float64 {
	return t * t * (3.0 - 2.0*t)
}

func smoothNoise(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	sx := smoothstepValue(x - x0)
	sy := smoothstepValue(y - y0)

	n00 := hash2D(x0, y0)
	n10 := hash2D(x0+1, y0)
	n01 := hash2D(x0, y0+1)
	n11 := hash2D(x0+1, y0+1)

	return lerpValue(lerpValue(n00, n10, sx), lerpValue(n01, n11, sx), sy)
}

var hillSeeds = []struct{ x, z float64 }{
	{0.2, 0.3}, {0.7, 0.8}, {0.4, 0.7}, {0.8, 0.2}, {0.1, 0.9},
	{0.6, 0.4}, {0.3, 0.1}, {0.9, 0.6},
}

// Generate builds a deterministic rolling heightfield: fractal value noise,
// a handful of hills at fixed seeds, and a dip towards the border.
func Generate(p GenerateParams) []float32 {
	w, d := p.Width, p.Depth
	data := make([]float32, w*d)
	if w < 2 || d < 2 {
		return data
	}

	scales := []float64{1.0, 0.5, 0.25, 0.125, 0.0625}
	amplitudes := []float64{0.5, 0.25, 0.125, 0.0625, 0.03125}
	heightRange := p.MaxHeight - p.MinHeight

	centerX := float64(w) / 2
	centerZ := float64(d) / 2
	maxRadius := math.Min(centerX, centerZ) * 0.8

	type hill struct{ x, z, height, radius float64 }
	hills := make([]hill, 0, p.Hills)
	for i := 0; i < p.Hills && i < len(hillSeeds); i++ {
		hills = append(hills, hill{
			x:      hillSeeds[i].x * float64(w),
			z:      hillSeeds[i].z * float64(d),
			height: 0.5 + 0.5*hash2D(float64(i)*0.1, 0.5),
			radius: 5 + 15*hash2D(0.5, float64(i)*0.1),
		})
	}

	for j := 0; j < d; j++ {
		for i := 0; i < w; i++ {
			nx := float64(i) / float64(w-1)
			nz := float64(j) / float64(d-1)

			noise := 0.0
			for layer := range scales {
				noise += smoothNoise(nx*scales[layer]*10, nz*scales[layer]*10) * amplitudes[layer]
			}
			elevation := (noise + 0.5) * 0.5

			for _, h := range hills {
				dist := math.Hypot(float64(i)-h.x, float64(j)-h.z)
				if dist < h.radius {
					falloff := 1 - dist/h.radius
					elevation += h.height * falloff * falloff * 0.8
				}
			}

			fromCenter := math.Hypot(float64(i)-centerX, float64(j)-centerZ)
			if fromCenter > maxRadius {
				edge := math.Min(1, (fromCenter-maxRadius)/(math.Max(centerX, centerZ)-maxRadius))
				elevation -= edge * 0.5
			}

			data[j*w+i] = float32(elevation*heightRange + p.MinHeight)
		}
	}
	return data
}

// NewProcedural generates a heightfield centred on origin.
func NewProcedural(p GenerateParams, origin mgl64.Vec3) (*Heightfield, error) {
	cell := p.CellSize
	if cell <= 0 {
		cell = 1
	}
	return NewHeightfield(Generate(p), p.Width, p.Depth, mgl64.Vec3{cell, 1, cell}, origin)
}
