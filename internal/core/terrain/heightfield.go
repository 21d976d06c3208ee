package terrain

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Heightfield is a regular grid of heights centred on Origin, laid out row by
// row along Z (Heights[j*Width+i]). Cell spacing is ScaleX by ScaleZ and every
// stored height is multiplied by ScaleY.
type Heightfield struct {
	Heights []float32
	Width   int
	Depth   int
	ScaleX  float64
	ScaleY  float64
	ScaleZ  float64
	Origin  mgl64.Vec3
}

// NewHeightfield validates the grid dimensions against the data.
func NewHeightfield(heights []float32, width, depth int, scale mgl64.Vec3, origin mgl64.Vec3) (*Heightfield, error) {
	if width < 2 || depth < 2 {
		return nil, fmt.Errorf("heightfield needs at least 2x2 samples, got %dx%d", width, depth)
	}
	if len(heights) != width*depth {
		return nil, fmt.Errorf("heightfield has %d samples, want %d", len(heights), width*depth)
	}
	if !finiteVec(scale) || scale.X() <= 0 || scale.Z() <= 0 {
		return nil, fmt.Errorf("heightfield cell size must be positive and finite, got %v", scale)
	}
	if !finiteVec(origin) {
		return nil, fmt.Errorf("heightfield origin must be finite, got %v", origin)
	}
	return &Heightfield{
		Heights: heights,
		Width:   width,
		Depth:   depth,
		ScaleX:  scale.X(),
		ScaleY:  scale.Y(),
		ScaleZ:  scale.Z(),
		Origin:  origin,
	}, nil
}

// HeightAt bilinearly interpolates the four samples around (x, z). Points
// outside the grid miss.
func (h *Heightfield) HeightAt(x, z float64) (float64, bool) {
	gx := (x-h.Origin.X())/h.ScaleX + float64(h.Width-1)/2
	gz := (z-h.Origin.Z())/h.ScaleZ + float64(h.Depth-1)/2
	if math.IsNaN(gx) || math.IsNaN(gz) || gx < 0 || gz < 0 || gx > float64(h.Width-1) || gz > float64(h.Depth-1) {
		return 0, false
	}

	i0 := int(math.Floor(gx))
	j0 := int(math.Floor(gz))
	i1 := min(i0+1, h.Width-1)
	j1 := min(j0+1, h.Depth-1)
	tx := gx - float64(i0)
	tz := gz - float64(j0)

	h00 := float64(h.Heights[j0*h.Width+i0])
	h10 := float64(h.Heights[j0*h.Width+i1])
	h01 := float64(h.Heights[j1*h.Width+i0])
	h11 := float64(h.Heights[j1*h.Width+i1])

	near := lerpValue(h00, h10, tx)
	far := lerpValue(h01, h11, tx)
	return lerpValue(near, far, tz)*h.ScaleY + h.Origin.Y(), true
}

// Extent returns the world-space half sizes along X and Z.
func (h *Heightfield) Extent() (halfX, halfZ float64) {
	return float64(h.Width-1) * h.ScaleX / 2, float64(h.Depth-1) * h.ScaleZ / 2
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
