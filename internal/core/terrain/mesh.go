package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultRayOriginHeight is where downward probes start.
const DefaultRayOriginHeight = 100.0

const rayEpsilon = 1e-9

var down = mgl64.Vec3{0, -1, 0}

// Triangle is one face of a static mesh. Winding does not matter: faces are
// hit from both sides.
type Triangle [3]mgl64.Vec3

type meshFace struct {
	tri                    Triangle
	minX, maxX, minZ, maxZ float64
}

// Mesh answers height queries by casting a ray straight down from
// (x, RayOrigin, z) and returning the closest hit.
type Mesh struct {
	RayOrigin float64
	faces     []meshFace
}

// NewMesh copies the triangles, transforms them by scale then offset, and
// caches their ground-plane bounds.
func NewMesh(tris []Triangle, scale float64, offset mgl64.Vec3, rayOrigin float64) *Mesh {
	if scale == 0 {
		scale = 1
	}
	if rayOrigin == 0 {
		rayOrigin = DefaultRayOriginHeight
	}
	m := &Mesh{RayOrigin: rayOrigin, faces: make([]meshFace, 0, len(tris))}
	for _, t := range tris {
		var w Triangle
		for i, v := range t {
			w[i] = v.Mul(scale).Add(offset)
		}
		m.faces = append(m.faces, meshFace{
			tri:  w,
			minX: math.Min(w[0].X(), math.Min(w[1].X(), w[2].X())),
			maxX: math.Max(w[0].X(), math.Max(w[1].X(), w[2].X())),
			minZ: math.Min(w[0].Z(), math.Min(w[1].Z(), w[2].Z())),
			maxZ: math.Max(w[0].Z(), math.Max(w[1].Z(), w[2].Z())),
		})
	}
	return m
}

func (m *Mesh) Len() int { return len(m.faces) }

func (m *Mesh) HeightAt(x, z float64) (float64, bool) {
	origin := mgl64.Vec3{x, m.RayOrigin, z}
	best := math.Inf(1)
	for _, f := range m.faces {
		if x < f.minX || x > f.maxX || z < f.minZ || z > f.maxZ {
			continue
		}
		if d, ok := intersect(origin, down, f.tri); ok && d < best {
			best = d
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return m.RayOrigin - best, true
}

// intersect is the Möller–Trumbore ray/triangle test. It returns the distance
// along dir to the hit point.
func intersect(origin, dir mgl64.Vec3, t Triangle) (float64, bool) {
	e1 := t[1].Sub(t[0])
	e2 := t[2].Sub(t[0])
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(t[0])
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	d := e2.Dot(q) * inv
	if d < 0 {
		return 0, false
	}
	return d, true
}

// Quad splits the rectangle a-b-c-d (in order around the edge) into two triangles.
func Quad(a, b, c, d mgl64.Vec3) []Triangle {
	return []Triangle{{a, b, c}, {a, c, d}}
}
