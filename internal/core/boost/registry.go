// Package boost holds the static boost pads laid out on the track and decides
// when a vehicle's next position starts a boost window.
package boost

import "sync"

// Zone is an axis-aligned rectangle on the ground plane. Containment is
// strict: a point on an edge is outside.
type Zone struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MinZ float64 `json:"min_z" yaml:"min_z"`
	MaxZ float64 `json:"max_z" yaml:"max_z"`
}

// NewPad builds the trigger rectangle of a pad centred on (x, z) that spans
// width along X and depth along Z.
func NewPad(x, z, width, depth float64) Zone {
	return Zone{
		MinX: x - width/2, MaxX: x + width/2,
		MinZ: z - depth/2, MaxZ: z + depth/2,
	}
}

func (z Zone) Contains(x, zz float64) bool {
	return x > z.MinX && x < z.MaxX && zz > z.MinZ && zz < z.MaxZ
}

// Center returns the pad centre on the ground plane.
func (z Zone) Center() (x, zz float64) {
	return (z.MinX + z.MaxX) / 2, (z.MinZ + z.MaxZ) / 2
}

// PadConfig describes a pad by centre and extents.
type PadConfig struct {
	X     float64 `yaml:"x"`
	Z     float64 `yaml:"z"`
	Width float64 `yaml:"width"`
	Depth float64 `yaml:"depth"`
}

func (p PadConfig) Zone() Zone { return NewPad(p.X, p.Z, p.Width, p.Depth) }

// Registry is the set of zones for a session. Zones are only added during
// scene setup; lookups take a read lock.
type Registry struct {
	mu    sync.RWMutex
	zones []Zone
}

func NewRegistry(zones ...Zone) *Registry {
	r := &Registry{}
	r.zones = append(r.zones, zones...)
	return r
}

func (r *Registry) Add(z Zone) {
	r.mu.Lock()
	r.zones = append(r.zones, z)
	r.mu.Unlock()
}

// Zones returns a copy of the registered zones.
func (r *Registry) Zones() []Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.zones)
}

// CheckTrigger reports whether a vehicle about to move to (x, z) starts a
// boost. It is false while a boost is already running, and a point covered by
// several overlapping zones still yields a single true.
func (r *Registry) CheckTrigger(x, z float64, boosted bool) bool {
	if boosted {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, zone := range r.zones {
		if zone.Contains(x, z) {
			return true
		}
	}
	return false
}
