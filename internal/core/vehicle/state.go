// Package vehicle advances the kart's pose and speed once per tick from the
// current controls, the boost pads and the ground under it.
package vehicle

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Throttle is the drive input currently applied.
type Throttle uint8

const (
	Idle Throttle = iota
	Forward
	Backward
)

func (t Throttle) String() string {
	switch t {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "idle"
	}
}

// Gear is the direction of travel. It follows the last drive input and is
// kept while idle, so a released kart coasts the way it was going.
type Gear uint8

const (
	Ahead Gear = iota
	Astern
)

// Sign is +1 for Ahead and -1 for Astern.
func (g Gear) Sign() float64 {
	if g == Astern {
		return -1
	}
	return 1
}

func (g Gear) String() string {
	if g == Astern {
		return "astern"
	}
	return "ahead"
}

// BoostWindow is either inactive or active until an expiry instant.
type BoostWindow struct {
	active bool
	expiry time.Time
}

func Inactive() BoostWindow { return BoostWindow{} }

func ActiveUntil(expiry time.Time) BoostWindow {
	return BoostWindow{active: true, expiry: expiry}
}

func (b BoostWindow) IsActive() bool { return b.active }

// Expiry returns the end of an active window.
func (b BoostWindow) Expiry() (time.Time, bool) {
	return b.expiry, b.active
}

// Expired reports whether an active window has run out at now.
func (b BoostWindow) Expired(now time.Time) bool {
	return b.active && !now.Before(b.expiry)
}

// Stepping selects how speed changes scale with the tick.
type Stepping uint8

const (
	// PerTick applies acceleration and deceleration once per tick regardless
	// of elapsed time.
	PerTick Stepping = iota
	// Elapsed scales them by dt relative to a 60 Hz tick.
	Elapsed
)

const referenceTickRate = 60.0

func (s Stepping) String() string {
	if s == Elapsed {
		return "elapsed"
	}
	return "per_tick"
}

func (s *Stepping) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "per_tick", "tick":
		*s = PerTick
	case "elapsed", "dt":
		*s = Elapsed
	default:
		return fmt.Errorf("unknown stepping %q", text)
	}
	return nil
}

func (s Stepping) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Stepping) factor(dt time.Duration) float64 {
	if s == Elapsed {
		return dt.Seconds() * referenceTickRate
	}
	return 1
}

// Pose is where the kart is and which way it faces.
type Pose struct {
	Position mgl64.Vec3 `json:"position"`
	Heading  float64    `json:"heading"`
}

// Forward is the unit vector the kart faces on the ground plane.
func (p Pose) Forward() mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(p.Heading), 0, math.Cos(p.Heading)}
}

// State is the full kinematic record of the kart. Speed is a magnitude in
// [0, MaxSpeed]; Gear gives its direction.
type State struct {
	Pose
	Speed        float64
	MaxSpeed     float64
	Acceleration float64
	Deceleration float64
	AngularRate  float64
	Throttle     Throttle
	Gear         Gear
	Boost        BoostWindow
	Braking      bool
}

func (s State) Running() bool { return s.Throttle != Idle }

func (s State) Reversing() bool { return s.Gear == Astern }

// Snapshot is the serialisable view of State sent with each frame.
type Snapshot struct {
	Position    mgl64.Vec3 `json:"position"`
	Heading     float64    `json:"heading"`
	Speed       float64    `json:"speed"`
	MaxSpeed    float64    `json:"max_speed"`
	Throttle    string     `json:"throttle"`
	Gear        string     `json:"gear"`
	Boosted     bool       `json:"boosted"`
	BoostExpiry *time.Time `json:"boost_expiry,omitempty"`
	Braking     bool       `json:"braking"`
}

func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Position: s.Position,
		Heading:  s.Heading,
		Speed:    s.Speed,
		MaxSpeed: s.MaxSpeed,
		Throttle: s.Throttle.String(),
		Gear:     s.Gear.String(),
		Boosted:  s.Boost.IsActive(),
		Braking:  s.Braking,
	}
	if exp, ok := s.Boost.Expiry(); ok {
		snap.BoostExpiry = &exp
	}
	return snap
}
