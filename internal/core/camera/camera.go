// Package camera places the view relative to the kart for the active follow mode.
package camera

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/kartking/internal/core/vehicle"
)

// Mode selects the follow strategy.
type Mode uint8

const (
	FirstPerson Mode = iota
	ThirdPerson
	// Free is a detached camera. The toggle key never selects it.
	Free
)

func (m Mode) String() string {
	switch m {
	case FirstPerson:
		return "first_person"
	case ThirdPerson:
		return "third_person"
	case Free:
		return "free"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Toggle flips between FirstPerson and ThirdPerson. Any other mode goes to
// FirstPerson.
func (m Mode) Toggle() Mode {
	if m == FirstPerson {
		return ThirdPerson
	}
	return FirstPerson
}

// Follows reports whether the camera tracks the kart every tick in this mode.
func (m Mode) Follows() bool {
	return m == FirstPerson || m == ThirdPerson
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first_person", "first", "fp":
		return FirstPerson, nil
	case "third_person", "third", "tp":
		return ThirdPerson, nil
	case "free":
		return Free, nil
	}
	return FirstPerson, fmt.Errorf("unknown camera mode %q", s)
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Pose is a camera placement.
type Pose struct {
	Position mgl64.Vec3 `json:"position"`
	LookAt   mgl64.Vec3 `json:"look_at"`
}

// DefaultPose is the camera before any kart exists.
func DefaultPose() Pose {
	return Pose{Position: mgl64.Vec3{50, 30, 50}}
}

// Rig holds the offsets of each follow mode. Offsets are in the kart's local
// frame and rotate with its heading.
type Rig struct {
	FirstPersonOffset    mgl64.Vec3 `yaml:"first_person_offset"`
	FirstPersonLookAhead float64    `yaml:"first_person_look_ahead"`
	FirstPersonLookDrop  float64    `yaml:"first_person_look_drop"`
	ThirdPersonOffset    mgl64.Vec3 `yaml:"third_person_offset"`
	ThirdPersonLookLift  float64    `yaml:"third_person_look_lift"`
	FreeOffset           mgl64.Vec3 `yaml:"free_offset"`
}

func DefaultRig() Rig {
	return Rig{
		FirstPersonOffset:    mgl64.Vec3{5, 5, 5},
		FirstPersonLookAhead: 50,
		FirstPersonLookDrop:  1,
		ThirdPersonOffset:    mgl64.Vec3{0, 8, -14},
		ThirdPersonLookLift:  2,
		FreeOffset:           mgl64.Vec3{15, 20, -20},
	}
}

// Controller derives camera poses from kart poses. It holds no state besides
// its rig, so Follow is a pure function of its arguments.
type Controller struct {
	rig Rig
}

func NewController(rig Rig) *Controller {
	return &Controller{rig: rig}
}

func (c *Controller) Rig() Rig { return c.rig }

func (c *Controller) Follow(kart vehicle.Pose, mode Mode) Pose {
	pos := kart.Position
	switch mode {
	case FirstPerson:
		ahead := kart.Forward().Mul(c.rig.FirstPersonLookAhead)
		ahead[1] = -c.rig.FirstPersonLookDrop
		return Pose{
			Position: pos.Add(rotate(kart.Heading, c.rig.FirstPersonOffset)),
			LookAt:   pos.Add(ahead),
		}
	case ThirdPerson:
		return Pose{
			Position: pos.Add(rotate(kart.Heading, c.rig.ThirdPersonOffset)),
			LookAt:   pos.Add(mgl64.Vec3{0, c.rig.ThirdPersonLookLift, 0}),
		}
	default:
		return Pose{Position: pos.Add(c.rig.FreeOffset), LookAt: pos}
	}
}

func rotate(heading float64, offset mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Rotate3DY(heading).Mul3x1(offset)
}

// Selector holds the active mode. The toggle key writes it from input
// goroutines while the tick reads it.
type Selector struct {
	mu   sync.Mutex
	mode Mode
}

func NewSelector(initial Mode) *Selector {
	return &Selector{mode: initial}
}

func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Selector) Set(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Toggle flips the mode and returns the new one.
func (s *Selector) Toggle() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.mode.Toggle()
	return s.mode
}
