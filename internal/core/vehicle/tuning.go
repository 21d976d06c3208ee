package vehicle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Tuning holds the nominal handling values of a kart.
type Tuning struct {
	MaxSpeed          float64       `yaml:"max_speed"`
	Acceleration      float64       `yaml:"acceleration"`
	Deceleration      float64       `yaml:"deceleration"`
	BrakeDeceleration float64       `yaml:"brake_deceleration"`
	BrakeSpeedFactor  float64       `yaml:"brake_speed_factor"`
	TurnRate          float64       `yaml:"turn_rate"`
	GroundClearance   float64       `yaml:"ground_clearance"`
	BoostMultiplier   float64       `yaml:"boost_multiplier"`
	BoostDuration     time.Duration `yaml:"boost_duration"`
	Stepping          Stepping      `yaml:"stepping"`
}

func DefaultTuning() Tuning {
	return Tuning{
		MaxSpeed:          0.75,
		Acceleration:      0.04,
		Deceleration:      0.03,
		BrakeDeceleration: 1.0,
		BrakeSpeedFactor:  0.8,
		TurnRate:          0.03,
		GroundClearance:   0.2,
		BoostMultiplier:   3,
		BoostDuration:     3 * time.Second,
		Stepping:          PerTick,
	}
}

// DefaultStart is the pose the kart spawns at on the demo track.
func DefaultStart() Pose {
	return Pose{
		Position: mgl64.Vec3{-137.71, 0.20, 436.97},
		Heading:  math.Pi / 2,
	}
}

func (t Tuning) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	positive("max_speed", t.MaxSpeed)
	positive("acceleration", t.Acceleration)
	positive("deceleration", t.Deceleration)
	positive("brake_deceleration", t.BrakeDeceleration)
	positive("boost_multiplier", t.BoostMultiplier)
	if t.BrakeSpeedFactor < 0 || t.BrakeSpeedFactor > 1 {
		errs = append(errs, fmt.Errorf("brake_speed_factor must be within [0, 1], got %v", t.BrakeSpeedFactor))
	}
	if t.TurnRate < 0 {
		errs = append(errs, fmt.Errorf("turn_rate must not be negative, got %v", t.TurnRate))
	}
	if t.BoostDuration <= 0 {
		errs = append(errs, fmt.Errorf("boost_duration must be positive, got %v", t.BoostDuration))
	}
	return errors.Join(errs...)
}
