package vehicle

// Command is a control message applied to a Model between ticks.
type Command interface {
	apply(s *State, t Tuning) bool
}

// Drive sets the drive input. Forward and Backward also select the gear.
type Drive struct {
	Throttle Throttle
}

func (c Drive) apply(s *State, _ Tuning) bool {
	prev := s.Throttle
	prevGear := s.Gear
	s.Throttle = c.Throttle
	switch c.Throttle {
	case Forward:
		s.Gear = Ahead
	case Backward:
		s.Gear = Astern
	}
	return prev != s.Throttle || prevGear != s.Gear
}

// Steer sets the yaw applied per tick while moving; positive turns left.
type Steer struct {
	Rate float64
}

func (c Steer) apply(s *State, _ Tuning) bool {
	if s.AngularRate == c.Rate {
		return false
	}
	s.AngularRate = c.Rate
	return true
}

// Brake swaps in the brake deceleration and cuts the current speed once.
// Applying it again before ReleaseBrake does nothing.
type Brake struct{}

func (Brake) apply(s *State, t Tuning) bool {
	if s.Braking {
		return false
	}
	s.Braking = true
	s.Deceleration = t.BrakeDeceleration
	s.Speed *= t.BrakeSpeedFactor
	return true
}

// ReleaseBrake restores the nominal deceleration.
type ReleaseBrake struct{}

func (ReleaseBrake) apply(s *State, t Tuning) bool {
	if !s.Braking {
		return false
	}
	s.Braking = false
	s.Deceleration = t.Deceleration
	return true
}
