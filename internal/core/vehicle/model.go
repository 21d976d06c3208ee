package vehicle

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/terrain"
)

// Trigger decides whether the kart's next ground position starts a boost.
type Trigger interface {
	CheckTrigger(x, z float64, boosted bool) bool
}

// Result summarises what one Update did.
type Result struct {
	Moved          bool
	BoostActivated bool
	BoostExpired   bool
	// WheelRate is the playback rate for the wheel clips: 0 at rest,
	// otherwise the gear sign.
	WheelRate float64
}

// Model owns one kart's State and advances it.
type Model struct {
	mu     sync.Mutex
	tuning Tuning
	state  State
	ground terrain.Query
	boosts Trigger
	logger log.Log
}

type Option func(*Model)

func WithLogger(logger log.Log) Option {
	return func(m *Model) { m.logger = logger }
}

// New places a kart at start. ground and boosts may be nil: a nil ground is
// treated as a permanent miss and a nil trigger never boosts.
func New(tuning Tuning, start Pose, ground terrain.Query, boosts Trigger, opts ...Option) *Model {
	m := &Model{
		tuning: tuning,
		ground: ground,
		boosts: boosts,
		logger: log.Nop(),
		state: State{
			Pose:         start,
			MaxSpeed:     tuning.MaxSpeed,
			Acceleration: tuning.Acceleration,
			Deceleration: tuning.Deceleration,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(log.String("component", "vehicle"))
	return m
}

func (m *Model) Tuning() Tuning { return m.tuning }

// SetGround swaps the terrain the kart is sampled against.
func (m *Model) SetGround(q terrain.Query) {
	m.mu.Lock()
	m.ground = q
	m.mu.Unlock()
}

// Apply executes a control command and reports whether it changed anything.
func (m *Model) Apply(cmd Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cmd.apply(&m.state, m.tuning)
}

func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Model) Pose() Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Pose
}

// WheelRate is the current wheel clip playback rate.
func (m *Model) WheelRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return wheelRate(m.state)
}

// ExpireBoost closes the boost window if it has run out at now, dividing the
// speed cap by the multiplier applied at activation. Speed is clamped to the
// restored cap. It reports whether the window closed.
func (m *Model) ExpireBoost(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expireBoost(now)
}

func (m *Model) expireBoost(now time.Time) bool {
	s := &m.state
	if !s.Boost.Expired(now) {
		return false
	}
	s.MaxSpeed /= m.tuning.BoostMultiplier
	s.Speed = math.Min(s.Speed, s.MaxSpeed)
	s.Boost = Inactive()
	m.logger.Debug("Boost expired", log.Float64("max_speed", s.MaxSpeed))
	return true
}

// Update runs one tick at wall-clock now with dt elapsed since the previous
// tick: boost expiry, speed, heading and candidate position, boost trigger on
// the candidate, then terrain height.
func (m *Model) Update(now time.Time, dt time.Duration) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res Result
	res.BoostExpired = m.expireBoost(now)

	s := &m.state
	k := m.tuning.Stepping.factor(dt)
	if s.Running() {
		s.Speed = math.Min(s.Speed+s.Acceleration*k, s.MaxSpeed)
	} else {
		s.Speed = math.Max(s.Speed-s.Deceleration*k, 0)
	}

	if s.Speed == 0 {
		s.Position[1] = terrain.Sample(m.ground, s.Position.X(), s.Position.Z()) + m.tuning.GroundClearance
		res.WheelRate = 0
		return res
	}

	s.Heading += s.AngularRate
	step := s.Forward().Mul(s.Speed * s.Gear.Sign())
	nx, nz := s.Position.X()+step.X(), s.Position.Z()+step.Z()

	if m.boosts != nil && m.boosts.CheckTrigger(nx, nz, s.Boost.IsActive()) {
		s.MaxSpeed *= m.tuning.BoostMultiplier
		s.Speed *= m.tuning.BoostMultiplier
		s.Boost = ActiveUntil(now.Add(m.tuning.BoostDuration))
		res.BoostActivated = true
		m.logger.Debug("Boost activated",
			log.Float64("x", nx),
			log.Float64("z", nz),
			log.Float64("speed", s.Speed),
		)
	}

	s.Position = mgl64.Vec3{nx, terrain.Sample(m.ground, nx, nz) + m.tuning.GroundClearance, nz}
	res.Moved = true
	res.WheelRate = wheelRate(*s)
	return res
}

func wheelRate(s State) float64 {
	if s.Speed == 0 {
		return 0
	}
	return s.Gear.Sign()
}
