package vehicle

import (
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/kartking/internal/core/boost"
	"github.com/zeusync/kartking/internal/core/terrain"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const tick = 16 * time.Millisecond

func eastFacing(x, z float64) Pose {
	return Pose{Position: mgl64.Vec3{x, 0, z}, Heading: math.Pi / 2}
}

func TestAccelerationClampsAtMaxSpeed(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), terrain.None{}, nil)
	m.Apply(Drive{Throttle: Forward})

	prev := 0.0
	now := epoch
	for i := 0; i < 19; i++ {
		now = now.Add(tick)
		m.Update(now, tick)
		s := m.State()
		assert.GreaterOrEqual(t, s.Speed, prev)
		assert.LessOrEqual(t, s.Speed, s.MaxSpeed)
		prev = s.Speed
	}
	assert.Equal(t, 0.75, m.State().Speed)

	for i := 0; i < 10; i++ {
		now = now.Add(tick)
		m.Update(now, tick)
	}
	assert.Equal(t, 0.75, m.State().Speed)
}

func TestDecelerationStopsAtExactlyZero(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), terrain.None{}, nil)
	m.state.Speed = 0.1

	now := epoch
	prev := m.State().Speed
	for i := 0; i < 10; i++ {
		now = now.Add(tick)
		m.Update(now, tick)
		s := m.State()
		assert.LessOrEqual(t, s.Speed, prev)
		assert.GreaterOrEqual(t, s.Speed, 0.0)
		prev = s.Speed
	}
	assert.Equal(t, 0.0, m.State().Speed)
	assert.Equal(t, 0.0, m.WheelRate())
}

func TestMovesAlongHeading(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), terrain.Plane{Height: 3}, nil)
	m.Apply(Drive{Throttle: Forward})

	res := m.Update(epoch, 0)
	require.True(t, res.Moved)
	assert.Equal(t, 1.0, res.WheelRate)

	p := m.Pose()
	assert.InDelta(t, 0.04, p.Position.X(), 1e-12)
	assert.InDelta(t, 0.0, p.Position.Z(), 1e-12)
	assert.InDelta(t, 3.2, p.Position.Y(), 1e-12)
}

func TestReverseCoastsBackwards(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), nil, nil)
	m.Apply(Drive{Throttle: Backward})

	res := m.Update(epoch, 0)
	assert.Equal(t, -1.0, res.WheelRate)
	assert.InDelta(t, -0.04, m.Pose().Position.X(), 1e-12)

	// Releasing the key keeps the gear while the kart rolls to a stop.
	m.Apply(Drive{Throttle: Idle})
	s := m.State()
	assert.True(t, s.Reversing())
	assert.False(t, s.Running())

	res = m.Update(epoch.Add(tick), tick)
	assert.Equal(t, -1.0, res.WheelRate)
	assert.InDelta(t, -0.05, m.Pose().Position.X(), 1e-12)
}

func TestHeadingOnlyTurnsWhileMoving(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), nil, nil)
	m.Apply(Steer{Rate: 0.03})

	m.Update(epoch, 0)
	assert.Equal(t, math.Pi/2, m.Pose().Heading)

	m.Apply(Drive{Throttle: Forward})
	m.Update(epoch.Add(tick), tick)
	assert.InDelta(t, math.Pi/2+0.03, m.Pose().Heading, 1e-12)
}

func TestRestingKartSitsOnGround(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), terrain.None{}, nil)
	m.Update(epoch, 0)
	assert.Equal(t, 0.2, m.Pose().Position.Y())

	bumpy := terrain.Func(func(x, z float64) (float64, bool) { return 1.5, true })
	m.SetGround(bumpy)
	res := m.Update(epoch.Add(tick), tick)
	assert.False(t, res.Moved)
	assert.InDelta(t, 1.7, m.Pose().Position.Y(), 1e-12)
	assert.Equal(t, 0.0, m.Pose().Position.X())
}

func TestBoostTriplesAndRestores(t *testing.T) {
	pads := boost.NewRegistry(boost.NewPad(-10, 0, 5, 40))
	m := New(DefaultTuning(), eastFacing(-10.75, 0), terrain.None{}, pads)
	m.Apply(Drive{Throttle: Forward})
	m.state.Speed = 0.75

	res := m.Update(epoch, tick)
	require.True(t, res.BoostActivated)
	s := m.State()
	assert.InDelta(t, -10.0, s.Position.X(), 1e-12)
	assert.Equal(t, 2.25, s.Speed)
	assert.Equal(t, 2.25, s.MaxSpeed)
	assert.True(t, s.Boost.IsActive())
	exp, ok := s.Boost.Expiry()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(3*time.Second), exp)

	// Still inside the pad while boosted: nothing compounds.
	res = m.Update(epoch.Add(time.Second), time.Second)
	assert.False(t, res.BoostActivated)
	assert.Equal(t, 2.25, m.State().MaxSpeed)
	assert.Equal(t, 2.25, m.State().Speed)

	res = m.Update(epoch.Add(2*time.Second), time.Second)
	assert.False(t, res.BoostExpired)

	res = m.Update(epoch.Add(3*time.Second), time.Second)
	assert.True(t, res.BoostExpired)
	assert.False(t, res.BoostActivated)
	s = m.State()
	assert.False(t, s.Boost.IsActive())
	assert.InDelta(t, 0.75, s.MaxSpeed, 1e-12)
	assert.LessOrEqual(t, s.Speed, s.MaxSpeed)
}

func TestOverlappingPadsTriggerOnce(t *testing.T) {
	pads := boost.NewRegistry(boost.NewPad(-10, 0, 5, 40), boost.NewPad(-10, 0, 10, 10))
	m := New(DefaultTuning(), eastFacing(-10.5, 0), nil, pads)
	m.state.Speed = 0.5

	res := m.Update(epoch, 0)
	require.True(t, res.BoostActivated)
	assert.InDelta(t, 2.25, m.State().MaxSpeed, 1e-12)
}

func TestExpireBoostWithoutTick(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), nil, nil)
	m.state.MaxSpeed = 2.25
	m.state.Speed = 2.25
	m.state.Boost = ActiveUntil(epoch)

	assert.False(t, m.ExpireBoost(epoch.Add(-time.Millisecond)))
	assert.True(t, m.ExpireBoost(epoch))
	assert.False(t, m.ExpireBoost(epoch.Add(time.Hour)))
	assert.Equal(t, 0.75, m.State().MaxSpeed)
	assert.Equal(t, 0.75, m.State().Speed)
}

func TestBrakeIsIdempotent(t *testing.T) {
	m := New(DefaultTuning(), eastFacing(0, 0), nil, nil)
	m.state.Speed = 0.5

	assert.True(t, m.Apply(Brake{}))
	assert.False(t, m.Apply(Brake{}))
	s := m.State()
	assert.InDelta(t, 0.4, s.Speed, 1e-12)
	assert.Equal(t, 1.0, s.Deceleration)
	assert.True(t, s.Braking)

	m.Update(epoch, 0)
	assert.Equal(t, 0.0, m.State().Speed)

	assert.True(t, m.Apply(ReleaseBrake{}))
	assert.False(t, m.Apply(ReleaseBrake{}))
	assert.Equal(t, 0.03, m.State().Deceleration)
}

func TestElapsedStepping(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Stepping = Elapsed
	m := New(tuning, eastFacing(0, 0), nil, nil)
	m.Apply(Drive{Throttle: Forward})

	m.Update(epoch, 0)
	assert.Equal(t, 0.0, m.State().Speed)

	m.Update(epoch.Add(50*time.Millisecond), 50*time.Millisecond)
	assert.InDelta(t, 0.12, m.State().Speed, 1e-9)
}

func TestDriveCommandReportsChange(t *testing.T) {
	m := New(DefaultTuning(), DefaultStart(), nil, nil)
	assert.False(t, m.Apply(Drive{Throttle: Idle}))
	assert.True(t, m.Apply(Drive{Throttle: Forward}))
	assert.False(t, m.Apply(Drive{Throttle: Forward}))
	assert.True(t, m.Apply(Steer{Rate: -0.03}))
	assert.False(t, m.Apply(Steer{Rate: -0.03}))
}

func TestTuningValidate(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())

	bad := DefaultTuning()
	bad.MaxSpeed = 0
	bad.BrakeSpeedFactor = 2
	bad.BoostDuration = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_speed")
	assert.Contains(t, err.Error(), "brake_speed_factor")
	assert.Contains(t, err.Error(), "boost_duration")
}

func TestSnapshot(t *testing.T) {
	s := State{Pose: DefaultStart(), Speed: 1, MaxSpeed: 2.25, Throttle: Backward, Gear: Astern, Boost: ActiveUntil(epoch)}
	snap := s.Snapshot()
	assert.Equal(t, "backward", snap.Throttle)
	assert.Equal(t, "astern", snap.Gear)
	require.NotNil(t, snap.BoostExpiry)
	assert.Equal(t, epoch, *snap.BoostExpiry)

	assert.Nil(t, State{}.Snapshot().BoostExpiry)
}

func TestSteppingText(t *testing.T) {
	var s Stepping
	require.NoError(t, s.UnmarshalText([]byte("elapsed")))
	assert.Equal(t, Elapsed, s)
	require.NoError(t, s.UnmarshalText([]byte("per_tick")))
	assert.Equal(t, PerTick, s)
	assert.Error(t, s.UnmarshalText([]byte("sometimes")))
}
