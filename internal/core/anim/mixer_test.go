package anim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelStartsFrozen(t *testing.T) {
	m := NewMixer()
	ch := m.ClipAction(Clip{Name: "wheel_fl", Duration: time.Second}, 0)

	m.Update(500 * time.Millisecond)
	assert.Equal(t, 0.0, ch.Time())
}

func TestChannelLoopsForwardAndBackward(t *testing.T) {
	m := NewMixer()
	ch := m.ClipAction(Clip{Name: "wheel", Duration: time.Second}, 1)

	m.Update(1500 * time.Millisecond)
	assert.InDelta(t, 0.5, ch.Time(), 1e-9)

	ch.SetEffectiveTimeScale(-1)
	m.Update(750 * time.Millisecond)
	assert.InDelta(t, 0.75, ch.Time(), 1e-9)
}

func TestClipActionSharesChannelByName(t *testing.T) {
	m := NewMixer()
	a := m.ClipAction(Clip{Name: "spin", Duration: time.Second}, 0)
	b := m.ClipAction(Clip{Name: "spin", Duration: 2 * time.Second}, 1)
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())
}

func TestMixerSetTimeScaleAndSnapshot(t *testing.T) {
	m := NewMixer()
	for _, name := range []string{"a", "b"} {
		m.ClipAction(Clip{Name: name, Duration: 2 * time.Second}, 0)
	}
	m.SetTimeScale(0.2)
	m.Update(time.Second)

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	for _, s := range snap {
		assert.Equal(t, 0.2, s.TimeScale)
		assert.InDelta(t, 0.2, s.Time, 1e-9)
	}
}

func TestZeroLengthClipStaysAtZero(t *testing.T) {
	m := NewMixer()
	ch := m.ClipAction(Clip{Name: "static"}, 1)
	m.Update(time.Second)
	assert.Equal(t, 0.0, ch.Time())
	assert.Equal(t, "static", ch.Name())
	assert.Equal(t, 1.0, ch.TimeScale())
}

func TestNonPositiveDeltaIsIgnored(t *testing.T) {
	m := NewMixer()
	ch := m.ClipAction(Clip{Name: "wheel", Duration: time.Second}, 1)
	m.Update(0)
	m.Update(-time.Second)
	assert.Equal(t, 0.0, ch.Time())
}
