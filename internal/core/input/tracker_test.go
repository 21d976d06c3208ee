package input

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const turnRate = 0.03

func TestDriveKeysLastEventWins(t *testing.T) {
	tr := NewTracker(nil, turnRate)

	require.True(t, tr.OnKeyDown("KeyW"))
	assert.Equal(t, State{Forward: true}, tr.Snapshot())

	tr.OnKeyDown("KeyS")
	assert.Equal(t, State{Backward: true}, tr.Snapshot())

	// Releasing W while S is held still stops driving.
	tr.OnKeyUp("KeyW")
	assert.Equal(t, State{}, tr.Snapshot())
}

func TestTurnKeys(t *testing.T) {
	tr := NewTracker(nil, turnRate)

	tr.OnKeyDown("KeyA")
	assert.Equal(t, turnRate, tr.Snapshot().Steering())

	tr.OnKeyDown("KeyD")
	s := tr.Snapshot()
	assert.Equal(t, 0.0, s.TurnLeftRate)
	assert.Equal(t, -turnRate, s.Steering())

	tr.OnKeyUp("KeyA")
	assert.Equal(t, 0.0, tr.Snapshot().Steering())
}

func TestBrakeKey(t *testing.T) {
	tr := NewTracker(nil, turnRate)
	tr.OnKeyDown("Space")
	tr.OnKeyDown("Space")
	assert.True(t, tr.Snapshot().Brake)
	tr.OnKeyUp("Space")
	assert.False(t, tr.Snapshot().Brake)
}

func TestUnknownCodesAreIgnored(t *testing.T) {
	tr := NewTracker(nil, turnRate)
	tr.OnKeyDown("KeyW")

	assert.False(t, tr.OnKeyDown("KeyQ"))
	assert.False(t, tr.OnKeyUp("F13"))
	assert.Equal(t, State{Forward: true}, tr.Snapshot())
}

func TestCameraToggleCallsHookWithoutTouchingState(t *testing.T) {
	calls := 0
	tr := NewTracker(nil, turnRate, WithToggleHook(func() { calls++ }))

	tr.OnKeyDown("KeyG")
	tr.OnKeyDown("KeyG")
	tr.OnKeyUp("KeyG")

	assert.Equal(t, 2, calls)
	assert.Equal(t, State{}, tr.Snapshot())
}

func TestToggleHookCanCallBackIntoTracker(t *testing.T) {
	tr := NewTracker(nil, turnRate)
	var seen State
	tr.SetToggleHook(func() { seen = tr.Snapshot() })

	tr.OnKeyDown("KeyW")
	tr.OnKeyDown("KeyG")
	assert.True(t, seen.Forward)
}

func TestCustomBindings(t *testing.T) {
	b, err := ParseBindings(map[string]string{"ArrowUp": "forward", "KeyC": "camera_toggle"})
	require.NoError(t, err)

	tr := NewTracker(b, turnRate)
	assert.False(t, tr.OnKeyDown("KeyW"))
	assert.True(t, tr.OnKeyDown("ArrowUp"))
	assert.True(t, tr.Snapshot().Forward)

	_, err = ParseBindings(map[string]string{"KeyX": "jump"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestActionNames(t *testing.T) {
	for a := ActionForward; a <= ActionCameraToggle; a++ {
		parsed, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	assert.Equal(t, "none", ActionNone.String())
}

func TestConcurrentEvents(t *testing.T) {
	tr := NewTracker(nil, turnRate)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); tr.OnKeyDown("KeyW"); tr.OnKeyUp("KeyW") }()
		go func() { defer wg.Done(); tr.OnKeyDown("KeyS"); _ = tr.Snapshot() }()
	}
	wg.Wait()

	s := tr.Snapshot()
	assert.False(t, s.Forward && s.Backward)
	tr.Reset()
	assert.Equal(t, State{}, tr.Snapshot())
}
