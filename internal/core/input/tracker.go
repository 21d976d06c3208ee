// Package input turns raw key press/release events into the control state the
// simulation reads every tick.
package input

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zeusync/kartking/internal/core/observability/log"
)

// Action is a logical control bound to a key.
type Action uint8

const (
	ActionNone Action = iota
	ActionForward
	ActionBackward
	ActionTurnLeft
	ActionTurnRight
	ActionBrake
	ActionCameraToggle
)

var actionNames = map[Action]string{
	ActionForward:      "forward",
	ActionBackward:     "backward",
	ActionTurnLeft:     "turn_left",
	ActionTurnRight:    "turn_right",
	ActionBrake:        "brake",
	ActionCameraToggle: "camera_toggle",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "none"
}

func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Bindings maps key codes (as reported by browsers, e.g. "KeyW", "Space") to actions.
type Bindings map[string]Action

func DefaultBindings() Bindings {
	return Bindings{
		"KeyW":  ActionForward,
		"KeyS":  ActionBackward,
		"KeyA":  ActionTurnLeft,
		"KeyD":  ActionTurnRight,
		"Space": ActionBrake,
		"KeyG":  ActionCameraToggle,
	}
}

// ParseBindings converts a code -> action-name table, e.g. from configuration.
func ParseBindings(raw map[string]string) (Bindings, error) {
	b := make(Bindings, len(raw))
	for code, name := range raw {
		a, err := ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", code, err)
		}
		b[code] = a
	}
	return b, nil
}

// State is the control record. Forward and Backward are never both true, and
// at most one turn rate is non-zero.
type State struct {
	Forward       bool    `json:"forward"`
	Backward      bool    `json:"backward"`
	TurnLeftRate  float64 `json:"turn_left_rate"`
	TurnRightRate float64 `json:"turn_right_rate"`
	Brake         bool    `json:"brake"`
}

// Steering is the signed yaw rate requested by the turn keys; positive turns left.
func (s State) Steering() float64 {
	return s.TurnLeftRate - s.TurnRightRate
}

// Tracker applies key events to State synchronously, last event wins. It is
// safe to feed from several goroutines.
type Tracker struct {
	mu       sync.Mutex
	bindings Bindings
	turnRate float64
	state    State
	onToggle func()
	logger   log.Log
}

type Option func(*Tracker)

// WithToggleHook installs the function called on every camera-toggle key press.
func WithToggleHook(fn func()) Option {
	return func(t *Tracker) { t.onToggle = fn }
}

func WithLogger(logger log.Log) Option {
	return func(t *Tracker) { t.logger = logger }
}

func NewTracker(bindings Bindings, turnRate float64, opts ...Option) *Tracker {
	if bindings == nil {
		bindings = DefaultBindings()
	}
	t := &Tracker{
		bindings: bindings,
		turnRate: turnRate,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetToggleHook replaces the camera-toggle hook after construction.
func (t *Tracker) SetToggleHook(fn func()) {
	t.mu.Lock()
	t.onToggle = fn
	t.mu.Unlock()
}

// OnKeyDown handles a press. It reports whether the code is bound.
func (t *Tracker) OnKeyDown(code string) bool {
	action, ok := t.lookup(code)
	if !ok {
		return false
	}

	t.mu.Lock()
	switch action {
	case ActionForward:
		t.state.Forward, t.state.Backward = true, false
	case ActionBackward:
		t.state.Forward, t.state.Backward = false, true
	case ActionTurnLeft:
		t.state.TurnLeftRate, t.state.TurnRightRate = t.turnRate, 0
	case ActionTurnRight:
		t.state.TurnLeftRate, t.state.TurnRightRate = 0, t.turnRate
	case ActionBrake:
		t.state.Brake = true
	}
	hook := t.onToggle
	t.mu.Unlock()

	if action == ActionCameraToggle && hook != nil {
		hook()
	}
	return true
}

// OnKeyUp handles a release. Releasing either drive key stops driving and
// releasing either turn key stops turning.
func (t *Tracker) OnKeyUp(code string) bool {
	action, ok := t.lookup(code)
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch action {
	case ActionForward, ActionBackward:
		t.state.Forward, t.state.Backward = false, false
	case ActionTurnLeft, ActionTurnRight:
		t.state.TurnLeftRate, t.state.TurnRightRate = 0, 0
	case ActionBrake:
		t.state.Brake = false
	}
	return true
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset releases every key.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = State{}
	t.mu.Unlock()
}

func (t *Tracker) lookup(code string) (Action, bool) {
	t.mu.Lock()
	action, ok := t.bindings[code]
	t.mu.Unlock()
	if !ok || action == ActionNone {
		t.logger.Debug("Ignoring unbound key", log.String("code", code))
		return ActionNone, false
	}
	return action, true
}
