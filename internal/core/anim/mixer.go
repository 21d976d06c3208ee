// Package anim plays looping clips whose playback rate is driven by the
// simulation, e.g. wheel spin that follows the vehicle's travel direction.
package anim

import (
	"math"
	"sync"
	"time"
)

// Clip describes a looping animation by name and length.
type Clip struct {
	Name     string        `json:"name" yaml:"name"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Channel is one playing clip. Its local time advances by dt*TimeScale on
// every mixer update and wraps into [0, Duration).
type Channel struct {
	clip      Clip
	timeScale float64
	time      float64
	enabled   bool
}

// SetEffectiveTimeScale sets the playback rate. Negative plays backwards,
// zero freezes the clip.
func (c *Channel) SetEffectiveTimeScale(scale float64) {
	c.timeScale = scale
}

func (c *Channel) TimeScale() float64 { return c.timeScale }

func (c *Channel) Name() string { return c.clip.Name }

// Time returns the local playhead in seconds.
func (c *Channel) Time() float64 { return c.time }

func (c *Channel) advance(dt float64) {
	if !c.enabled || c.timeScale == 0 {
		return
	}
	c.time += dt * c.timeScale
	length := c.clip.Duration.Seconds()
	if length <= 0 {
		c.time = 0
		return
	}
	c.time = math.Mod(c.time, length)
	if c.time < 0 {
		c.time += length
	}
}

// ChannelState is a read-only view of a channel for frame snapshots.
type ChannelState struct {
	Name      string  `json:"name"`
	Time      float64 `json:"time"`
	TimeScale float64 `json:"time_scale"`
}

// Mixer owns a set of channels and advances them together.
type Mixer struct {
	mu       sync.Mutex
	channels []*Channel
	byName   map[string]*Channel
}

func NewMixer() *Mixer {
	return &Mixer{byName: make(map[string]*Channel)}
}

// ClipAction returns the channel playing clip, creating it on first use with
// the given initial rate. Repeated calls for the same clip name share one channel.
func (m *Mixer) ClipAction(clip Clip, initialScale float64) *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.byName[clip.Name]; ok {
		return ch
	}
	ch := &Channel{clip: clip, timeScale: initialScale, enabled: true}
	m.channels = append(m.channels, ch)
	m.byName[clip.Name] = ch
	return ch
}

// SetTimeScale applies the same rate to every channel.
func (m *Mixer) SetTimeScale(scale float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		ch.SetEffectiveTimeScale(scale)
	}
}

func (m *Mixer) Update(dt time.Duration) {
	if dt <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		ch.advance(dt.Seconds())
	}
}

func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

func (m *Mixer) Snapshot() []ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChannelState, len(m.channels))
	for i, ch := range m.channels {
		out[i] = ChannelState{Name: ch.clip.Name, Time: ch.time, TimeScale: ch.timeScale}
	}
	return out
}
