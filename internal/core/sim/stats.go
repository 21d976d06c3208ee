package sim

import (
	"sync"
	"time"
)

// Stats describes the frame loop so far.
type Stats struct {
	Ticks          uint64        `json:"ticks"`
	SlowTicks      uint64        `json:"slow_ticks"`
	RendererErrors uint64        `json:"renderer_errors"`
	RendererPanics uint64        `json:"renderer_panics"`
	LastTick       time.Duration `json:"last_tick"`
	AverageTick    time.Duration `json:"average_tick"`
	MaxTick        time.Duration `json:"max_tick"`
	LastTimestamp  time.Time     `json:"last_timestamp"`
	TicksPerSecond float64       `json:"ticks_per_second"`
}

// FrameStats accumulates Stats. It is shared between the scheduler that
// records into it and readers such as the HTTP stats endpoint.
type FrameStats struct {
	mu         sync.Mutex
	s          Stats
	total      time.Duration
	firstStamp time.Time
}

func NewFrameStats() *FrameStats {
	return &FrameStats{}
}

func (f *FrameStats) recordTick(took time.Duration, slow bool, stamp time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.s.Ticks == 0 {
		f.firstStamp = stamp
	}
	f.s.Ticks++
	f.total += took
	f.s.LastTick = took
	f.s.AverageTick = f.total / time.Duration(f.s.Ticks)
	if took > f.s.MaxTick {
		f.s.MaxTick = took
	}
	if slow {
		f.s.SlowTicks++
	}
	f.s.LastTimestamp = stamp
	if span := stamp.Sub(f.firstStamp); span > 0 {
		f.s.TicksPerSecond = float64(f.s.Ticks-1) / span.Seconds()
	}
}

func (f *FrameStats) recordRenderFailure(panicked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if panicked {
		f.s.RendererPanics++
		return
	}
	f.s.RendererErrors++
}

func (f *FrameStats) Snapshot() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}
