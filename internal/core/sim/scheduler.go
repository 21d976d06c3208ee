package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/kartking/internal/core/observability/log"
)

// Renderer draws a frame. Errors and panics are counted and otherwise ignored.
type Renderer interface {
	Render(Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame) error

func (f RendererFunc) Render(frame Frame) error { return f(frame) }

// Discard is a renderer that draws nothing.
var Discard Renderer = RendererFunc(func(Frame) error { return nil })

const DefaultRefreshRate = 60

// Scheduler drives one tick per refresh. Step may be called directly for
// deterministic stepping; Run drives Step from a ticker until Stop or
// context cancellation.
type Scheduler struct {
	sim      *Context
	renderer Renderer
	interval time.Duration
	slowTick time.Duration
	clock    func() time.Time
	stats    *FrameStats
	logger   log.Log

	stepMu  sync.Mutex
	started bool
	last    time.Time
	seq     uint64

	running int32

	// stop holds at most one pending stop request; Run consumes it.
	stop chan struct{}
}

type SchedulerOption func(*Scheduler)

// WithRefreshRate sets the tick rate of Run in Hz.
func WithRefreshRate(hz float64) SchedulerOption {
	return func(s *Scheduler) {
		if hz > 0 {
			s.interval = time.Duration(float64(time.Second) / hz)
		}
	}
}

// WithSlowTick sets the tick duration above which a warning is logged. Zero
// disables the warning.
func WithSlowTick(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.slowTick = d }
}

func WithClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

func WithStats(stats *FrameStats) SchedulerOption {
	return func(s *Scheduler) { s.stats = stats }
}

func WithSchedulerLogger(logger log.Log) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

func NewScheduler(sim *Context, renderer Renderer, opts ...SchedulerOption) *Scheduler {
	if renderer == nil {
		renderer = Discard
	}
	s := &Scheduler{
		sim:      sim,
		renderer: renderer,
		interval: time.Second / DefaultRefreshRate,
		clock:    time.Now,
		stats:    NewFrameStats(),
		logger:   log.Nop(),
		stop:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "scheduler"))
	return s
}

func (s *Scheduler) Stats() Stats { return s.stats.Snapshot() }

func (s *Scheduler) Interval() time.Duration { return s.interval }

func (s *Scheduler) Running() bool { return atomic.LoadInt32(&s.running) == 1 }

// Step runs one tick stamped at timestamp. The first tick has dt 0, and a
// timestamp earlier than the previous one is treated as dt 0.
func (s *Scheduler) Step(timestamp time.Time) Frame {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	var dt time.Duration
	if s.started {
		dt = timestamp.Sub(s.last)
		if dt < 0 {
			dt = 0
		}
	}
	s.started = true
	s.last = timestamp
	s.seq++

	began := time.Now()
	frame := s.sim.Advance(timestamp, dt)
	frame.Seq = s.seq
	frame.DT = dt
	frame.Digest = Digest(frame)
	s.render(frame)
	took := time.Since(began)

	slow := s.slowTick > 0 && took > s.slowTick
	if slow {
		s.logger.Warn("Slow tick",
			log.Uint64("seq", frame.Seq),
			log.Duration("took", took),
			log.Duration("threshold", s.slowTick),
		)
	}
	s.stats.recordTick(took, slow, timestamp)
	return frame
}

func (s *Scheduler) render(frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.recordRenderFailure(true)
			s.logger.Error("Renderer panicked",
				log.Uint64("seq", frame.Seq),
				log.Error(fmt.Errorf("%w: %v", ErrRendererPanic, r)),
			)
		}
	}()
	if err := s.renderer.Render(frame); err != nil {
		s.stats.recordRenderFailure(false)
		s.logger.Debug("Render failed", log.Uint64("seq", frame.Seq), log.Error(err))
	}
}

// Run ticks until Stop is called or ctx is done. A Stop issued before Run
// starts makes Run return without ticking. It returns ErrSchedulerRunning if
// another Run is in progress.
func (s *Scheduler) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrSchedulerRunning
	}
	defer atomic.StoreInt32(&s.running, 0)

	select {
	case <-s.stop:
		s.logger.Info("Frame loop stopped before start")
		return nil
	default:
	}

	s.logger.Info("Frame loop started", log.Duration("interval", s.interval))
	defer func() {
		s.logger.Info("Frame loop stopped", log.Uint64("ticks", s.stats.Snapshot().Ticks))
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Step(s.clock())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-ticker.C:
			s.Step(s.clock())
		}
	}
}

// Stop halts the running loop after its current tick, or the next Run if
// none is running. Repeated calls before Run consumes the request collapse
// into one.
func (s *Scheduler) Stop() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}
