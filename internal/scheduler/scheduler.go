// Package scheduler runs the sample-then-apply control cycle at a fixed
// interval and publishes a report after each cycle.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"smartfan/internal/fan"
	"smartfan/internal/logger"
	"smartfan/internal/report"
	"smartfan/internal/sender"
	"smartfan/internal/sensor"
)

const (
	defaultInterval    = 10 * time.Second
	defaultSendTimeout = 10 * time.Second
)

// Sampler reads the current CPU temperature and socket count.
type Sampler interface {
	Sample(ctx context.Context) (*sensor.Reading, error)
}

// Applier drives the fans for a temperature and socket count.
type Applier interface {
	Apply(ctx context.Context, temp float64, cpuCount int) (*fan.Result, error)
	CPU2FansDisabled() bool
}

// Options tunes the scheduler.
type Options struct {
	Interval     time.Duration
	CycleTimeout time.Duration
	SendTimeout  time.Duration
	Hostname     string
	BMCHost      string
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Scheduler owns the control loop. Cycles never overlap: a cycle that runs
// past the interval delays the next tick instead of stacking.
type Scheduler struct {
	sampler Sampler
	applier Applier
	sender  sender.Sender
	opts    Options
	clock   clock.Clock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped scheduler. A nil sender discards reports.
func New(sampler Sampler, applier Applier, s sender.Sender, opts Options) *Scheduler {
	if s == nil {
		s = sender.Discard{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	return &Scheduler{
		sampler: sampler,
		applier: applier,
		sender:  s,
		opts:    opts,
		clock:   opts.Clock,
	}
}

// Start runs one cycle immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	logger.WithComponent("scheduler").Info().
		Dur("interval", s.opts.Interval).
		Dur("cycle_timeout", s.opts.CycleTimeout).
		Msg("Starting control loop")

	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	logger.WithComponent("scheduler").Info().Msg("Control loop stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// The ticker exists before the first cycle so a tick during that cycle
	// is not lost.
	ticker := s.clock.Ticker(s.opts.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cycle: sample, apply when a temperature is
// available, then publish the report. Errors are logged and carried in the
// report; they never stop the loop.
func (s *Scheduler) RunOnce(ctx context.Context) *report.Cycle {
	log := logger.WithComponent("scheduler")
	start := s.clock.Now()

	cycle := &report.Cycle{
		Timestamp: start,
		Hostname:  s.opts.Hostname,
		BMCHost:   s.opts.BMCHost,
		Success:   true,
	}

	cycleCtx := ctx
	if s.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.opts.CycleTimeout)
		defer cancel()
	}

	s.control(cycleCtx, cycle)
	cycle.CPU2FansDisabled = s.applier.CPU2FansDisabled()
	cycle.DurationMS = s.clock.Since(start).Milliseconds()

	if ctx.Err() == nil {
		sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
		if err := s.sender.Send(sendCtx, cycle); err != nil {
			log.Warn().Err(err).Msg("Failed to publish cycle report")
		}
		cancel()
	}

	ev := log.Debug()
	if !cycle.Success {
		ev = log.Warn()
	}
	ev.Bool("success", cycle.Success).
		Int64("duration_ms", cycle.DurationMS).
		Str("error", cycle.Error).
		Msg("Cycle finished")
	return cycle
}

func (s *Scheduler) control(ctx context.Context, cycle *report.Cycle) {
	reading, err := s.sampler.Sample(ctx)
	if err != nil {
		cycle.Fail(err)
		return
	}

	cycle.SetTemperature(reading.Temperature)
	cycle.CPUCount = reading.CPUCount
	cycle.Sensors = reading.Samples

	res, err := s.applier.Apply(ctx, reading.Temperature, reading.CPUCount)
	if res != nil {
		cycle.SetSpeed(res.Speed)
	}
	if err != nil {
		cycle.Fail(err)
	}
}
