// Package simulator drives the simulated clock forward on a real-time schedule.
package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/clock"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
	"github.com/jakechorley/volunteer-dispatch/pkg/metrics"
)

// DefaultStepRule advances the clock five simulated minutes per tick
const DefaultStepRule = "FREQ=MINUTELY;INTERVAL=5"

// Sweeper ends the open assignments of calls whose deadline has passed
type Sweeper interface {
	ExpireOverdueCalls(ctx context.Context) (int, error)
}

// StatusCounter refreshes the per-status call counts
type StatusCounter interface {
	GetCallCountsByStatus(ctx context.Context) ([]model.StatusCount, error)
}

// Tick is the outcome of a single simulator step
type Tick struct {
	Now     time.Time
	Expired int
	Counts  []model.StatusCount
}

type Simulator struct {
	provider *clock.Provider
	sweeper  Sweeper
	counter  StatusCounter
	option   rrule.ROption
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	onTick  func(Tick)
	running bool
}

// New creates a simulator that steps the clock by stepRule every interval of real time.
// An empty stepRule uses DefaultStepRule.
func New(provider *clock.Provider, sweeper Sweeper, counter StatusCounter, interval time.Duration, stepRule string, logger *zap.Logger) (*Simulator, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("simulator interval must be at least 1s, got %s", interval)
	}
	if stepRule == "" {
		stepRule = DefaultStepRule
	}
	opt, err := rrule.StrToROption(stepRule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse step rule %q: %w", stepRule, err)
	}

	return &Simulator{
		provider: provider,
		sweeper:  sweeper,
		counter:  counter,
		option:   *opt,
		interval: interval,
		logger:   logger,
	}, nil
}

// OnTick registers fn to receive the outcome of every scheduled step
func (s *Simulator) OnTick(fn func(Tick)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = fn
}

// Next returns the first occurrence of the step rule strictly after from
func (s *Simulator) Next(from time.Time) (time.Time, error) {
	opt := s.option
	opt.Dtstart = from
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build step rule: %w", err)
	}
	next := r.After(from, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("step rule has no occurrence after %s", from.Format(time.RFC3339))
	}
	return next, nil
}

// Step advances the clock once, expires overdue calls and refreshes the status gauges
func (s *Simulator) Step(ctx context.Context) (Tick, error) {
	next, err := s.Next(s.provider.Now())
	if err != nil {
		return Tick{}, err
	}
	now := s.provider.AdvanceTo(next)
	metrics.SimulatorTicksTotal.Inc()
	metrics.SimulatedClockSeconds.Set(float64(now.Unix()))

	tick := Tick{Now: now}
	tick.Expired, err = s.sweeper.ExpireOverdueCalls(ctx)
	if err != nil {
		return tick, fmt.Errorf("failed to expire overdue calls: %w", err)
	}
	tick.Counts, err = s.counter.GetCallCountsByStatus(ctx)
	if err != nil {
		return tick, fmt.Errorf("failed to count calls: %w", err)
	}

	s.logger.Debug("Simulator step",
		zap.Time("now", now),
		zap.Int("expired", tick.Expired))
	return tick, nil
}

// Start schedules Step every interval. Calling Start on a running simulator does nothing.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		tick, err := s.Step(ctx)
		if err != nil {
			s.logger.Error("Simulator step failed", zap.Error(err))
			return
		}
		s.mu.Lock()
		fn := s.onTick
		s.mu.Unlock()
		if fn != nil {
			fn(tick)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule simulator: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.logger.Info("Simulator started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the schedule and waits for a running step to finish.
// Calling Stop on a stopped simulator does nothing.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("Simulator stopped")
}

func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
