/*
scheduler.go - Periodic reconciliation scheduler

PURPOSE:
  Drives the enrolment reconciler on a fixed cadence. The reconciler
  itself is clock-agnostic; this is the in-process collaborator that
  supplies the tick.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Runs once immediately on start
  - Never overlaps runs: the next tick waits until the previous run
    returned (the reconciler also serializes internally)

CONFIGURATION:
  - Interval: How often to run (default: 15 minutes)
  - Enabled:  Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewScheduler(reconciler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - elective/reconcile.go: The reconciler being driven
  - handlers.go: TriggerReconcile (manual runs)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus/elective-engine/elective"
)

// Scheduler invokes the reconciler on a fixed cadence.
type Scheduler struct {
	Reconciler *elective.Reconciler
	Interval   time.Duration
	Enabled    bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler with the default interval.
func NewScheduler(reconciler *elective.Reconciler, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Reconciler: reconciler,
		Interval:   15 * time.Minute,
		Enabled:    true,
		log:        log,
		stop:       make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info().Msg("scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	s.log.Info().Dur("interval", s.Interval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.log.Info().Msg("scheduler stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start.
	s.tick()

	for {
		select {
		case <-s.ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) tick() {
	if _, err := s.Reconciler.Run(context.Background(), time.Now()); err != nil {
		s.log.Error().Err(err).Msg("scheduled reconciliation run failed")
	}
}

// RunNow triggers an immediate run (for testing/admin).
func (s *Scheduler) RunNow() {
	s.tick()
}
