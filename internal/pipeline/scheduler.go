package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// CycleRunner is what the scheduler drives; *Cycle in production, fakes in
// tests.
type CycleRunner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler triggers ingestion cycles on a cron expression, decoupled from
// any request path. At most one cycle runs at a time: a tick that finds the
// previous cycle still running is skipped and counted, never queued.
type Scheduler struct {
	cron     *cron.Cron
	cycle    CycleRunner
	logger   *slog.Logger
	running  atomic.Bool
	skipped  atomic.Int64
	inFlight sync.WaitGroup
}

// NewScheduler registers the cycle on the given cron expression.
func NewScheduler(spec string, loc *time.Location, cycle CycleRunner, log *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		cycle:  cycle,
		logger: log,
	}

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("register cron %q: %w", spec, err)
	}

	return s, nil
}

// Start begins the schedule and kicks off one immediate cycle so a fresh
// deployment has questions before the first boundary.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		s.runOnce()
	}()
}

// RunOnce triggers a cycle outside the schedule (manual fetch endpoint). It
// is subject to the same overlap guard as scheduled ticks.
func (s *Scheduler) RunOnce() {
	s.inFlight.Add(1)
	defer s.inFlight.Done()
	s.runOnce()
}

// Stop halts the schedule and waits for any running cycle, cron-driven or
// not, to finish. No tick fires after Stop returns.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.inFlight.Wait()
}

// SkippedRuns returns how many ticks were skipped due to an in-flight cycle.
func (s *Scheduler) SkippedRuns() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log("previous cycle still running, tick skipped", "skipped_total", s.skipped.Load())
		return
	}
	defer s.running.Store(false)

	report, err := s.cycle.Run(context.Background())
	if err != nil {
		// Structural failure; the next scheduled tick is still attempted.
		s.log("ingestion cycle aborted", "error", err)
		return
	}

	level := slog.LevelInfo
	msg := "ingestion cycle complete"
	if report.Partial() {
		msg = "ingestion cycle partially complete"
	}
	if s.logger != nil {
		s.logger.Log(context.Background(), level, msg,
			"sources", report.Sources,
			"source_errors", len(report.SourceErrors),
			"new_items", report.NewItems,
			"questions", report.Questions,
			"skipped_items", report.ItemsSkipped,
			"failed_items", report.ItemsFailed,
			"elapsed", report.FinishedAt.Sub(report.StartedAt),
		)
	}
}

func (s *Scheduler) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
