package measure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/netpulse/netpulse/internal/gate"
	"github.com/netpulse/netpulse/internal/normalize"
	"github.com/netpulse/netpulse/internal/probe"
	"github.com/netpulse/netpulse/internal/record"
	"github.com/netpulse/netpulse/internal/sink"
	"github.com/netpulse/netpulse/internal/util"
)

// Outcome classifies how a cycle ended. Every outcome except Completed
// means the record (if any) was dropped; nothing is retried.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeSuppressed  Outcome = "suppressed"
	OutcomeProbeFailed Outcome = "probe_failed"
	OutcomeWriteFailed Outcome = "write_failed"
)

// CycleEvent describes one finished cycle for logging, the journal, and
// the control stream.
type CycleEvent struct {
	ID        string
	Kind      record.Kind
	StartedAt time.Time
	Outcome   Outcome
	Detail    string
}

// Scheduler drives measurement cycles: gate check, probe, normalize,
// write, sleep. One cycle runs to completion before the next starts;
// any failure inside a cycle is contained to that cycle. Only
// cancellation or the optional max runtime stop the loop.
type Scheduler struct {
	interval   time.Duration
	maxRuntime time.Duration
	gate       gate.Oracle
	runner     probe.Runner
	normalizer *normalize.Normalizer
	sink       sink.Sink
	logger     util.Logger

	// OnCycleComplete, when set, is called synchronously after every
	// cycle from the loop goroutine.
	OnCycleComplete func(CycleEvent)
}

func NewScheduler(interval, maxRuntime time.Duration, oracle gate.Oracle, runner probe.Runner, normalizer *normalize.Normalizer, s sink.Sink, logger util.Logger) *Scheduler {
	return &Scheduler{
		interval:   interval,
		maxRuntime: maxRuntime,
		gate:       oracle,
		runner:     runner,
		normalizer: normalizer,
		sink:       s,
		logger:     logger,
	}
}

// RunLoop runs cycles until ctx is cancelled or the max runtime has
// elapsed. The first cycle starts immediately; subsequent cycle starts
// are spaced by the configured interval. The loop never exits mid-cycle.
func (s *Scheduler) RunLoop(ctx context.Context) {
	var deadline time.Time
	if s.maxRuntime > 0 {
		deadline = time.Now().Add(s.maxRuntime)
	}
	s.logger.Info("measurement loop started",
		"kind", string(s.runner.Kind()), "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			s.logger.Info("max runtime reached, stopping")
			return
		}
		select {
		case <-ctx.Done():
			s.logger.Info("measurement loop stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes exactly one cycle and reports its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) CycleEvent {
	ev := CycleEvent{
		ID:        uuid.New().String(),
		Kind:      s.runner.Kind(),
		StartedAt: time.Now().UTC(),
	}

	decision := s.gate.ShouldSuppress(ctx)
	if decision.Suppressed {
		s.logger.Info("cycle suppressed", "cycle", ev.ID, "reason", decision.Reason)
		ev.Outcome = OutcomeSuppressed
		ev.Detail = decision.Reason
		return s.finish(ev)
	}

	raw, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Warn("probe failed, cycle skipped", "cycle", ev.ID, "error", err)
		ev.Outcome = OutcomeProbeFailed
		ev.Detail = err.Error()
		return s.finish(ev)
	}

	rec, err := s.normalizer.Normalize(raw)
	if err != nil {
		s.logger.Warn("normalization failed, cycle skipped", "cycle", ev.ID, "error", err)
		ev.Outcome = OutcomeProbeFailed
		ev.Detail = err.Error()
		return s.finish(ev)
	}

	if err := s.sink.Write(ctx, rec); err != nil {
		// Already logged by the sink; no retry, no buffering.
		ev.Outcome = OutcomeWriteFailed
		ev.Detail = err.Error()
		return s.finish(ev)
	}

	s.logger.Debug("cycle completed", "cycle", ev.ID, "kind", string(ev.Kind))
	ev.Outcome = OutcomeCompleted
	return s.finish(ev)
}

func (s *Scheduler) finish(ev CycleEvent) CycleEvent {
	if s.OnCycleComplete != nil {
		s.OnCycleComplete(ev)
	}
	return ev
}
