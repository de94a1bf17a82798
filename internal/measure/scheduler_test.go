package measure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/netpulse/netpulse/internal/gate"
	"github.com/netpulse/netpulse/internal/normalize"
	"github.com/netpulse/netpulse/internal/probe"
	"github.com/netpulse/netpulse/internal/record"
	"github.com/netpulse/netpulse/internal/util"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	results []func() (probe.Result, error)
}

func (f *fakeRunner) Kind() record.Kind { return record.KindLatency }

func (f *fakeRunner) Run(ctx context.Context) (probe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return &probe.LatencyResult{Target: "10.30.5.1", SentAt: time.Now().UTC(), Success: true, ResponseTimeMs: 1}, nil
	}
	next := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return next()
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu     sync.Mutex
	writes []record.Measurement
	err    error
}

func (f *fakeSink) Write(ctx context.Context, m record.Measurement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, m)
	return f.err
}

func (f *fakeSink) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type staticGate struct {
	decision gate.Decision
	calls    int
}

func (s *staticGate) ShouldSuppress(ctx context.Context) gate.Decision {
	s.calls++
	return s.decision
}

func newTestScheduler(oracle gate.Oracle, runner probe.Runner, s *fakeSink) *Scheduler {
	return NewScheduler(10*time.Millisecond, 0, oracle, runner,
		normalize.NewNormalizer(nil, nil), s, util.NewLogger("error"))
}

func TestRunOnceCompleted(t *testing.T) {
	runner := &fakeRunner{}
	snk := &fakeSink{}
	sched := newTestScheduler(&staticGate{}, runner, snk)

	ev := sched.RunOnce(context.Background())
	if ev.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %v, want completed", ev.Outcome)
	}
	if ev.ID == "" {
		t.Fatal("cycle id must be assigned")
	}
	if snk.writeCount() != 1 {
		t.Fatalf("writes = %d, want 1", snk.writeCount())
	}
}

func TestRunOnceSuppressedSkipsProbeAndWrite(t *testing.T) {
	runner := &fakeRunner{}
	snk := &fakeSink{}
	oracle := &staticGate{decision: gate.Decision{Suppressed: true, Reason: "currently in a match"}}
	sched := newTestScheduler(oracle, runner, snk)

	ev := sched.RunOnce(context.Background())
	if ev.Outcome != OutcomeSuppressed {
		t.Fatalf("outcome = %v, want suppressed", ev.Outcome)
	}
	if runner.callCount() != 0 {
		t.Fatal("probe must not run on a suppressed cycle")
	}
	if snk.writeCount() != 0 {
		t.Fatal("sink must not be written on a suppressed cycle")
	}
}

func TestRunOnceProbeFailure(t *testing.T) {
	runner := &fakeRunner{results: []func() (probe.Result, error){
		func() (probe.Result, error) { return nil, errors.New("boom") },
	}}
	snk := &fakeSink{}
	sched := newTestScheduler(&staticGate{}, runner, snk)

	ev := sched.RunOnce(context.Background())
	if ev.Outcome != OutcomeProbeFailed {
		t.Fatalf("outcome = %v, want probe_failed", ev.Outcome)
	}
	if ev.Detail != "boom" {
		t.Fatalf("detail = %q", ev.Detail)
	}
	if snk.writeCount() != 0 {
		t.Fatal("failed probe must not reach the sink")
	}
}

func TestRunOnceWriteFailureDoesNotPropagate(t *testing.T) {
	runner := &fakeRunner{}
	snk := &fakeSink{err: errors.New("store unavailable")}
	sched := newTestScheduler(&staticGate{}, runner, snk)

	ev := sched.RunOnce(context.Background())
	if ev.Outcome != OutcomeWriteFailed {
		t.Fatalf("outcome = %v, want write_failed", ev.Outcome)
	}
}

func TestRunLoopIsolatesFailingCycles(t *testing.T) {
	runner := &fakeRunner{results: []func() (probe.Result, error){
		func() (probe.Result, error) { return nil, errors.New("transient") },
		func() (probe.Result, error) {
			return &probe.LatencyResult{Target: "10.30.5.1", SentAt: time.Now().UTC(), Success: true, ResponseTimeMs: 2}, nil
		},
	}}
	snk := &fakeSink{}
	sched := newTestScheduler(&staticGate{}, runner, snk)

	events := make(chan CycleEvent, 16)
	sched.OnCycleComplete = func(ev CycleEvent) { events <- ev }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.RunLoop(ctx)
		close(done)
	}()

	first := waitEvent(t, events)
	if first.Outcome != OutcomeProbeFailed {
		t.Fatalf("first cycle outcome = %v, want probe_failed", first.Outcome)
	}
	second := waitEvent(t, events)
	if second.Outcome != OutcomeCompleted {
		t.Fatalf("cycle after failure = %v, want completed", second.Outcome)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after cancellation")
	}
}

func TestRunLoopStopsAfterMaxRuntime(t *testing.T) {
	runner := &fakeRunner{}
	snk := &fakeSink{}
	sched := NewScheduler(5*time.Millisecond, 30*time.Millisecond, &staticGate{}, runner,
		normalize.NewNormalizer(nil, nil), snk, util.NewLogger("error"))

	done := make(chan struct{})
	go func() {
		sched.RunLoop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after max runtime")
	}
	if snk.writeCount() == 0 {
		t.Fatal("expected at least one completed cycle before the deadline")
	}
}

func waitEvent(t *testing.T, events chan CycleEvent) CycleEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cycle event")
		return CycleEvent{}
	}
}

// End-to-end: no gate identity configured means every cycle probes and
// writes without any oracle HTTP traffic.
func TestLoopWithUnconfiguredGate(t *testing.T) {
	oracle, err := gate.NewRiotOracle(gate.Options{}, util.NewLogger("error"))
	if err != nil {
		t.Fatalf("NewRiotOracle: %v", err)
	}
	runner := &fakeRunner{}
	snk := &fakeSink{}
	sched := newTestScheduler(oracle, runner, snk)

	for i := 0; i < 3; i++ {
		ev := sched.RunOnce(context.Background())
		if ev.Outcome != OutcomeCompleted {
			t.Fatalf("cycle %d outcome = %v", i, ev.Outcome)
		}
	}
	if runner.callCount() != 3 || snk.writeCount() != 3 {
		t.Fatalf("probe/write counts = %d/%d, want 3/3", runner.callCount(), snk.writeCount())
	}
}

// End-to-end: resolved identifier plus an active game suppresses the
// cycle with zero probe or write activity.
func TestLoopSuppressedByActiveGame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/riot/account/v1/accounts/by-riot-id/Player/EUW":
			_, _ = w.Write([]byte(`{"puuid":"abc-123"}`))
		case "/lol/spectator/v5/active-games/by-summoner/abc-123":
			_, _ = w.Write([]byte(`{"gameId":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	oracle, err := gate.NewRiotOracle(gate.Options{
		APIKey:          "RGAPI-test",
		GameName:        "Player",
		TagLine:         "EUW",
		Platform:        "euw1",
		RoutingBaseURL:  srv.URL,
		PlatformBaseURL: srv.URL,
		Client:          srv.Client(),
	}, util.NewLogger("error"))
	if err != nil {
		t.Fatalf("NewRiotOracle: %v", err)
	}

	runner := &fakeRunner{}
	snk := &fakeSink{}
	sched := newTestScheduler(oracle, runner, snk)

	ev := sched.RunOnce(context.Background())
	if ev.Outcome != OutcomeSuppressed {
		t.Fatalf("outcome = %v, want suppressed", ev.Outcome)
	}
	if runner.callCount() != 0 || snk.writeCount() != 0 {
		t.Fatalf("probe/write counts = %d/%d, want 0/0", runner.callCount(), snk.writeCount())
	}
}
