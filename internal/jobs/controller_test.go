package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/interaction"
)

// blockingRunner blocks each batch until release is closed.
type blockingRunner struct {
	started chan []string
	release chan struct{}
	cfgs    chan config.Interaction
	results []interaction.Result
	err     error
	panics  bool
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan []string, 4),
		release: make(chan struct{}),
		cfgs:    make(chan config.Interaction, 4),
	}
}

func (b *blockingRunner) Run(ctx context.Context, profiles []string, cfg config.Interaction) ([]interaction.Result, error) {
	b.started <- profiles
	b.cfgs <- cfg
	<-b.release
	if b.panics {
		panic("driver exploded")
	}
	return b.results, b.err
}

type memRecorder struct {
	mu      sync.Mutex
	reports []Report
}

func (m *memRecorder) Put(ctx context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func defaults() (config.Interaction, error) { return config.Default(), nil }

func awaitReport(t *testing.T, ticket *Ticket) Report {
	t.Helper()
	select {
	case r, ok := <-ticket.Done:
		if !ok {
			t.Fatal("expected a report, channel closed")
		}
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for report")
	}
	return Report{}
}

func TestTriggerSingleFlight(t *testing.T) {
	runner := newBlockingRunner()
	runner.results = []interaction.Result{
		{ProfileURL: "https://www.instagram.com/a/", Success: true, Liked: true},
	}
	rec := &memRecorder{}
	c := NewController(context.Background(), runner, defaults, Options{Recorder: rec})
	ctx := context.Background()

	ticket, err := c.Trigger(ctx, Request{ProfileURL: "https://www.instagram.com/a/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-runner.started
	if !c.IsProcessing(ctx) {
		t.Error("expected controller to be processing")
	}

	if _, err := c.Trigger(ctx, Request{ProfileURL: "https://www.instagram.com/b/"}); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	// Busy wins over a malformed request.
	if _, err := c.Trigger(ctx, Request{}); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for empty request while busy, got %v", err)
	}

	close(runner.release)
	report := awaitReport(t, ticket)
	c.Wait()

	if !report.Success {
		t.Errorf("expected success, got message %q", report.Message)
	}
	if report.Message != "Processing completed successfully" {
		t.Errorf("unexpected message %q", report.Message)
	}
	if report.RunID != ticket.RunID {
		t.Errorf("expected run ID %s, got %s", ticket.RunID, report.RunID)
	}
	if report.TotalLikes != 1 || report.SuccessfulInteractions != 1 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if c.IsProcessing(ctx) {
		t.Error("expected gate to be released")
	}
	if len(rec.reports) != 1 || rec.reports[0].RunID != ticket.RunID {
		t.Errorf("expected report to be persisted, got %+v", rec.reports)
	}
	if _, ok := <-ticket.Done; ok {
		t.Error("expected Done to be closed after the report")
	}
}

func TestTriggerNoProfiles(t *testing.T) {
	c := NewController(context.Background(), newBlockingRunner(), defaults, Options{})
	ctx := context.Background()

	for _, req := range []Request{{}, {Profiles: []string{}}, {Profiles: []string{"  "}}} {
		if _, err := c.Trigger(ctx, req); !errors.Is(err, ErrNoProfiles) {
			t.Errorf("expected ErrNoProfiles for %+v, got %v", req, err)
		}
	}
	if c.IsProcessing(ctx) {
		t.Error("expected gate to be free after rejected triggers")
	}
}

func TestTriggerReleasesOnPanic(t *testing.T) {
	runner := newBlockingRunner()
	runner.panics = true
	c := NewController(context.Background(), runner, defaults, Options{})
	ctx := context.Background()

	ticket, err := c.Trigger(ctx, Request{Profiles: []string{"https://www.instagram.com/a/"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(runner.release)
	report := awaitReport(t, ticket)
	c.Wait()

	if report.Success {
		t.Error("expected failed report after panic")
	}
	if report.Message != "Processing failed: panic: driver exploded" {
		t.Errorf("unexpected message %q", report.Message)
	}
	if c.IsProcessing(ctx) {
		t.Error("expected gate released after panic")
	}

	// A new batch is admitted afterwards.
	runner2 := newBlockingRunner()
	c.runner = runner2
	next, err := c.Trigger(ctx, Request{ProfileURL: "https://www.instagram.com/b/"})
	if err != nil {
		t.Fatalf("expected a new trigger to be admitted, got %v", err)
	}
	close(runner2.release)
	awaitReport(t, next)
	c.Wait()
}

func TestTriggerReleasesOnError(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("open browser page: chrome not found")
	runner.results = []interaction.Result{{ProfileURL: "https://www.instagram.com/a/", Message: "failed to load profile"}}
	c := NewController(context.Background(), runner, defaults, Options{})

	ticket, err := c.Trigger(context.Background(), Request{ProfileURL: "https://www.instagram.com/a/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(runner.release)
	report := awaitReport(t, ticket)
	c.Wait()

	if report.Success {
		t.Error("expected failure")
	}
	if report.FailedInteractions != 1 {
		t.Errorf("expected 1 failed interaction, got %d", report.FailedInteractions)
	}
	if c.IsProcessing(context.Background()) {
		t.Error("expected gate released")
	}
}

func TestTriggerAppliesOverrides(t *testing.T) {
	runner := newBlockingRunner()
	c := NewController(context.Background(), runner, defaults, Options{})
	on := true

	ticket, err := c.Trigger(context.Background(), Request{
		ProfileURL: "https://www.instagram.com/a/",
		Overrides:  config.Overrides{Commenting: &on},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := <-runner.cfgs
	close(runner.release)
	awaitReport(t, ticket)
	c.Wait()

	if !cfg.Features.Commenting {
		t.Error("expected commenting override to apply")
	}
	if !cfg.Features.Liking {
		t.Error("expected liking to keep its configured value")
	}
}

func TestTriggerConfigError(t *testing.T) {
	c := NewController(context.Background(), newBlockingRunner(), func() (config.Interaction, error) {
		return config.Interaction{}, errors.New("bad yaml")
	}, Options{})

	if _, err := c.Trigger(context.Background(), Request{ProfileURL: "https://www.instagram.com/a/"}); err == nil {
		t.Fatal("expected an error")
	}
	if c.IsProcessing(context.Background()) {
		t.Error("expected gate released after config error")
	}
}

func TestUptime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewController(context.Background(), newBlockingRunner(), defaults, Options{Now: clock})
	now = now.Add(90 * time.Second)

	if got := c.Uptime(); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
}

func TestProfileList(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"single", Request{ProfileURL: "https://www.instagram.com/a/"}, 1},
		{"list wins", Request{ProfileURL: "https://www.instagram.com/a/", Profiles: []string{"https://www.instagram.com/b/", "https://www.instagram.com/c/"}}, 2},
		{"empty list falls back", Request{ProfileURL: "https://www.instagram.com/a/", Profiles: []string{}}, 1},
		{"nothing", Request{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.req.ProfileList()); got != tt.want {
				t.Errorf("expected %d profiles, got %d", tt.want, got)
			}
		})
	}
}

func TestTriggerBusyAfterSharedLockExpires(t *testing.T) {
	mr, client := newRedis(t)
	runner := newBlockingRunner()
	c := NewController(context.Background(), runner, defaults, Options{
		Gate: NewRedisGate(client, "lock", time.Minute),
	})
	ctx := context.Background()

	first, err := c.Trigger(ctx, Request{ProfileURL: "https://www.instagram.com/a/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-runner.started

	// The batch outlives the lock TTL.
	mr.FastForward(2 * time.Minute)
	if mr.Exists("lock") {
		t.Fatal("expected the shared lock to have expired")
	}

	if _, err := c.Trigger(ctx, Request{ProfileURL: "https://www.instagram.com/b/"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while the first batch runs, got %v", err)
	}
	if !c.IsProcessing(ctx) {
		t.Error("expected processing while the first batch runs")
	}

	close(runner.release)
	report := awaitReport(t, first)
	if report.RunID != first.RunID {
		t.Errorf("expected report for %s, got %s", first.RunID, report.RunID)
	}

	second, err := c.Trigger(ctx, Request{ProfileURL: "https://www.instagram.com/b/"})
	if err != nil {
		t.Fatalf("expected trigger after completion to be admitted, got %v", err)
	}
	if report := awaitReport(t, second); report.RunID != second.RunID {
		t.Errorf("expected report for %s, got %s", second.RunID, report.RunID)
	}
	c.Wait()
}
