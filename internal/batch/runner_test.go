package batch

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/fpang/profile-agent/internal/browser"
	"github.com/fpang/profile-agent/internal/browser/browsertest"
	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/interaction"
)

type stubVisitor struct {
	visited []string
	onVisit func(profile string)
}

func (s *stubVisitor) Visit(ctx context.Context, profileURL string, cfg config.Interaction) interaction.Result {
	s.visited = append(s.visited, profileURL)
	if s.onVisit != nil {
		s.onVisit(profileURL)
	}
	return interaction.Result{ProfileURL: profileURL, Success: true, Message: interaction.MsgCompleted}
}

func newRunner(v *stubVisitor, sleeps *[]time.Duration) (*Runner, *bool) {
	released := false
	open := func(ctx context.Context) (browser.Page, func(), error) {
		return browsertest.New(), func() { released = true }, nil
	}
	pacer := interaction.NewPacer(rand.New(rand.NewSource(1)), func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return ctx.Err()
	})
	return NewRunner(open, func(browser.Page) ProfileVisitor { return v }, pacer), &released
}

func TestRunSequentialWithPacingBetween(t *testing.T) {
	v := &stubVisitor{}
	var sleeps []time.Duration
	r, released := newRunner(v, &sleeps)
	profiles := []string{
		"https://www.instagram.com/a/",
		"https://www.instagram.com/b/",
		"https://www.instagram.com/c/",
	}

	results, err := r.Run(context.Background(), profiles, config.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, p := range profiles {
		if v.visited[i] != p || results[i].ProfileURL != p {
			t.Errorf("expected profile %d to be %s, got %s", i, p, v.visited[i])
		}
	}
	if len(sleeps) != 2 {
		t.Errorf("expected 2 inter-profile waits, got %d", len(sleeps))
	}
	for _, d := range sleeps {
		if d < 15*time.Second || d > 25*time.Second {
			t.Errorf("expected wait between 15s and 25s, got %v", d)
		}
	}
	if !*released {
		t.Error("expected page to be released")
	}
}

func TestRunSingleProfileNoWait(t *testing.T) {
	var sleeps []time.Duration
	r, _ := newRunner(&stubVisitor{}, &sleeps)

	if _, err := r.Run(context.Background(), []string{"https://www.instagram.com/a/"}, config.Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sleeps) != 0 {
		t.Errorf("expected no waits, got %d", len(sleeps))
	}
}

func TestRunCancelledReturnsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	v := &stubVisitor{onVisit: func(string) { cancel() }}
	var sleeps []time.Duration
	r, released := newRunner(v, &sleeps)

	results, err := r.Run(ctx, []string{"https://www.instagram.com/a/", "https://www.instagram.com/b/"}, config.Default())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 partial result, got %d", len(results))
	}
	if !*released {
		t.Error("expected page to be released")
	}
}

func TestRunOpenFailure(t *testing.T) {
	open := func(ctx context.Context) (browser.Page, func(), error) {
		return nil, nil, errors.New("chrome not found")
	}
	r := NewRunner(open, nil, interaction.NewPacer(nil, nil))

	results, err := r.Run(context.Background(), []string{"https://www.instagram.com/a/"}, config.Default())
	if err == nil {
		t.Fatal("expected an error")
	}
	if results != nil {
		t.Errorf("expected no results, got %d", len(results))
	}
}
