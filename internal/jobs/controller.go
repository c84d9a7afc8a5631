// Package jobs admits at most one batch at a time, runs it in the
// background and delivers an aggregated report when it completes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/interaction"
	"github.com/fpang/profile-agent/internal/metrics"
	"github.com/rs/zerolog/log"
)

var (
	// ErrBusy is returned when a batch is already running.
	ErrBusy = errors.New("processing is already in progress")
	// ErrNoProfiles is returned when a request names no profile.
	ErrNoProfiles = errors.New("either profileUrl or profiles array is required")
)

const persistTimeout = 10 * time.Second

// Runner runs one batch. *batch.Runner implements it.
type Runner interface {
	Run(ctx context.Context, profiles []string, cfg config.Interaction) ([]interaction.Result, error)
}

// Recorder persists finished reports.
type Recorder interface {
	Put(ctx context.Context, r Report) error
}

// ConfigLoader returns the current interaction configuration. It is called
// once per trigger so edits apply to the next batch only.
type ConfigLoader func() (config.Interaction, error)

// Request asks for one batch.
type Request struct {
	ProfileURL string
	Profiles   []string
	Overrides  config.Overrides
}

// ProfileList returns the profiles to visit: Profiles when it has any
// non-empty entry, otherwise ProfileURL.
func (r Request) ProfileList() []string {
	var out []string
	for _, p := range r.Profiles {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		return out
	}
	if p := strings.TrimSpace(r.ProfileURL); p != "" {
		return []string{p}
	}
	return nil
}

// Ticket identifies an admitted batch. Done receives exactly one Report and
// is then closed.
type Ticket struct {
	RunID string
	Done  <-chan Report
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Gate     Gate
	Recorder Recorder
	Now      func() time.Time
}

// Controller is the single-flight job controller.
type Controller struct {
	root       context.Context
	runner     Runner
	loadConfig ConfigLoader
	gate       Gate
	recorder   Recorder
	now        func() time.Time
	started    time.Time

	mu       sync.Mutex
	inFlight bool
	pending  chan Report
	wg       sync.WaitGroup
}

// NewController returns a Controller. Batches run under root, not under the
// triggering request's context, so a client disconnect does not cancel them.
func NewController(root context.Context, runner Runner, loadConfig ConfigLoader, opts Options) *Controller {
	if opts.Gate == nil {
		opts.Gate = &LocalGate{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		root:       root,
		runner:     runner,
		loadConfig: loadConfig,
		gate:       opts.Gate,
		recorder:   opts.Recorder,
		now:        opts.Now,
		started:    opts.Now(),
	}
}

// Trigger admits a batch and starts it in the background. It returns ErrBusy
// when a batch is running and ErrNoProfiles when req names no profile; the
// busy check comes first.
//
// A batch in this process is tracked under c.mu independently of the gate, so
// an expired or stolen shared lock can never admit a second local batch.
func (c *Controller) Trigger(ctx context.Context, req Request) (*Ticket, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, c.rejectBusy()
	}
	c.inFlight = true
	c.mu.Unlock()

	ok, err := c.gate.TryAcquire(ctx)
	if err != nil {
		c.clearInFlight()
		return nil, err
	}
	if !ok {
		c.clearInFlight()
		return nil, c.rejectBusy()
	}

	profiles := req.ProfileList()
	if len(profiles) == 0 {
		c.abandon()
		metrics.TriggerRejects.WithLabelValues("no_profiles").Inc()
		return nil, ErrNoProfiles
	}

	cfg, err := c.loadConfig()
	if err != nil {
		c.abandon()
		return nil, fmt.Errorf("load interaction config: %w", err)
	}
	cfg = cfg.WithOverrides(req.Overrides)

	runID := NewRunID()
	done := make(chan Report, 1)
	c.mu.Lock()
	c.pending = done
	c.mu.Unlock()

	metrics.Processing.Set(1)
	log.Info().
		Str("runId", runID).
		Int("profiles", len(profiles)).
		Bool("liking", cfg.Features.Liking).
		Bool("commenting", cfg.Features.Commenting).
		Bool("screenshots", cfg.Features.Screenshots).
		Bool("contentFiltering", cfg.Features.ContentFiltering).
		Msg("Batch admitted")

	c.wg.Add(1)
	go c.run(runID, profiles, cfg)

	return &Ticket{RunID: runID, Done: done}, nil
}

func (c *Controller) run(runID string, profiles []string, cfg config.Interaction) {
	var (
		results []interaction.Result
		runErr  error
	)

	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("runId", runID).Interface("panic", r).Msg("Batch panicked")
			runErr = fmt.Errorf("panic: %v", r)
		}
		c.finish(runID, results, runErr)
	}()

	results, runErr = c.runner.Run(c.root, profiles, cfg)
}

func (c *Controller) rejectBusy() error {
	metrics.TriggerRejects.WithLabelValues("busy").Inc()
	log.Warn().Msg("Processing is already in progress, rejecting trigger")
	return ErrBusy
}

// abandon undoes an admission that never started a batch.
func (c *Controller) abandon() {
	c.releaseGate()
	c.clearInFlight()
}

func (c *Controller) clearInFlight() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// finish takes the pending completion before releasing the gate so a batch
// admitted right after release can never receive this report.
func (c *Controller) finish(runID string, results []interaction.Result, runErr error) {
	c.mu.Lock()
	done := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.releaseGate()
	c.clearInFlight()
	metrics.Processing.Set(0)
	log.Info().Str("runId", runID).Msg("Processing finished, ready for next trigger")

	report := BuildReport(runID, results, runErr, c.now())
	result := "success"
	if !report.Success {
		result = "failure"
	}
	metrics.Batches.WithLabelValues(result).Inc()
	LogSummary(report)

	if c.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := c.recorder.Put(ctx, report); err != nil {
			log.Warn().Err(err).Str("runId", runID).Msg("Failed to persist run report")
		}
		cancel()
	}

	if done == nil {
		log.Warn().Str("runId", runID).Msg("No pending completion to resolve, dropping report")
		return
	}
	done <- report
	close(done)
}

func (c *Controller) releaseGate() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.gate.Release(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to release batch gate")
	}
}

// IsProcessing reports whether a batch runs in this process or any instance
// holds the gate.
func (c *Controller) IsProcessing(ctx context.Context) bool {
	c.mu.Lock()
	local := c.inFlight
	c.mu.Unlock()
	return local || c.gate.Held(ctx)
}

// Uptime returns how long the controller has existed.
func (c *Controller) Uptime() time.Duration {
	return c.now().Sub(c.started)
}

// Wait blocks until every admitted batch has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
