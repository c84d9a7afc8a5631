// Package schedule runs batches periodically from a profiles file.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/fpang/profile-agent/internal/jobs"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Triggerer starts batches. *jobs.Controller implements it.
type Triggerer interface {
	Trigger(ctx context.Context, req jobs.Request) (*jobs.Ticket, error)
}

// ProfileSource returns the profiles to visit on each tick.
type ProfileSource func() ([]string, error)

// Loop wraps robfig/cron and fires a batch on every tick. A tick that finds
// a batch already running is skipped.
type Loop struct {
	cron     *cron.Cron
	spec     string
	trigger  Triggerer
	profiles ProfileSource
}

// New creates a Loop firing on spec, e.g. "@every 90m" or "0 */2 * * *".
func New(spec string, trigger Triggerer, profiles ProfileSource) *Loop {
	return &Loop{
		cron:     cron.New(),
		spec:     spec,
		trigger:  trigger,
		profiles: profiles,
	}
}

// Start registers the job and starts the scheduler. When immediate is set,
// one batch is started right away instead of waiting for the first tick.
func (l *Loop) Start(ctx context.Context, immediate bool) error {
	if _, err := l.cron.AddFunc(l.spec, func() { l.Tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", l.spec, err)
	}
	l.cron.Start()
	log.Info().Str("spec", l.spec).Msg("Schedule started")

	if immediate {
		go l.Tick(ctx)
	}
	return nil
}

// Stop stops the scheduler and waits for a running tick function to return.
// Batches already admitted keep running under the controller.
func (l *Loop) Stop() {
	<-l.cron.Stop().Done()
	log.Info().Msg("Schedule stopped")
}

// Tick triggers one batch. It returns the ticket, or nil when nothing was
// started.
func (l *Loop) Tick(ctx context.Context) *jobs.Ticket {
	profiles, err := l.profiles()
	if err != nil {
		log.Error().Err(err).Msg("Scheduled batch: could not load profiles")
		return nil
	}
	if len(profiles) == 0 {
		log.Warn().Msg("Scheduled batch: no profiles configured, nothing to do")
		return nil
	}

	ticket, err := l.trigger.Trigger(ctx, jobs.Request{Profiles: profiles})
	switch {
	case errors.Is(err, jobs.ErrBusy):
		log.Info().Msg("Scheduled batch skipped: a batch is already running")
		return nil
	case err != nil:
		log.Error().Err(err).Msg("Scheduled batch failed to start")
		return nil
	}
	log.Info().Str("runId", ticket.RunID).Int("profiles", len(profiles)).Msg("Scheduled batch started")
	return ticket
}
