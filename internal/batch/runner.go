// Package batch visits a list of profiles one after another on a single
// browser page.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/profile-agent/internal/browser"
	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/interaction"
	"github.com/rs/zerolog/log"
)

// ProfileVisitor runs one profile visit. *interaction.Visitor implements it.
type ProfileVisitor interface {
	Visit(ctx context.Context, profileURL string, cfg config.Interaction) interaction.Result
}

// Opener starts a page for one batch. The returned release func is called
// when the batch ends.
type Opener func(ctx context.Context) (browser.Page, func(), error)

// VisitorFactory builds the visitor that drives page.
type VisitorFactory func(page browser.Page) ProfileVisitor

// Runner visits profiles sequentially.
type Runner struct {
	open       Opener
	newVisitor VisitorFactory
	pacer      *interaction.Pacer
}

// NewRunner returns a Runner.
func NewRunner(open Opener, newVisitor VisitorFactory, pacer *interaction.Pacer) *Runner {
	return &Runner{open: open, newVisitor: newVisitor, pacer: pacer}
}

// Run visits each profile in order and returns one result per visited
// profile. The error is non-nil only when the whole batch had to stop: the
// page could not be opened or ctx was cancelled. Results gathered before
// the stop are still returned.
func (r *Runner) Run(ctx context.Context, profiles []string, cfg config.Interaction) ([]interaction.Result, error) {
	start := time.Now()
	page, release, err := r.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser page: %w", err)
	}
	defer release()

	visitor := r.newVisitor(page)
	results := make([]interaction.Result, 0, len(profiles))

	log.Info().Int("profiles", len(profiles)).Msg("Batch started")
	for i, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("batch stopped after %d of %d profiles: %w", i, len(profiles), err)
		}

		log.Info().
			Int("index", i+1).
			Int("total", len(profiles)).
			Str("profile", profile).
			Msg("Processing profile")
		results = append(results, visitor.Visit(ctx, profile, cfg))

		if i < len(profiles)-1 {
			if err := r.pacer.Wait(ctx, cfg.Settings.WaitBetweenProfiles); err != nil {
				return results, fmt.Errorf("batch stopped after %d of %d profiles: %w", i+1, len(profiles), err)
			}
		}
	}

	log.Info().
		Int("profiles", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("Batch finished")
	return results, nil
}
