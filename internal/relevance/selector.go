package relevance

import (
	"context"
	"errors"
	"math/rand"
	"sort"

	"github.com/fpang/profile-agent/internal/browser"
	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/discovery"
	"github.com/rs/zerolog/log"
)

// ErrNoneQualified is returned when no scored candidate passes the gate.
var ErrNoneQualified = errors.New("no candidate passed the relevance gate")

// Selection is the candidate chosen for interaction.
type Selection struct {
	Candidate discovery.Candidate
	Verdict   Verdict
	// Excerpt is the text the verdict was based on; empty when filtering
	// is off.
	Excerpt string
}

// Selector picks one candidate per profile.
type Selector struct {
	scorer *Scorer
	rng    *rand.Rand
}

// NewSelector returns a Selector. rng drives the unfiltered pick.
func NewSelector(scorer *Scorer, rng *rand.Rand) *Selector {
	return &Selector{scorer: scorer, rng: rng}
}

// Select chooses the candidate to engage with. With filtering off it picks
// uniformly at random. Otherwise it scores up to AnalysisBudget candidates
// in discovery order by opening each one, then returns the highest scoring
// relevant candidate; earlier candidates win ties. The page is returned to
// profileURL afterwards.
func (s *Selector) Select(ctx context.Context, page browser.Page, profileURL string, candidates []discovery.Candidate, cfg config.Interaction) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoneQualified
	}

	if !cfg.Features.ContentFiltering {
		c := candidates[s.rng.Intn(len(candidates))]
		log.Info().Str("href", c.Href).Msg("Filtering disabled, picked candidate at random")
		return Selection{Candidate: c, Verdict: Unfiltered()}, nil
	}

	limit := min(len(candidates), discovery.AnalysisBudget)
	scored := make([]Selection, 0, limit)
	for _, c := range candidates[:limit] {
		if err := ctx.Err(); err != nil {
			return Selection{}, err
		}
		if err := page.Navigate(ctx, c.Href); err != nil {
			log.Warn().Err(err).Str("href", c.Href).Msg("Could not open candidate for scoring")
			continue
		}
		v, excerpt := s.scorer.Score(ctx, page, c.Kind, cfg)
		log.Debug().
			Str("href", c.Href).
			Float64("score", v.CombinedScore).
			Bool("relevant", v.IsRelevant).
			Msg("Candidate scored")
		if v.IsRelevant {
			scored = append(scored, Selection{Candidate: c, Verdict: v, Excerpt: excerpt})
		}
	}

	if err := page.Navigate(ctx, profileURL); err != nil {
		log.Warn().Err(err).Msg("Could not return to profile after scoring")
	}

	best, err := Best(scored)
	if err != nil {
		log.Info().Int("scored", limit).Msg("No relevant content found")
		return Selection{}, err
	}
	log.Info().
		Str("href", best.Candidate.Href).
		Float64("score", best.Verdict.CombinedScore).
		Str("category", string(best.Verdict.Category)).
		Int("relevant", len(scored)).
		Msg("Selected most relevant candidate")
	return best, nil
}

// Best returns the relevant selection with the highest combined score,
// preferring the earliest on ties.
func Best(selections []Selection) (Selection, error) {
	relevant := make([]Selection, 0, len(selections))
	for _, s := range selections {
		if s.Verdict.IsRelevant {
			relevant = append(relevant, s)
		}
	}
	if len(relevant) == 0 {
		return Selection{}, ErrNoneQualified
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Verdict.CombinedScore > relevant[j].Verdict.CombinedScore
	})
	return relevant[0], nil
}
