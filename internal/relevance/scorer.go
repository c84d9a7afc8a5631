package relevance

import (
	"context"
	"strings"

	"github.com/fpang/profile-agent/internal/assets"
	"github.com/fpang/profile-agent/internal/browser"
	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/discovery"
	"github.com/fpang/profile-agent/internal/oracle"
	"github.com/rs/zerolog/log"
)

// Scorer judges the content currently open on a page.
type Scorer struct {
	oracle oracle.Classifier
}

// NewScorer returns a Scorer that consults c.
func NewScorer(c oracle.Classifier) *Scorer {
	return &Scorer{oracle: c}
}

// Score returns the verdict for the content open on page along with the
// excerpt it was judged on. Classifier and capture failures only remove a
// signal; Score itself never fails.
func (s *Scorer) Score(ctx context.Context, page browser.Page, kind discovery.Kind, cfg config.Interaction) (Verdict, string) {
	if !cfg.Features.ContentFiltering {
		return Unfiltered(), ""
	}

	excerpt := discovery.ExtractExcerpt(ctx, page, kind)
	if kw, ok := excludedKeyword(excerpt, cfg.ContentFilter.ExcludeKeywords); ok {
		log.Info().Str("keyword", kw).Msg("Content vetoed by excluded keyword")
		return Vetoed(kw), excerpt
	}

	gate := GateFrom(cfg.ContentFilter)
	text := s.textSignal(ctx, excerpt, kind)
	image := s.imageSignal(ctx, page)

	v := Combine(text, image, gate)
	log.Info().
		Float64("combinedScore", v.CombinedScore).
		Str("category", string(v.Category)).
		Bool("relevant", v.IsRelevant).
		Bool("hasText", text != nil).
		Bool("hasImage", image != nil).
		Msg("Content scored")
	return v, excerpt
}

func (s *Scorer) textSignal(ctx context.Context, excerpt string, kind discovery.Kind) *Signal {
	rubric := assets.RenderTextRelevancePrompt(string(kind), oracle.CategoryStrings(oracle.Categories))
	a, err := s.oracle.ClassifyText(ctx, excerpt, rubric)
	if err != nil {
		log.Warn().Err(err).Msg("Text classification failed")
		return nil
	}
	return &Signal{Score: a.RelevanceScore, Category: a.Category, Reason: a.Reason}
}

func (s *Scorer) imageSignal(ctx context.Context, page browser.Page) *Signal {
	img, err := discovery.CaptureImage(ctx, page)
	if err != nil {
		log.Debug().Err(err).Msg("No image signal")
		return nil
	}
	a, err := s.oracle.ClassifyImage(ctx, img.Data, img.MIMEType, assets.ImageRelevancePrompt)
	if err != nil {
		log.Warn().Err(err).Msg("Image classification failed")
		return nil
	}
	return &Signal{Score: a.RelevanceScore, Category: a.Category, Reason: a.Reason}
}

// excludedKeyword returns the first keyword found in text, ignoring case.
func excludedKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}
