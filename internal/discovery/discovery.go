// Package discovery finds content candidates on a rendered profile page and
// extracts the text and image signals used to score them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fpang/profile-agent/internal/browser"
	"github.com/rs/zerolog/log"
)

// ContentSelector matches anchors pointing at posts or reels.
const ContentSelector = `a[href*="/p/"], a[href*="/reel/"]`

const (
	// ScoringBudget caps how many candidates discovery returns.
	ScoringBudget = 8
	// AnalysisBudget caps how many candidates the selector scores.
	AnalysisBudget = 5

	anchorWait = 10 * time.Second
)

// Kind distinguishes standard posts from short-form video.
type Kind string

const (
	KindStandard  Kind = "post"
	KindShortForm Kind = "reel"
)

// KindOf derives a candidate's kind from its locator.
func KindOf(href string) Kind {
	if strings.Contains(href, "/reel/") {
		return KindShortForm
	}
	return KindStandard
}

// Candidate is one piece of content found on a profile. Href is its identity.
type Candidate struct {
	Href string
	Kind Kind
}

// Dedupe removes repeated hrefs keeping the first occurrence of each, drops
// empty entries, and truncates to limit. A limit of zero or less means no
// limit.
func Dedupe(hrefs []string, limit int) []string {
	seen := make(map[string]struct{}, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Discover waits for content anchors on the current page and returns up to
// limit distinct candidates in document order. A page without anchors yields
// an empty slice and no error.
func Discover(ctx context.Context, page browser.Page, limit int) ([]Candidate, error) {
	if _, err := page.WaitFor(ctx, ContentSelector, anchorWait); err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			log.Debug().Msg("No content anchors found on page")
			return nil, nil
		}
		return nil, fmt.Errorf("wait for content anchors: %w", err)
	}

	anchors, err := page.QueryAll(ctx, ContentSelector)
	if err != nil {
		return nil, fmt.Errorf("query content anchors: %w", err)
	}

	base, _ := page.CurrentURL(ctx)
	hrefs := make([]string, 0, len(anchors))
	for _, a := range anchors {
		href, err := a.Attribute(ctx, "href")
		if err != nil {
			log.Debug().Err(err).Msg("Skipping unreadable anchor")
			continue
		}
		hrefs = append(hrefs, absolute(base, href))
	}

	unique := Dedupe(hrefs, limit)
	candidates := make([]Candidate, 0, len(unique))
	for _, h := range unique {
		candidates = append(candidates, Candidate{Href: h, Kind: KindOf(h)})
	}

	log.Info().
		Int("anchors", len(anchors)).
		Int("candidates", len(candidates)).
		Msg("Content discovered")
	return candidates, nil
}

// Locate re-finds the anchor for href on the current page. Handles from an
// earlier Discover call may have gone stale, so callers locate again just
// before acting.
func Locate(ctx context.Context, page browser.Page, href string) (browser.Element, error) {
	anchors, err := page.QueryAll(ctx, ContentSelector)
	if err != nil {
		return nil, err
	}
	base, _ := page.CurrentURL(ctx)
	for _, a := range anchors {
		h, err := a.Attribute(ctx, "href")
		if err != nil {
			continue
		}
		if absolute(base, h) == href {
			return a, nil
		}
	}
	return nil, browser.ErrNotFound
}

// absolute resolves a possibly relative href against the page URL.
func absolute(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return href
	}
	return b.ResolveReference(ref).String()
}
