// Package config holds the interaction settings that drive a batch: which
// features run, pacing, the relevance filter and screenshot delivery.
package config

import (
	"strings"
	"time"
)

// Range is an inclusive delay range in milliseconds.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Durations returns the range bounds as durations, scaled by factor.
func (r Range) Durations(factor int) (time.Duration, time.Duration) {
	return time.Duration(r.Min*factor) * time.Millisecond, time.Duration(r.Max*factor) * time.Millisecond
}

type Features struct {
	Liking           bool `json:"liking"`
	Commenting       bool `json:"commenting"`
	Screenshots      bool `json:"screenshots"`
	ContentFiltering bool `json:"contentFiltering"`
}

type Settings struct {
	WaitBetweenActions  Range `json:"waitBetweenActions"`
	WaitBetweenProfiles Range `json:"waitBetweenProfiles"`
}

// ContentFilter gates which content is engaged with when filtering is on.
type ContentFilter struct {
	MinRelevanceScore float64  `json:"minRelevanceScore"`
	AllowedCategories []string `json:"allowedCategories"`
	ExcludeKeywords   []string `json:"excludeKeywords"`
}

// Webhook is where profile screenshots are delivered.
type Webhook struct {
	URL string `json:"url"`
	// Timeout is in milliseconds.
	Timeout int `json:"timeout"`
}

// TimeoutDuration returns Timeout as a duration.
func (w Webhook) TimeoutDuration() time.Duration {
	return time.Duration(w.Timeout) * time.Millisecond
}

// Interaction is the configuration snapshot for one run. Values are copied,
// never shared, so a run is unaffected by later edits.
type Interaction struct {
	Features      Features      `json:"features"`
	Settings      Settings      `json:"settings"`
	ContentFilter ContentFilter `json:"contentFilter"`
	Webhook       Webhook       `json:"webhook"`
}

// Default returns the configuration used when no file is present.
func Default() Interaction {
	return Interaction{
		Features: Features{
			Liking: true,
		},
		Settings: Settings{
			WaitBetweenActions:  Range{Min: 1000, Max: 2000},
			WaitBetweenProfiles: Range{Min: 15000, Max: 25000},
		},
		ContentFilter: ContentFilter{
			MinRelevanceScore: 60,
			AllowedCategories: []string{
				"residential",
				"commercial",
				"investment",
				"rental",
				"construction",
				"renovation",
				"market_analysis",
			},
			ExcludeKeywords: []string{},
		},
		Webhook: Webhook{
			Timeout: 30000,
		},
	}
}

// Overrides carries per-run feature switches. Nil fields keep the
// configured value.
type Overrides struct {
	Liking           *bool
	Commenting       *bool
	Screenshots      *bool
	ContentFiltering *bool
}

// WithOverrides returns a copy of c with o applied.
func (c Interaction) WithOverrides(o Overrides) Interaction {
	out := c.Clone()
	if o.Liking != nil {
		out.Features.Liking = *o.Liking
	}
	if o.Commenting != nil {
		out.Features.Commenting = *o.Commenting
	}
	if o.Screenshots != nil {
		out.Features.Screenshots = *o.Screenshots
	}
	if o.ContentFiltering != nil {
		out.Features.ContentFiltering = *o.ContentFiltering
	}
	return out
}

// Clone returns a deep copy of c.
func (c Interaction) Clone() Interaction {
	out := c
	out.ContentFilter.AllowedCategories = append([]string(nil), c.ContentFilter.AllowedCategories...)
	out.ContentFilter.ExcludeKeywords = append([]string(nil), c.ContentFilter.ExcludeKeywords...)
	return out
}

// normalize repairs values a hand-edited file may get wrong.
func (c *Interaction) normalize() {
	c.Settings.WaitBetweenActions = c.Settings.WaitBetweenActions.normalized()
	c.Settings.WaitBetweenProfiles = c.Settings.WaitBetweenProfiles.normalized()

	switch {
	case c.ContentFilter.MinRelevanceScore < 0:
		c.ContentFilter.MinRelevanceScore = 0
	case c.ContentFilter.MinRelevanceScore > 100:
		c.ContentFilter.MinRelevanceScore = 100
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = Default().Webhook.Timeout
	}

	c.ContentFilter.AllowedCategories = trimAll(c.ContentFilter.AllowedCategories)
	c.ContentFilter.ExcludeKeywords = trimAll(c.ContentFilter.ExcludeKeywords)
}

func (r Range) normalized() Range {
	if r.Min < 0 {
		r.Min = 0
	}
	if r.Max < 0 {
		r.Max = 0
	}
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
