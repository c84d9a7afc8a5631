// Package relevance scores content candidates and picks the one to engage
// with.
package relevance

import (
	"math"

	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/oracle"
)

// Signal weights used when both a text and an image score are available.
const (
	TextWeight  = 0.6
	ImageWeight = 0.4
)

// Verdict is the final relevance judgment for one candidate.
type Verdict struct {
	TextScore     *float64        `json:"textScore,omitempty"`
	ImageScore    *float64        `json:"imageScore,omitempty"`
	CombinedScore float64         `json:"combinedScore"`
	Category      oracle.Category `json:"category"`
	IsRelevant    bool            `json:"isRelevant"`
	Reason        string          `json:"reason"`
}

// Signal is one scored input to Combine.
type Signal struct {
	Score    float64
	Category oracle.Category
	Reason   string
}

// Gate admits a score and category against the configured threshold and
// category allowlist.
type Gate struct {
	MinScore float64
	Allowed  []oracle.Category
}

// GateFrom builds a Gate from a content filter.
func GateFrom(f config.ContentFilter) Gate {
	allowed := make([]oracle.Category, 0, len(f.AllowedCategories))
	for _, c := range f.AllowedCategories {
		allowed = append(allowed, oracle.ParseCategory(c))
	}
	return Gate{MinScore: f.MinRelevanceScore, Allowed: allowed}
}

// Admits reports whether score meets the threshold and category is allowed.
func (g Gate) Admits(score float64, category oracle.Category) bool {
	if score < g.MinScore {
		return false
	}
	for _, c := range g.Allowed {
		if c == category {
			return true
		}
	}
	return false
}

// Combine merges the available signals into a Verdict and applies gate.
// Both signals with positive scores are weighted 0.6 text, 0.4 image, and
// the category comes from the higher individual score with text winning
// ties. Otherwise the text signal stands alone, or the image signal when
// there is no text signal.
func Combine(text, image *Signal, gate Gate) Verdict {
	var v Verdict
	if text != nil {
		v.TextScore = ptr(text.Score)
	}
	if image != nil {
		v.ImageScore = ptr(image.Score)
	}

	switch {
	case text != nil && image != nil && text.Score > 0 && image.Score > 0:
		v.CombinedScore = math.Round(TextWeight*text.Score + ImageWeight*image.Score)
		if text.Score >= image.Score {
			v.Category = text.Category
		} else {
			v.Category = image.Category
		}
		v.Reason = "Text: " + text.Reason + " | Image: " + image.Reason
	case text != nil:
		v.CombinedScore = text.Score
		v.Category = text.Category
		v.Reason = text.Reason
	case image != nil:
		v.CombinedScore = image.Score
		v.Category = image.Category
		v.Reason = image.Reason
	default:
		v.Category = oracle.CategoryNotRelevant
		v.Reason = "no relevance signal available"
	}

	v.IsRelevant = gate.Admits(v.CombinedScore, v.Category)
	return v
}

// Vetoed is the verdict for content containing an excluded keyword.
func Vetoed(keyword string) Verdict {
	return Verdict{
		CombinedScore: 0,
		Category:      oracle.CategoryNotRelevant,
		IsRelevant:    false,
		Reason:        "excluded keyword: " + keyword,
	}
}

// Unfiltered is the verdict given to every candidate when content
// filtering is off.
func Unfiltered() Verdict {
	return Verdict{
		CombinedScore: 100,
		Category:      oracle.CategoryOther,
		IsRelevant:    true,
		Reason:        "filtering disabled",
	}
}

func ptr(f float64) *float64 { return &f }
