// Package oracle defines the classifier used to judge content relevance and
// draft comments, and implements it on Gemini.
package oracle

import "context"

// Category is the closed set of topic labels the classifier answers with.
type Category string

const (
	CategoryResidential    Category = "residential"
	CategoryCommercial     Category = "commercial"
	CategoryInvestment     Category = "investment"
	CategoryRental         Category = "rental"
	CategoryConstruction   Category = "construction"
	CategoryRenovation     Category = "renovation"
	CategoryMarketAnalysis Category = "market_analysis"
	CategoryOther          Category = "other"
	CategoryNotRelevant    Category = "not_relevant"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryResidential,
	CategoryCommercial,
	CategoryInvestment,
	CategoryRental,
	CategoryConstruction,
	CategoryRenovation,
	CategoryMarketAnalysis,
	CategoryOther,
	CategoryNotRelevant,
}

// ParseCategory maps a label to a Category. Unknown labels map to
// CategoryOther.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// CategoryStrings returns the labels of cs.
func CategoryStrings(cs []Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Assessment is one classifier judgment of a text or image signal.
type Assessment struct {
	IsRelevant       bool     `json:"isRelevant"`
	RelevanceScore   float64  `json:"relevanceScore"`
	DetectedKeywords string   `json:"detectedKeywords,omitempty"`
	Category         Category `json:"category"`
	Reason           string   `json:"reason"`
}

// CommentDraft is a generated comment with the model's own engagement
// estimate.
type CommentDraft struct {
	Comment           string  `json:"comment"`
	ViralRate         float64 `json:"viralRate"`
	CommentTokenCount int     `json:"commentTokenCount"`
}

// Classifier judges content and drafts comments. Implementations may fail
// for any reason; callers treat failures as missing signals.
type Classifier interface {
	// ClassifyText judges excerpt against rubric.
	ClassifyText(ctx context.Context, excerpt, rubric string) (Assessment, error)
	// ClassifyImage judges an image against rubric.
	ClassifyImage(ctx context.Context, data []byte, mimeType, rubric string) (Assessment, error)
	// DraftComment generates a comment for prompt.
	DraftComment(ctx context.Context, prompt string) (CommentDraft, error)
}
