package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/profile-agent/internal/assets"
	"github.com/fpang/profile-agent/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// NewGeminiClient creates a Gemini API client for apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// Gemini implements Classifier with structured-output Gemini calls.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Classifier = (*Gemini)(nil)

// NewGemini returns a Classifier backed by client. An empty model selects
// DefaultModel.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model}
}

var assessmentSchema = &genai.Schema{
	Type:        genai.TypeObject,
	Description: "Whether Instagram content is relevant to a real estate business and worth engaging with.",
	Properties: map[string]*genai.Schema{
		"isRelevant": {
			Type:        genai.TypeBoolean,
			Description: "Whether the content is relevant to real estate business.",
		},
		"relevanceScore": {
			Type:        genai.TypeNumber,
			Description: "Relevance score from 0 to 100, where 100 is highly relevant to real estate.",
		},
		"detectedKeywords": {
			Type:        genai.TypeString,
			Description: "Comma-separated list of real estate keywords found in the content.",
		},
		"category": {
			Type:        genai.TypeString,
			Description: "Real estate category of the content.",
			Enum:        CategoryStrings(Categories),
		},
		"reason": {
			Type:        genai.TypeString,
			Description: "Brief explanation of why the content is or isn't relevant to real estate.",
		},
	},
	Required: []string{"isRelevant", "relevanceScore", "category", "reason"},
}

var commentSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "Comments that are engaging and likely to attract likes.",
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"comment": {
				Type:        genai.TypeString,
				Description: "A comment between 150 and 250 characters.",
			},
			"viralRate": {
				Type:        genai.TypeNumber,
				Description: "The viral rate, measured on a scale of 0 to 100.",
			},
			"commentTokenCount": {
				Type:        genai.TypeInteger,
				Description: "The total number of tokens in the comment.",
			},
		},
		Required: []string{"comment", "viralRate", "commentTokenCount"},
	},
}

func (g *Gemini) ClassifyText(ctx context.Context, excerpt, rubric string) (Assessment, error) {
	raw, err := g.generate(ctx, "text", rubric, []*genai.Part{{Text: excerpt}}, assessmentSchema)
	if err != nil {
		return Assessment{}, err
	}
	return parseAssessment("text", raw)
}

func (g *Gemini) ClassifyImage(ctx context.Context, data []byte, mimeType, rubric string) (Assessment, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		{Text: "Classify this image."},
	}
	if rubric == "" {
		rubric = assets.ImageRelevancePrompt
	}
	raw, err := g.generate(ctx, "image", rubric, parts, assessmentSchema)
	if err != nil {
		return Assessment{}, err
	}
	return parseAssessment("image", raw)
}

func (g *Gemini) DraftComment(ctx context.Context, prompt string) (CommentDraft, error) {
	raw, err := g.generate(ctx, "comment", assets.CommentSystemPrompt, []*genai.Part{{Text: prompt}}, commentSchema)
	if err != nil {
		return CommentDraft{}, err
	}
	draft, err := decodeFirst[CommentDraft](raw)
	if err != nil {
		return CommentDraft{}, &Error{Kind: KindMalformed, Op: "comment", Message: "unparseable comment", Err: err}
	}
	if strings.TrimSpace(draft.Comment) == "" {
		return CommentDraft{}, &Error{Kind: KindEmpty, Op: "comment", Message: "model returned an empty comment"}
	}
	return draft, nil
}

// generate sends one structured-output request and returns the raw answer.
func (g *Gemini) generate(ctx context.Context, op, system string, parts []*genai.Part, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	elapsed := time.Since(start)

	if err != nil {
		cerr := classify(op, err)
		metrics.ObserveOracle(op, elapsed, cerr.Kind.String())
		log.Warn().Err(err).Str("operation", op).Str("kind", cerr.Kind.String()).Dur("duration", elapsed).Msg("Gemini call failed")
		return "", cerr
	}

	if resp == nil || resp.Text() == "" {
		metrics.ObserveOracle(op, elapsed, KindEmpty.String())
		log.Warn().Str("operation", op).Dur("duration", elapsed).Msg("Received empty response from Gemini")
		return "", &Error{Kind: KindEmpty, Op: op, Message: "received empty response from Gemini API"}
	}

	metrics.ObserveOracle(op, elapsed, "ok")
	evt := log.Debug().Str("operation", op).Str("model", g.model).Dur("duration", elapsed)
	if resp.UsageMetadata != nil {
		evt = evt.Int32("inputTokens", resp.UsageMetadata.PromptTokenCount).
			Int32("outputTokens", resp.UsageMetadata.CandidatesTokenCount)
	}
	evt.Msg("Gemini response received")

	return resp.Text(), nil
}

func parseAssessment(op, raw string) (Assessment, error) {
	a, err := decodeFirst[Assessment](raw)
	if err != nil {
		return Assessment{}, &Error{Kind: KindMalformed, Op: op, Message: "unparseable assessment", Err: err}
	}
	a.Category = ParseCategory(string(a.Category))
	a.RelevanceScore = clampScore(a.RelevanceScore)
	return a, nil
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}
