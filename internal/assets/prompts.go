package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed prompts/relevance-text.txt
var textRelevanceTemplate string

//go:embed prompts/comment.txt
var commentTemplate string

// template.Must panics on malformed templates, catching errors at program
// startup rather than at call time.
var (
	textRelevanceTmpl = template.Must(template.New("relevance-text").Parse(textRelevanceTemplate))
	commentTmpl       = template.Must(template.New("comment").Parse(commentTemplate))
)

// PromptData holds the dynamic data injected into prompt templates.
type PromptData struct {
	// Kind is "post" or "reel".
	Kind string
	// Excerpt is the caption text, or a placeholder when none was found.
	Excerpt string
	// Categories lists the category labels the model may answer with.
	Categories []string
	// IsReel is true for short-form video.
	IsReel bool
}

// RenderTextRelevancePrompt renders the rubric used to judge a caption.
func RenderTextRelevancePrompt(kind string, categories []string) string {
	return renderTemplate(textRelevanceTmpl, PromptData{Kind: kind, Categories: categories, IsReel: kind == "reel"})
}

// RenderCommentPrompt renders the request for a comment on the given excerpt.
func RenderCommentPrompt(kind, excerpt string) string {
	return renderTemplate(commentTmpl, PromptData{Kind: kind, Excerpt: excerpt, IsReel: kind == "reel"})
}

func renderTemplate(tmpl *template.Template, data PromptData) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
