// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time.
package assets

import (
	_ "embed"
)

// ImageRelevancePrompt instructs the model to judge a single image against
// the real-estate rubric.
//
//go:embed prompts/relevance-image.txt
var ImageRelevancePrompt string

// CommentSystemPrompt sets the persona used when drafting comments.
//
//go:embed prompts/comment-system.txt
var CommentSystemPrompt string
