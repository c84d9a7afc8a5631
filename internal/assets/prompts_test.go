package assets

import (
	"strings"
	"testing"
)

func TestRenderTextRelevancePrompt(t *testing.T) {
	got := RenderTextRelevancePrompt("reel", []string{"residential", "rental"})
	if !strings.Contains(got, "Instagram reel captions") {
		t.Error("expected the kind to be rendered")
	}
	if !strings.Contains(got, "one of residential, rental.") {
		t.Errorf("expected categories to be listed, got:\n%s", got)
	}
	if !strings.Contains(got, "This is a reel.") {
		t.Error("expected reel guidance for short-form content")
	}
}

func TestRenderCommentPrompt(t *testing.T) {
	got := RenderCommentPrompt("post", "Just listed in Maple Grove!")
	if !strings.Contains(got, `"Just listed in Maple Grove!"`) {
		t.Error("expected the excerpt to be quoted in the prompt")
	}
	if strings.Contains(got, "Since this is a reel") {
		t.Error("did not expect reel guidance for a standard post")
	}
}

func TestStaticPromptsEmbedded(t *testing.T) {
	if ImageRelevancePrompt == "" || CommentSystemPrompt == "" {
		t.Error("expected static prompts to be embedded")
	}
}
