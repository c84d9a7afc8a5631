package discovery

import (
	"context"
	"testing"

	"github.com/fpang/profile-agent/internal/browser/browsertest"
)

func TestLooksLikeCaption(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"michaelwright_re • Стежити", false},
		{"cindyfernandezgroup", false},
		{"username_here • Follow", false},
		{"2 likes", false},
		{"1w", false},
		{"1,234,567", false},
		{"agent.name Follow", false},
		{"Too short!", false},
		{"Beautiful home in the heart of downtown! #realestate #forsale", true},
		{"Just listed: 4 bed, 3 bath with a pool.", true},
		{"Open house this weekend from noon until four", true},
	}
	for _, tt := range tests {
		if got := LooksLikeCaption(tt.text); got != tt.want {
			t.Errorf("LooksLikeCaption(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExtractExcerptFirstValidCandidate(t *testing.T) {
	page := browsertest.New()
	post := "https://www.instagram.com/p/one/"
	page.Route(post, func(p *browsertest.Page) {
		p.Add(
			&browsertest.Node{Selectors: []string{`article span[dir="auto"]`}, Text: "someagent"},
			&browsertest.Node{Selectors: []string{`article span[dir="auto"]`}, Text: "someagent • Follow"},
			&browsertest.Node{Selectors: []string{`article span[dir="auto"]`}, Text: "Stunning lakefront property, just listed! #realestate"},
		)
	})
	ctx := context.Background()
	_ = page.Navigate(ctx, post)

	got := ExtractExcerpt(ctx, page, KindStandard)
	if got != "Stunning lakefront property, just listed! #realestate" {
		t.Errorf("unexpected excerpt %q", got)
	}
}

func TestExtractExcerptContainerFallback(t *testing.T) {
	page := browsertest.New()
	page.OnEvaluate("innerText", "someagent\n3d\nModern loft downtown with skyline views.\n12 likes")
	ctx := context.Background()

	got := ExtractExcerpt(ctx, page, KindStandard)
	if got != "Modern loft downtown with skyline views." {
		t.Errorf("unexpected excerpt %q", got)
	}
}

func TestExtractExcerptPlaceholder(t *testing.T) {
	page := browsertest.New()
	page.OnEvaluate("innerText", "someagent\n1w")
	ctx := context.Background()

	if got := ExtractExcerpt(ctx, page, KindStandard); got != ImagePlaceholder {
		t.Errorf("expected %q, got %q", ImagePlaceholder, got)
	}
	if got := ExtractExcerpt(ctx, page, KindShortForm); got != VideoPlaceholder {
		t.Errorf("expected %q, got %q", VideoPlaceholder, got)
	}
}
