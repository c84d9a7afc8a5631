package discovery

import (
	"context"
	"reflect"
	"testing"

	"github.com/fpang/profile-agent/internal/browser/browsertest"
)

const profileURL = "https://www.instagram.com/someagent/"

func anchor(href string) *browsertest.Node {
	return &browsertest.Node{
		Selectors: []string{`a[href*="/p/"]`, `a[href*="/reel/"]`},
		Attrs:     map[string]string{"href": href},
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name  string
		in    []string
		limit int
		want  []string
	}{
		{"first occurrence wins", []string{"a", "b", "a", "c"}, 0, []string{"a", "b", "c"}},
		{"truncates after dedupe", []string{"a", "a", "b", "c", "d"}, 3, []string{"a", "b", "c"}},
		{"drops empty", []string{"", "a", ""}, 5, []string{"a"}},
		{"empty input", nil, 5, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dedupe(tt.in, tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDedupeIdempotent(t *testing.T) {
	in := []string{"x", "y", "x", "z", "y"}
	once := Dedupe(in, 0)
	twice := Dedupe(once, 0)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("expected dedupe to be idempotent, got %v then %v", once, twice)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf("https://www.instagram.com/reel/abc/") != KindShortForm {
		t.Error("expected reel locator to be short form")
	}
	if KindOf("https://www.instagram.com/p/abc/") != KindStandard {
		t.Error("expected post locator to be standard")
	}
}

func TestDiscover(t *testing.T) {
	page := browsertest.New()
	page.Route(profileURL, func(p *browsertest.Page) {
		p.Add(
			anchor("/p/one/"),
			anchor("/reel/two/"),
			anchor("/p/one/"),
			anchor("https://www.instagram.com/p/three/"),
		)
	})
	ctx := context.Background()
	if err := page.Navigate(ctx, profileURL); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(ctx, page, ScoringBudget)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Candidate{
		{Href: "https://www.instagram.com/p/one/", Kind: KindStandard},
		{Href: "https://www.instagram.com/reel/two/", Kind: KindShortForm},
		{Href: "https://www.instagram.com/p/three/", Kind: KindStandard},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDiscoverNoAnchors(t *testing.T) {
	page := browsertest.New()
	ctx := context.Background()
	_ = page.Navigate(ctx, profileURL)

	got, err := Discover(ctx, page, ScoringBudget)
	if err != nil {
		t.Fatalf("expected no error for an empty profile, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %v", got)
	}
}

func TestLocate(t *testing.T) {
	page := browsertest.New()
	page.Route(profileURL, func(p *browsertest.Page) {
		p.Add(anchor("/p/one/"), anchor("/p/two/"))
	})
	ctx := context.Background()
	_ = page.Navigate(ctx, profileURL)

	el, err := Locate(ctx, page, "https://www.instagram.com/p/two/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	href, _ := el.Attribute(ctx, "href")
	if href != "/p/two/" {
		t.Errorf("expected /p/two/, got %s", href)
	}

	if _, err := Locate(ctx, page, "https://www.instagram.com/p/missing/"); err == nil {
		t.Error("expected error for a missing locator")
	}
}
