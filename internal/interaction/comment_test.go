package interaction

import (
	"testing"

	"github.com/fpang/profile-agent/internal/discovery"
)

func TestSanitizeComment(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind discovery.Kind
		want string
	}{
		{"clean", "Beautiful staging, the kitchen really shines.", discovery.KindStandard, "Beautiful staging, the kitchen really shines."},
		{"hashtags stripped", "Love this layout #realestate #dreamhome so bright", discovery.KindStandard, "Love this layout so bright"},
		{"unicode hashtags", "Чудовий будинок #нерухомість поруч з парком", discovery.KindStandard, "Чудовий будинок поруч з парком"},
		{"whitespace collapsed", "  Great\n\nlight   and   space  ", discovery.KindStandard, "Great light and space"},
		{"only hashtags post", "#home #forsale", discovery.KindStandard, "Great post! 👍"},
		{"too short reel", "Nice! #reel", discovery.KindShortForm, "Great reel! 🎬"},
		{"empty", "", discovery.KindStandard, "Great post! 👍"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeComment(tt.raw, tt.kind); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFallbackComment(t *testing.T) {
	if got := FallbackComment(discovery.KindStandard); got != "Great post! 👍" {
		t.Errorf("expected post fallback, got %q", got)
	}
	if got := FallbackComment(discovery.KindShortForm); got != "Great reel! 🎬" {
		t.Errorf("expected reel fallback, got %q", got)
	}
}
