package interaction

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fpang/profile-agent/internal/discovery"
)

// MinCommentLength is the shortest sanitized comment worth posting.
const MinCommentLength = 10

var (
	hashtag    = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// FallbackComment is posted when no usable comment could be generated.
func FallbackComment(kind discovery.Kind) string {
	if kind == discovery.KindShortForm {
		return "Great reel! 🎬"
	}
	return "Great post! 👍"
}

// SanitizeComment strips hashtags, collapses whitespace and falls back to
// FallbackComment when too little text remains.
func SanitizeComment(raw string, kind discovery.Kind) string {
	s := hashtag.ReplaceAllString(raw, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if utf8.RuneCountInString(s) < MinCommentLength {
		return FallbackComment(kind)
	}
	return s
}
