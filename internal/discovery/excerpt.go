package discovery

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fpang/profile-agent/internal/browser"
	"github.com/fpang/profile-agent/internal/locale"
	"github.com/rs/zerolog/log"
)

const (
	// ImagePlaceholder stands in for a standard post without a usable caption.
	ImagePlaceholder = "Image content"
	// VideoPlaceholder stands in for a reel without a usable caption.
	VideoPlaceholder = "Video content"

	maxExcerptRunes = 1000
)

// captionSelectors are tried in order; the first element whose text passes
// LooksLikeCaption wins.
var captionSelectors = []string{
	// standard posts
	`article h1`,
	`article div[data-testid="post-caption"] span`,
	`article ul li:first-child div > span[dir="auto"]`,
	`article span[dir="auto"]`,
	// reels
	`div[data-testid="reel-viewer"] h1`,
	`div[role="dialog"] h1`,
	`div[data-testid="reel-viewer"] span[dir="auto"]`,
	`div[role="dialog"] span[dir="auto"]`,
	// anything else
	`main h1`,
	`main span[dir="auto"]`,
}

// containerTextScript returns the visible text of the open content.
const containerTextScript = `(() => {
	const c = document.querySelector("article") || document.querySelector('div[role="dialog"]') || document.querySelector("main");
	return c ? c.innerText : "";
})()`

var (
	bareUsername    = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	usernameChrome  = regexp.MustCompile(`^[A-Za-z0-9_.]+\s*(•|Follow|Стежити|Подписаться)`)
	relativeTime    = regexp.MustCompile(`^\d+\s*[smhdw]$`)
	likeCount       = regexp.MustCompile(`(?i)^[\d,.\s]+[km]?\s*(likes?|вподобань|вподобання|отметок.*|лайк\S*)?$`)
	sentenceMarkers = "#.!?"
)

// LooksLikeCaption reports whether text reads like a caption rather than
// navigation chrome such as usernames, follow buttons, timestamps or like
// counts.
func LooksLikeCaption(text string) bool {
	t := strings.TrimSpace(text)
	n := utf8.RuneCountInString(t)
	if n <= 15 {
		return false
	}
	if strings.Contains(t, "•") || locale.ContainsAny(locale.FollowAffordance, t) {
		return false
	}
	if bareUsername.MatchString(t) || usernameChrome.MatchString(t) {
		return false
	}
	if relativeTime.MatchString(t) || likeCount.MatchString(t) {
		return false
	}
	return strings.ContainsAny(t, sentenceMarkers) || n > 30
}

// Placeholder returns the stand-in excerpt for content of the given kind.
func Placeholder(kind Kind) string {
	if kind == KindShortForm {
		return VideoPlaceholder
	}
	return ImagePlaceholder
}

// ExtractExcerpt returns the caption of the content open on page, or the
// kind's placeholder when none can be found.
func ExtractExcerpt(ctx context.Context, page browser.Page, kind Kind) string {
	for _, sel := range captionSelectors {
		els, err := page.QueryAll(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return Placeholder(kind)
			}
			continue
		}
		for _, el := range els {
			text, err := el.Text(ctx)
			if err != nil {
				continue
			}
			if LooksLikeCaption(text) {
				log.Debug().Str("selector", sel).Msg("Caption found")
				return truncate(strings.TrimSpace(text))
			}
		}
	}

	var whole string
	if err := page.Evaluate(ctx, containerTextScript, &whole); err == nil {
		if line := captionFromText(whole); line != "" {
			log.Debug().Msg("Caption found in container text")
			return truncate(line)
		}
	}

	log.Debug().Str("kind", string(kind)).Msg("No caption found, using placeholder")
	return Placeholder(kind)
}

// captionFromText returns the first line of a container's text that passes
// LooksLikeCaption.
func captionFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if LooksLikeCaption(line) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxExcerptRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxExcerptRunes])
}
