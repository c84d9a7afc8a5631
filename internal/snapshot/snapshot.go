// Package snapshot delivers profile screenshots to configured destinations.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// isoMillis matches JavaScript's Date.toISOString, which receivers of the
// webhook payload expect.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Shot is one captured profile screenshot.
type Shot struct {
	ProfileURL string
	Username   string
	Filename   string
	TakenAt    time.Time
	Data       []byte
}

// NewShot names a screenshot of profileURL taken at now.
func NewShot(profileURL string, data []byte, now time.Time) Shot {
	user := UsernameFromURL(profileURL)
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format(isoMillis))
	return Shot{
		ProfileURL: profileURL,
		Username:   user,
		Filename:   fmt.Sprintf("profile_%s_%s.jpg", user, stamp),
		TakenAt:    now.UTC(),
		Data:       data,
	}
}

// UsernameFromURL returns the last path segment of a profile URL, or
// "unknown".
func UsernameFromURL(profileURL string) string {
	u, err := url.Parse(profileURL)
	if err != nil {
		return "unknown"
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return "unknown"
	}
	return segs[len(segs)-1]
}

// Sink receives screenshots.
type Sink interface {
	Deliver(ctx context.Context, shot Shot) error
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, shot Shot) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, shot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DirSink writes screenshots into a local directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Deliver(ctx context.Context, shot Shot) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(d.Dir, shot.Filename)
	if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	log.Info().Str("path", path).Int("bytes", len(shot.Data)).Msg("Screenshot saved")
	return nil
}
