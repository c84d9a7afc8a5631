// Package oracletest provides a scripted oracle.Classifier for tests.
package oracletest

import (
	"context"
	"errors"
	"sync"

	"github.com/fpang/profile-agent/internal/oracle"
)

// ErrUnscripted is returned by calls with no configured response.
var ErrUnscripted = errors.New("oracletest: no response configured")

// Fake answers classifier calls from per-excerpt tables and records how
// often each method was called.
type Fake struct {
	mu sync.Mutex

	// Text maps an excerpt to its assessment.
	Text map[string]oracle.Assessment
	// TextErr fails every text call when set.
	TextErr error
	// Image is returned for every image call when non-nil.
	Image    *oracle.Assessment
	ImageErr error
	// Comment is returned from DraftComment unless CommentErr is set.
	Comment    string
	CommentErr error

	TextCalls    int
	ImageCalls   int
	CommentCalls int
	Prompts      []string
}

var _ oracle.Classifier = (*Fake)(nil)

func (f *Fake) ClassifyText(ctx context.Context, excerpt, rubric string) (oracle.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TextCalls++
	if f.TextErr != nil {
		return oracle.Assessment{}, f.TextErr
	}
	a, ok := f.Text[excerpt]
	if !ok {
		return oracle.Assessment{}, ErrUnscripted
	}
	return a, nil
}

func (f *Fake) ClassifyImage(ctx context.Context, data []byte, mimeType, rubric string) (oracle.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ImageCalls++
	if f.ImageErr != nil {
		return oracle.Assessment{}, f.ImageErr
	}
	if f.Image == nil {
		return oracle.Assessment{}, ErrUnscripted
	}
	return *f.Image, nil
}

func (f *Fake) DraftComment(ctx context.Context, prompt string) (oracle.CommentDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CommentCalls++
	f.Prompts = append(f.Prompts, prompt)
	if f.CommentErr != nil {
		return oracle.CommentDraft{}, f.CommentErr
	}
	return oracle.CommentDraft{Comment: f.Comment, ViralRate: 50, CommentTokenCount: len(f.Comment) / 4}, nil
}

// Calls returns the total number of classifier calls.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TextCalls + f.ImageCalls + f.CommentCalls
}
