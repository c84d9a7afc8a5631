// Package browser defines the page-driver surface the agent uses to read and
// act on a rendered profile, and a chromedp implementation of it.
//
// Element handles are only valid until the next navigation. Operations on a
// handle whose node has left the document return ErrStale.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no element matches a selector, including
	// when a bounded wait expires.
	ErrNotFound = errors.New("element not found")

	// ErrStale is returned when an element handle no longer refers to a node
	// in the current document.
	ErrStale = errors.New("element is stale or detached from the document")
)

// KeyEscape is the key name accepted by Page.PressKey to dismiss overlays.
const KeyEscape = "Escape"

// Element is a handle to a node on the current page.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
}

// Page is a single browser tab. Implementations are not safe for concurrent
// use; one batch drives one page from one goroutine.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)

	// Query returns the first element matching selector without waiting,
	// or ErrNotFound.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll returns every element matching selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// WaitFor waits up to timeout for selector to match, then returns the
	// first match. Expiry returns ErrNotFound.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// Evaluate runs a JavaScript expression in the page and decodes its JSON
	// result into out. Promises are awaited.
	Evaluate(ctx context.Context, expression string, out any) error

	Click(ctx context.Context, el Element) error
	// Type focuses el and sends text as key events.
	Type(ctx context.Context, el Element, text string) error
	PressKey(ctx context.Context, key string) error

	// Screenshot captures the full page as JPEG.
	Screenshot(ctx context.Context) ([]byte, error)
}
