// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fpang/profile-agent/internal/browser"
)

// Node is a fake DOM node. It matches a selector when the selector, or any
// part of a comma-separated selector list, equals one of Selectors.
type Node struct {
	Selectors []string
	Text      string
	Attrs     map[string]string

	// OnClick runs when the node is clicked. A non-nil error is returned
	// from Page.Click.
	OnClick func(p *Page) error

	// Typed accumulates text sent with Page.Type.
	Typed string
}

func (n *Node) matches(selector string) bool {
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		for _, s := range n.Selectors {
			if s == part {
				return true
			}
		}
	}
	return false
}

type evalRule struct {
	contains string
	value    any
	err      error
}

// Page is a scripted browser.Page. Navigation replaces the DOM with whatever
// the matching route builds and invalidates every earlier Element.
type Page struct {
	mu sync.Mutex

	url    string
	gen    int
	nodes  []*Node
	routes map[string]func(*Page)
	evals  []evalRule

	NavigateErr    map[string]error
	ScreenshotData []byte
	ScreenshotErr  error

	Navigations []string
	Keys        []string
	Clicked     []*Node
}

var _ browser.Page = (*Page)(nil)

// New returns an empty page at about:blank.
func New() *Page {
	return &Page{
		url:         "about:blank",
		routes:      make(map[string]func(*Page)),
		NavigateErr: make(map[string]error),
	}
}

// Route registers the DOM builder used when url is navigated to.
func (p *Page) Route(url string, build func(*Page)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = build
}

// Add appends nodes to the current document. Safe to call from a route
// builder or an OnClick hook.
func (p *Page) Add(nodes ...*Node) {
	p.nodes = append(p.nodes, nodes...)
}

// Remove drops nodes from the current document.
func (p *Page) Remove(n *Node) {
	for i, existing := range p.nodes {
		if existing == n {
			p.nodes = append(p.nodes[:i], p.nodes[i+1:]...)
			return
		}
	}
}

// SetURL changes the location without reloading the document, as a client
// side route change would.
func (p *Page) SetURL(url string) {
	p.url = url
}

// OnEvaluate makes Evaluate return value for any expression containing
// substr. Earlier rules win.
func (p *Page) OnEvaluate(substr string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, evalRule{contains: substr, value: value})
}

// FailEvaluate makes Evaluate fail for any expression containing substr.
func (p *Page) FailEvaluate(substr string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, evalRule{contains: substr, err: err})
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Navigations = append(p.Navigations, url)
	if err := p.NavigateErr[url]; err != nil {
		return err
	}
	p.url = url
	p.gen++
	p.nodes = nil
	if build, ok := p.routes[url]; ok {
		build(p)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Query(ctx context.Context, selector string) (browser.Element, error) {
	els, _ := p.QueryAll(ctx, selector)
	if len(els) == 0 {
		return nil, browser.ErrNotFound
	}
	return els[0], nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []browser.Element
	for _, n := range p.nodes {
		if n.matches(selector) {
			out = append(out, &Element{page: p, node: n, gen: p.gen})
		}
	}
	return out, nil
}

// WaitFor never blocks: the fake DOM is either ready or it is not.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	return p.Query(ctx, selector)
}

func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	rules := append([]evalRule(nil), p.evals...)
	p.mu.Unlock()

	for _, r := range rules {
		if !strings.Contains(expression, r.contains) {
			continue
		}
		if r.err != nil {
			return r.err
		}
		if out == nil {
			return nil
		}
		b, err := json.Marshal(r.value)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
	return fmt.Errorf("browsertest: no evaluate rule for %.60q", expression)
}

func (p *Page) Click(ctx context.Context, el browser.Element) error {
	e, err := p.live(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.Clicked = append(p.Clicked, e.node)
	hook := e.node.OnClick
	p.mu.Unlock()

	if hook != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		return hook(p)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, el browser.Element, text string) error {
	e, err := p.live(el)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e.node.Typed += text
	return nil
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return p.ScreenshotData, nil
}

func (p *Page) live(el browser.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e.page != p {
		return nil, browser.ErrStale
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.gen != p.gen {
		return nil, browser.ErrStale
	}
	for _, n := range p.nodes {
		if n == e.node {
			return e, nil
		}
	}
	return nil, browser.ErrStale
}

// Element is a handle to a Node, valid until the next navigation.
type Element struct {
	page *Page
	node *Node
	gen  int
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if _, err := e.page.live(e); err != nil {
		return "", err
	}
	return e.node.Text, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	if _, err := e.page.live(e); err != nil {
		return "", err
	}
	return e.node.Attrs[name], nil
}
