package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"
)

const (
	// refAttribute tags queried nodes so handles survive re-renders of
	// unrelated parts of the page but not navigation.
	refAttribute = "data-agent-ref"

	defaultActionTimeout = 15 * time.Second
	navigationTimeout    = 60 * time.Second
	screenshotQuality    = 85
)

// ChromeOptions configures the Chrome process backing a Chrome page.
type ChromeOptions struct {
	// UserDataDir points at an existing profile directory carrying the
	// logged-in session.
	UserDataDir  string
	Headless     bool
	WindowWidth  int
	WindowHeight int
}

// Chrome drives a single tab through chromedp.
type Chrome struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	nextRef atomic.Uint64
}

var _ Page = (*Chrome)(nil)

// NewChrome launches Chrome and opens one tab. The returned Chrome must be
// closed with Close.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	width, height := opts.WindowWidth, opts.WindowHeight
	if width == 0 || height == 0 {
		width, height = 1400, 900
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(width, height),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug().Msgf("chromedp: "+format, args...)
		}),
	)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	log.Info().
		Bool("headless", opts.Headless).
		Str("userDataDir", opts.UserDataDir).
		Msg("Chrome started")

	return &Chrome{
		tabCtx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}

// Close shuts the tab and the browser process down.
func (c *Chrome) Close() {
	c.cancel()
}

// run executes actions on the tab, bounded by timeout and cancelled when ctx
// is done. Cancelling the derived context does not close the tab.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, navigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := c.run(ctx, defaultActionTimeout, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return u, nil
}

func (c *Chrome) Query(ctx context.Context, selector string) (Element, error) {
	els, err := c.tag(ctx, selector, true)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

func (c *Chrome) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	return c.tag(ctx, selector, false)
}

func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	err := c.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("wait for %q: %w", selector, ErrNotFound)
		}
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}
	return c.Query(ctx, selector)
}

func (c *Chrome) Evaluate(ctx context.Context, expression string, out any) error {
	if out == nil {
		var ignored json.RawMessage
		out = &ignored
	}
	if err := c.run(ctx, defaultActionTimeout, chromedp.Evaluate(expression, out, awaitPromise)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

func (c *Chrome) Click(ctx context.Context, el Element) error {
	ref, err := c.refOf(el)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const target = el.closest('[role="button"], button, a') || el;
		target.scrollIntoView({block: "center"});
		if (typeof target.click === "function") {
			target.click();
		} else {
			target.dispatchEvent(new MouseEvent("click", {bubbles: true, cancelable: true}));
		}
		return true;
	})()`, jsString(ref.selector()))
	return c.onNode(ctx, script)
}

func (c *Chrome) Type(ctx context.Context, el Element, text string) error {
	ref, err := c.refOf(el)
	if err != nil {
		return err
	}
	focus := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		return true;
	})()`, jsString(ref.selector()))
	if err := c.onNode(ctx, focus); err != nil {
		return err
	}
	if err := c.run(ctx, defaultActionTimeout, chromedp.KeyEvent(text)); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

func (c *Chrome) PressKey(ctx context.Context, key string) error {
	k := key
	if key == KeyEscape {
		k = kb.Escape
	}
	if err := c.run(ctx, defaultActionTimeout, chromedp.KeyEvent(k)); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, defaultActionTimeout, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// tag marks the nodes matching selector with fresh refs and returns handles
// for them.
func (c *Chrome) tag(ctx context.Context, selector string, firstOnly bool) ([]Element, error) {
	base := c.nextRef.Add(1)
	script := fmt.Sprintf(`(() => {
		const nodes = %t ? [document.querySelector(%s)].filter(Boolean) : Array.from(document.querySelectorAll(%s));
		return nodes.map((n, i) => {
			const ref = %s + "-" + i;
			n.setAttribute(%s, ref);
			return ref;
		});
	})()`, firstOnly, jsString(selector), jsString(selector), jsString(strconv.FormatUint(base, 10)), jsString(refAttribute))

	var refs []string
	if err := c.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, &refs)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	els := make([]Element, 0, len(refs))
	for _, r := range refs {
		els = append(els, &chromeElement{page: c, ref: r})
	}
	return els, nil
}

func (c *Chrome) refOf(el Element) (*chromeElement, error) {
	ce, ok := el.(*chromeElement)
	if !ok || ce.page != c {
		return nil, fmt.Errorf("element does not belong to this page: %w", ErrStale)
	}
	return ce, nil
}

// onNode runs a script that returns false when the tagged node is gone.
func (c *Chrome) onNode(ctx context.Context, script string) error {
	var ok bool
	if err := c.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return ErrStale
	}
	return nil
}

type chromeElement struct {
	page *Chrome
	ref  string
}

func (e *chromeElement) selector() string {
	return "[" + refAttribute + "=\"" + e.ref + "\"]"
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	return e.read(ctx, `el.innerText || el.textContent || ""`)
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	return e.read(ctx, fmt.Sprintf(`el.getAttribute(%s) || ""`, jsString(name)))
}

func (e *chromeElement) read(ctx context.Context, expr string) (string, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return {found: false, value: ""};
		return {found: true, value: %s};
	})()`, jsString(e.selector()), expr)

	var res struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	if err := e.page.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, &res)); err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrStale
	}
	return res.Value, nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
