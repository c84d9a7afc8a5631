// Package interaction visits a single profile: it checks the profile is
// reachable and public, picks one piece of content, optionally likes and
// comments on it, and reports what happened.
package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/profile-agent/internal/assets"
	"github.com/fpang/profile-agent/internal/browser"
	"github.com/fpang/profile-agent/internal/config"
	"github.com/fpang/profile-agent/internal/discovery"
	"github.com/fpang/profile-agent/internal/locale"
	"github.com/fpang/profile-agent/internal/metrics"
	"github.com/fpang/profile-agent/internal/oracle"
	"github.com/fpang/profile-agent/internal/relevance"
	"github.com/fpang/profile-agent/internal/snapshot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is a step of a profile visit.
type State int

const (
	StateNavigate State = iota
	StateCheckAccess
	StateCheckPrivacy
	StateSnapshot
	StateDiscoverAndSelect
	StateOpenContent
	StateAwaitContentReady
	StateLike
	StateGenerateComment
	StateComment
	StateClose
	StateDone
)

var stateNames = [...]string{
	"NAVIGATE",
	"CHECK_ACCESS",
	"CHECK_PRIVACY",
	"SNAPSHOT",
	"DISCOVER_AND_SELECT",
	"OPEN_CONTENT",
	"AWAIT_CONTENT_READY",
	"LIKE",
	"GENERATE_COMMENT",
	"COMMENT",
	"CLOSE",
	"DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Result messages.
const (
	MsgCompleted      = "interaction completed"
	MsgLoadFailed     = "failed to load profile"
	MsgNotAccessible  = "profile not accessible"
	MsgPrivate        = "profile is private"
	MsgNoContent      = "no content found"
	MsgNoRelevant     = "no relevant content"
	MsgOpenFailed     = "failed to open content"
	MsgContentTimeout = "content did not load"
	MsgCancelled      = "visit cancelled"
	MsgInternal       = "internal error"
)

// Selectors and probes for the profile and content views.
const (
	accessSelector      = "main"
	likeControlSelector = `div[role="button"] svg[aria-label], button svg[aria-label]`
	submitSelector      = `div[role="button"], button[type="submit"]`
)

// readyProbes are structurally distinct signs that opened content has
// rendered; whichever appears first wins.
var readyProbes = []string{
	`article`,
	`div[role="dialog"]`,
	`main article`,
	`div[data-testid="reel-viewer"]`,
	`video[playsinline]`,
}

var commentBoxSelectors = []string{
	`textarea[placeholder="Add a comment..."]`,
	`textarea[aria-label="Add a comment..."]`,
	`textarea[placeholder*="comment"]`,
	`div[data-testid="reel-viewer"] textarea`,
	`div[role="dialog"] textarea`,
	`textarea`,
}

const bodyTextScript = `(function bodyText() { return document.body ? document.body.innerText : ""; })()`

const commentPostedScript = `(function commentPosted(text) {
	return Array.from(document.querySelectorAll("span, div[dir='auto']")).some((n) => (n.textContent || "").includes(text));
})(%s)`

// Options tunes timeouts and collaborators of a Visitor. Zero values select
// defaults.
type Options struct {
	// SettleDelay is waited after each navigation.
	SettleDelay time.Duration
	// ReadyTimeout bounds the wait for the profile and for opened content.
	ReadyTimeout time.Duration
	// CommentBoxTimeout bounds the wait for each comment box selector.
	CommentBoxTimeout time.Duration
	// Snapshots receives screenshots in addition to the webhook from the
	// run's configuration. May be nil.
	Snapshots snapshot.Sink
	Now       func() time.Time
}

func (o *Options) applyDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.ReadyTimeout == 0 {
		o.ReadyTimeout = 10 * time.Second
	}
	if o.CommentBoxTimeout == 0 {
		o.CommentBoxTimeout = 3 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Visitor runs the per-profile state machine on one page.
type Visitor struct {
	page     browser.Page
	selector *relevance.Selector
	oracle   oracle.Classifier
	pacer    *Pacer
	opts     Options
}

// NewVisitor returns a Visitor driving page.
func NewVisitor(page browser.Page, selector *relevance.Selector, classifier oracle.Classifier, pacer *Pacer, opts Options) *Visitor {
	opts.applyDefaults()
	return &Visitor{
		page:     page,
		selector: selector,
		oracle:   classifier,
		pacer:    pacer,
		opts:     opts,
	}
}

// visit is the mutable state of one Visit call.
type visit struct {
	profileURL string
	cfg        config.Interaction
	logger     zerolog.Logger

	res       Result
	failed    bool
	opened    bool
	selection relevance.Selection
	excerpt   string
	comment   string
}

// fail records a terminal failure. Actions already confirmed on the site
// stay recorded, and content that was opened is still closed.
func (vs *visit) fail(message string, err error) State {
	vs.failed = true
	done := vs.res
	vs.res = Failure(vs.profileURL, message, err)
	vs.res.PostURL, vs.res.IsReel = done.PostURL, done.IsReel
	vs.res.Liked = done.Liked
	vs.res.Commented, vs.res.Comment = done.Commented, done.Comment
	ev := vs.logger.Warn().Str("reason", message)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("Profile visit failed")
	if vs.opened {
		return StateClose
	}
	return StateDone
}

// Visit runs the state machine for profileURL and always returns exactly one
// Result.
func (v *Visitor) Visit(ctx context.Context, profileURL string, cfg config.Interaction) (res Result) {
	vs := &visit{
		profileURL: profileURL,
		cfg:        cfg,
		logger:     log.With().Str("profile", profileURL).Logger(),
		res:        Result{ProfileURL: profileURL},
	}

	defer func() {
		if r := recover(); r != nil {
			vs.logger.Error().Interface("panic", r).Msg("Profile visit panicked")
			res = Failure(profileURL, MsgInternal, fmt.Errorf("panic: %v", r))
		}
		outcome := "success"
		if !res.Success {
			outcome = "failure"
		}
		metrics.ProfilesVisited.WithLabelValues(outcome).Inc()
	}()

	vs.logger.Info().Msg("Visiting profile")
	state := StateNavigate
	for state != StateDone {
		vs.logger.Debug().Stringer("state", state).Msg("Entering state")
		state = v.step(ctx, vs, state)
	}

	vs.logger.Info().
		Bool("success", vs.res.Success).
		Bool("liked", vs.res.Liked).
		Bool("commented", vs.res.Commented).
		Str("message", vs.res.Message).
		Msg("Profile visit finished")
	return vs.res
}

func (v *Visitor) step(ctx context.Context, vs *visit, s State) State {
	switch s {
	case StateNavigate:
		return v.navigate(ctx, vs)
	case StateCheckAccess:
		return v.checkAccess(ctx, vs)
	case StateCheckPrivacy:
		return v.checkPrivacy(ctx, vs)
	case StateSnapshot:
		return v.snapshot(ctx, vs)
	case StateDiscoverAndSelect:
		return v.discoverAndSelect(ctx, vs)
	case StateOpenContent:
		return v.openContent(ctx, vs)
	case StateAwaitContentReady:
		return v.awaitContentReady(ctx, vs)
	case StateLike:
		return v.like(ctx, vs)
	case StateGenerateComment:
		return v.generateComment(ctx, vs)
	case StateComment:
		return v.postComment(ctx, vs)
	case StateClose:
		return v.close(ctx, vs)
	default:
		return vs.fail(MsgInternal, fmt.Errorf("unknown state %s", s))
	}
}

func (v *Visitor) navigate(ctx context.Context, vs *visit) State {
	if err := v.page.Navigate(ctx, vs.profileURL); err != nil {
		return vs.fail(MsgLoadFailed, err)
	}
	if err := v.pacer.Pause(ctx, v.opts.SettleDelay); err != nil {
		return vs.fail(MsgCancelled, err)
	}
	return StateCheckAccess
}

func (v *Visitor) checkAccess(ctx context.Context, vs *visit) State {
	if _, err := v.page.WaitFor(ctx, accessSelector, v.opts.ReadyTimeout); err != nil {
		if ctx.Err() != nil {
			return vs.fail(MsgCancelled, ctx.Err())
		}
		return vs.fail(MsgNotAccessible, err)
	}
	return StateCheckPrivacy
}

func (v *Visitor) checkPrivacy(ctx context.Context, vs *visit) State {
	var body string
	if err := v.page.Evaluate(ctx, bodyTextScript, &body); err != nil {
		vs.logger.Warn().Err(err).Msg("Could not read page text for privacy check")
	} else if locale.ContainsAny(locale.PrivateAccount, body) {
		return vs.fail(MsgPrivate, nil)
	}

	if vs.cfg.Features.Screenshots {
		return StateSnapshot
	}
	return StateDiscoverAndSelect
}

func (v *Visitor) snapshot(ctx context.Context, vs *visit) State {
	sink := v.sinks(vs.cfg)
	if sink == nil {
		vs.logger.Warn().Msg("Screenshots enabled but no destination configured")
		return StateDiscoverAndSelect
	}

	data, err := v.page.Screenshot(ctx)
	if err != nil {
		vs.logger.Warn().Err(err).Msg("Screenshot capture failed")
		return StateDiscoverAndSelect
	}

	deliverCtx, cancel := context.WithTimeout(ctx, vs.cfg.Webhook.TimeoutDuration())
	defer cancel()
	shot := snapshot.NewShot(vs.profileURL, data, v.opts.Now())
	if err := sink.Deliver(deliverCtx, shot); err != nil {
		vs.logger.Warn().Err(err).Str("filename", shot.Filename).Msg("Screenshot delivery failed")
	}
	return StateDiscoverAndSelect
}

// sinks combines the static sinks with the run's webhook, if any.
func (v *Visitor) sinks(cfg config.Interaction) snapshot.Sink {
	var m snapshot.Multi
	if v.opts.Snapshots != nil {
		m = append(m, v.opts.Snapshots)
	}
	if cfg.Webhook.URL != "" {
		m = append(m, snapshot.NewWebhookSink(cfg.Webhook.URL, cfg.Webhook.TimeoutDuration()))
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func (v *Visitor) discoverAndSelect(ctx context.Context, vs *visit) State {
	candidates, err := discovery.Discover(ctx, v.page, discovery.ScoringBudget)
	if err != nil {
		if ctx.Err() != nil {
			return vs.fail(MsgCancelled, ctx.Err())
		}
		vs.logger.Warn().Err(err).Msg("Content discovery failed")
	}
	if len(candidates) == 0 {
		return vs.fail(MsgNoContent, nil)
	}

	sel, err := v.selector.Select(ctx, v.page, vs.profileURL, candidates, vs.cfg)
	switch {
	case errors.Is(err, relevance.ErrNoneQualified):
		return vs.fail(MsgNoRelevant, nil)
	case err != nil && ctx.Err() != nil:
		return vs.fail(MsgCancelled, err)
	case err != nil:
		return vs.fail(MsgNoRelevant, err)
	}

	vs.selection = sel
	vs.excerpt = sel.Excerpt
	return StateOpenContent
}

func (v *Visitor) openContent(ctx context.Context, vs *visit) State {
	href := vs.selection.Candidate.Href

	el, err := discovery.Locate(ctx, v.page, href)
	if err == nil {
		err = v.page.Click(ctx, el)
	}
	if err != nil {
		vs.logger.Info().Err(err).Str("href", href).Msg("Could not click content, navigating directly")
		if navErr := v.page.Navigate(ctx, href); navErr != nil {
			return vs.fail(MsgOpenFailed, navErr)
		}
	}
	vs.opened = true

	if err := v.pacer.Pause(ctx, v.opts.SettleDelay); err != nil {
		return vs.fail(MsgCancelled, err)
	}
	return StateAwaitContentReady
}

func (v *Visitor) awaitContentReady(ctx context.Context, vs *visit) State {
	if _, err := v.page.WaitFor(ctx, strings.Join(readyProbes, ", "), v.opts.ReadyTimeout); err != nil {
		if ctx.Err() != nil {
			return vs.fail(MsgCancelled, ctx.Err())
		}
		return vs.fail(MsgContentTimeout, err)
	}

	href := vs.selection.Candidate.Href
	postURL := href
	if cur, err := v.page.CurrentURL(ctx); err == nil && (strings.Contains(cur, "/p/") || strings.Contains(cur, "/reel/")) {
		postURL = cur
	}
	vs.res.PostURL = postURL
	vs.res.IsReel = strings.Contains(postURL, "/reel/") || vs.selection.Candidate.Kind == discovery.KindShortForm
	vs.logger.Info().Str("postUrl", postURL).Bool("isReel", vs.res.IsReel).Msg("Content opened")

	if vs.cfg.Features.Liking {
		return StateLike
	}
	return StateGenerateComment
}

func (v *Visitor) like(ctx context.Context, vs *visit) State {
	state, control := v.likeControl(ctx)
	switch state {
	case locale.LikePressed:
		vs.logger.Info().Msg("Content already liked")
		vs.res.Liked = true
	case locale.LikeUnpressed:
		if err := v.page.Click(ctx, control); err != nil {
			vs.logger.Warn().Err(err).Msg("Like click failed")
			break
		}
		if err := v.pacer.Wait(ctx, vs.cfg.Settings.WaitBetweenActions); err != nil {
			return vs.fail(MsgCancelled, err)
		}
		if after, _ := v.likeControl(ctx); after == locale.LikePressed {
			vs.res.Liked = true
			metrics.LikesTotal.Inc()
			vs.logger.Info().Msg("Content liked")
		} else {
			vs.logger.Warn().Msg("Like was clicked but not confirmed")
		}
	default:
		vs.logger.Warn().Msg("Like control not found")
	}
	return StateGenerateComment
}

// likeControl returns the state of the first like control on the page and
// the element to click.
func (v *Visitor) likeControl(ctx context.Context) (locale.LikeState, browser.Element) {
	controls, err := v.page.QueryAll(ctx, likeControlSelector)
	if err != nil {
		return locale.LikeUnknown, nil
	}
	for _, c := range controls {
		label, err := c.Attribute(ctx, "aria-label")
		if err != nil {
			continue
		}
		if s := locale.ClassifyLikeLabel(label); s != locale.LikeUnknown {
			return s, c
		}
	}
	return locale.LikeUnknown, nil
}

func (v *Visitor) generateComment(ctx context.Context, vs *visit) State {
	kind := vs.selection.Candidate.Kind
	if vs.res.IsReel {
		kind = discovery.KindShortForm
	}
	if vs.excerpt == "" {
		vs.excerpt = discovery.ExtractExcerpt(ctx, v.page, kind)
	}

	draft, err := v.oracle.DraftComment(ctx, assets.RenderCommentPrompt(string(kind), vs.excerpt))
	if err != nil {
		vs.logger.Warn().Err(err).Str("kind", oracle.KindOf(err).String()).Msg("Comment generation failed, using fallback")
		vs.comment = FallbackComment(kind)
	} else {
		vs.comment = SanitizeComment(draft.Comment, kind)
	}
	vs.logger.Debug().Str("comment", vs.comment).Msg("Comment prepared")

	if vs.cfg.Features.Commenting {
		return StateComment
	}
	return StateClose
}

func (v *Visitor) postComment(ctx context.Context, vs *visit) State {
	box := v.commentBox(ctx)
	if box == nil {
		vs.logger.Warn().Msg("Comment box not found")
		return StateClose
	}

	if err := v.page.Click(ctx, box); err != nil {
		vs.logger.Warn().Err(err).Msg("Could not focus comment box")
		return StateClose
	}
	if err := v.pacer.Wait(ctx, vs.cfg.Settings.WaitBetweenActions); err != nil {
		return vs.fail(MsgCancelled, err)
	}
	if err := v.page.Type(ctx, box, vs.comment); err != nil {
		vs.logger.Warn().Err(err).Msg("Could not type comment")
		return StateClose
	}
	if err := v.pacer.WaitScaled(ctx, vs.cfg.Settings.WaitBetweenActions, 2); err != nil {
		return vs.fail(MsgCancelled, err)
	}

	submit := v.submitButton(ctx)
	if submit == nil {
		vs.logger.Warn().Msg("Comment submit button not found")
		return StateClose
	}
	if err := v.page.Click(ctx, submit); err != nil {
		vs.logger.Warn().Err(err).Msg("Comment submit failed")
		return StateClose
	}
	if err := v.pacer.WaitScaled(ctx, vs.cfg.Settings.WaitBetweenActions, 3); err != nil {
		return vs.fail(MsgCancelled, err)
	}

	if v.commentVisible(ctx, vs.comment) {
		vs.res.Commented = true
		vs.res.Comment = vs.comment
		metrics.CommentsTotal.Inc()
		vs.logger.Info().Str("comment", vs.comment).Msg("Comment posted")
	} else {
		vs.logger.Warn().Msg("Comment was submitted but not confirmed")
	}
	return StateClose
}

func (v *Visitor) commentBox(ctx context.Context) browser.Element {
	for _, sel := range commentBoxSelectors {
		el, err := v.page.WaitFor(ctx, sel, v.opts.CommentBoxTimeout)
		if err == nil {
			return el
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// submitButton finds the comment submit control. Only the canonical locale's
// label is matched.
func (v *Visitor) submitButton(ctx context.Context) browser.Element {
	labels := locale.Canonical(locale.SubmitAction)
	buttons, err := v.page.QueryAll(ctx, submitSelector)
	if err != nil {
		return nil
	}
	for _, b := range buttons {
		text, err := b.Text(ctx)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		for _, l := range labels {
			if text == l {
				return b
			}
		}
	}
	return nil
}

func (v *Visitor) commentVisible(ctx context.Context, comment string) bool {
	probe := comment
	if r := []rune(probe); len(r) > 40 {
		probe = string(r[:40])
	}
	lit, _ := json.Marshal(probe)
	var seen bool
	if err := v.page.Evaluate(ctx, fmt.Sprintf(commentPostedScript, lit), &seen); err != nil {
		return false
	}
	return seen
}

func (v *Visitor) close(ctx context.Context, vs *visit) State {
	if err := v.page.PressKey(ctx, browser.KeyEscape); err != nil {
		vs.logger.Debug().Err(err).Msg("Could not dismiss content view")
	}
	if !vs.failed {
		vs.res.Success = true
		vs.res.Message = MsgCompleted
	}
	return StateDone
}
