package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"guild-contributions/internal/types"
)

var errBrowserNotOpen = errors.New("browser is not open")

// activationScript fires the pointer/mouse sequence a real click produces.
// Some UI frameworks open menus on pointerdown and ignore a bare click.
const activationScript = `((sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	const opts = {bubbles: true, cancelable: true, view: window, button: 0, buttons: 1};
	el.dispatchEvent(new PointerEvent('pointerdown', Object.assign({pointerType: 'mouse', isPrimary: true}, opts)));
	el.dispatchEvent(new MouseEvent('mousedown', opts));
	el.dispatchEvent(new MouseEvent('mouseup', Object.assign({}, opts, {buttons: 0})));
	el.dispatchEvent(new MouseEvent('click', Object.assign({}, opts, {buttons: 0})));
	return true;
})(%s)`

// BrowserClient drives a single long-lived tab
type BrowserClient struct {
	config *types.Config
	logger types.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewBrowserClient creates a new browser client. Call Open before use.
func NewBrowserClient(config *types.Config, logger types.Logger) *BrowserClient {
	return &BrowserClient{
		config: config,
		logger: logger,
	}
}

// Open attaches to a running Chrome when RemoteURL is set, otherwise launches
// one. The tab lives until Close, independent of ctx.
//
// With RemoteURL set and no TargetURL, the session drives the page tab
// already showing Domain. That tab belongs to the user: Close detaches from
// it but leaves it open.
func (b *BrowserClient) Open(ctx context.Context) error {
	parent := context.WithoutCancel(ctx)

	// chromedp is chatty; keep its output at debug level
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(b.logger.Debugf),
		chromedp.WithErrorf(b.logger.Debugf),
	}

	var allocCtx context.Context
	if b.config.RemoteURL != "" {
		if b.config.TargetURL == "" {
			tab, err := b.findTab(parent)
			if err != nil {
				return err
			}
			ctxOpts = append(ctxOpts, chromedp.WithTargetID(tab))
		}
		b.logger.Infof("Attaching to Chrome at %s", b.config.RemoteURL)
		allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(parent, b.config.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", b.config.UseHeadlessBrowser),
			chromedp.UserAgent(b.config.UserAgent),
		)
		if b.config.ProfileDir != "" {
			opts = append(opts, chromedp.UserDataDir(b.config.ProfileDir))
		}
		allocCtx, b.allocCancel = chromedp.NewExecAllocator(parent, opts...)
	}

	// the session is the allocator's first context: cancelling a first
	// context never closes its target, so an attached tab survives Close
	b.ctx, b.cancel = chromedp.NewContext(allocCtx, ctxOpts...)

	// the first Run allocates the browser, so it must not carry a deadline
	if err := chromedp.Run(b.ctx); err != nil {
		b.Close()
		return fmt.Errorf("failed to start browser: %w", err)
	}
	return nil
}

// findTab lists the tabs of the remote browser over a throwaway connection
// and returns the one showing the configured domain
func (b *BrowserClient) findTab(parent context.Context) (target.ID, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(parent, b.config.RemoteURL)
	defer allocCancel()
	listCtx, listCancel := chromedp.NewContext(allocCtx)
	defer listCancel()

	opCtx, cancel := context.WithTimeout(listCtx, b.config.Timeout)
	defer cancel()

	// Targets connects without creating or attaching to any tab
	targets, err := chromedp.Targets(opCtx)
	if err != nil {
		return "", fmt.Errorf("failed to list tabs: %w", err)
	}

	tab, err := pickTab(targets, b.config.Domain)
	if err != nil {
		return "", err
	}
	b.logger.Infof("Using open tab %s", tab.URL)
	return tab.TargetID, nil
}

// pickTab returns the first page tab whose URL contains domain
func pickTab(targets []*target.Info, domain string) (*target.Info, error) {
	for _, t := range targets {
		if t.Type == "page" && strings.Contains(t.URL, domain) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no open tab on %s: %w", domain, types.ErrNotFound)
}

// run executes actions on the tab, bounded by the configured timeout and by ctx
func (b *BrowserClient) run(ctx context.Context, actions ...chromedp.Action) error {
	if b.ctx == nil {
		return errBrowserNotOpen
	}

	opCtx, cancel := context.WithTimeout(b.ctx, b.config.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url and waits until waitSelector is visible
func (b *BrowserClient) Navigate(ctx context.Context, url string, waitSelector string) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}

	if err := b.run(ctx, actions...); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}

	b.logger.Debugf("Loaded %s", url)
	return nil
}

// Evaluate runs script in the page and decodes its result into res
func (b *BrowserClient) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := b.run(ctx, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("failed to execute JavaScript: %w", err)
	}
	return nil
}

// Activate performs a full click on the control located by handle. A handle
// that matches nothing is a no-op; the caller's next poll notices that the
// page did not change.
func (b *BrowserClient) Activate(ctx context.Context, handle types.Handle) error {
	if b.config.NativeInput {
		return b.activateNative(ctx, handle)
	}

	var found bool
	if err := b.Evaluate(ctx, fmt.Sprintf(activationScript, JSString(string(handle))), &found); err != nil {
		return fmt.Errorf("failed to activate %s: %w", handle, err)
	}
	if !found {
		b.logger.Debugf("Activate: nothing matches %s", handle)
	}
	return nil
}

// activateNative clicks through the DevTools input domain so the browser
// itself generates the pointer, mouse and click events
func (b *BrowserClient) activateNative(ctx context.Context, handle types.Handle) error {
	var nodes []*cdp.Node
	if err := b.run(ctx, chromedp.Nodes(string(handle), &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return fmt.Errorf("failed to locate %s: %w", handle, err)
	}
	if len(nodes) == 0 {
		b.logger.Debugf("Activate: nothing matches %s", handle)
		return nil
	}

	if err := b.run(ctx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return fmt.Errorf("failed to click %s: %w", handle, err)
	}
	return nil
}

// PressEscape sends an Escape key press to the focused element
func (b *BrowserClient) PressEscape(ctx context.Context) error {
	if err := b.run(ctx, chromedp.KeyEvent(kb.Escape)); err != nil {
		return fmt.Errorf("failed to press escape: %w", err)
	}
	return nil
}

// Close cleans up resources
func (b *BrowserClient) Close() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.ctx = nil
}

// JSString quotes s as a JavaScript string literal
func JSString(s string) string {
	quoted, _ := json.Marshal(s)
	return string(quoted)
}
