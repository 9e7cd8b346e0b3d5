// Package browser drives a live Chrome tab over the DevTools protocol and
// exposes it as an overlay host.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"abstatus/dom"
	"abstatus/overlay"
)

const bindingName = "__abstatusMutation"

// Options controls how the browser is launched.
type Options struct {
	// Headless hides the window. A visible window lets the user sign in.
	Headless bool
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// UserDataDir keeps cookies between runs so an admin session survives.
	UserDataDir string
	// Timeout bounds the initial navigation.
	Timeout time.Duration
	Logger  *log.Logger
}

// Tab is one page in a Chrome instance owned by the Tab.
type Tab struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *log.Logger

	bindOnce sync.Once
	bindErr  error

	mu      sync.Mutex
	subs    map[int]func()
	nextSub int
}

func allocatorOptions(opt Options) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opt.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-extensions", true),
	)
	if opt.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(opt.ExecPath))
	}
	if opt.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(opt.UserDataDir))
	}
	return opts
}

// Open launches Chrome and navigates a new tab to target.
func Open(ctx context.Context, target string, opt Options) (*Tab, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("browser: empty target url")
	}
	if opt.Logger == nil {
		opt.Logger = log.New(io.Discard, "", 0)
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 60 * time.Second
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opt)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(opt.Logger.Printf))

	t := &Tab{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      opt.Logger,
		subs:        make(map[int]func()),
	}
	// the first Run allocates the browser and must use the tab context itself
	if err := chromedp.Run(tabCtx); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: start: %w", err)
	}
	chromedp.ListenTarget(tabCtx, t.onEvent)

	navCtx, navCancel := context.WithTimeout(ctx, opt.Timeout)
	defer navCancel()
	start := time.Now()
	if err := t.run(navCtx, chromedp.Navigate(target), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: open %s: %w", target, err)
	}
	t.logger.Printf("BROWSER opened %s in %s", target, time.Since(start).Truncate(time.Millisecond))
	return t, nil
}

// Close shuts the tab and the browser down.
func (t *Tab) Close() {
	t.cancel()
	t.allocCancel()
}

// run executes actions on the tab, aborting when ctx is done.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (t *Tab) eval(ctx context.Context, js string, res interface{}) error {
	return t.run(ctx, chromedp.Evaluate(js, res))
}

// Snapshot serializes the live document and parses it back.
func (t *Tab) Snapshot(ctx context.Context) (*html.Node, string, error) {
	var loc, outer string
	if err := t.run(ctx, chromedp.Location(&loc), chromedp.OuterHTML("html", &outer, chromedp.ByQuery)); err != nil {
		return nil, "", fmt.Errorf("browser: snapshot: %w", err)
	}
	doc, err := html.Parse(strings.NewReader("<!DOCTYPE html>" + outer))
	if err != nil {
		return nil, "", fmt.Errorf("browser: snapshot: parse: %w", err)
	}
	return doc, loc, nil
}

func (t *Tab) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := t.eval(ctx, existsJS(id), &ok); err != nil {
		return false, fmt.Errorf("browser: exists %q: %w", id, err)
	}
	return ok, nil
}

func (t *Tab) Insert(ctx context.Context, parent, before dom.Path, fragment string) error {
	var msg string
	if err := t.eval(ctx, insertJS(parent, before, fragment), &msg); err != nil {
		return fmt.Errorf("browser: insert: %w", err)
	}
	if msg != "" {
		return fmt.Errorf("browser: insert: %s", msg)
	}
	return nil
}

func (t *Tab) EnsureStyle(ctx context.Context, id, css string) error {
	if err := t.eval(ctx, styleJS(id, css), nil); err != nil {
		return fmt.Errorf("browser: style %q: %w", id, err)
	}
	return nil
}

func (t *Tab) Patch(ctx context.Context, p dom.Patch) (bool, error) {
	var ok bool
	if err := t.eval(ctx, patchJS(p), &ok); err != nil {
		return false, fmt.Errorf("browser: patch %q: %w", p.ID, err)
	}
	return ok, nil
}

// Subscribe installs a MutationObserver{childList, subtree} on the element at
// root. Records are reported back through a runtime binding.
func (t *Tab) Subscribe(ctx context.Context, root dom.Path, fn func()) (func(), error) {
	t.bindOnce.Do(func() {
		t.bindErr = t.run(ctx, runtime.AddBinding(bindingName))
	})
	if t.bindErr != nil {
		return nil, fmt.Errorf("browser: add binding: %w", t.bindErr)
	}

	t.mu.Lock()
	t.nextSub++
	id := t.nextSub
	t.subs[id] = fn
	t.mu.Unlock()

	var ok bool
	if err := t.eval(ctx, observeJS(id, root), &ok); err != nil || !ok {
		t.drop(id)
		if err == nil {
			err = errors.New("no element at " + root.String())
		}
		return nil, fmt.Errorf("browser: observe: %w", err)
	}
	t.logger.Printf("BROWSER observing %s as #%d", root, id)

	cancel := func() {
		t.drop(id)
		if err := t.eval(context.Background(), disconnectJS(id), nil); err != nil && t.ctx.Err() == nil {
			t.logger.Printf("BROWSER disconnect #%d: %v", id, err)
		}
	}
	return cancel, nil
}

func (t *Tab) drop(id int) {
	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
}

// onEvent runs on the chromedp event goroutine and must not block.
func (t *Tab) onEvent(ev interface{}) {
	e, ok := ev.(*runtime.EventBindingCalled)
	if !ok || e.Name != bindingName {
		return
	}
	id, err := strconv.Atoi(e.Payload)
	if err != nil {
		return
	}
	t.mu.Lock()
	fn := t.subs[id]
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

var (
	_ overlay.Host     = (*Tab)(nil)
	_ overlay.Notifier = (*Tab)(nil)
)
