// Package overlay keeps a status pill injected into a third-party admin page
// and drives what it shows from a periodically fetched membership sheet.
//
// All engine state is owned by the goroutine running Engine.Run. Timers,
// host mutation notifications and finished fetches hand work to that
// goroutine through an unbounded queue, so no two pieces of engine logic
// ever run at the same time.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"abstatus/dom"
	"abstatus/remotelist"
)

var (
	errAlreadyRunning = errors.New("overlay: engine already running")
	errStopped        = errors.New("overlay: engine stopped")
)

// Status is a point-in-time view of the engine, safe to read from any goroutine.
type Status struct {
	Session     string    `json:"session"`
	State       State     `json:"state"`
	Identifier  string    `json:"identifier,omitempty"`
	Layout      Layout    `json:"layout"`
	Injected    bool      `json:"injected"`
	Injections  int       `json:"injections"`
	Transitions int       `json:"transitions"`
	Checks      int       `json:"checks"`
	Failures    int       `json:"failures"`
	LastCheck   time.Time `json:"last_check,omitempty"`
	NextCheck   time.Time `json:"next_check,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Engine reconciles the widget against a Host and runs the status loop.
type Engine struct {
	cfg     Config
	prof    *compiledProfile
	host    Host
	notes   Notifier
	fetcher TableFetcher
	logger  *log.Logger
	clock   Clock
	css     string

	qmu   sync.Mutex
	queue []func()
	wake  chan struct{}

	runMu   sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	statMu sync.Mutex
	status Status

	// owned by the loop goroutine
	ctx           context.Context
	current       State
	displayed     State
	polling       bool
	layoutMissing bool
	injectTimer   Timer
	checkTimer    Timer
	settleTimer   Timer
	fadeTimers    []Timer
	transitionSeq int
	unwatch       func()
}

// New builds an engine. notes may be nil, which disables self-healing.
func New(cfg Config, host Host, notes Notifier, fetcher TableFetcher) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if host == nil || fetcher == nil {
		return nil, fmt.Errorf("overlay: host and fetcher are required")
	}
	prof, err := compileProfile(cfg.Profile)
	if err != nil {
		return nil, err
	}
	css, err := Stylesheet()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		prof:    prof,
		host:    host,
		notes:   notes,
		fetcher: fetcher,
		logger:  cfg.Logger,
		clock:   cfg.Clock,
		css:     css,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		current: StateLoading,
	}
	e.status = Status{Session: uuid.NewString(), State: StateLoading}
	return e, nil
}

// Status returns a copy of the engine's current status.
func (e *Engine) Status() Status {
	e.statMu.Lock()
	defer e.statMu.Unlock()
	return e.status
}

func (e *Engine) updateStatus(fn func(*Status)) {
	e.statMu.Lock()
	fn(&e.status)
	e.statMu.Unlock()
}

// Run starts the engine and blocks until ctx is done or Stop is called.
// It returns nil after Stop and ctx.Err() otherwise. An engine runs once.
func (e *Engine) Run(ctx context.Context) error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return errAlreadyRunning
	}
	if e.stopped {
		e.runMu.Unlock()
		return errStopped
	}
	select {
	case <-e.done:
		e.runMu.Unlock()
		return errStopped
	default:
	}
	e.running = true
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.runMu.Unlock()
	defer close(e.done)
	defer cancel()

	e.ctx = runCtx
	e.logger.Printf("ENGINE start session=%s csv=%s", e.Status().Session, e.cfg.CSVURL)
	e.injectTimer = e.after(e.cfg.InitialDelay, e.ensureInjected)
	e.settleTimer = e.after(e.cfg.SettleDelay, e.attachWatcher)

	for {
		select {
		case <-runCtx.Done():
			e.teardown()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		case <-e.wake:
			for _, fn := range e.drain() {
				if runCtx.Err() != nil {
					break
				}
				fn()
			}
		}
	}
}

// Stop ends Run and waits for the loop to exit. It is safe to call more than
// once. Stopping an engine that never ran makes a later Run return at once.
func (e *Engine) Stop() {
	e.runMu.Lock()
	cancel, running := e.cancel, e.running
	if !running {
		e.stopped = true
	}
	e.runMu.Unlock()
	if !running {
		return
	}
	cancel()
	<-e.done
}

func (e *Engine) post(fn func()) {
	e.qmu.Lock()
	e.queue = append(e.queue, fn)
	e.qmu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) drain() []func() {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	fns := e.queue
	e.queue = nil
	return fns
}

func (e *Engine) after(d time.Duration, fn func()) Timer {
	return e.clock.AfterFunc(d, func() { e.post(fn) })
}

func (e *Engine) teardown() {
	for _, t := range []Timer{e.injectTimer, e.checkTimer, e.settleTimer} {
		if t != nil {
			t.Stop()
		}
	}
	e.stopFades()
	if e.unwatch != nil {
		e.unwatch()
		e.unwatch = nil
	}
	e.logger.Printf("ENGINE stop session=%s", e.Status().Session)
}

// ensureInjected inserts the widget when the container is missing and starts
// polling once a container exists. While the
// host has not rendered a known layout it retries every RetryDelay.
func (e *Engine) ensureInjected() {
	e.injectTimer = nil
	if err := e.host.EnsureStyle(e.ctx, StyleID, e.css); err != nil {
		e.logger.Printf("INJECT style: %v", err)
	}
	present, err := e.host.Exists(e.ctx, ContainerID)
	if err != nil {
		e.logger.Printf("INJECT lookup: %v", err)
		e.scheduleInjection()
		return
	}
	if present {
		e.updateStatus(func(s *Status) { s.Injected = true })
	} else {
		layout, err := e.inject()
		if err != nil {
			e.logger.Printf("INJECT %v", err)
			e.scheduleInjection()
			return
		}
		if layout == LayoutUnresolved {
			if !e.layoutMissing {
				e.logger.Printf("INJECT no known layout yet, retrying every %s", e.cfg.RetryDelay)
				e.layoutMissing = true
			}
			e.scheduleInjection()
			return
		}
		e.layoutMissing = false
	}
	// a container left by an earlier session is adopted and polled as well
	if !e.polling {
		e.polling = true
		e.checkStatus()
	}
}

// inject detects the layout on a fresh snapshot and inserts the widget
// rendered in the current state.
func (e *Engine) inject() (Layout, error) {
	doc, _, err := e.host.Snapshot(e.ctx)
	if err != nil {
		return LayoutUnresolved, fmt.Errorf("snapshot: %w", err)
	}
	pc := e.prof.detect(doc)
	if pc.Layout == LayoutUnresolved {
		return LayoutUnresolved, nil
	}
	parent, before := pc.insertionPoint()
	frag := RenderWidget(pc.Layout, e.current, e.cfg.SheetURL)
	if err := e.host.Insert(e.ctx, dom.PathOf(parent), dom.PathOf(before), frag); err != nil {
		return LayoutUnresolved, fmt.Errorf("insert %s widget: %w", pc.Layout, err)
	}
	e.stopFades()
	e.displayed = e.current
	e.updateStatus(func(s *Status) {
		s.Injected = true
		s.Injections++
		s.Layout = pc.Layout
	})
	e.logger.Printf("INJECT %s widget showing %s", pc.Layout, e.current)
	return pc.Layout, nil
}

func (e *Engine) scheduleInjection() {
	if e.injectTimer != nil {
		return
	}
	e.injectTimer = e.after(e.cfg.RetryDelay, e.ensureInjected)
}

// checkStatus runs one polling cycle. The fetch happens off the loop; its
// result comes back through finishCheck.
func (e *Engine) checkStatus() {
	e.checkTimer = nil
	doc, loc, err := e.host.Snapshot(e.ctx)
	if err != nil {
		e.failCheck(fmt.Errorf("overlay: snapshot: %w", err))
		return
	}
	id := e.prof.resolve(doc, loc)
	if id == "" {
		e.failCheck(ErrIdentifierNotFound)
		return
	}
	e.updateStatus(func(s *Status) { s.Identifier = id })

	ctx, url := e.ctx, e.cfg.CSVURL
	go func() {
		table, err := e.fetcher.Fetch(ctx, url)
		e.post(func() { e.finishCheck(id, table, err) })
	}()
}

func (e *Engine) finishCheck(id string, table remotelist.Table, err error) {
	if err != nil {
		e.failCheck(err)
		return
	}
	next := StateInactive
	if remotelist.IsMember(table, id, e.cfg.IDColumn) {
		next = StateActive
	}
	e.logger.Printf("CHECK id=%s rows=%d -> %s", id, len(table), next)
	e.setState(next)
	now := e.clock.Now()
	e.updateStatus(func(s *Status) {
		s.Checks++
		s.LastCheck = now
		s.LastError = ""
	})
	e.scheduleCheck(e.cfg.SuccessInterval)
}

func (e *Engine) failCheck(err error) {
	e.logger.Printf("CHECK failed: %v", err)
	e.setState(StateError)
	now := e.clock.Now()
	e.updateStatus(func(s *Status) {
		s.Checks++
		s.Failures++
		s.LastCheck = now
		s.LastError = err.Error()
	})
	e.scheduleCheck(e.cfg.ErrorInterval)
}

func (e *Engine) scheduleCheck(d time.Duration) {
	if e.checkTimer != nil {
		e.checkTimer.Stop()
	}
	e.checkTimer = e.after(d, e.checkStatus)
	next := e.clock.Now().Add(d)
	e.updateStatus(func(s *Status) { s.NextCheck = next })
}

// setState applies a new display state. Repeating the current state is a no-op.
func (e *Engine) setState(next State) {
	if next == e.current {
		return
	}
	prev := e.current
	e.current = next
	e.updateStatus(func(s *Status) {
		s.State = next
		s.Transitions++
	})
	e.logger.Printf("STATE %s -> %s", prev, next)
	e.transition(next)
}

// transition fades the pill out, swaps its content, then fades it back in.
// A newer transition cancels the pending steps of an older one.
func (e *Engine) transition(next State) {
	e.stopFades()
	e.transitionSeq++
	seq := e.transitionSeq
	e.patch(dom.Patch{ID: PillID, Class: e.displayed.pillClass() + " " + classFadeOut})
	swap := e.after(e.cfg.SwapDelay, func() {
		if seq != e.transitionSeq {
			return
		}
		if e.patch(dom.Patch{ID: PillID, Class: next.pillClass(), Inner: pillInner(next)}) {
			e.displayed = next
		}
		fadeIn := e.after(e.cfg.FadeInDelay, func() {
			if seq != e.transitionSeq {
				return
			}
			e.patch(dom.Patch{ID: PillID, Class: next.pillClass() + " " + classFadeIn})
		})
		e.fadeTimers = append(e.fadeTimers, fadeIn)
	})
	e.fadeTimers = append(e.fadeTimers, swap)
}

func (e *Engine) stopFades() {
	for _, t := range e.fadeTimers {
		t.Stop()
	}
	e.fadeTimers = nil
}

// patch updates the pill only when the container, pill and text all exist.
func (e *Engine) patch(p dom.Patch) bool {
	p.Require = []string{ContainerID, PillID, TextID}
	ok, err := e.host.Patch(e.ctx, p)
	if err != nil {
		e.logger.Printf("STATE patch %s: %v", p.ID, err)
		return false
	}
	return ok
}

// RunOnce performs a single synchronous reconciliation: inject the widget if
// a layout is present, check the identifier once and render the result
// without fading. It must not be called while Run is active.
func (e *Engine) RunOnce(ctx context.Context) (State, error) {
	e.runMu.Lock()
	running := e.running
	e.runMu.Unlock()
	if running {
		return StateError, errAlreadyRunning
	}
	e.ctx = ctx

	if err := e.host.EnsureStyle(ctx, StyleID, e.css); err != nil {
		e.logger.Printf("INJECT style: %v", err)
	}
	if present, err := e.host.Exists(ctx, ContainerID); err == nil && !present {
		if layout, err := e.inject(); err != nil {
			e.logger.Printf("INJECT %v", err)
		} else if layout == LayoutUnresolved {
			e.logger.Printf("INJECT no known layout on page")
		}
	}

	state, err := e.checkOnce(ctx)
	e.current = state
	e.displayed = state
	now := e.clock.Now()
	e.updateStatus(func(s *Status) {
		if s.State != state {
			s.Transitions++
		}
		s.State = state
		s.Checks++
		s.LastCheck = now
		if err != nil {
			s.Failures++
			s.LastError = err.Error()
		}
	})
	e.patch(dom.Patch{ID: PillID, Class: state.pillClass(), Inner: pillInner(state)})
	return state, err
}

func (e *Engine) checkOnce(ctx context.Context) (State, error) {
	doc, loc, err := e.host.Snapshot(ctx)
	if err != nil {
		return StateError, fmt.Errorf("overlay: snapshot: %w", err)
	}
	id := e.prof.resolve(doc, loc)
	if id == "" {
		return StateError, ErrIdentifierNotFound
	}
	e.updateStatus(func(s *Status) { s.Identifier = id })
	table, err := e.fetcher.Fetch(ctx, e.cfg.CSVURL)
	if err != nil {
		return StateError, err
	}
	if remotelist.IsMember(table, id, e.cfg.IDColumn) {
		return StateActive, nil
	}
	return StateInactive, nil
}
