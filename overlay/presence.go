package overlay

import "abstatus/dom"

// attachWatcher subscribes to mutations under the observe root once the host
// page has settled. A failed attach is retried on the injection cadence.
func (e *Engine) attachWatcher() {
	e.settleTimer = nil
	if e.notes == nil || e.unwatch != nil {
		return
	}
	doc, _, err := e.host.Snapshot(e.ctx)
	if err != nil {
		e.logger.Printf("WATCH snapshot: %v", err)
		e.settleTimer = e.after(e.cfg.RetryDelay, e.attachWatcher)
		return
	}
	root := e.prof.observeRoot(doc)
	path := dom.PathOf(root)
	if path == nil {
		e.logger.Printf("WATCH no observe root yet")
		e.settleTimer = e.after(e.cfg.RetryDelay, e.attachWatcher)
		return
	}
	cancel, err := e.notes.Subscribe(e.ctx, path, func() { e.post(e.onMutation) })
	if err != nil {
		e.logger.Printf("WATCH subscribe %s: %v", path, err)
		e.settleTimer = e.after(e.cfg.RetryDelay, e.attachWatcher)
		return
	}
	e.unwatch = cancel
	e.logger.Printf("WATCH observing <%s> at %s", root.Data, path)
}

// onMutation re-injects the widget when a host re-render dropped it. Bursts
// of mutations collapse into the single pending injection.
func (e *Engine) onMutation() {
	if e.injectTimer != nil {
		return
	}
	present, err := e.host.Exists(e.ctx, ContainerID)
	if err != nil {
		e.logger.Printf("WATCH lookup: %v", err)
		return
	}
	if present {
		return
	}
	e.logger.Printf("WATCH widget removed, re-injecting")
	e.updateStatus(func(s *Status) { s.Injected = false })
	e.scheduleInjection()
}
