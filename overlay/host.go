package overlay

import (
	"context"
	"errors"

	"golang.org/x/net/html"

	"abstatus/dom"
	"abstatus/remotelist"
)

// ErrIdentifierNotFound is returned when no identifier source on the page
// yields a value.
var ErrIdentifierNotFound = errors.New("overlay: identifier not found on page")

// Host is the document the widget lives in. Implementations serialize their
// own access; the engine calls them from a single goroutine.
type Host interface {
	// Snapshot returns a read-only copy of the document and its URL.
	Snapshot(ctx context.Context) (*html.Node, string, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Insert parses fragment and inserts it under parent, before before
	// (nil appends).
	Insert(ctx context.Context, parent, before dom.Path, fragment string) error
	EnsureStyle(ctx context.Context, id, css string) error
	// Patch reports false without changing anything when an element it
	// needs is missing.
	Patch(ctx context.Context, p dom.Patch) (bool, error)
}

// Notifier delivers DOM change notifications for a subtree.
type Notifier interface {
	Subscribe(ctx context.Context, root dom.Path, fn func()) (cancel func(), err error)
}

// TableFetcher retrieves the membership table.
type TableFetcher interface {
	Fetch(ctx context.Context, url string) (remotelist.Table, error)
}

var (
	_ Host         = (*dom.Document)(nil)
	_ Notifier     = (*dom.Document)(nil)
	_ TableFetcher = (*remotelist.Fetcher)(nil)
)
