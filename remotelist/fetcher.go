package remotelist

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

const maxBodyBytes = 10 << 20

// Fetcher downloads and parses the published sheet. It never caches: every
// Fetch call that is not coalesced with an in-flight one performs a GET.
type Fetcher struct {
	client *http.Client
	ua     string
	strict bool
	logger *log.Logger
	group  singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithStrictCSV switches from the line/comma splitter to ParseStrict.
func WithStrictCSV(strict bool) Option {
	return func(f *Fetcher) { f.strict = strict }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher returns a Fetcher with a 30s client timeout.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "abstatus/1.0",
		logger: log.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f
}

// Fetch GETs url and parses the body. Concurrent calls for the same url share
// one request. Errors are *FetchError, *TransportError or *ParseError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Table, error) {
	v, err, shared := f.group.Do(url, func() (interface{}, error) {
		return f.fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	t := v.(Table)
	if shared {
		// callers own their table
		t = t.clone()
	}
	return t, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Accept", "text/csv,*/*")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if f.ua != "" {
		req.Header.Set("User-Agent", f.ua)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &ParseError{Err: fmt.Errorf("body exceeds %d MiB", maxBodyBytes>>20)}
	}

	var t Table
	if f.strict {
		t, err = ParseStrict(body)
	} else {
		t, err = Parse(body)
	}
	if err != nil {
		return nil, err
	}
	f.logger.Printf("FETCH %s status=%d bytes=%d rows=%d in %s", url, resp.StatusCode, len(body), len(t), time.Since(start).Round(time.Millisecond))
	return t, nil
}

func (t Table) clone() Table {
	out := make(Table, len(t))
	for i, row := range t {
		out[i] = append([]string(nil), row...)
	}
	return out
}
