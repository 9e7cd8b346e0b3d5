package remotelist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietFetcher(opts ...Option) *Fetcher {
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	return NewFetcher(opts...)
}

func TestFetchOK(t *testing.T) {
	t.Parallel()
	var gotHdr http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHdr = r.Header.Clone()
		w.Header().Set("Content-Type", "text/csv")
		io.WriteString(w, sampleBody)
	}))
	defer srv.Close()

	table, err := quietFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(table) != 3 || table[1][0] != "abc-123" {
		t.Fatalf("unexpected table %#v", table)
	}
	if gotHdr.Get("Cache-Control") != "no-cache" {
		t.Fatalf("Cache-Control = %q", gotHdr.Get("Cache-Control"))
	}
	if gotHdr.Get("Accept") != "text/csv,*/*" {
		t.Fatalf("Accept = %q", gotHdr.Get("Accept"))
	}
}

func TestFetchStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := quietFetcher().Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d", fe.Status)
	}
}

func TestFetchTransport(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := quietFetcher().Fetch(context.Background(), url)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}

func TestFetchStrictParseError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "a,\"b\nc")
	}))
	defer srv.Close()

	_, err := quietFetcher(WithStrictCSV(true)).Fetch(context.Background(), srv.URL)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestFetchBodyTooLarge(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "id\n")
		w.Write(bytes.Repeat([]byte("x"), 11<<20))
		io.WriteString(w, "\nabc-123\n")
	}))
	defer srv.Close()

	table, err := quietFetcher().Fetch(context.Background(), srv.URL)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if table != nil {
		t.Fatalf("oversized body must not yield a table, got %d rows", len(table))
	}
}

func TestFetchCoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		io.WriteString(w, sampleBody)
	}))
	defer srv.Close()

	f := quietFetcher()
	var wg sync.WaitGroup
	tables := make([]Table, 4)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i], _ = f.Fetch(context.Background(), srv.URL)
		}(i)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := hits.Load(); n != 1 {
		t.Fatalf("expected 1 upstream request, got %d", n)
	}
	for i, tb := range tables {
		if len(tb) != 3 {
			t.Fatalf("caller %d got %#v", i, tb)
		}
	}
	tables[0][1][0] = "mutated"
	if tables[1][1][0] != "abc-123" {
		t.Fatal("callers share row storage")
	}

	// nothing is cached once the request finished
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("expected a fresh request, got %d total", n)
	}
}
