package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"abstatus/dom"
	"abstatus/internal/browser"
	"abstatus/internal/server"
	"abstatus/overlay"
	"abstatus/remotelist"
)

const usage = `usage: abstatus <command> [flags]

commands:
  check  [-config f] ids...              look identifiers up in the sheet
  check  [-config f] -page f -url u      resolve the identifier from a saved page, then look it up
  render [-config f] -page f -url u      inject the pill into a saved page and print the result
  watch  [-config f] -url u [-addr a]    keep the pill alive in a Chrome tab
`

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "check":
		err = runCheck(ctx, args)
	case "render":
		err = runRender(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

type commonFlags struct {
	config string
	strict bool
	page   string
	url    string
}

func newFlagSet(name string, c *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&c.config, "config", os.Getenv("ABSTATUS_CONFIG"), "YAML config file")
	fs.BoolVar(&c.strict, "strict", false, "parse the sheet as RFC 4180 CSV")
	fs.StringVar(&c.url, "url", "", "page URL")
	return fs
}

func (c *commonFlags) load() (overlay.Config, error) {
	cfg, err := overlay.LoadConfig(c.config)
	if err != nil {
		return overlay.Config{}, err
	}
	if c.strict {
		cfg.StrictCSV = true
	}
	cfg.Logger = log.Default()
	return cfg, nil
}

func newFetcher(cfg overlay.Config) *remotelist.Fetcher {
	return remotelist.NewFetcher(
		remotelist.WithStrictCSV(cfg.StrictCSV),
		remotelist.WithLogger(cfg.Logger),
	)
}

func warnUnmatched(cfg overlay.Config, u string) {
	if u != "" && !cfg.Profile.Matches(u) {
		log.Printf("WARN %s is not a page the host profile applies to", u)
	}
}

func loadPage(path, location string) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dom.Parse(f, location)
}

func runCheck(ctx context.Context, args []string) error {
	var c commonFlags
	fs := newFlagSet("check", &c)
	fs.StringVar(&c.page, "page", "", "saved HTML page to resolve the identifier from")
	fs.Parse(args)
	cfg, err := c.load()
	if err != nil {
		return err
	}

	ids := fs.Args()
	if c.page != "" {
		warnUnmatched(cfg, c.url)
		doc, err := loadPage(c.page, c.url)
		if err != nil {
			return err
		}
		snap, loc, _ := doc.Snapshot(ctx)
		id := overlay.ResolveIdentifier(snap, loc)
		if id == "" {
			fmt.Println(renderPill(c.page, overlay.StateError))
			return overlay.ErrIdentifierNotFound
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return errors.New("no identifiers given")
	}

	// concurrent lookups share one download
	fetcher := newFetcher(cfg)
	states := make([]overlay.State, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			table, err := fetcher.Fetch(ctx, cfg.CSVURL)
			switch {
			case err != nil:
				states[i], errs[i] = overlay.StateError, err
			case remotelist.IsMember(table, id, cfg.IDColumn):
				states[i] = overlay.StateActive
			default:
				states[i] = overlay.StateInactive
			}
		}(i, strings.ToLower(strings.TrimSpace(id)))
	}
	wg.Wait()

	for i, id := range ids {
		fmt.Println(renderPill(id, states[i]))
	}
	return errors.Join(errs...)
}

func runRender(ctx context.Context, args []string) error {
	var c commonFlags
	fs := newFlagSet("render", &c)
	fs.StringVar(&c.page, "page", "", "saved HTML page (required)")
	fs.Parse(args)
	if c.page == "" {
		return errors.New("-page is required")
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}
	warnUnmatched(cfg, c.url)
	doc, err := loadPage(c.page, c.url)
	if err != nil {
		return err
	}
	eng, err := overlay.New(cfg, doc, doc, newFetcher(cfg))
	if err != nil {
		return err
	}
	state, checkErr := eng.RunOnce(ctx)
	if checkErr != nil {
		log.Printf("CHECK %v", checkErr)
	}
	out, err := doc.HTML()
	if err != nil {
		return err
	}
	fmt.Println(out)
	log.Printf("STATE %s", state)
	return nil
}

func runWatch(ctx context.Context, args []string) error {
	var c commonFlags
	fs := newFlagSet("watch", &c)
	addr := fs.String("addr", "", "serve /status, /widget and /ping on this address, e.g. :8081")
	headless := fs.Bool("headless", false, "run Chrome without a window")
	profileDir := fs.String("profile", "", "Chrome user data dir, keeps the admin login")
	chrome := fs.String("chrome", "", "Chrome binary")
	fs.Parse(args)
	if c.url == "" {
		return errors.New("-url is required")
	}
	if env := os.Getenv("PORT"); env != "" && *addr == "" {
		*addr = ":" + env
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}
	warnUnmatched(cfg, c.url)

	tab, err := browser.Open(ctx, c.url, browser.Options{
		Headless:    *headless,
		ExecPath:    *chrome,
		UserDataDir: *profileDir,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return err
	}
	defer tab.Close()

	eng, err := overlay.New(cfg, tab, tab, newFetcher(cfg))
	if err != nil {
		return err
	}

	if *addr != "" {
		srv := &http.Server{
			Addr:              *addr,
			Handler:           server.New(server.Config{SheetURL: cfg.SheetURL, Logger: cfg.Logger}, eng),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ErrorLog:          log.New(os.Stderr, "HTTPERR ", log.LstdFlags|log.Lmicroseconds),
		}
		ln, err := net.Listen("tcp", *addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", *addr, err)
		}
		log.Println("Listening on", *addr)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTPERR %v", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
