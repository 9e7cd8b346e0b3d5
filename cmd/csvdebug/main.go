package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"abstatus/overlay"
	"abstatus/remotelist"
)

func main() {
	strict := flag.Bool("strict", false, "parse as RFC 4180 CSV")
	id := flag.String("id", "", "identifier to look up")
	column := flag.Int("column", -1, "identifier column (default from config)")
	flag.Parse()

	cfg := overlay.DefaultConfig()
	url := cfg.CSVURL
	if flag.NArg() > 0 {
		url = flag.Arg(0)
	}
	if *column < 0 {
		*column = cfg.IDColumn
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	f := remotelist.NewFetcher(remotelist.WithStrictCSV(*strict || cfg.StrictCSV), remotelist.WithLogger(log.Default()))
	table, err := f.Fetch(ctx, url)
	if err != nil {
		log.Fatal(err)
	}

	want := strings.ToLower(strings.TrimSpace(*id))
	for i, row := range table {
		mark := " "
		switch {
		case i == 0 && len(table) > 1:
			mark = "h"
		case want != "" && *column < len(row) && strings.EqualFold(strings.TrimSpace(row[*column]), want):
			mark = "*"
		}
		fmt.Printf("%s %4d cells=%d %q\n", mark, i, len(row), row)
	}
	if want != "" {
		fmt.Printf("member(%q, column %d) = %v\n", want, *column, remotelist.IsMember(table, want, *column))
	}
	if len(table) == 0 {
		os.Exit(1)
	}
}
