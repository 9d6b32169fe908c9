// Command dsquery runs a datasource request against a JSON file, a parquet
// file or a database table and prints the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nlstn/go-datasource"
	"github.com/nlstn/go-datasource/internal/observability"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	db        string
	table     string
	filter    string
	sort      string
	group     string
	aggregate string
	page      int
	pageSize  int
	id        string
	parentID  string
	root      string
	save      string
	load      string
	format    string
	timing    bool
	verbose   bool
	input     string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("dsquery", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.db, "db", "", "Database DSN (sqlite:<path> or postgres://...) instead of a file")
	fs.StringVar(&o.table, "table", "", "Table to read when -db is set")
	fs.StringVar(&o.filter, "filter", "", "Filter expression (e.g., \"Age~gt~30~and~Name~startswith~'J'\")")
	fs.StringVar(&o.sort, "sort", "", "Sort tokens (e.g., Age-desc~Name-asc)")
	fs.StringVar(&o.group, "group", "", "Group tokens (e.g., City-asc)")
	fs.StringVar(&o.aggregate, "aggregate", "", "Aggregate tokens (e.g., Age-sum-max~ID-count)")
	fs.IntVar(&o.page, "page", 1, "Page number, starting at 1")
	fs.IntVar(&o.pageSize, "pagesize", 0, "Page size (0 = unpaged)")
	fs.StringVar(&o.id, "id", "", "Identifier member; enables tree mode together with -parent")
	fs.StringVar(&o.parentID, "parent", "", "Parent identifier member for tree mode")
	fs.StringVar(&o.root, "root", "", "Filter restricting the returned rows in tree mode")
	fs.StringVar(&o.save, "save", "", "Write the request snapshot to this file (zstd compressed for *.zst)")
	fs.StringVar(&o.load, "load", "", "Read the request from a snapshot file instead of flags")
	fs.StringVar(&o.format, "f", "table", "Output format: table, json, jsonl")
	fs.BoolVar(&o.timing, "timing", false, "Print stage timings to stderr")
	fs.BoolVar(&o.verbose, "v", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: dsquery [options] <file.json|file.parquet>\n")
		fmt.Fprintf(stderr, "       dsquery [options] -db <dsn> -table <name>\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  dsquery -filter \"Age~gt~30\" -sort Age-desc people.json\n")
		fmt.Fprintf(stderr, "  dsquery -group City-asc -aggregate Age-average people.parquet\n")
		fmt.Fprintf(stderr, "  dsquery -db sqlite:shop.db -table products -pagesize 10\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		o.input = fs.Arg(0)
	}

	switch {
	case o.input == "" && o.db == "":
		fs.Usage()
		return nil, errors.New("missing input file or -db")
	case o.db != "" && o.table == "":
		return nil, errors.New("-db requires -table")
	case (o.id == "") != (o.parentID == ""):
		return nil, errors.New("-id and -parent must be used together")
	case o.pageSize < 0:
		return nil, fmt.Errorf("-pagesize must be non-negative, got %d", o.pageSize)
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	req, err := buildRequest(o)
	if err != nil {
		return err
	}
	if o.save != "" {
		if err := saveSnapshot(o.save, req); err != nil {
			return err
		}
	}

	var obsOpts []observability.Option
	if o.timing {
		obsOpts = append(obsOpts, observability.WithServerTiming())
	}
	p := datasource.New(
		datasource.WithLogger(logger),
		datasource.WithObservability(obsOpts...),
	)

	if o.timing {
		var header fmt.Stringer
		ctx, header = observability.WithServerTimingHeader(ctx)
		ctx = observability.WithDBTimeAccumulator(ctx)
		defer func() {
			observability.FlushDBTime(ctx)
			fmt.Fprintf(stderr, "Server-Timing: %s\n", header)
		}()
	}

	src, closeSource, err := openSource(o, p.Observability())
	if err != nil {
		return err
	}
	defer closeSource()

	out := newFormatter(o.format, stdout)
	if out == nil {
		return fmt.Errorf("unknown output format %q", o.format)
	}

	if o.id != "" {
		topts := datasource.TreeOptions{ID: o.id, ParentID: o.parentID}
		if o.root != "" {
			if topts.Root, err = datasource.ParseFilter(o.root); err != nil {
				return err
			}
		}
		res, err := p.ToTreeResult(ctx, src, req, topts)
		if err != nil {
			return err
		}
		return out.Tree(res)
	}

	res, err := p.ToResult(ctx, src, req, datasource.ResultOptions{})
	if err != nil {
		return err
	}
	return out.Result(res)
}

func buildRequest(o *options) (*datasource.Request, error) {
	if o.load != "" {
		return loadSnapshot(o.load)
	}

	req := &datasource.Request{Page: o.page, PageSize: o.pageSize}
	f, err := datasource.ParseFilter(o.filter)
	if err != nil {
		return nil, err
	}
	if f != nil {
		req.Filters = []datasource.Filter{f}
	}
	if req.Sorts, err = datasource.ParseSorts(o.sort); err != nil {
		return nil, err
	}
	if req.Groups, err = datasource.ParseGroups(o.group); err != nil {
		return nil, err
	}
	if req.Aggregates, err = datasource.ParseAggregates(o.aggregate); err != nil {
		return nil, err
	}
	req.DistributeAggregates()
	return req, nil
}
