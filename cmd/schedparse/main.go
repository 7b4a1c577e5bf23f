// Command schedparse extracts the schedules of one term PDF and prints the
// reconciled result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/goschedule"
	"github.com/brunobiangulo/goschedule/export"
	"github.com/brunobiangulo/goschedule/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schedparse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file (YAML or JSON)")
	dbPath := fs.String("db", "", "Catalog database path (implies -store)")
	store := fs.Bool("store", false, "Ingest the document into the catalog")
	force := fs.Bool("force", false, "Re-extract even if the file is unchanged")
	jsonOut := fs.String("json", "", "Write the JSON result to this file instead of stdout")
	xlsxOut := fs.String("xlsx", "", "Also write the result as an XLSX workbook")
	verbose := fs.Bool("v", false, "Debug logging")
	timeout := fs.Duration("timeout", 10*time.Minute, "Abort after this long")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: schedparse [flags] file.pdf\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg := goschedule.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = goschedule.LoadConfig(*configPath); err != nil {
			slog.Error("loading config", "error", err)
			return 1
		}
	}
	if v := os.Getenv("GOSCHEDULE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("GOSCHEDULE_SENTINEL"); v != "" {
		cfg.Layout.Sentinel = v
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
		*store = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	var (
		res *pipeline.Result
		err error
	)
	if *store {
		res, err = ingest(ctx, cfg, path, *force)
	} else {
		res, err = goschedule.ExtractFile(ctx, cfg, path)
	}
	if err != nil {
		slog.Error("extraction failed", "file", path, "error", err)
		if errors.Is(err, goschedule.ErrUnsupportedFormat) || errors.Is(err, goschedule.ErrInvalidConfig) {
			return 2
		}
		return 1
	}

	if *xlsxOut != "" {
		if err := writeFile(*xlsxOut, func(w io.Writer) error { return export.Write(w, res) }); err != nil {
			slog.Error("writing workbook", "path", *xlsxOut, "error", err)
			return 1
		}
	}

	encode := func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if *jsonOut != "" {
		err = writeFile(*jsonOut, encode)
	} else {
		err = encode(stdout)
	}
	if err != nil {
		slog.Error("writing result", "error", err)
		return 1
	}

	for _, m := range res.Mismatches {
		fmt.Fprintf(stderr, "warning: %v\n", m)
	}
	return 0
}

// ingest stores the document in the catalog, then extracts it again for
// output. The second pass does not touch the catalog.
func ingest(ctx context.Context, cfg goschedule.Config, path string, force bool) (*pipeline.Result, error) {
	engine, err := goschedule.New(cfg)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	var res *pipeline.Result
	opts := []goschedule.IngestOption{goschedule.WithResult(&res)}
	if force {
		opts = append(opts, goschedule.WithForceReparse())
	}
	termID, err := engine.Ingest(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	if res == nil {
		slog.Info("term unchanged", "term_id", termID)
		return engine.Extract(ctx, path)
	}
	slog.Info("term stored", "term_id", termID)
	return res, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
