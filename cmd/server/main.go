// Command server exposes the schedule extractor and term catalog over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brunobiangulo/goschedule"
)

type serverConfig struct {
	addr        string
	uploadDir   string
	apiKey      string
	corsOrigins string
	engine      goschedule.Config
}

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	uploadDir := flag.String("uploads", filepath.Join(os.TempDir(), "goschedule-uploads"), "Directory for ingested uploads")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	sc := serverConfig{
		addr:        *addr,
		uploadDir:   *uploadDir,
		apiKey:      os.Getenv("GOSCHEDULE_API_KEY"),
		corsOrigins: os.Getenv("GOSCHEDULE_CORS_ORIGINS"),
		engine:      goschedule.DefaultConfig(),
	}
	if *configPath != "" {
		var err error
		if sc.engine, err = goschedule.LoadConfig(*configPath); err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}
	if v := os.Getenv("GOSCHEDULE_DB_PATH"); v != "" {
		sc.engine.DBPath = v
	}
	if v := os.Getenv("GOSCHEDULE_SENTINEL"); v != "" {
		sc.engine.Layout.Sentinel = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, sc); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// serve runs the HTTP API until ctx is cancelled, then drains in-flight
// requests for up to 30 seconds.
func serve(ctx context.Context, sc serverConfig) error {
	engine, err := goschedule.New(sc.engine)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = routes(newHandler(engine, sc.uploadDir))
	handler = logMiddleware(handler)
	handler = authMiddleware(sc.apiKey, handler)
	handler = corsMiddleware(sc.corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:              sc.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", sc.addr, "auth", sc.apiKey != "")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
