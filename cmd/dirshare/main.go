package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dirshare/internal/config"
	"dirshare/internal/httpserver"
	"dirshare/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "dirshare:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()

	srv, err := httpserver.New(httpserver.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           withHeaders(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		// no write timeout: large downloads may take as long as they need
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("dirshare listening",
			logging.String("addr", "http://"+cfg.Addr),
			logging.String("root", srv.Root()),
			logging.Int("max_in_flight", cfg.MaxInFlight),
			logging.Bool("webdav", cfg.WebDAV),
		)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("listen failed", logging.Err(err))
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logging.Warn("graceful shutdown incomplete", logging.Err(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadConfig reads -config when given, then lets any explicitly set flag
// override the file.
func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("dirshare", flag.ContinueOnError)
	var (
		cfgPath      = fs.String("config", "", "path to config file (.json, .yaml or .yml)")
		root         = fs.String("root", "", "directory to serve (default: current directory)")
		addr         = fs.String("addr", "", "listen address (default 0.0.0.0:3000)")
		logLevel     = fs.String("log-level", "", "debug, info, warn or error")
		logFormat    = fs.String("log-format", "", "console or json")
		cacheEntries = fs.Int("cache-entries", 0, "small-file cache capacity (default 100)")
		maxInFlight  = fs.Int("max-inflight", 0, "concurrently served requests (default 64)")
		webdav       = fs.Bool("webdav", false, "mount a read-only WebDAV view under /dav/")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *root
		case "addr":
			cfg.Addr = *addr
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "cache-entries":
			cfg.CacheEntries = *cacheEntries
		case "max-inflight":
			cfg.MaxInFlight = *maxInFlight
		case "webdav":
			cfg.WebDAV = *webdav
		}
	})

	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Basic hardening.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		// Thumbnails are derived and cheap to reuse; listings must stay fresh.
		if strings.HasPrefix(r.URL.Path, "/thumb/") {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		} else {
			w.Header().Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}
