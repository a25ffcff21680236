// Package server implements sewa's development file server: stdlib static
// file serving wrapped with a fixed cross-origin header set, forced content
// types, gzip compression, live reload, and request statistics.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/sewa/internal/config"
	"github.com/Kush-Singh-26/sewa/internal/stats"
)

// Server serves one directory of prebuilt static files.
type Server struct {
	cfg *config.Config
	fs  afero.Fs
	hub *reloadHub
	log *slog.Logger
	out io.Writer

	stats    *stats.Recorder
	listener net.Listener
	port     int
}

// New builds a Server for cfg. cfg.Root must be an absolute path, which is
// what config.Load produces.
func New(cfg *config.Config) *Server {
	logger := slog.Default()
	if cfg.Quiet {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		cfg: cfg,
		fs:  afero.NewBasePathFs(afero.NewOsFs(), cfg.Root),
		hub: newReloadHub(),
		log: logger,
		out: os.Stdout,
	}
}

// Port reports the port actually bound, which differs from cfg.Port when
// the configured one was busy.
func (s *Server) Port() int {
	return s.port
}

// Run binds a port if Listen has not been called, starts the watcher and
// stats recorder, and serves until ctx is canceled. Cancellation is the
// clean shutdown path and returns nil.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	if s.cfg.Stats {
		rec, err := stats.Open(stats.DefaultPath(s.cfg.Root))
		if err != nil {
			slog.Warn("Request stats disabled", "error", err)
		} else {
			s.stats = rec
			defer func() {
				if cerr := s.stats.Close(); cerr != nil {
					slog.Warn("Failed to close stats store", "error", cerr)
				}
			}()
		}
	}

	if s.cfg.LiveReload {
		w, err := newWatcher(s.cfg.Root, s.cfg.DebounceDuration, s.hub.broadcast)
		if err != nil {
			slog.Warn("Live reload disabled", "error", err)
		} else {
			defer w.stop()
		}
	}

	s.printBanner()

	httpServer := &http.Server{Handler: s.handler()}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown error", "error", err)
		}
	}()

	err := httpServer.Serve(s.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	// Serve only returns ErrServerClosed once Shutdown has started; wait for
	// the drain to finish before the deferred cleanups run.
	<-shutdownDone
	fmt.Fprintln(s.out, "🛑 Server stopped.")
	return nil
}

func (s *Server) printBanner() {
	host := s.cfg.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := strconv.Itoa(s.port)

	fmt.Fprintln(s.out, "🚀 Server started!")
	fmt.Fprintf(s.out, "📍 Local:   %s\n", color.CyanString("http://localhost:%s", port))
	fmt.Fprintf(s.out, "🌐 Network: %s\n", color.CyanString("http://%s:%s", host, port))
	for _, entry := range s.cfg.EntryPoints {
		fmt.Fprintf(s.out, "🔗 %s\n", color.GreenString("http://localhost:%s/%s", port, strings.TrimPrefix(entry, "/")))
	}
	if s.cfg.LiveReload {
		fmt.Fprintln(s.out, "👀 Live reload at /events")
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Press Ctrl+C to stop")
	fmt.Fprintln(s.out, strings.Repeat("=", 50))
}
