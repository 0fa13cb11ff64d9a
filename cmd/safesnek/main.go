// Command safesnek serves the move selector as a Battlesnake.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/safesnek/api"
	"github.com/brensch/safesnek/config"
	"github.com/brensch/safesnek/logging"
	"github.com/brensch/safesnek/move"
	"github.com/brensch/safesnek/server"
	"github.com/brensch/safesnek/store"
)

var version = "dev"

func main() {
	listen := flag.String("listen", config.GetEnvOrDefault("LISTEN", ":8080"), "HTTP listen address")
	logFormat := flag.String("log-format", config.GetEnvOrDefault("LOG_FORMAT", logging.FormatText), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", config.GetEnvOrDefault("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
	fallback := flag.String("fallback", config.GetEnvOrDefault("FALLBACK_MOVE", "up"), "Move sent when nothing is safe: up, down, left, right or random")
	seed := flag.Int64("seed", config.GetEnvInt64OrDefault("SEED", 0), "Selector seed (0 = time based)")
	archiveDir := flag.String("archive-dir", config.GetEnvOrDefault("ARCHIVE_DIR", ""), "Directory for decision parquet batches (empty disables recording)")
	flushRows := flag.Int("flush-rows", config.GetEnvIntOrDefault("FLUSH_ROWS", 1000), "Flush the archive after this many decisions")
	flushEvery := flag.Duration("flush-every", config.GetEnvDurationOrDefault("FLUSH_EVERY", time.Minute), "Flush the archive at this interval")
	author := flag.String("author", config.GetEnvOrDefault("AUTHOR", ""), "Battlesnake author")
	color := flag.String("color", config.GetEnvOrDefault("COLOR", "#888888"), "Battlesnake color")
	head := flag.String("head", config.GetEnvOrDefault("HEAD", "all-seeing"), "Battlesnake head")
	tail := flag.String("tail", config.GetEnvOrDefault("TAIL", "mystic-moon"), "Battlesnake tail")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	slog.SetDefault(logger)

	fb, err := server.ParseFallback(*fallback)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := server.Config{
		Info: api.InfoResponse{
			APIVersion: "1",
			Author:     *author,
			Color:      *color,
			Head:       *head,
			Tail:       *tail,
			Version:    version,
		},
		Fallback: fb,
		Source:   move.NewLockedSource(*seed),
		Logger:   logger,
	}

	var recorder *store.Recorder
	if *archiveDir != "" {
		recorder, err = store.NewRecorder(store.RecorderConfig{
			Dir:        *archiveDir,
			FlushRows:  *flushRows,
			FlushEvery: *flushEvery,
			Logger:     logger.With("component", "archive"),
		})
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		cfg.Recorder = recorder
	}

	srv := &http.Server{
		Addr:              *listen,
		Handler:           server.New(cfg).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(ctx, "server listening", "addr", *listen, "fallback", fb.String(), "archive", *archiveDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "graceful shutdown failed", "err", err)
			return srv.Close()
		}
		return nil
	})

	runErr := g.Wait()
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			slog.ErrorContext(ctx, "archive close failed", "err", err)
		}
		st := recorder.Stats()
		slog.InfoContext(ctx, "archive closed", "batches", st.Batches, "rows", st.Rows, "failed", st.Failed)
	}
	if runErr != nil {
		slog.ErrorContext(ctx, "server error", "err", runErr)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "server shutdown complete")
}
