// Command replay downloads public Battlesnake games, runs the selector on
// every recorded turn and archives how its survivors compare with the moves
// the real snakes made.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brensch/safesnek/config"
	"github.com/brensch/safesnek/logging"
	"github.com/brensch/safesnek/move"
	"github.com/brensch/safesnek/replay"
	"github.com/brensch/safesnek/store"
)

func main() {
	outDir := flag.String("out-dir", config.GetEnvOrDefault("OUT_DIR", "data/replay"), "Directory for decision parquet batches")
	logPath := flag.String("log-path", config.GetEnvOrDefault("WRITTEN_LOG", ""), "Append-only log of audited game IDs (default <out-dir>/written_games.log)")
	flushRows := flag.Int("flush-rows", config.GetEnvIntOrDefault("FLUSH_ROWS", 10000), "Flush after this many buffered decisions")
	flushEvery := flag.Duration("flush-every", config.GetEnvDurationOrDefault("FLUSH_EVERY", 10*time.Minute), "Flush at this interval regardless of count")
	maxPlayers := flag.Int("max-players", config.GetEnvIntOrDefault("MAX_PLAYERS", 50), "Players to check per leaderboard")
	requestDelay := flag.Duration("delay", config.GetEnvDurationOrDefault("DELAY", 500*time.Millisecond), "Delay between HTTP requests")
	seed := flag.Int64("seed", config.GetEnvInt64OrDefault("SEED", 0), "Selector seed (0 = time based)")
	logFormat := flag.String("log-format", config.GetEnvOrDefault("LOG_FORMAT", logging.FormatText), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", config.GetEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	slog.SetDefault(logger)

	if *logPath == "" {
		*logPath = filepath.Join(*outDir, "written_games.log")
	}
	written, err := store.OpenWrittenLog(*logPath)
	if err != nil {
		log.Fatalf("open written log: %v", err)
	}
	defer written.Close()

	recorder, err := store.NewRecorder(store.RecorderConfig{
		Dir:        *outDir,
		FlushRows:  *flushRows,
		FlushEvery: *flushEvery,
		Logger:     logger.With("component", "archive"),
	})
	if err != nil {
		log.Fatalf("archive: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.InfoContext(ctx, "starting replay audit",
		"out_dir", *outDir, "written_log", *logPath, "already_written", written.Count(),
		"max_players", *maxPlayers, "delay", *requestDelay)

	disc := replay.DefaultDiscoverConfig()
	disc.MaxPlayers = *maxPlayers
	disc.RequestDelay = *requestDelay
	discoverer := replay.NewDiscoverer(disc, written.Snapshot(), logger.With("component", "discovery"))
	downloader := replay.NewDownloader(replay.DefaultDownloadConfig(), logger.With("component", "download"))
	src := move.NewLockedSource(*seed)

	ids := make(chan string, 1000)
	go func() {
		defer close(ids)
		if err := discoverer.Discover(ctx, ids); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "discovery failed", "err", err)
		}
	}()

	var totals replay.AuditStats
	var audited, failed, skipped int
	for id := range ids {
		if ctx.Err() != nil {
			break
		}
		if written.Has(id) {
			skipped++
			continue
		}

		g, err := downloader.Download(ctx, id)
		if err != nil || len(g.Frames) < 2 {
			failed++
			if failed%50 == 1 {
				slog.WarnContext(ctx, "download failed", "game_id", id, "failures", failed, "err", err)
			}
			continue
		}

		findings := replay.Audit(g, src)
		for _, f := range findings {
			row, err := f.Row(g.ID)
			if err == nil {
				err = recorder.Record(row)
			}
			if err != nil {
				slog.WarnContext(ctx, "decision not recorded", "game_id", g.ID, "turn", f.Turn, "err", err)
			}
		}
		// Marked before the rows are flushed; a crash drops them for good.
		if err := written.Add(g.ID); err != nil {
			slog.WarnContext(ctx, "written log append failed", "game_id", g.ID, "err", err)
		}

		st := replay.Tally(findings)
		totals.Merge(st)
		audited++

		slog.DebugContext(ctx, "game audited", "game_id", g.ID, "ruleset", g.Ruleset, "turns", len(g.Frames),
			"decisions", st.Decisions, "outside", st.Outside, "no_safe_move", st.NoSafeMove)
		if audited%50 == 0 {
			slog.InfoContext(ctx, "progress", "audited", audited, "skipped", skipped, "failed", failed, "decisions", totals.Decisions)
		}
	}

	if err := recorder.Close(); err != nil {
		slog.Error("archive close failed", "err", err)
	}
	rs := recorder.Stats()
	slog.Info("replay audit complete",
		"audited", audited, "skipped", skipped, "failed", failed,
		"decisions", totals.Decisions, "no_safe_move", totals.NoSafeMove, "unknown", totals.Unknown,
		"outside", totals.Outside, "outside_survived", totals.OutsideSurvived, "deaths", totals.Deaths,
		"batches", rs.Batches, "rows", rs.Rows)
}
