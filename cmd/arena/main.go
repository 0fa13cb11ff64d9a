// Command arena plays selector-vs-selector games locally and shows running
// totals in a terminal UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/safesnek/arena"
	"github.com/brensch/safesnek/config"
	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/logging"
	"github.com/brensch/safesnek/store"
)

func main() {
	def := arena.DefaultConfig()
	games := flag.Int("games", config.GetEnvIntOrDefault("GAMES", 100), "Games to play (0 = until interrupted)")
	workers := flag.Int("workers", config.GetEnvIntOrDefault("WORKERS", 4), "Concurrent games")
	snakes := flag.Int("snakes", config.GetEnvIntOrDefault("SNAKES", def.Snakes), "Snakes per game (1-8)")
	width := flag.Int("width", config.GetEnvIntOrDefault("WIDTH", int(def.Width)), "Largest x coordinate")
	height := flag.Int("height", config.GetEnvIntOrDefault("HEIGHT", int(def.Height)), "Largest y coordinate")
	maxTurns := flag.Int("max-turns", config.GetEnvIntOrDefault("MAX_TURNS", def.MaxTurns), "Turn limit per game")
	minFood := flag.Int("min-food", config.GetEnvIntOrDefault("MIN_FOOD", def.Food.MinimumFood), "Minimum food on the board")
	foodChance := flag.Int("food-chance", config.GetEnvIntOrDefault("FOOD_CHANCE", def.Food.FoodSpawnChance), "Percent chance of extra food per turn")
	fallback := flag.String("fallback", config.GetEnvOrDefault("FALLBACK_MOVE", "up"), "Move used when nothing is safe")
	seed := flag.Int64("seed", config.GetEnvInt64OrDefault("SEED", 0), "Base seed (0 = time based)")
	archiveDir := flag.String("archive-dir", config.GetEnvOrDefault("ARCHIVE_DIR", ""), "Directory for decision parquet batches (empty disables recording)")
	flushRows := flag.Int("flush-rows", config.GetEnvIntOrDefault("FLUSH_ROWS", 10000), "Flush the archive after this many decisions")
	useTUI := flag.Bool("tui", config.GetEnvBoolOrDefault("TUI", true), "Show the terminal UI instead of log lines")
	logFormat := flag.String("log-format", config.GetEnvOrDefault("LOG_FORMAT", logging.FormatText), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", config.GetEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	// The TUI owns the terminal; logs are dropped while it runs.
	var logOut io.Writer = os.Stderr
	if *useTUI {
		logOut = io.Discard
	}
	logger, err := logging.New(logOut, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	slog.SetDefault(logger)

	fb, err := game.ParseDirection(*fallback)
	if err != nil {
		log.Fatalf("fallback: %v", err)
	}

	cfg := arena.Config{
		Snakes:   *snakes,
		Width:    int32(*width),
		Height:   int32(*height),
		MaxTurns: *maxTurns,
		Food:     game.FoodSettings{MinimumFood: *minFood, FoodSpawnChance: *foodChance},
		Fallback: fb,
		Seed:     *seed,
		Record:   *archiveDir != "",
	}

	var recorder *store.Recorder
	if cfg.Record {
		recorder, err = store.NewRecorder(store.RecorderConfig{
			Dir:       *archiveDir,
			FlushRows: *flushRows,
			Logger:    logger.With("component", "archive"),
		})
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	results := make(chan arena.Result, *workers)
	runErr := make(chan error, 1)
	go func() {
		runErr <- arena.Run(ctx, cfg, *workers, *games, results)
		close(results)
	}()

	var program *tea.Program
	if *useTUI {
		program = tea.NewProgram(initialModel(cancel), tea.WithAltScreen())
	}

	final := newTally()
	collected := make(chan error, 1)
	go func() {
		for res := range results {
			final.add(res)
			if recorder != nil {
				for _, row := range res.Rows {
					if err := recorder.Record(row); err != nil {
						logger.Warn("decision not recorded", "err", err)
						break
					}
				}
			}
			if program != nil {
				program.Send(resultMsg(res))
			} else {
				logger.Info("game finished", "game_id", res.GameID, "turns", res.Turns, "winner", res.Winner, "no_safe_move", res.NoSafeMove)
			}
		}
		err := <-runErr
		if program != nil {
			program.Send(doneMsg{err: err})
		}
		collected <- err
	}()

	if program != nil {
		if _, err := program.Run(); err != nil {
			cancel()
			logger.Error("tui failed", "err", err)
		}
	}
	err = <-collected

	if recorder != nil {
		if cerr := recorder.Close(); cerr != nil {
			logger.Error("archive close failed", "err", cerr)
		}
	}

	fmt.Printf("games=%d mean_turns=%.1f draws=%d no_safe_move=%d wins=[%s] deaths=[%s]\n",
		final.games, final.meanTurns(), final.draws, final.noSafeMove, sortedCounts(final.wins), sortedCounts(final.causes))

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "arena: %v\n", err)
		os.Exit(1)
	}
}
