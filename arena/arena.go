// Package arena plays local games where every snake is driven by the move
// selector and the rules package resolves each turn.
package arena

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/move"
	"github.com/brensch/safesnek/rules"
	"github.com/brensch/safesnek/store"
)

// Config describes one kind of game. Width and Height are the largest valid
// coordinates, as in game.GameState.
type Config struct {
	Snakes   int
	Width    int32
	Height   int32
	MaxTurns int
	Food     game.FoodSettings
	Fallback game.Direction

	// Seed drives food placement. 0 seeds from the clock.
	Seed int64
	// Record keeps a DecisionRow for every selector call in Result.Rows.
	Record bool
}

// DefaultConfig is a two-snake duel on an 11x11 board.
func DefaultConfig() Config {
	return Config{
		Snakes:   2,
		Width:    10,
		Height:   10,
		MaxTurns: 500,
		Food:     game.DefaultFoodSettings,
		Fallback: game.Up,
	}
}

// Result summarizes one finished game.
type Result struct {
	GameID     string
	Turns      int
	Winner     string // empty on a draw or when MaxTurns was reached with several alive
	Deaths     []rules.Death
	NoSafeMove int
	Rows       []store.DecisionRow
	Final      *game.GameState
}

func (c Config) validate() error {
	switch {
	case c.Snakes < 1 || c.Snakes > len(startFractions):
		return fmt.Errorf("snakes must be between 1 and %d, got %d", len(startFractions), c.Snakes)
	case c.Width < 2 || c.Height < 2:
		return fmt.Errorf("board too small: %dx%d", c.Width, c.Height)
	case c.MaxTurns <= 0:
		return errors.New("max turns must be positive")
	}
	return nil
}

// startFractions are start cells as quarters of the board: corners first,
// then edge midpoints.
var startFractions = [][2]int32{
	{1, 1}, {3, 3}, {1, 3}, {3, 1},
	{2, 1}, {2, 3}, {1, 2}, {3, 2},
}

// NewGame builds the turn-0 state: stacked three-segment bodies on start
// cells plus the minimum food.
func NewGame(cfg Config, rng *rand.Rand) *game.GameState {
	state := &game.GameState{Width: cfg.Width, Height: cfg.Height}
	for i := 0; i < cfg.Snakes; i++ {
		f := startFractions[i]
		p := game.Point{X: cfg.Width * f[0] / 4, Y: cfg.Height * f[1] / 4}
		state.Snakes = append(state.Snakes, game.Snake{
			Id:     fmt.Sprintf("snake%d", i+1),
			Health: 100,
			Body:   []game.Point{p, p, p},
		})
	}
	game.SpawnFood(state, rng, game.FoodSettings{MinimumFood: cfg.Food.MinimumFood})
	return state
}

// Play runs one game to completion. On cancellation it returns the partial
// result together with ctx.Err().
func Play(ctx context.Context, cfg Config, src move.Source) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	state := NewGame(cfg, rng)
	res := Result{GameID: uuid.NewString()}

	for int(state.Turn) < cfg.MaxTurns && !rules.IsGameOver(state, cfg.Snakes) {
		if err := ctx.Err(); err != nil {
			res.Turns = int(state.Turn)
			res.Final = state
			return res, err
		}

		moves := make(map[string]game.Direction, len(state.Snakes))
		for _, s := range state.Snakes {
			state.YouId = s.Id
			d, err := move.Select(state, s, src)
			switch {
			case err == nil:
				moves[s.Id] = d.Move
			case errors.Is(err, move.ErrNoSafeMove):
				moves[s.Id] = cfg.Fallback
				res.NoSafeMove++
			default:
				return res, fmt.Errorf("turn %d snake %s: %w", state.Turn, s.Id, err)
			}

			if cfg.Record {
				fb := cfg.Fallback
				row, rowErr := store.NewDecisionRow(res.GameID, store.SourceArena, state, s, d, err, &fb)
				if rowErr != nil {
					return res, rowErr
				}
				res.Rows = append(res.Rows, row)
			}
		}

		var deaths []rules.Death
		state, deaths = rules.Step(state, moves, rng, cfg.Food)
		res.Deaths = append(res.Deaths, deaths...)
	}

	res.Turns = int(state.Turn)
	res.Final = state
	if len(state.Snakes) == 1 && cfg.Snakes > 1 {
		res.Winner = state.Snakes[0].Id
	}
	return res, nil
}

// Run plays games across workers and sends each result to out. games <= 0
// keeps playing until ctx is done. Run does not close out. It returns the
// first error from any game, or ctx.Err() after a cancellation.
func Run(ctx context.Context, cfg Config, workers, games int, out chan<- Result) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if workers <= 0 {
		workers = 1
	}
	base := cfg.Seed
	if base == 0 {
		base = time.Now().UnixNano()
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; games <= 0 || i < games; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		src := move.NewLockedSource(base + int64(w)*7919)
		g.Go(func() error {
			for i := range jobs {
				gc := cfg
				gc.Seed = base + int64(i)*1000003 + 1
				res, err := Play(gctx, gc, src)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
				select {
				case out <- res:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
