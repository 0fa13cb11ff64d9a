package arena

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/move"
	"github.com/brensch/safesnek/store"
)

func TestNewGame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Snakes = 4
	state := NewGame(cfg, rand.New(rand.NewSource(1)))

	require.Len(t, state.Snakes, 4)
	starts := map[game.Point]bool{}
	for _, s := range state.Snakes {
		require.Len(t, s.Body, 3)
		require.Equal(t, s.Body[0], s.Body[1])
		require.Equal(t, s.Body[0], s.Body[2])
		require.True(t, state.InBounds(s.Body[0]))
		require.False(t, starts[s.Body[0]], "duplicate start %v", s.Body[0])
		starts[s.Body[0]] = true
	}
	require.True(t, starts[game.Point{X: 2, Y: 2}])
	require.True(t, starts[game.Point{X: 7, Y: 7}])

	require.Len(t, state.Food, 1)
	require.False(t, starts[state.Food[0]])
	require.True(t, state.InBounds(state.Food[0]))
}

func TestPlay_Completes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Record = true

	res, err := Play(context.Background(), cfg, move.NewLockedSource(42))
	require.NoError(t, err)
	require.NotEmpty(t, res.GameID)
	require.Positive(t, res.Turns)
	require.LessOrEqual(t, res.Turns, cfg.MaxTurns)
	require.NotNil(t, res.Final)
	require.Equal(t, int32(res.Turns), res.Final.Turn)
	t.Logf("turns=%d winner=%q deaths=%v\n%s", res.Turns, res.Winner, res.Deaths, Render(res.Final))

	if res.Winner != "" {
		require.Len(t, res.Final.Snakes, 1)
		require.Equal(t, res.Winner, res.Final.Snakes[0].Id)
	}

	dead := map[string]bool{}
	for _, d := range res.Deaths {
		require.False(t, dead[d.SnakeId], "%s died twice", d.SnakeId)
		dead[d.SnakeId] = true
	}

	require.GreaterOrEqual(t, len(res.Rows), res.Turns)
	noSafe := 0
	for _, row := range res.Rows {
		require.Equal(t, res.GameID, row.GameID)
		require.Equal(t, store.SourceArena, row.Source)
		require.NotEmpty(t, row.Move)
		if row.NoSafeMove {
			noSafe++
			require.True(t, row.Fallback)
			require.Equal(t, "up", row.Move)
		}
	}
	require.Equal(t, res.NoSafeMove, noSafe)
}

func TestPlay_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.Record = true

	a, err := Play(context.Background(), cfg, move.NewLockedSource(99))
	require.NoError(t, err)
	b, err := Play(context.Background(), cfg, move.NewLockedSource(99))
	require.NoError(t, err)

	require.NotEqual(t, a.GameID, b.GameID)
	require.Equal(t, a.Turns, b.Turns)
	require.Equal(t, a.Winner, b.Winner)
	require.Equal(t, a.Deaths, b.Deaths)
	require.Equal(t, a.Final, b.Final)
	require.Equal(t, len(a.Rows), len(b.Rows))
	for i := range a.Rows {
		require.Equal(t, a.Rows[i].Move, b.Rows[i].Move, "row %d", i)
	}
}

func TestPlay_SingleSnakeEventuallyDies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Snakes = 1
	cfg.Food = game.FoodSettings{}
	cfg.Seed = 3

	res, err := Play(context.Background(), cfg, move.NewLockedSource(3))
	require.NoError(t, err)
	require.Len(t, res.Deaths, 1)
	require.LessOrEqual(t, res.Turns, 100)
	require.Empty(t, res.Winner)
	require.Empty(t, res.Rows)
}

func TestPlay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Play(ctx, DefaultConfig(), move.NewLockedSource(1))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, res.Turns)
	require.NotNil(t, res.Final)
}

func TestPlay_InvalidConfig(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"no snakes":    func(c *Config) { c.Snakes = 0 },
		"too many":     func(c *Config) { c.Snakes = 9 },
		"tiny board":   func(c *Config) { c.Width = 1 },
		"no max turns": func(c *Config) { c.MaxTurns = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := Play(context.Background(), cfg, move.NewLockedSource(1))
			require.Error(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 11
	out := make(chan Result, 6)

	require.NoError(t, Run(context.Background(), cfg, 3, 6, out))
	close(out)

	ids := map[string]bool{}
	for res := range out {
		require.False(t, ids[res.GameID])
		ids[res.GameID] = true
		require.Positive(t, res.Turns)
	}
	require.Len(t, ids, 6)
}

func TestRun_CancelUnlimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Result)
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, DefaultConfig(), 2, 0, out) }()

	<-out
	<-out
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRender(t *testing.T) {
	state := &game.GameState{
		Width: 3, Height: 2, Turn: 5, YouId: "me",
		Food: []game.Point{{X: 3, Y: 2}},
		Snakes: []game.Snake{
			{Id: "me", Body: []game.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}},
			{Id: "them", Body: []game.Point{{X: 2, Y: 1}, {X: 2, Y: 2}, {X: 9, Y: 9}}},
		},
	}
	want := "turn 5 you=me\n" +
		". . b F\n" +
		". . B .\n" +
		"O o . .\n"
	require.Equal(t, want, Render(state))
}
