package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/move"
	"github.com/brensch/safesnek/store"
)

type firstSource struct{}

func (firstSource) Intn(int) int { return 0 }

func pts(xy ...int32) []game.Point {
	out := make([]game.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, game.Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func twoFrameGame() *Game {
	return &Game{
		ID: "g1",
		Frames: []Frame{
			{State: &game.GameState{
				Width: 11, Height: 11, Turn: 0,
				Snakes: []game.Snake{
					{Id: "a", Health: 100, Body: pts(5, 5, 5, 4, 5, 3)},
					{Id: "b", Health: 100, Body: pts(0, 3, 1, 3, 2, 3)},
				},
			}},
			{
				State: &game.GameState{
					Width: 11, Height: 11, Turn: 1,
					Snakes: []game.Snake{
						{Id: "a", Health: 99, Body: pts(5, 6, 5, 5, 5, 4)},
					},
				},
				Eliminated: []Elimination{
					{SnakeID: "b", Cause: "wall-collision", Turn: 1, Body: pts(-1, 3, 0, 3, 1, 3)},
				},
			},
		},
	}
}

func TestAudit(t *testing.T) {
	findings := Audit(twoFrameGame(), firstSource{})
	require.Len(t, findings, 2)

	a := findings[0]
	require.Equal(t, "a", a.SnakeID)
	require.Equal(t, "a", a.State.YouId)
	require.Equal(t, "[left up right]", a.Decision.Survivors.String())
	require.Equal(t, game.Left, a.Decision.Move)
	require.True(t, a.ActualKnown)
	require.Equal(t, game.Up, a.Actual)
	require.False(t, a.Outside())
	require.False(t, a.Died)

	b := findings[1]
	require.Equal(t, "[up down]", b.Decision.Survivors.String())
	require.True(t, b.ActualKnown)
	require.Equal(t, game.Left, b.Actual)
	require.True(t, b.Outside())
	require.True(t, b.Died)
	require.Equal(t, "wall-collision", b.Cause)

	st := Tally(findings)
	require.Equal(t, AuditStats{Decisions: 2, Outside: 1, Deaths: 1}, st)

	row, err := b.Row("g1")
	require.NoError(t, err)
	require.Equal(t, store.SourceReplay, row.Source)
	require.Equal(t, "left", row.ActualMove)
	require.Equal(t, "b", row.SnakeID)
	require.Equal(t, int32(2), row.SurvivorCount)
}

func TestAudit_NoSafeMoveAndUnknown(t *testing.T) {
	// c is boxed in by its own body and the wall; d vanishes without a trace.
	g := &Game{Frames: []Frame{
		{State: &game.GameState{
			Width: 4, Height: 4,
			Snakes: []game.Snake{
				{Id: "c", Health: 50, Body: pts(0, 0, 1, 0, 1, 1, 0, 1)},
				{Id: "d", Health: 50, Body: pts(3, 3, 3, 2)},
			},
		}},
		{State: &game.GameState{Width: 4, Height: 4, Turn: 1}},
	}}

	findings := Audit(g, firstSource{})
	require.Len(t, findings, 2)
	require.True(t, findings[0].NoSafeMove)
	require.False(t, findings[1].ActualKnown)

	row, err := findings[0].Row("g")
	require.NoError(t, err)
	require.True(t, row.NoSafeMove)
	require.False(t, row.Fallback)
	require.Empty(t, row.ActualMove)

	st := Tally(findings)
	require.Equal(t, 1, st.NoSafeMove)
	require.Equal(t, 2, st.Unknown)

	st.Merge(Tally(Audit(twoFrameGame(), firstSource{})))
	require.Equal(t, AuditStats{Decisions: 4, NoSafeMove: 1, Unknown: 2, Outside: 1, Deaths: 1}, st)
}

func TestConvertFrame(t *testing.T) {
	f := engineFrame{
		Turn: 4,
		Snakes: []engineSnake{
			{ID: "z", Health: 80, Body: []engineCoord{{1, 1}, {1, 2}}},
			{ID: "y", Health: 0, Body: []engineCoord{{3, 3}, {3, 4}}, Death: &engineDeath{Cause: "starvation", Turn: 4}},
			{ID: "x", Health: 0, Body: []engineCoord{{5, 5}}, Death: &engineDeath{Cause: "head-collision", Turn: 2}},
			{ID: "a", Health: 90, Body: []engineCoord{{6, 6}, {6, 7}}},
		},
		Food: []engineCoord{{0, 0}},
	}
	got, err := convertFrame(&f)
	require.NoError(t, err)

	require.Equal(t, int32(11), got.State.Width)
	require.Equal(t, int32(4), got.State.Turn)
	require.Len(t, got.State.Snakes, 2)
	require.Equal(t, "a", got.State.Snakes[0].Id)
	require.Equal(t, "z", got.State.Snakes[1].Id)
	require.Equal(t, []Elimination{{SnakeID: "y", Cause: "starvation", Turn: 4, Body: pts(3, 3, 3, 4)}}, got.Eliminated)

	f.Board.Width, f.Board.Height = 19, 7
	got, err = convertFrame(&f)
	require.NoError(t, err)
	require.Equal(t, int32(19), got.State.Width)
	require.Equal(t, int32(7), got.State.Height)
}

func TestConvertFrame_OutOfRange(t *testing.T) {
	huge := math.MaxInt32 + 1
	valid := func() engineFrame {
		return engineFrame{
			Turn:   3,
			Snakes: []engineSnake{{ID: "s1", Health: 90, Body: []engineCoord{{5, 5}, {5, 4}}}},
		}
	}
	tests := []struct {
		name   string
		mutate func(*engineFrame)
		want   string
	}{
		{"wrapping head", func(f *engineFrame) { f.Snakes[0].Body[0].X = 1<<32 + 5 }, `snake "s1" body[0].x`},
		{"negative", func(f *engineFrame) { f.Snakes[0].Body[1].Y = -1 }, `snake "s1" body[1].y`},
		{"turn", func(f *engineFrame) { f.Turn = huge }, "turn"},
		{"width", func(f *engineFrame) { f.Board.Width = huge }, "board width"},
		{"food", func(f *engineFrame) { f.Food = []engineCoord{{0, huge}} }, "food[0].y"},
		{"eliminated body", func(f *engineFrame) {
			f.Snakes = append(f.Snakes, engineSnake{ID: "s2", Body: []engineCoord{{huge, 0}}, Death: &engineDeath{Cause: "wall-collision", Turn: 3}})
		}, `snake "s2" body[0].x`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := valid()
			tc.mutate(&f)
			_, err := convertFrame(&f)
			require.ErrorContains(t, err, tc.want)
		})
	}

	f := valid()
	_, err := convertFrame(&f)
	require.NoError(t, err)
}

func engineServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/game-1/events" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func event(t *testing.T, typ string, data any) string {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(engineEvent{Type: typ, Data: raw})
	require.NoError(t, err)
	return string(b)
}

func TestDownloader_Download(t *testing.T) {
	frame := func(turn int, head engineCoord, dead bool) engineFrame {
		s := engineSnake{ID: "s1", Name: "one", Health: 100, Body: []engineCoord{head, {head.X, head.Y - 1}}}
		other := engineSnake{ID: "s2", Name: "two", Health: 100, Body: []engineCoord{{8, 8}, {8, 7}}}
		if dead {
			other.Death = &engineDeath{Cause: "snake-collision", Turn: turn}
		}
		return engineFrame{Turn: turn, Snakes: []engineSnake{s, other}}
	}
	messages := []string{
		event(t, "game_info", map[string]any{"game": map[string]any{"id": "game-1"}, "ruleset": map[string]any{"name": "standard"}}),
		event(t, "frame", frame(0, engineCoord{3, 3}, false)),
		`{"type":"frame","data":{not json}}`,
		event(t, "frame", frame(1, engineCoord{3, 4}, true)),
		event(t, "game_end", map[string]any{}),
	}
	srv := engineServer(t, messages)

	d := NewDownloader(DownloadConfig{
		EngineURL:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/games/%s/events",
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
	}, nil)

	g, err := d.Download(context.Background(), "game-1")
	require.NoError(t, err)
	require.Equal(t, "game-1", g.ID)
	require.Equal(t, "standard", g.Ruleset)
	require.Equal(t, "one", g.Winner)
	require.Len(t, g.Frames, 2)
	require.Len(t, g.Frames[1].State.Snakes, 1)
	require.Len(t, g.Frames[1].Eliminated, 1)

	findings := Audit(g, move.NewLockedSource(1))
	require.Len(t, findings, 2)
	for _, f := range findings {
		if f.SnakeID == "s1" {
			require.Equal(t, game.Up, f.Actual)
		}
	}
}

func TestDownloader_WinnerFromLastTurn(t *testing.T) {
	alive := engineSnake{ID: "s1", Name: "one", Health: 100, Body: []engineCoord{{3, 3}, {3, 2}}}
	other := engineSnake{ID: "s2", Name: "two", Health: 100, Body: []engineCoord{{8, 8}, {8, 7}}}
	dead := other
	dead.Death = &engineDeath{Cause: "wall-collision", Turn: 1}

	// Turn 1 arrives before turn 0.
	messages := []string{
		event(t, "frame", engineFrame{Turn: 1, Snakes: []engineSnake{alive, dead}}),
		event(t, "frame", engineFrame{Turn: 0, Snakes: []engineSnake{alive, other}}),
		event(t, "frame", engineFrame{Turn: 2, Snakes: []engineSnake{{ID: "s1", Body: []engineCoord{{1<<32 + 3, 3}}}}}),
		event(t, "game_end", map[string]any{}),
	}
	srv := engineServer(t, messages)
	d := NewDownloader(DownloadConfig{
		EngineURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/games/%s/events",
		ReadTimeout: 5 * time.Second,
	}, nil)

	g, err := d.Download(context.Background(), "game-1")
	require.NoError(t, err)
	require.Len(t, g.Frames, 2)
	require.Equal(t, int32(0), g.Frames[0].State.Turn)
	require.Equal(t, int32(1), g.Frames[1].State.Turn)
	require.Equal(t, "one", g.Winner)
}

func TestDownloader_ConnectError(t *testing.T) {
	srv := engineServer(t, nil)
	d := NewDownloader(DownloadConfig{
		EngineURL:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/nope/%s",
		ConnectTimeout: time.Second,
	}, nil)
	_, err := d.Download(context.Background(), "game-1")
	require.Error(t, err)
}

func TestDiscoverer_Discover(t *testing.T) {
	pages := map[string]string{
		"/leaderboard/standard": `<html><body>
			<a href="/leaderboard/standard/alice/stats">alice</a>
			<a href="/leaderboard/standard/alice/stats">alice again</a>
			<a href="/leaderboard/standard/bob/stats">bob</a>
			<a href="/leaderboard/standard">self</a>
		</body></html>`,
		"/leaderboard/standard/alice/stats": `<a href="/game/aaa-1">g</a><a href="/game/aaa-2">g</a><a href="/game/aaa-2">dup</a>`,
		"/leaderboard/standard/bob/stats":   `<a href="/game/aaa-2">g</a><a href="/game/bbb-3">g</a>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	cfg := DiscoverConfig{LeaderboardURLs: []string{srv.URL + "/leaderboard/standard", srv.URL + "/leaderboard/missing"}}
	d := NewDiscoverer(cfg, map[string]bool{"aaa-1": true}, nil)

	out := make(chan string, 10)
	require.NoError(t, d.Discover(context.Background(), out))
	close(out)

	var got []string
	for id := range out {
		got = append(got, id)
	}
	require.Equal(t, []string{"aaa-2", "bbb-3"}, got)

	// A second pass finds nothing new.
	out = make(chan string, 10)
	require.NoError(t, d.Discover(context.Background(), out))
	require.Empty(t, out)
}

func TestDiscoverer_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/leaderboard/standard/alice/stats">alice</a><a href="/game/abc">g</a>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDiscoverer(DiscoverConfig{LeaderboardURLs: []string{srv.URL + "/leaderboard/standard"}}, nil, nil)
	require.ErrorIs(t, d.Discover(ctx, make(chan string)), context.Canceled)
}
