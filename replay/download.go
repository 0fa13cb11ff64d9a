package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/logging"
)

// DownloadConfig holds engine connection settings. EngineURL is a format
// string taking the game ID.
type DownloadConfig struct {
	EngineURL      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		EngineURL:      "wss://engine.battlesnake.com/games/%s/events",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

// Game is a downloaded game: one Frame per turn in turn order.
type Game struct {
	ID      string
	Ruleset string
	Winner  string
	Frames  []Frame
}

// Frame is one turn. State holds live snakes only and has no YouId set.
// Eliminated lists the snakes the engine eliminated on this turn, with the
// body they died in.
type Frame struct {
	State      *game.GameState
	Eliminated []Elimination
}

// Elimination is a snake removed on the frame it is attached to.
type Elimination struct {
	SnakeID string
	Cause   string
	Turn    int32
	Body    []game.Point
}

// engine wire format

type engineEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type engineGameInfo struct {
	Game struct {
		ID string `json:"id"`
	} `json:"game"`
	Ruleset struct {
		Name string `json:"name"`
	} `json:"ruleset"`
}

type engineFrame struct {
	Turn   int           `json:"turn"`
	Snakes []engineSnake `json:"snakes"`
	Food   []engineCoord `json:"food"`
	Board  struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"board"`
}

type engineSnake struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Health int           `json:"health"`
	Body   []engineCoord `json:"body"`
	Death  *engineDeath  `json:"death,omitempty"`
}

type engineCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type engineDeath struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Downloader reads a finished game's event stream from the engine.
type Downloader struct {
	cfg    DownloadConfig
	logger *slog.Logger
}

// NewDownloader fills in the engine URL when cfg leaves it empty.
func NewDownloader(cfg DownloadConfig, logger *slog.Logger) *Downloader {
	if cfg.EngineURL == "" {
		cfg.EngineURL = DefaultDownloadConfig().EngineURL
	}
	return &Downloader{cfg: cfg, logger: logging.OrDefault(logger)}
}

// Download connects to the game's event stream and collects every frame
// until game_end or the server closes the connection.
func (d *Downloader) Download(ctx context.Context, gameID string) (*Game, error) {
	target := fmt.Sprintf(d.cfg.EngineURL, gameID)
	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.ConnectTimeout}

	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", gameID, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	g := &Game{ID: gameID}
	var final *engineFrame // highest turn seen; frames may arrive out of order

read:
	for {
		if d.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || len(g.Frames) > 0 {
				break
			}
			return nil, fmt.Errorf("read %s: %w", gameID, err)
		}

		var ev engineEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			d.logger.Debug("skipping unparseable event", "game_id", gameID, "err", err)
			continue
		}

		switch ev.Type {
		case "game_info":
			var info engineGameInfo
			if err := json.Unmarshal(ev.Data, &info); err != nil {
				d.logger.Debug("skipping game_info", "game_id", gameID, "err", err)
				continue
			}
			g.Ruleset = info.Ruleset.Name
		case "frame":
			var f engineFrame
			if err := json.Unmarshal(ev.Data, &f); err != nil {
				d.logger.Debug("skipping frame", "game_id", gameID, "err", err)
				continue
			}
			frame, err := convertFrame(&f)
			if err != nil {
				d.logger.Debug("skipping frame", "game_id", gameID, "turn", f.Turn, "err", err)
				continue
			}
			g.Frames = append(g.Frames, frame)
			if final == nil || f.Turn >= final.Turn {
				final = &f
			}
		case "game_end":
			break read
		}
	}

	if len(g.Frames) == 0 {
		return nil, errors.New("no frames received")
	}
	sort.SliceStable(g.Frames, func(i, j int) bool {
		return g.Frames[i].State.Turn < g.Frames[j].State.Turn
	})
	g.Winner = winner(final)
	return g, nil
}

// convertFrame maps an engine frame onto a GameState. Board size defaults to
// the standard 11x11 when the frame omits it and is carried over as given
// otherwise. Snakes are sorted by ID. Numbers that are negative or do not fit
// in an int32 reject the whole frame.
func convertFrame(f *engineFrame) (Frame, error) {
	turn, err := toInt32("turn", f.Turn)
	if err != nil {
		return Frame{}, err
	}
	food, err := toPoints("food", f.Food)
	if err != nil {
		return Frame{}, err
	}
	state := &game.GameState{
		Width:  11,
		Height: 11,
		Turn:   turn,
		Food:   food,
	}
	if f.Board.Width > 0 {
		if state.Width, err = toInt32("board width", f.Board.Width); err != nil {
			return Frame{}, err
		}
	}
	if f.Board.Height > 0 {
		if state.Height, err = toInt32("board height", f.Board.Height); err != nil {
			return Frame{}, err
		}
	}

	snakes := make([]engineSnake, len(f.Snakes))
	copy(snakes, f.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].ID < snakes[j].ID })

	out := Frame{State: state}
	for _, s := range snakes {
		if s.Death != nil && s.Death.Turn != f.Turn {
			continue
		}
		body, err := toPoints(fmt.Sprintf("snake %q body", s.ID), s.Body)
		if err != nil {
			return Frame{}, err
		}
		if s.Death != nil {
			out.Eliminated = append(out.Eliminated, Elimination{
				SnakeID: s.ID,
				Cause:   s.Death.Cause,
				Turn:    turn,
				Body:    body,
			})
			continue
		}
		// Engine health can dip below zero on the elimination turn only.
		health := int32(0)
		if s.Health > 0 {
			if health, err = toInt32(fmt.Sprintf("snake %q health", s.ID), s.Health); err != nil {
				return Frame{}, err
			}
		}
		state.Snakes = append(state.Snakes, game.Snake{
			Id:     s.ID,
			Health: health,
			Body:   body,
		})
	}
	return out, nil
}

func toPoints(what string, cs []engineCoord) ([]game.Point, error) {
	out := make([]game.Point, len(cs))
	for i, c := range cs {
		x, err := toInt32(fmt.Sprintf("%s[%d].x", what, i), c.X)
		if err != nil {
			return nil, err
		}
		y, err := toInt32(fmt.Sprintf("%s[%d].y", what, i), c.Y)
		if err != nil {
			return nil, err
		}
		out[i] = game.Point{X: x, Y: y}
	}
	return out, nil
}

func toInt32(field string, v int) (int32, error) {
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s %d out of range [0,%d]", field, v, math.MaxInt32)
	}
	return int32(v), nil
}

func winner(f *engineFrame) string {
	if f == nil {
		return "unknown"
	}
	var alive []engineSnake
	for _, s := range f.Snakes {
		if s.Death == nil && s.Health > 0 {
			alive = append(alive, s)
		}
	}
	if len(alive) == 1 {
		return alive[0].Name
	}
	return "draw"
}
