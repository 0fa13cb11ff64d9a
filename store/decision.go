package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/move"
)

// Sources written into DecisionRow.Source.
const (
	SourceLive   = "live"
	SourceArena  = "arena"
	SourceReplay = "replay"
)

// DecisionRow is one selector call: the snapshot it saw, what survived the
// elimination rules and what was sent back.
//
// Survivors is the move.Candidates bitmask (bit 0=left, 1=up, 2=down,
// 3=right). Move is empty when there was no safe move and no fallback was
// sent. ActualMove is only set by replay, where the real snake's move is
// known.
type DecisionRow struct {
	GameID        string `parquet:"game_id,dict"`
	Turn          int32  `parquet:"turn"`
	SnakeID       string `parquet:"snake_id,dict"`
	Width         int32  `parquet:"width"`
	Height        int32  `parquet:"height"`
	HeadX         int32  `parquet:"head_x"`
	HeadY         int32  `parquet:"head_y"`
	Survivors     int32  `parquet:"survivors"`
	SurvivorCount int32  `parquet:"survivor_count"`
	Move          string `parquet:"move,dict"`
	NoSafeMove    bool   `parquet:"no_safe_move"`
	Fallback      bool   `parquet:"fallback"`
	ActualMove    string `parquet:"actual_move,dict,optional"`
	Source        string `parquet:"source,dict"`
	State         []byte `parquet:"state,zstd"`
	RecordedNs    int64  `parquet:"recorded_ns"`
}

// RawGameState is the model-agnostic snapshot stored in DecisionRow.State.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type RawGameState struct {
	Width  int32   `json:"width"`
	Height int32   `json:"height"`
	Turn   int32   `json:"turn"`
	YouID  string  `json:"you_id"`
	Food   []Point `json:"food"`
	Snakes []Snake `json:"snakes"`
}

type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type Snake struct {
	ID     string  `json:"id"`
	Health int32   `json:"health"`
	Body   []Point `json:"body"`
}

// EncodeRawStateJSON serializes a snapshot for DecisionRow.State.
func EncodeRawStateJSON(state *game.GameState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("nil state")
	}
	raw := RawGameState{
		Width:  state.Width,
		Height: state.Height,
		Turn:   state.Turn,
		YouID:  state.YouId,
		Food:   toRawPoints(state.Food),
		Snakes: make([]Snake, len(state.Snakes)),
	}
	for i, s := range state.Snakes {
		raw.Snakes[i] = Snake{ID: s.Id, Health: s.Health, Body: toRawPoints(s.Body)}
	}
	return json.Marshal(raw)
}

// DecodeRawStateJSON is the inverse of EncodeRawStateJSON.
func DecodeRawStateJSON(b []byte) (*game.GameState, error) {
	var raw RawGameState
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	state := &game.GameState{
		Width:  raw.Width,
		Height: raw.Height,
		Turn:   raw.Turn,
		YouId:  raw.YouID,
		Food:   fromRawPoints(raw.Food),
		Snakes: make([]game.Snake, len(raw.Snakes)),
	}
	for i, s := range raw.Snakes {
		state.Snakes[i] = game.Snake{Id: s.ID, Health: s.Health, Body: fromRawPoints(s.Body)}
	}
	return state, nil
}

// NewDecisionRow builds the archive row for one selector call. err is the
// error Select returned; fallback is the move sent instead when err is
// move.ErrNoSafeMove (nil when nothing was sent).
func NewDecisionRow(gameID, source string, state *game.GameState, you game.Snake, d move.Decision, err error, fallback *game.Direction) (DecisionRow, error) {
	blob, encErr := EncodeRawStateJSON(state)
	if encErr != nil {
		return DecisionRow{}, encErr
	}
	row := DecisionRow{
		GameID:        gameID,
		Turn:          state.Turn,
		SnakeID:       you.Id,
		Width:         state.Width,
		Height:        state.Height,
		Survivors:     int32(d.Survivors),
		SurvivorCount: int32(d.Survivors.Len()),
		Source:        source,
		State:         blob,
		RecordedNs:    time.Now().UnixNano(),
	}
	if len(you.Body) > 0 {
		row.HeadX, row.HeadY = you.Body[0].X, you.Body[0].Y
	}
	switch {
	case err == nil:
		row.Move = d.Move.String()
	case fallback != nil:
		row.NoSafeMove = true
		row.Fallback = true
		row.Move = fallback.String()
	default:
		row.NoSafeMove = true
	}
	return row, nil
}

func toRawPoints(ps []game.Point) []Point {
	out := make([]Point, len(ps))
	for i, p := range ps {
		out[i] = Point{X: p.X, Y: p.Y}
	}
	return out
}

func fromRawPoints(ps []Point) []game.Point {
	out := make([]game.Point, len(ps))
	for i, p := range ps {
		out[i] = game.Point{X: p.X, Y: p.Y}
	}
	return out
}
