// Package api holds the Battlesnake HTTP request and response types and the
// conversion from a request into a game.GameState snapshot.
package api

import (
	"fmt"
	"math"

	"github.com/brensch/safesnek/game"
)

type InfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Color      string `json:"color"`
	Head       string `json:"head"`
	Tail       string `json:"tail"`
	Version    string `json:"version,omitempty"`
}

// GameRequest is the body of /start, /move and /end.
type GameRequest struct {
	Game  Game        `json:"game"`
	Turn  int         `json:"turn"`
	Board Board       `json:"board"`
	You   Battlesnake `json:"you"`
}

type Game struct {
	ID      string  `json:"id"`
	Ruleset Ruleset `json:"ruleset"`
	Map     string  `json:"map"`
	Timeout int     `json:"timeout"`
	Source  string  `json:"source"`
}

type Ruleset struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings RulesetSettings `json:"settings"`
}

type RulesetSettings struct {
	FoodSpawnChance     int `json:"foodSpawnChance"`
	MinimumFood         int `json:"minimumFood"`
	HazardDamagePerTurn int `json:"hazardDamagePerTurn"`
}

type Board struct {
	Height  int           `json:"height"`
	Width   int           `json:"width"`
	Food    []Coord       `json:"food"`
	Hazards []Coord       `json:"hazards"`
	Snakes  []Battlesnake `json:"snakes"`
}

type Battlesnake struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Health  int     `json:"health"`
	Body    []Coord `json:"body"`
	Latency string  `json:"latency"`
	Head    Coord   `json:"head"`
	Length  int     `json:"length"`
	Shout   string  `json:"shout"`
	Squad   string  `json:"squad"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MoveResponse answers /move.
type MoveResponse struct {
	Move  string `json:"move"`
	Shout string `json:"shout,omitempty"`
}

// ToGameState converts a request into the snapshot the selector consumes and
// returns the acting snake. Board width and height are carried over as-is.
// It fails when any snake's head disagrees with its first body segment or
// when a number is negative or does not fit in an int32.
func ToGameState(req *GameRequest) (*game.GameState, game.Snake, error) {
	width, err := toInt32("board width", req.Board.Width)
	if err != nil {
		return nil, game.Snake{}, err
	}
	height, err := toInt32("board height", req.Board.Height)
	if err != nil {
		return nil, game.Snake{}, err
	}
	turn, err := toInt32("turn", req.Turn)
	if err != nil {
		return nil, game.Snake{}, err
	}

	state := &game.GameState{
		Width:  width,
		Height: height,
		YouId:  req.You.ID,
		Turn:   turn,
	}

	if state.Food, err = toPoints("food", req.Board.Food); err != nil {
		return nil, game.Snake{}, err
	}

	you, err := toSnake(req.You)
	if err != nil {
		return nil, game.Snake{}, err
	}
	state.Snakes = make([]game.Snake, 0, len(req.Board.Snakes)+1)
	found := false
	for _, s := range req.Board.Snakes {
		if s.ID == req.You.ID {
			found = true
			state.Snakes = append(state.Snakes, you)
			continue
		}
		snake, err := toSnake(s)
		if err != nil {
			return nil, game.Snake{}, err
		}
		state.Snakes = append(state.Snakes, snake)
	}
	if !found {
		state.Snakes = append(state.Snakes, you)
	}

	return state, you, nil
}

func toSnake(s Battlesnake) (game.Snake, error) {
	if len(s.Body) > 0 && s.Body[0] != s.Head {
		return game.Snake{}, fmt.Errorf("snake %q head (%d,%d) does not match body[0] (%d,%d)",
			s.ID, s.Head.X, s.Head.Y, s.Body[0].X, s.Body[0].Y)
	}
	health, err := toInt32(fmt.Sprintf("snake %q health", s.ID), s.Health)
	if err != nil {
		return game.Snake{}, err
	}
	body, err := toPoints(fmt.Sprintf("snake %q body", s.ID), s.Body)
	if err != nil {
		return game.Snake{}, err
	}
	return game.Snake{Id: s.ID, Health: health, Body: body}, nil
}

func toPoints(what string, cs []Coord) ([]game.Point, error) {
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

// toInt32 rejects values a snapshot cannot hold instead of truncating them.
func toInt32(field string, v int) (int32, error) {
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s %d out of range [0,%d]", field, v, math.MaxInt32)
	}
	return int32(v), nil
}
