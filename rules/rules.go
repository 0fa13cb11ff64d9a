// Package rules advances a full game state by one turn given a move for
// every live snake. It is used by the local arena; the live server never
// simulates.
package rules

import (
	"math/rand"

	"github.com/brensch/safesnek/game"
)

const (
	// DeathCauseSnakeCollision is the death reason when a head runs into a body.
	DeathCauseSnakeCollision = "snake-collision"
	// DeathCauseStarvation is the death reason when health reaches zero.
	DeathCauseStarvation = "starvation"
	// DeathCauseHeadToHeadCollision is a head-on collision lost on length.
	DeathCauseHeadToHeadCollision = "head-collision"
	// DeathCauseWallCollision is the death reason when a head leaves the board.
	DeathCauseWallCollision = "wall-collision"
	// DeathCauseNoMove means the snake was given no move this turn.
	DeathCauseNoMove = "no-move"
)

const maxHealth = 100

// Death records one elimination.
type Death struct {
	SnakeId string
	Cause   string
	Turn    int32
}

// Step advances the game with moves for all snakes and spawns food.
// Dead snakes are dropped from the returned state. The input is not modified.
func Step(state *game.GameState, moves map[string]game.Direction, rng *rand.Rand, food game.FoodSettings) (*game.GameState, []Death) {
	newState := state.Clone()
	newState.Turn++

	deaths := make(map[string]string)

	// 1. Move heads. Tails drop now; eaters regrow below.
	newHeads := make(map[string]game.Point)
	for i := range newState.Snakes {
		s := &newState.Snakes[i]
		move, ok := moves[s.Id]
		if !ok {
			deaths[s.Id] = DeathCauseNoMove
			continue
		}
		dx, dy := move.Delta()
		head := s.Body[0]
		newHead := game.Point{X: head.X + dx, Y: head.Y + dy}
		newHeads[s.Id] = newHead

		body := make([]game.Point, 0, len(s.Body)+1)
		body = append(body, newHead)
		body = append(body, s.Body[:len(s.Body)-1]...)
		s.Body = body
		s.Health--
	}

	// 2. Feed. Eating restores health and duplicates the new tail.
	eaten := make(map[game.Point]bool)
	for i := range newState.Snakes {
		s := &newState.Snakes[i]
		head, ok := newHeads[s.Id]
		if !ok {
			continue
		}
		for _, f := range newState.Food {
			if f == head {
				eaten[f] = true
				s.Health = maxHealth
				s.Body = append(s.Body, s.Body[len(s.Body)-1])
				break
			}
		}
	}
	if len(eaten) > 0 {
		remaining := newState.Food[:0:0]
		for _, f := range newState.Food {
			if !eaten[f] {
				remaining = append(remaining, f)
			}
		}
		newState.Food = remaining
	}

	// 3. Eliminations, evaluated against the post-move bodies.
	for _, s := range newState.Snakes {
		if _, dead := deaths[s.Id]; dead {
			continue
		}
		head := s.Body[0]
		switch {
		case s.Health <= 0:
			deaths[s.Id] = DeathCauseStarvation
		case !newState.InBounds(head):
			deaths[s.Id] = DeathCauseWallCollision
		case hitsBody(newState, head):
			deaths[s.Id] = DeathCauseSnakeCollision
		}
	}

	for i := 0; i < len(newState.Snakes); i++ {
		s1 := newState.Snakes[i]
		if _, moved := newHeads[s1.Id]; !moved {
			continue
		}
		for j := i + 1; j < len(newState.Snakes); j++ {
			s2 := newState.Snakes[j]
			if _, moved := newHeads[s2.Id]; !moved {
				continue
			}
			if s1.Body[0] != s2.Body[0] {
				continue
			}
			if len(s1.Body) <= len(s2.Body) {
				markDead(deaths, s1.Id, DeathCauseHeadToHeadCollision)
			}
			if len(s2.Body) <= len(s1.Body) {
				markDead(deaths, s2.Id, DeathCauseHeadToHeadCollision)
			}
		}
	}

	var out []Death
	alive := make([]game.Snake, 0, len(newState.Snakes))
	for _, s := range newState.Snakes {
		if cause, dead := deaths[s.Id]; dead {
			out = append(out, Death{SnakeId: s.Id, Cause: cause, Turn: newState.Turn})
			continue
		}
		alive = append(alive, s)
	}
	newState.Snakes = alive

	game.SpawnFood(newState, rng, food)
	return newState, out
}

func markDead(deaths map[string]string, id, cause string) {
	if _, ok := deaths[id]; !ok {
		deaths[id] = cause
	}
}

// hitsBody reports whether p lands on any body segment other than a head.
func hitsBody(state *game.GameState, p game.Point) bool {
	for _, other := range state.Snakes {
		for i, bp := range other.Body {
			if i == 0 {
				continue
			}
			if bp == p {
				return true
			}
		}
	}
	return false
}

// IsGameOver returns true once at most one snake remains (or none, for a
// single-snake game).
func IsGameOver(state *game.GameState, players int) bool {
	if players <= 1 {
		return len(state.Snakes) == 0
	}
	return len(state.Snakes) <= 1
}
