// Package move picks the next direction for a snake from a single board
// snapshot.
//
// Selection is a pure function of the snapshot plus one draw from a Source:
// start from all four directions, drop the reversal onto the neck, drop moves
// that the boundary rule forbids, drop moves into any occupied cell, then pick
// uniformly among whatever survives. Nothing is retained between turns.
package move

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brensch/safesnek/game"
)

var (
	// ErrNoSafeMove means every direction was eliminated. The snake is
	// trapped and the caller has to pick a last-resort move itself.
	ErrNoSafeMove = errors.New("no safe move")

	// ErrInvalidSnapshot wraps every precondition failure found by Validate.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Decision is the outcome of one Select call.
type Decision struct {
	Move      game.Direction
	Survivors Candidates
}

// Select validates the snapshot, filters the candidates and draws one
// survivor from src. On ErrNoSafeMove the returned Decision has no
// survivors and its Move must be ignored.
func Select(state *game.GameState, you game.Snake, src Source) (Decision, error) {
	if err := Validate(state, you); err != nil {
		return Decision{}, err
	}

	survivors := Survivors(state, you)
	moves := survivors.Slice()
	if len(moves) == 0 {
		return Decision{Survivors: survivors}, ErrNoSafeMove
	}

	return Decision{
		Move:      moves[src.Intn(len(moves))],
		Survivors: survivors,
	}, nil
}

// Survivors runs the elimination rules and returns the directions left.
// The result depends only on the snapshot. you must have at least two body
// segments; use Validate first on untrusted input.
func Survivors(state *game.GameState, you game.Snake) Candidates {
	live := All
	head := you.Body[0]
	neck := you.Body[1]

	// Don't turn around. A neck stacked on the head removes nothing.
	switch {
	case neck.X < head.X:
		live = live.Remove(game.Left)
	case neck.X > head.X:
		live = live.Remove(game.Right)
	case neck.Y < head.Y:
		live = live.Remove(game.Down)
	case neck.Y > head.Y:
		live = live.Remove(game.Up)
	}

	// Boundary rule. Height bounds x for Up and Width bounds y for Right;
	// see DESIGN.md before changing the pairing.
	if head.X == 0 {
		live = live.Remove(game.Left)
	}
	if head.X == state.Height {
		live = live.Remove(game.Up)
	}
	if head.Y == 0 {
		live = live.Remove(game.Down)
	}
	if head.Y == state.Width {
		live = live.Remove(game.Right)
	}

	occupied := newOccupancy(state, you)
	for _, d := range game.Directions {
		if !live.Has(d) {
			continue
		}
		next, ok := head.Advance(d)
		if !ok || occupied.Contains(next) {
			live = live.Remove(d)
		}
	}

	return live
}

// Validate checks the preconditions Select relies on.
func Validate(state *game.GameState, you game.Snake) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidSnapshot)
	}
	if state.Width < 0 || state.Height < 0 {
		return fmt.Errorf("%w: negative board size %dx%d", ErrInvalidSnapshot, state.Width, state.Height)
	}
	if len(you.Body) < 2 {
		return fmt.Errorf("%w: snake %q has %d body segments, need at least 2", ErrInvalidSnapshot, you.Id, len(you.Body))
	}
	if err := validateBody(state, you); err != nil {
		return err
	}
	for _, s := range state.Snakes {
		if len(s.Body) == 0 {
			return fmt.Errorf("%w: snake %q has an empty body", ErrInvalidSnapshot, s.Id)
		}
		if err := validateBody(state, s); err != nil {
			return err
		}
	}
	return nil
}

func validateBody(state *game.GameState, s game.Snake) error {
	for i, p := range s.Body {
		if !state.InBounds(p) {
			return fmt.Errorf("%w: snake %q segment %d at (%d,%d) outside [0,%d]x[0,%d]",
				ErrInvalidSnapshot, s.Id, i, p.X, p.Y, state.Width, state.Height)
		}
	}
	return nil
}

// occupancy is the sorted, deduplicated set of cells covered by any snake
// before anyone moves. Tails are included even though they may vacate.
type occupancy []game.Point

func newOccupancy(state *game.GameState, you game.Snake) occupancy {
	n := len(you.Body)
	for _, s := range state.Snakes {
		n += len(s.Body)
	}

	cells := make([]game.Point, 0, n)
	for _, s := range state.Snakes {
		cells = append(cells, s.Body...)
	}
	cells = append(cells, you.Body...)

	slices.SortFunc(cells, game.Compare)
	return slices.Compact(cells)
}

func (o occupancy) Contains(p game.Point) bool {
	_, found := slices.BinarySearchFunc(o, p, game.Compare)
	return found
}
