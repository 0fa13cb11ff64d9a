package move

import (
	"strings"

	"github.com/brensch/safesnek/game"
)

// Candidates is a set of directions, one bit per game.Direction.
type Candidates uint8

// All holds every direction.
const All Candidates = 1<<game.Left | 1<<game.Up | 1<<game.Down | 1<<game.Right

// Has reports whether d is in the set.
func (c Candidates) Has(d game.Direction) bool {
	return c&(1<<d) != 0
}

// Remove returns the set without d.
func (c Candidates) Remove(d game.Direction) Candidates {
	return c &^ (1 << d)
}

// Len is the number of directions in the set.
func (c Candidates) Len() int {
	n := 0
	for _, d := range game.Directions {
		if c.Has(d) {
			n++
		}
	}
	return n
}

// Slice returns the members in canonical order (left, up, down, right).
func (c Candidates) Slice() []game.Direction {
	out := make([]game.Direction, 0, 4)
	for _, d := range game.Directions {
		if c.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// String formats the set like "[left up right]".
func (c Candidates) String() string {
	names := make([]string, 0, 4)
	for _, d := range c.Slice() {
		names = append(names, d.String())
	}
	return "[" + strings.Join(names, " ") + "]"
}
