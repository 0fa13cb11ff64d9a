package game

import (
	"fmt"
	"math"
	"strings"
)

// Direction is one of the four cardinal moves.
type Direction uint8

const (
	Left Direction = iota
	Up
	Down
	Right
)

// Directions lists every direction in canonical order.
var Directions = [4]Direction{Left, Up, Down, Right}

var directionNames = [4]string{"left", "up", "down", "right"}

// String returns the lowercase wire token for d.
func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// ParseDirection turns a wire token ("left", "UP", ...) back into a Direction.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Delta returns the unit step for d.
func (d Direction) Delta() (dx, dy int32) {
	switch d {
	case Left:
		return -1, 0
	case Up:
		return 0, 1
	case Down:
		return 0, -1
	case Right:
		return 1, 0
	}
	return 0, 0
}

// Opposite returns the direction that undoes d.
func (d Direction) Opposite() Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	case Up:
		return Down
	default:
		return Up
	}
}

// Advance steps p one cell in direction d with checked arithmetic.
// ok is false when the result would be negative or overflow int32.
func (p Point) Advance(d Direction) (next Point, ok bool) {
	dx, dy := d.Delta()
	if (dx < 0 && p.X <= 0) || (dy < 0 && p.Y <= 0) {
		return Point{}, false
	}
	if (dx > 0 && p.X == math.MaxInt32) || (dy > 0 && p.Y == math.MaxInt32) {
		return Point{}, false
	}
	return Point{X: p.X + dx, Y: p.Y + dy}, true
}

// DirectionBetween returns the direction that moves from onto to.
// ok is false unless the two points are orthogonally adjacent.
func DirectionBetween(from, to Point) (Direction, bool) {
	for _, d := range Directions {
		dx, dy := d.Delta()
		if from.X+dx == to.X && from.Y+dy == to.Y {
			return d, true
		}
	}
	return 0, false
}
