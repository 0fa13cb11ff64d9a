// Package game defines the board snapshot types shared by the move selector,
// the HTTP transport, the local arena and the replay auditor.
//
// A GameState is built fresh for every turn and handed to the selector once.
// Width and Height are the inclusive maximum coordinates of the board, not
// cell counts: a snapshot with Width=10 accepts x values 0 through 10.
package game

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int32
	Y int32
}

// Less orders points by X then Y. The occupancy set is kept sorted by it.
func Less(a, b Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// Compare is the three-way form of Less, for slices.SortFunc and friends.
func Compare(a, b Point) int {
	switch {
	case Less(a, b):
		return -1
	case a == b:
		return 0
	default:
		return 1
	}
}

// Snake is one entity on the board. Body is head-first; Body[0] is the head
// and Body[1] the neck.
type Snake struct {
	Id     string
	Health int32
	Body   []Point
}

// Head returns Body[0]. It panics on an empty body.
func (s Snake) Head() Point {
	return s.Body[0]
}

// GameState is the complete snapshot for one turn.
// YouId selects the acting snake; every other snake is an opponent.
type GameState struct {
	Width  int32
	Height int32
	Snakes []Snake
	Food   []Point
	YouId  string
	Turn   int32
}

// You returns the acting snake.
func (s *GameState) You() (Snake, bool) {
	for _, snake := range s.Snakes {
		if snake.Id == s.YouId {
			return snake, true
		}
	}
	return Snake{}, false
}

// InBounds reports whether p lies within [0,Width] x [0,Height].
func (s *GameState) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= s.Width && p.Y <= s.Height
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := &GameState{
		Width:  s.Width,
		Height: s.Height,
		YouId:  s.YouId,
		Turn:   s.Turn,
	}

	if len(s.Food) > 0 {
		out.Food = make([]Point, len(s.Food))
		copy(out.Food, s.Food)
	}

	if len(s.Snakes) > 0 {
		out.Snakes = make([]Snake, len(s.Snakes))
		for i := range s.Snakes {
			out.Snakes[i] = Snake{Id: s.Snakes[i].Id, Health: s.Snakes[i].Health}
			if len(s.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(s.Snakes[i].Body))
				copy(out.Snakes[i].Body, s.Snakes[i].Body)
			}
		}
	}

	return out
}
