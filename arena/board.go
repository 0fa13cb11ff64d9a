// board.go - ASCII rendering of arena states for traces.

package arena

import (
	"fmt"
	"strings"

	"github.com/brensch/safesnek/game"
)

// Render draws the board top row first. The acting snake is O/o, other
// snakes are letters by index (A/a, B/b, ...) and food is F. Cells that fall
// outside [0,Width]x[0,Height] are not drawn.
func Render(state *game.GameState) string {
	w, h := int(state.Width)+1, int(state.Height)+1
	grid := make([][]byte, h)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", w))
	}
	put := func(p game.Point, c byte) {
		if state.InBounds(p) {
			grid[p.Y][p.X] = c
		}
	}

	for _, f := range state.Food {
		put(f, 'F')
	}
	for i, s := range state.Snakes {
		head, body := byte('A'+i%26), byte('a'+i%26)
		if s.Id == state.YouId {
			head, body = 'O', 'o'
		}
		for j := len(s.Body) - 1; j >= 0; j-- {
			if j == 0 {
				put(s.Body[j], head)
			} else {
				put(s.Body[j], body)
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "turn %d you=%s\n", state.Turn, state.YouId)
	for y := h - 1; y >= 0; y-- {
		for x := 0; x < w; x++ {
			sb.WriteByte(grid[y][x])
			if x < w-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
