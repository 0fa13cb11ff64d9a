package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/safesnek/arena"
	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/rules"
)

func TestModel_Results(t *testing.T) {
	m := initialModel(nil)

	final := &game.GameState{
		Width: 2, Height: 2, Turn: 12,
		Snakes: []game.Snake{{Id: "snake1", Body: []game.Point{{X: 1, Y: 1}, {X: 1, Y: 0}}}},
	}
	next, _ := m.Update(resultMsg(arena.Result{
		GameID: "0123456789abcdef",
		Turns:  12,
		Winner: "snake1",
		Deaths: []rules.Death{{SnakeId: "snake2", Cause: rules.DeathCauseWallCollision, Turn: 12}},
		Final:  final,
	}))
	next, _ = next.Update(resultMsg(arena.Result{GameID: "short", Turns: 4, NoSafeMove: 2}))
	m = next.(model)

	if m.tally.games != 2 || m.tally.draws != 1 || m.tally.noSafeMove != 2 {
		t.Fatalf("tally=%+v", m.tally)
	}
	if got := m.tally.meanTurns(); got != 8 {
		t.Fatalf("meanTurns=%v want=8", got)
	}

	view := m.View()
	for _, want := range []string{
		"Games played:  2",
		"Wins:          snake1=1",
		"Deaths:        wall-collision=1",
		"01234567  turns=12",
		"short  turns=4",
		"Press q to quit.",
		"turn 12",
	} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_QuitCancels(t *testing.T) {
	cancelled := false
	m := initialModel(func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !cancelled {
		t.Fatalf("cancel not called")
	}
}

func TestModel_DoneAndTick(t *testing.T) {
	m := initialModel(nil)

	now := m.start.Add(3 * time.Second)
	next, cmd := m.Update(tickMsg(now))
	if cmd == nil {
		t.Fatalf("tick should reschedule")
	}
	if got := next.(model).now; !got.Equal(now) {
		t.Fatalf("now=%v want=%v", got, now)
	}

	next, cmd = next.Update(doneMsg{err: errors.New("boom")})
	if cmd == nil {
		t.Fatalf("done should quit")
	}
	view := next.View()
	if !strings.Contains(view, "Stopped: boom") || strings.Contains(view, "Press q") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}
