package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/safesnek/arena"
)

// tally aggregates finished games.
type tally struct {
	games      int
	turns      int
	draws      int
	noSafeMove int
	wins       map[string]int
	causes     map[string]int
}

func newTally() tally {
	return tally{wins: map[string]int{}, causes: map[string]int{}}
}

func (t *tally) add(res arena.Result) {
	t.games++
	t.turns += res.Turns
	t.noSafeMove += res.NoSafeMove
	if res.Winner == "" {
		t.draws++
	} else {
		t.wins[res.Winner]++
	}
	for _, d := range res.Deaths {
		t.causes[d.Cause]++
	}
}

func (t tally) meanTurns() float64 {
	if t.games == 0 {
		return 0
	}
	return float64(t.turns) / float64(t.games)
}

func sortedCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type tickMsg time.Time

type resultMsg arena.Result

type doneMsg struct{ err error }

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	start  time.Time
	now    time.Time
	tally  tally
	recent []string
	board  string
	done   bool
	err    error
	cancel context.CancelFunc
}

func initialModel(cancel context.CancelFunc) model {
	now := time.Now()
	return model{start: now, now: now, tally: newTally(), cancel: cancel}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case resultMsg:
		res := arena.Result(msg)
		m.tally.add(res)
		winner := res.Winner
		if winner == "" {
			winner = "draw"
		}
		line := fmt.Sprintf("%s  turns=%-4d winner=%-8s no_safe=%d", shortID(res.GameID), res.Turns, winner, res.NoSafeMove)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > 10 {
			m.recent = m.recent[:10]
		}
		if res.Final != nil {
			m.board = arena.Render(res.Final)
		}
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	elapsed := m.now.Sub(m.start)
	perSec := 0.0
	if elapsed >= time.Second {
		perSec = float64(m.tally.games) / elapsed.Seconds()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games played:  %d\n", m.tally.games)
	fmt.Fprintf(&sb, "Mean turns:    %.1f\n", m.tally.meanTurns())
	fmt.Fprintf(&sb, "Draws:         %d\n", m.tally.draws)
	fmt.Fprintf(&sb, "No safe move:  %d\n", m.tally.noSafeMove)
	fmt.Fprintf(&sb, "Wins:          %s\n", sortedCounts(m.tally.wins))
	fmt.Fprintf(&sb, "Deaths:        %s\n", sortedCounts(m.tally.causes))
	fmt.Fprintf(&sb, "Duration:      %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Games/Sec:     %.2f\n\n", perSec)

	sb.WriteString("Recent games:\n")
	for _, g := range m.recent {
		sb.WriteString(g + "\n")
	}
	if m.board != "" {
		sb.WriteString("\nLast final board:\n")
		sb.WriteString(m.board)
	}

	if m.done {
		if m.err != nil {
			fmt.Fprintf(&sb, "\nStopped: %v\n", m.err)
		}
		return sb.String()
	}
	sb.WriteString("\nPress q to quit.\n")
	return sb.String()
}
