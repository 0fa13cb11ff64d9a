package replay

import (
	"errors"

	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/move"
	"github.com/brensch/safesnek/store"
)

// Finding is the selector's verdict on one snake for one turn, next to the
// move that snake really made.
type Finding struct {
	Turn    int32
	SnakeID string

	State *game.GameState // YouId set to SnakeID
	You   game.Snake

	Decision   move.Decision
	NoSafeMove bool

	Actual      game.Direction
	ActualKnown bool

	Died  bool
	Cause string
}

// Outside reports whether the real snake took a move the selector had
// eliminated.
func (f Finding) Outside() bool {
	return f.ActualKnown && !f.Decision.Survivors.Has(f.Actual)
}

// Row converts the finding into an archive row with source "replay".
func (f Finding) Row(gameID string) (store.DecisionRow, error) {
	var err error
	if f.NoSafeMove {
		err = move.ErrNoSafeMove
	}
	row, rowErr := store.NewDecisionRow(gameID, store.SourceReplay, f.State, f.You, f.Decision, err, nil)
	if rowErr != nil {
		return store.DecisionRow{}, rowErr
	}
	if f.ActualKnown {
		row.ActualMove = f.Actual.String()
	}
	return row, nil
}

// Audit runs the selector for every live snake on every frame that has a
// successor. Snakes whose snapshot fails validation are skipped.
func Audit(g *Game, src move.Source) []Finding {
	var out []Finding
	for i := 0; i+1 < len(g.Frames); i++ {
		cur, next := g.Frames[i], g.Frames[i+1]
		for _, s := range cur.State.Snakes {
			if len(s.Body) < 2 {
				continue
			}
			snap := cur.State.Clone()
			snap.YouId = s.Id
			you, _ := snap.You()

			d, err := move.Select(snap, you, src)
			if err != nil && !errors.Is(err, move.ErrNoSafeMove) {
				continue
			}

			f := Finding{
				Turn:       snap.Turn,
				SnakeID:    s.Id,
				State:      snap,
				You:        you,
				Decision:   d,
				NoSafeMove: err != nil,
			}
			if body, cause, died := nextBody(next, s.Id); len(body) > 0 {
				f.Actual, f.ActualKnown = game.DirectionBetween(you.Body[0], body[0])
				f.Died, f.Cause = died, cause
			}
			out = append(out, f)
		}
	}
	return out
}

// nextBody finds id in the following frame, live or just eliminated.
func nextBody(f Frame, id string) (body []game.Point, cause string, died bool) {
	for _, s := range f.State.Snakes {
		if s.Id == id {
			return s.Body, "", false
		}
	}
	for _, e := range f.Eliminated {
		if e.SnakeID == id {
			return e.Body, e.Cause, true
		}
	}
	return nil, "", false
}

// AuditStats totals a set of findings.
type AuditStats struct {
	Decisions  int
	NoSafeMove int
	Unknown    int // actual move could not be inferred
	Outside    int // actual move was one the selector eliminated
	Deaths     int
	// OutsideSurvived counts Outside findings where the snake lived anyway,
	// i.e. the selector was stricter than the engine.
	OutsideSurvived int
}

func (s *AuditStats) Merge(o AuditStats) {
	s.Decisions += o.Decisions
	s.NoSafeMove += o.NoSafeMove
	s.Unknown += o.Unknown
	s.Outside += o.Outside
	s.Deaths += o.Deaths
	s.OutsideSurvived += o.OutsideSurvived
}

// Tally counts findings into AuditStats.
func Tally(findings []Finding) AuditStats {
	var st AuditStats
	for _, f := range findings {
		st.Decisions++
		if f.NoSafeMove {
			st.NoSafeMove++
		}
		if !f.ActualKnown {
			st.Unknown++
		}
		if f.Died {
			st.Deaths++
		}
		if f.Outside() {
			st.Outside++
			if !f.Died {
				st.OutsideSurvived++
			}
		}
	}
	return st
}
