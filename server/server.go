// Package server exposes the move selector over the Battlesnake HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brensch/safesnek/api"
	"github.com/brensch/safesnek/game"
	"github.com/brensch/safesnek/logging"
	"github.com/brensch/safesnek/move"
	"github.com/brensch/safesnek/store"
)

const noSafeMoveShout = "no safe move"

// Recorder receives one row per answered /move. *store.Recorder satisfies it.
type Recorder interface {
	Record(row store.DecisionRow) error
}

// Fallback is the last-resort move sent when nothing survives selection.
type Fallback struct {
	Random bool
	Move   game.Direction
}

// ParseFallback accepts a direction name or "random".
func ParseFallback(s string) (Fallback, error) {
	if strings.EqualFold(strings.TrimSpace(s), "random") {
		return Fallback{Random: true}, nil
	}
	d, err := game.ParseDirection(s)
	if err != nil {
		return Fallback{}, fmt.Errorf("fallback: %w", err)
	}
	return Fallback{Move: d}, nil
}

// Pick returns the fallback move, drawing from src when it is random.
func (f Fallback) Pick(src move.Source) game.Direction {
	if f.Random {
		return game.Directions[src.Intn(len(game.Directions))]
	}
	return f.Move
}

func (f Fallback) String() string {
	if f.Random {
		return "random"
	}
	return f.Move.String()
}

// Config wires a Server. Only Info is sent to clients; the rest has defaults.
type Config struct {
	Info     api.InfoResponse
	Fallback Fallback
	Source   move.Source
	Recorder Recorder // nil disables recording
	Logger   *slog.Logger
}

// Server answers the Battlesnake API for one snake.
type Server struct {
	info     api.InfoResponse
	fallback Fallback
	src      move.Source
	recorder Recorder
	logger   *slog.Logger
}

// New builds a Server. A nil Source gets a clock-seeded LockedSource.
func New(cfg Config) *Server {
	src := cfg.Source
	if src == nil {
		src = move.NewLockedSource(0)
	}
	return &Server{
		info:     cfg.Info,
		fallback: cfg.Fallback,
		src:      src,
		recorder: cfg.Recorder,
		logger:   logging.OrDefault(cfg.Logger),
	}
}

// Routes returns the Battlesnake endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/move", s.handleMove)
	mux.HandleFunc("/end", s.handleEnd)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, s.info)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGame(w, r)
	if !ok {
		return
	}
	s.logger.Info("START", "game_id", req.Game.ID, "ruleset", req.Game.Ruleset.Name,
		"width", req.Board.Width, "height", req.Board.Height, "snakes", len(req.Board.Snakes), "you", req.You.Name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, ok := decodeGame(w, r)
	if !ok {
		return
	}
	log := s.logger.With("game_id", req.Game.ID, "turn", req.Turn, "snake_id", req.You.ID)

	state, you, err := api.ToGameState(req)
	if err != nil {
		log.Error("invalid snapshot", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := api.MoveResponse{}
	d, err := move.Select(state, you, s.src)
	var fallback *game.Direction
	switch {
	case err == nil:
		resp.Move = d.Move.String()
	case errors.Is(err, move.ErrNoSafeMove):
		fb := s.fallback.Pick(s.src)
		fallback = &fb
		resp.Move = fb.String()
		resp.Shout = noSafeMoveShout
		log.Warn("no safe move", "fallback", resp.Move, "policy", s.fallback.String())
	default:
		log.Error("invalid snapshot", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.recorder != nil {
		row, rowErr := store.NewDecisionRow(req.Game.ID, store.SourceLive, state, you, d, err, fallback)
		if rowErr == nil {
			rowErr = s.recorder.Record(row)
		}
		if rowErr != nil {
			log.Warn("decision not recorded", "err", rowErr)
		}
	}

	log.Info("MOVE", "move", resp.Move, "survivors", d.Survivors.String(), "elapsed", time.Since(start))
	writeJSON(w, resp)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGame(w, r)
	if !ok {
		return
	}
	s.logger.Info("END", "game_id", req.Game.ID, "turn", req.Turn, "result", Outcome(req))
	w.WriteHeader(http.StatusOK)
}

// Outcome reports "won", "lost" or "draw" from a /end request.
func Outcome(req *api.GameRequest) string {
	for _, snake := range req.Board.Snakes {
		if snake.ID == req.You.ID {
			return "won"
		}
	}
	if len(req.Board.Snakes) == 0 {
		return "draw"
	}
	return "lost"
}

func decodeGame(w http.ResponseWriter, r *http.Request) (*api.GameRequest, bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return nil, false
	}
	var req api.GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
