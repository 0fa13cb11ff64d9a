// Package replay pulls finished games from the public Battlesnake site and
// audits the selector against the moves real snakes actually made.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brensch/safesnek/logging"
)

const userAgent = "safesnek-replay/1.0 (selector-audit)"

// DiscoverConfig holds discovery configuration.
type DiscoverConfig struct {
	LeaderboardURLs []string      // leaderboards to crawl
	RequestDelay    time.Duration // pause between player pages
	MaxPlayers      int           // players per leaderboard, 0 = unlimited
}

func DefaultDiscoverConfig() DiscoverConfig {
	return DiscoverConfig{
		LeaderboardURLs: []string{
			"https://play.battlesnake.com/leaderboard/standard",
			"https://play.battlesnake.com/leaderboard/standard-duels",
		},
		RequestDelay: 500 * time.Millisecond,
		MaxPlayers:   100,
	}
}

// Discoverer walks leaderboards to player stats pages and collects game IDs
// it has not seen before.
type Discoverer struct {
	cfg    DiscoverConfig
	client *http.Client
	logger *slog.Logger

	knownMu sync.RWMutex
	known   map[string]bool

	gameIDRe *regexp.Regexp
	playerRe *regexp.Regexp
	arenaRe  *regexp.Regexp
}

// NewDiscoverer takes ownership of known; nil starts empty.
func NewDiscoverer(cfg DiscoverConfig, known map[string]bool, logger *slog.Logger) *Discoverer {
	if known == nil {
		known = make(map[string]bool)
	}
	return &Discoverer{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logging.OrDefault(logger),
		known:    known,
		gameIDRe: regexp.MustCompile(`/game/([a-f0-9-]+)`),
		playerRe: regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`),
		arenaRe:  regexp.MustCompile(`/leaderboard/([^/]+)/?$`),
	}
}

// Discover sends every new game ID to out. It returns when all leaderboards
// have been walked or ctx is done. It does not close out.
func (d *Discoverer) Discover(ctx context.Context, out chan<- string) error {
	total := 0
	for _, board := range d.cfg.LeaderboardURLs {
		players, arena, err := d.leaderboardPlayers(ctx, board)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Warn("leaderboard fetch failed", "url", board, "err", err)
			continue
		}
		if d.cfg.MaxPlayers > 0 && len(players) > d.cfg.MaxPlayers {
			players = players[:d.cfg.MaxPlayers]
		}
		d.logger.Info("leaderboard loaded", "arena", arena, "players", len(players))

		fresh := 0
		for i, p := range players {
			ids, err := d.playerGames(ctx, p.statsURL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Warn("player fetch failed", "arena", arena, "player", p.username, "err", err)
				continue
			}
			for _, id := range ids {
				if !d.claim(id) {
					continue
				}
				select {
				case out <- id:
					fresh++
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			d.logger.Debug("player checked", "arena", arena, "n", i+1, "of", len(players), "player", p.username, "games", len(ids))

			if d.cfg.RequestDelay > 0 {
				select {
				case <-time.After(d.cfg.RequestDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		d.logger.Info("leaderboard done", "arena", arena, "new_games", fresh)
		total += fresh
	}
	d.logger.Info("discovery complete", "new_games", total)
	return nil
}

// MarkKnown adds id to the dedupe set.
func (d *Discoverer) MarkKnown(id string) {
	d.knownMu.Lock()
	defer d.knownMu.Unlock()
	d.known[id] = true
}

// claim marks id known and reports whether it was new.
func (d *Discoverer) claim(id string) bool {
	d.knownMu.Lock()
	defer d.knownMu.Unlock()
	if d.known[id] {
		return false
	}
	d.known[id] = true
	return true
}

type player struct {
	username string
	statsURL string
}

func (d *Discoverer) leaderboardPlayers(ctx context.Context, board string) ([]player, string, error) {
	base, err := url.Parse(board)
	if err != nil {
		return nil, "", err
	}
	doc, err := d.fetch(ctx, board)
	if err != nil {
		return nil, "", err
	}

	arena := "unknown"
	if m := d.arenaRe.FindStringSubmatch(base.Path); len(m) >= 2 {
		arena = m[1]
	}

	var players []player
	seen := make(map[string]bool)
	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := d.playerRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[m[1]] = true
		players = append(players, player{username: m[1], statsURL: base.ResolveReference(ref).String()})
	})
	return players, arena, nil
}

func (d *Discoverer) playerGames(ctx context.Context, statsURL string) ([]string, error) {
	doc, err := d.fetch(ctx, statsURL)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if m := d.gameIDRe.FindStringSubmatch(href); len(m) >= 2 && !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	})
	return ids, nil
}

func (d *Discoverer) fetch(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}
