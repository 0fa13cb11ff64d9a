package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Summary aggregates every decision batch under a set of archive dirs.
type Summary struct {
	Files         int
	Decisions     int64
	Games         int64
	NoSafeMove    int64
	Fallbacks     int64
	MeanSurvivors float64

	// ActualOutsideSurvivors counts replay rows where the real snake made a
	// move the selector had eliminated.
	ActualOutsideSurvivors int64

	BySource map[string]int64
	ByMove   map[string]int64
}

// Summarize runs the aggregates with DuckDB over <dir>/*.parquet for each
// dir. Files still under tmp/ are never matched.
func Summarize(ctx context.Context, dirs ...string) (Summary, error) {
	sum := Summary{BySource: map[string]int64{}, ByMove: map[string]int64{}}

	db, files, err := openArchive(ctx, dirs)
	if err != nil || db == nil {
		return sum, err
	}
	defer db.Close()
	sum.Files = files

	err = db.QueryRowContext(ctx, `
		SELECT
			count(*),
			count(DISTINCT game_id),
			coalesce(sum(CASE WHEN no_safe_move THEN 1 ELSE 0 END), 0),
			coalesce(sum(CASE WHEN fallback THEN 1 ELSE 0 END), 0),
			coalesce(avg(survivor_count), 0),
			coalesce(sum(CASE
				WHEN actual_move IS NULL OR actual_move = '' THEN 0
				WHEN (survivors & CASE actual_move
					WHEN 'left' THEN 1
					WHEN 'up' THEN 2
					WHEN 'down' THEN 4
					WHEN 'right' THEN 8
					ELSE 0 END) = 0 THEN 1
				ELSE 0 END), 0)
		FROM decisions`).Scan(
		&sum.Decisions,
		&sum.Games,
		&sum.NoSafeMove,
		&sum.Fallbacks,
		&sum.MeanSurvivors,
		&sum.ActualOutsideSurvivors,
	)
	if err != nil {
		return sum, fmt.Errorf("query totals: %w", err)
	}

	if err := countBy(ctx, db, "source", sum.BySource); err != nil {
		return sum, err
	}
	if err := countBy(ctx, db, "move", sum.ByMove); err != nil {
		return sum, err
	}
	return sum, nil
}

// TimelinePoint is one time bucket of one source.
type TimelinePoint struct {
	Start      time.Time
	Source     string
	Decisions  int64
	Games      int64
	NoSafeMove int64
}

// Timeline buckets decisions by recorded time.
func Timeline(ctx context.Context, bucket time.Duration, dirs ...string) ([]TimelinePoint, error) {
	if bucket <= 0 {
		return nil, fmt.Errorf("bucket must be positive, got %s", bucket)
	}
	db, _, err := openArchive(ctx, dirs)
	if err != nil || db == nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT
			(recorded_ns // ?::BIGINT) * ?::BIGINT AS bucket_ns,
			source,
			count(*)::BIGINT,
			count(DISTINCT game_id)::BIGINT,
			sum(CASE WHEN no_safe_move THEN 1 ELSE 0 END)::BIGINT
		FROM decisions
		GROUP BY bucket_ns, source
		ORDER BY bucket_ns, source`, bucket.Nanoseconds(), bucket.Nanoseconds())
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var points []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		var ns int64
		if err := rows.Scan(&ns, &p.Source, &p.Decisions, &p.Games, &p.NoSafeMove); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		p.Start = time.Unix(0, ns).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// openArchive creates a decisions view over every finished batch in dirs.
// It returns a nil DB when there are no files.
func openArchive(ctx context.Context, dirs []string) (*sql.DB, int, error) {
	var files []string
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
		if err != nil {
			return nil, 0, fmt.Errorf("glob %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, 0, nil
	}
	sort.Strings(files)

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, 0, fmt.Errorf("open duckdb: %w", err)
	}

	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + escapeSQLString(f) + "'"
	}
	view := `CREATE OR REPLACE VIEW decisions AS
		SELECT * FROM read_parquet([` + strings.Join(quoted, ",") + `], union_by_name=true)`
	if _, err := db.ExecContext(ctx, view); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("create view: %w", err)
	}
	return db, len(files), nil
}

func countBy(ctx context.Context, db *sql.DB, column string, dst map[string]int64) error {
	rows, err := db.QueryContext(ctx, `SELECT coalesce(`+column+`, ''), count(*) FROM decisions GROUP BY 1`)
	if err != nil {
		return fmt.Errorf("query by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan by %s: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
