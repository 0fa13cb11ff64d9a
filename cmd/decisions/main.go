// Command decisions prints aggregate statistics over decision archives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brensch/safesnek/config"
	"github.com/brensch/safesnek/store"
)

func main() {
	dirs := flag.String("dirs", config.GetEnvOrDefault("ARCHIVE_DIRS", "data/live,data/arena,data/replay"), "Comma-separated archive directories")
	timeout := flag.Duration("timeout", config.GetEnvDurationOrDefault("TIMEOUT", 5*time.Minute), "Query timeout")
	bucket := flag.Duration("bucket", config.GetEnvDurationOrDefault("BUCKET", 0), "Also print a timeline with buckets of this width (0 = off)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	archives := strings.Split(*dirs, ",")
	sum, err := store.Summarize(ctx, archives...)
	if err != nil {
		log.Fatalf("summarize: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "files\t%d\n", sum.Files)
	fmt.Fprintf(w, "decisions\t%d\n", sum.Decisions)
	fmt.Fprintf(w, "games\t%d\n", sum.Games)
	fmt.Fprintf(w, "no safe move\t%d\t%s\n", sum.NoSafeMove, percent(sum.NoSafeMove, sum.Decisions))
	fmt.Fprintf(w, "fallbacks\t%d\n", sum.Fallbacks)
	fmt.Fprintf(w, "mean survivors\t%.3f\n", sum.MeanSurvivors)
	fmt.Fprintf(w, "actual outside survivors\t%d\n", sum.ActualOutsideSurvivors)
	for _, k := range sortedKeys(sum.BySource) {
		fmt.Fprintf(w, "source %s\t%d\n", k, sum.BySource[k])
	}
	for _, k := range sortedKeys(sum.ByMove) {
		name := k
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(w, "move %s\t%d\t%s\n", name, sum.ByMove[k], percent(sum.ByMove[k], sum.Decisions))
	}
	_ = w.Flush()

	if *bucket <= 0 {
		return
	}
	points, err := store.Timeline(ctx, *bucket, archives...)
	if err != nil {
		log.Fatalf("timeline: %v", err)
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "bucket\tsource\tdecisions\tgames\tno safe move")
	for _, p := range points {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			p.Start.Format(time.RFC3339), p.Source, p.Decisions, p.Games, percent(p.NoSafeMove, p.Decisions))
	}
	_ = w.Flush()
}

func percent(n, total int64) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(n)/float64(total))
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
