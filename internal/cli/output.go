// Package cli provides CLI output helpers for otoshimono.
package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"

	"github.com/hyperjump/otoshimono/internal/matching"
	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// MatchReport is the result of one "match" command.
type MatchReport struct {
	Item    *models.Item              `json:"item"`
	DryRun  bool                      `json:"dry_run"`
	Matches []matching.MatchCandidate `json:"matches"`
}

// WriteMatches writes a match report to w in the given format.
func WriteMatches(w io.Writer, report *MatchReport, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	writeMatchesText(w, report)
	return nil
}

func writeMatchesText(w io.Writer, report *MatchReport) {
	item := report.Item
	fmt.Fprintf(w, "\n%s item %s: %s\n", item.Type.Label(), item.ID, item.Title)
	mode := "notifications sent"
	if report.DryRun {
		mode = "dry run, nothing sent"
	}
	fmt.Fprintf(w, "%d matches (%s)\n\n", len(report.Matches), mode)

	for i, m := range report.Matches {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d  Score: %d  ID: %s\n", i+1, m.Score, m.Item.ID)
		fmt.Fprintf(w, "Title: %s\n", utils.Truncate(m.Item.Title, 80))
		if m.Item.Location != "" {
			fmt.Fprintf(w, "Location: %s\n", m.Item.Location)
		}
		for _, name := range sortedFactorNames(m.Factors) {
			f := m.Factors[name]
			if f.Detail != "" {
				fmt.Fprintf(w, "  %-9s %5.1f  %s\n", name, f.Score, f.Detail)
			} else {
				fmt.Fprintf(w, "  %-9s %5.1f\n", name, f.Score)
			}
		}
		fmt.Fprintln(w)
	}
}

func sortedFactorNames(f models.Factors) []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if f[names[i]].Score != f[names[j]].Score {
			return f[names[i]].Score > f[names[j]].Score
		}
		return names[i] < names[j]
	})
	return names
}
