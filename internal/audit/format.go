package audit

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a QueryResult as a human-readable text timeline.
func FormatTimeline(result *QueryResult) string {
	if len(result.Entries) == 0 {
		return "No audit entries found.\n"
	}

	var b strings.Builder

	first := formatDateTime(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	fmt.Fprintf(&b, "Evaluations: %s to %s UTC\n", first, last)
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		name := truncate(filepath.Base(e.Transcript), 32)
		disclosed := "-"
		if len(e.Disclosed) > 0 {
			disclosed = strings.Join(e.Disclosed, ",")
		}

		fmt.Fprintf(&b, "%-10s %-4s %-32s %2d violation(s)  disclosed: %s\n",
			ts, e.Status, name, len(e.Violations), disclosed)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a QueryResult as indented JSON.
func FormatJSON(result *QueryResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit entries: %w", err)
	}
	return string(data), nil
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	parts := []string{}
	if s.PassCount > 0 {
		parts = append(parts, fmt.Sprintf("%d pass", s.PassCount))
	}
	if s.FailCount > 0 {
		parts = append(parts, fmt.Sprintf("%d fail", s.FailCount))
	}
	return fmt.Sprintf("Summary: %s | Violations: %d (%d forbidden)\n",
		strings.Join(parts, ", "), s.ViolationCount, s.ForbiddenCount)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
