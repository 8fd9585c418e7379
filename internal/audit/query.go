package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	Transcript string    // substring of the transcript path
	Status     string    // PASS or FAIL, case-insensitive
	From       time.Time // zero value = no lower bound
	To         time.Time // zero value = no upper bound
}

// Summary holds verdict counts for a set of entries.
type Summary struct {
	Total          int    `json:"total"`
	PassCount      int    `json:"pass_count"`
	FailCount      int    `json:"fail_count"`
	ViolationCount int    `json:"violation_count"`
	ForbiddenCount int    `json:"forbidden_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// QueryResult holds filtered entries and their summary.
type QueryResult struct {
	Entries []AuditEntry `json:"entries"`
	Summary Summary      `json:"summary"`
}

// Query reads the audit log and returns entries matching the filter.
func Query(path string, filter Filter) (*QueryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &QueryResult{Entries: []AuditEntry{}}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEntryBytes)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		if !filter.match(entry) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

// Tail returns the last n entries matching filter. n <= 0 returns all.
func Tail(path string, n int, filter Filter) (*QueryResult, error) {
	result, err := Query(path, filter)
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(result.Entries) <= n {
		return result, nil
	}

	tail := &QueryResult{Entries: result.Entries[len(result.Entries)-n:]}
	for _, e := range tail.Entries {
		updateSummary(&tail.Summary, e)
	}
	return tail, nil
}

func (f Filter) match(e AuditEntry) bool {
	if f.Transcript != "" && !strings.Contains(e.Transcript, f.Transcript) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(f.Status, e.Status) {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil {
			return false
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && ts.After(f.To) {
			return false
		}
	}
	return true
}

func updateSummary(s *Summary, entry AuditEntry) {
	s.Total++

	switch entry.Status {
	case "PASS":
		s.PassCount++
	case "FAIL":
		s.FailCount++
	}

	s.ViolationCount += len(entry.Violations)
	for _, v := range entry.Violations {
		if v.Kind == "forbidden-term" {
			s.ForbiddenCount++
		}
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
