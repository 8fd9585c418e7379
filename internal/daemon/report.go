// Package daemon implements the termwatch inbox/outbox evaluation service.
// Transcripts arrive as .txt files in the inbox directory, are evaluated by
// a fixed pool of workers, and a JSON report per transcript is written to
// the outbox directory.
package daemon

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/termwatch/internal/model"
)

// TranscriptExt is the suffix of files the daemon picks up.
const TranscriptExt = ".txt"

// validID matches alphanumeric characters, dots, dashes, and underscores only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Report is written to the outbox after evaluating one transcript.
type Report struct {
	ID             string        `json:"id"`
	Transcript     string        `json:"transcript"`
	TranscriptHash string        `json:"transcript_hash,omitempty"`
	Status         string        `json:"status"`
	Result         *model.Result `json:"result,omitempty"`
	Error          string        `json:"error,omitempty"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// Report status values.
const (
	ReportDone   = "done"
	ReportFailed = "failed"
)

// TranscriptID derives the report ID from a transcript file name.
func TranscriptID(name string) string {
	return strings.TrimSuffix(name, TranscriptExt)
}

// ValidateID checks that a transcript ID is safe to use as a file name.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("transcript ID is required")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("transcript ID must not contain '..'")
	}
	if !validID.MatchString(id) {
		return fmt.Errorf("transcript ID contains invalid characters: only alphanumeric, dot, dash, and underscore allowed")
	}
	return nil
}
