package audit

import (
	"github.com/ppiankov/termwatch/internal/model"
)

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are structs (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type AuditEntry struct {
	Timestamp      string             `json:"ts"`
	Transcript     string             `json:"transcript"`
	TranscriptHash string             `json:"transcript_hash"`
	Status         string             `json:"status"`
	Score          int                `json:"score"`
	Violations     []model.Violation  `json:"violations"`
	Diagnostics    []model.Diagnostic `json:"diagnostics"`
	Disclosed      []string           `json:"disclosed"`
	Mode           string             `json:"mode"`
	TaxonomyHash   string             `json:"taxonomy_hash"`
	PrevHash       string             `json:"prev_hash"`
}

// EntryFromResult builds an entry for one evaluated transcript.
// Timestamp and PrevHash are filled in by Record.
func EntryFromResult(transcript, transcriptHash string, r *model.Result) AuditEntry {
	return AuditEntry{
		Transcript:     transcript,
		TranscriptHash: transcriptHash,
		Status:         string(r.Status),
		Score:          r.Score,
		Violations:     nonNil(r.Violations),
		Diagnostics:    nonNil(r.Diagnostics),
		Disclosed:      nonNil(r.Disclosed),
		Mode:           r.Mode,
		TaxonomyHash:   r.TaxonomyHash,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
