// Package alert posts webhook notifications for evaluation verdicts.
package alert

import (
	"time"

	"github.com/ppiankov/termwatch/internal/model"
)

// Event names a webhook can subscribe to: a verdict status or a
// violation kind.
const (
	EventFail       = string(model.Fail)
	EventPass       = string(model.Pass)
	EventForbidden  = string(model.ForbiddenTerm)
	EventDisallowed = string(model.DisallowedTerm)
)

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"     mapstructure:"url"`
	Format  string            `yaml:"format"  json:"format"  mapstructure:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"  mapstructure:"events"` // ["FAIL", "forbidden-term", ...]
	Headers map[string]string `yaml:"headers" json:"headers" mapstructure:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp      string   `json:"timestamp"`
	Transcript     string   `json:"transcript"`
	TranscriptHash string   `json:"transcript_hash"`
	Status         string   `json:"status"`
	Score          int      `json:"score"`
	Kinds          []string `json:"kinds"`
	Messages       []string `json:"messages"`
	TaxonomyHash   string   `json:"taxonomy_hash"`
}

// EventFromResult builds the event for one evaluated transcript. Kinds
// lists each violation kind once, in order of first occurrence.
func EventFromResult(transcript, transcriptHash string, r *model.Result) AlertEvent {
	kinds := []string{}
	seen := make(map[model.ViolationKind]bool)
	for _, v := range r.Violations {
		if !seen[v.Kind] {
			seen[v.Kind] = true
			kinds = append(kinds, string(v.Kind))
		}
	}
	return AlertEvent{
		Timestamp:      time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Transcript:     transcript,
		TranscriptHash: transcriptHash,
		Status:         string(r.Status),
		Score:          r.Score,
		Kinds:          kinds,
		Messages:       r.Messages(),
		TaxonomyHash:   r.TaxonomyHash,
	}
}

func (e AlertEvent) has(kind string) bool {
	for _, k := range e.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
