package alert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	details := "none"
	if len(event.Messages) > 0 {
		details = strings.Join(event.Messages, "\n")
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("termwatch: %s", event.Status),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Transcript:* %s", event.Transcript)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", severityFor(event))},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Score:* %d", event.Score)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Violations:* %s", details)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("termwatch %s: %s", event.Status, event.Transcript),
			"severity": severityFor(event),
			"source":   "termwatch",
			"custom_details": map[string]any{
				"transcript":      event.Transcript,
				"transcript_hash": event.TranscriptHash,
				"kinds":           event.Kinds,
				"messages":        event.Messages,
				"taxonomy_hash":   event.TaxonomyHash,
			},
		},
	}
	return json.Marshal(payload)
}

// severityFor maps a verdict to a PagerDuty severity: the forbidden term
// is critical, any other violation an error.
func severityFor(event AlertEvent) string {
	switch {
	case event.has(EventForbidden):
		return "critical"
	case event.has(EventDisallowed):
		return "error"
	case event.Status == EventFail:
		return "warning"
	default:
		return "info"
	}
}
