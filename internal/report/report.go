// Package report renders evaluation results for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/ppiankov/termwatch/internal/model"
)

// FormatText renders one result as human-readable text.
func FormatText(path string, r *model.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-4s  %s (score %d)\n", r.Status, path, r.Score)

	disclosed := "none"
	if len(r.Disclosed) > 0 {
		disclosed = strings.Join(r.Disclosed, ", ")
	}
	fmt.Fprintf(&b, "      disclosed: %s", disclosed)
	if r.Mode != "" {
		fmt.Fprintf(&b, " (mode %s", r.Mode)
		if r.LatestDisclosure != "" {
			fmt.Fprintf(&b, ", latest %s", r.LatestDisclosure)
		}
		b.WriteString(")")
	}
	b.WriteString("\n")

	for _, v := range r.Violations {
		fmt.Fprintf(&b, "      line %-4d %-16s %s\n", v.Line, v.Kind, v.Message)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "      line %-4d %-16s %s\n", d.Line, d.Kind, d.Message)
	}
	return b.String()
}

// FormatSummary renders a one-line total for a multi-file run.
func FormatSummary(results []*model.Result) string {
	failed := 0
	for _, r := range results {
		if r.Status == model.Fail {
			failed++
		}
	}
	noun := "transcripts"
	if len(results) == 1 {
		noun = "transcript"
	}
	return fmt.Sprintf("%d of %d %s passed.\n", len(results)-failed, len(results), noun)
}

// FormatJSON renders v as indented JSON.
func FormatJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// Schema returns the JSON Schema describing a serialised model.Result.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&model.Result{})
	schema.Title = "termwatch evaluation result"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
