package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/termwatch/internal/audit"
	"github.com/ppiankov/termwatch/internal/model"
	"github.com/ppiankov/termwatch/internal/policy"
	"github.com/ppiankov/termwatch/internal/taxonomy"
	"github.com/ppiankov/termwatch/internal/transcript"
)

// inlineName identifies transcripts passed as text in the audit log.
const inlineName = "<inline>"

// --- Input/Output types ---

// EvaluateInput defines parameters for the termwatch_evaluate tool.
type EvaluateInput struct {
	Transcript string `json:"transcript,omitempty" jsonschema:"transcript text, one utterance per line"`
	Path       string `json:"path,omitempty" jsonschema:"path to a transcript file (used when transcript is empty)"`
	Mode       string `json:"mode,omitempty" jsonschema:"disclosure mode: accumulate (default) or latest"`
}

// EvaluateOutput is the evaluation result for one transcript.
type EvaluateOutput struct {
	Status           string             `json:"status"`
	Score            int                `json:"score"`
	Mode             string             `json:"mode"`
	Disclosed        []string           `json:"disclosed_terms"`
	LatestDisclosure string             `json:"latest_disclosure,omitempty"`
	Violations       []model.Violation  `json:"violations"`
	Diagnostics      []model.Diagnostic `json:"diagnostics"`
	Messages         []string           `json:"messages"`
	TranscriptHash   string             `json:"transcript_hash"`
}

// TermsInput takes no parameters.
type TermsInput struct{}

// TermsOutput lists the active taxonomy.
type TermsOutput struct {
	Forbidden         string   `json:"forbidden"`
	FamilyAddress     []string `json:"family_address"`
	MonkAddress       []string `json:"monk_address"`
	MonkSelfReference []string `json:"monk_self_reference"`
	Prefixes          []string `json:"prefixes"`
	Negation          string   `json:"negation"`
	Hash              string   `json:"hash"`
}

// AllowedInput defines parameters for the termwatch_allowed tool.
type AllowedInput struct {
	Disclosed []string `json:"disclosed" jsonschema:"terms the caller used to refer to themselves"`
}

// AllowedOutput lists the permitted address terms.
type AllowedOutput struct {
	Allowed []string `json:"allowed"`
	Ignored []string `json:"ignored,omitempty"`
}

// --- Handlers ---

func (s *Server) handleEvaluate(ctx context.Context, req *mcpsdk.CallToolRequest, input EvaluateInput) (*mcpsdk.CallToolResult, EvaluateOutput, error) {
	eval := s.eval
	if input.Mode != "" {
		mode, err := policy.ParseMode(input.Mode)
		if err != nil {
			return nil, EvaluateOutput{}, err
		}
		eval = eval.InMode(mode)
	}

	doc, name, err := loadDocument(input)
	if err != nil {
		return nil, EvaluateOutput{}, err
	}

	res := eval.EvaluateDocument(doc)
	if err := s.recordAudit(audit.EntryFromResult(name, doc.Hash, res)); err != nil {
		return nil, EvaluateOutput{}, fmt.Errorf("audit: %w", err)
	}

	return nil, EvaluateOutput{
		Status:           string(res.Status),
		Score:            res.Score,
		Mode:             res.Mode,
		Disclosed:        res.Disclosed,
		LatestDisclosure: res.LatestDisclosure,
		Violations:       res.Violations,
		Diagnostics:      res.Diagnostics,
		Messages:         res.Messages(),
		TranscriptHash:   doc.Hash,
	}, nil
}

func (s *Server) handleTerms(ctx context.Context, req *mcpsdk.CallToolRequest, input TermsInput) (*mcpsdk.CallToolResult, TermsOutput, error) {
	tax := s.eval.Taxonomy()
	return nil, TermsOutput{
		Forbidden:         tax.Forbidden(),
		FamilyAddress:     tax.InCategory(taxonomy.FamilyAddress),
		MonkAddress:       tax.InCategory(taxonomy.MonkAddress),
		MonkSelfReference: tax.InCategory(taxonomy.MonkSelfReference),
		Prefixes:          tax.Prefixes(),
		Negation:          tax.Negation(),
		Hash:              tax.Hash(),
	}, nil
}

func (s *Server) handleAllowed(ctx context.Context, req *mcpsdk.CallToolRequest, input AllowedInput) (*mcpsdk.CallToolResult, AllowedOutput, error) {
	tax := s.eval.Taxonomy()

	var disclosed, ignored []string
	for _, term := range input.Disclosed {
		term = strings.TrimSpace(term)
		if c, ok := tax.Category(term); ok && c != taxonomy.Forbidden {
			disclosed = append(disclosed, term)
		} else {
			ignored = append(ignored, term)
		}
	}

	set := policy.AllowedSet(tax, disclosed)
	out := AllowedOutput{Allowed: []string{}, Ignored: ignored}
	for _, term := range tax.Terms() {
		if set[term] {
			out.Allowed = append(out.Allowed, term)
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func loadDocument(input EvaluateInput) (*transcript.Document, string, error) {
	switch {
	case strings.TrimSpace(input.Transcript) != "":
		doc, err := transcript.Parse(strings.NewReader(input.Transcript))
		if err != nil {
			return nil, "", err
		}
		return doc, inlineName, nil
	case input.Path != "":
		doc, err := transcript.Load(input.Path)
		if err != nil {
			return nil, "", err
		}
		return doc, input.Path, nil
	default:
		return nil, "", errors.New("either transcript or path is required")
	}
}
