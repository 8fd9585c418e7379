package model

import (
	"fmt"
	"strings"
)

// Speaker identifies which party produced an utterance.
type Speaker string

const (
	Agent  Speaker = "agent"
	Caller Speaker = "caller"
)

// Utterance is one attributed transcript line. Line is 1-based over
// non-blank lines of the source file.
type Utterance struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Line    int     `json:"line"`
}

// Occurrence is one policy term found in an agent utterance.
// A prefixed occurrence (e.g. คุณป้า) maps to the same Term as its bare form.
type Occurrence struct {
	Term   string `json:"term"`
	Prefix string `json:"prefix,omitempty"`
}

// Form returns the surface form as it appeared in the text.
func (o Occurrence) Form() string { return o.Prefix + o.Term }

// Forms joins the surface forms of occurrences with ", ".
func Forms(occ []Occurrence) string {
	parts := make([]string, len(occ))
	for i, o := range occ {
		parts[i] = o.Form()
	}
	return strings.Join(parts, ", ")
}

// ViolationKind names the policy rule an agent line broke.
type ViolationKind string

const (
	ForbiddenTerm  ViolationKind = "forbidden-term"
	DisallowedTerm ViolationKind = "disallowed-term"
)

// Violation is one policy breach. At most one violation of each kind is
// recorded per agent line; Terms lists every offending occurrence on it.
type Violation struct {
	Line    int           `json:"line"`
	Kind    ViolationKind `json:"kind"`
	Terms   []Occurrence  `json:"terms"`
	Message string        `json:"message"`
}

// DiagnosticKind names a non-policy problem found while evaluating.
type DiagnosticKind string

const (
	UnparseableUtterance DiagnosticKind = "unparseable-utterance"
)

// Diagnostic records a line the evaluator could not analyse. The line
// contributes no disclosures and no detected terms.
type Diagnostic struct {
	Line    int            `json:"line"`
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

// Status is the overall verdict.
type Status string

const (
	Pass Status = "PASS"
	Fail Status = "FAIL"
)

// Score maps a status to the integer score handed to external combiners.
func (s Status) Score() int {
	if s == Pass {
		return 1
	}
	return 0
}

// Result is the outcome of evaluating one transcript.
// Status is FAIL exactly when Violations is non-empty.
type Result struct {
	Status           Status       `json:"status"`
	Score            int          `json:"score"`
	Mode             string       `json:"mode"`
	Disclosed        []string     `json:"disclosed_terms"`
	LatestDisclosure string       `json:"latest_disclosure,omitempty"`
	Violations       []Violation  `json:"violations"`
	Diagnostics      []Diagnostic `json:"diagnostics"`
	Utterances       int          `json:"utterances"`
	TaxonomyHash     string       `json:"taxonomy_hash"`
}

// Messages returns "Line N: message" for every violation, in line order.
func (r *Result) Messages() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = fmt.Sprintf("Line %d: %s", v.Line, v.Message)
	}
	return out
}

// ConversationState is the mutable state of one evaluation run. The
// disclosed set only grows: a term the caller revealed stays usable for the
// rest of the conversation.
type ConversationState struct {
	disclosed map[string]bool
	order     []string
	latest    string
}

// NewConversationState returns an empty state.
func NewConversationState() *ConversationState {
	return &ConversationState{disclosed: make(map[string]bool)}
}

// Disclose records a caller self-reference. It also becomes the latest
// disclosure, even when it was already known.
func (s *ConversationState) Disclose(term string) {
	if !s.disclosed[term] {
		s.disclosed[term] = true
		s.order = append(s.order, term)
	}
	s.latest = term
}

// HasDisclosed reports whether term has been disclosed.
func (s *ConversationState) HasDisclosed(term string) bool { return s.disclosed[term] }

// Disclosed returns the disclosed terms in order of first disclosure.
func (s *ConversationState) Disclosed() []string { return append([]string(nil), s.order...) }

// Latest returns the most recent disclosure, or "".
func (s *ConversationState) Latest() string { return s.latest }

// Len returns the number of distinct disclosed terms.
func (s *ConversationState) Len() int { return len(s.order) }
