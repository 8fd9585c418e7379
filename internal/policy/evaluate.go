// Package policy evaluates agent address-term usage against what the caller
// has disclosed about themselves.
package policy

import (
	"fmt"

	"github.com/ppiankov/termwatch/internal/detect"
	"github.com/ppiankov/termwatch/internal/model"
	"github.com/ppiankov/termwatch/internal/segment"
	"github.com/ppiankov/termwatch/internal/taxonomy"
	"github.com/ppiankov/termwatch/internal/transcript"
)

// Evaluator checks transcripts against one taxonomy. It holds no per-run
// state and is safe for concurrent use on distinct transcripts.
type Evaluator struct {
	tax    *taxonomy.Taxonomy
	seg    segment.Segmenter
	tagger segment.Tagger
	mode   Mode
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTagger sets the tagger used for the common-noun detection path.
// A nil tagger disables that path.
func WithTagger(t segment.Tagger) Option {
	return func(e *Evaluator) { e.tagger = t }
}

// WithMode sets the disclosure mode.
func WithMode(m Mode) Option {
	return func(e *Evaluator) { e.mode = m }
}

// New returns an evaluator. A nil taxonomy selects the default policy and a
// nil segmenter the built-in dictionary. When the segmenter can also tag,
// it is used as the tagger unless WithTagger overrides it.
func New(tax *taxonomy.Taxonomy, seg segment.Segmenter, opts ...Option) *Evaluator {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if seg == nil {
		seg = segment.Builtin()
	}
	e := &Evaluator{tax: tax, seg: seg, mode: Accumulate}
	if t, ok := seg.(segment.Tagger); ok {
		e.tagger = t
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InMode returns a copy of e that uses mode m.
func (e *Evaluator) InMode(m Mode) *Evaluator {
	c := *e
	c.mode = m
	return &c
}

// Taxonomy returns the evaluator's taxonomy.
func (e *Evaluator) Taxonomy() *taxonomy.Taxonomy { return e.tax }

// Mode returns the disclosure mode.
func (e *Evaluator) Mode() Mode { return e.mode }

// Evaluate runs the conversation state machine over utts in order.
//
// Caller lines add every self-referenced term to the disclosed set. Agent
// lines are checked against the allowed set derived from it: the forbidden
// term always yields a forbidden-term violation, any other term outside the
// allowed set yields one disallowed-term violation per line. A line that
// cannot be segmented gets a diagnostic and is otherwise skipped.
func (e *Evaluator) Evaluate(utts []model.Utterance) *model.Result {
	state := model.NewConversationState()
	res := &model.Result{
		Mode:         e.mode.String(),
		Disclosed:    []string{},
		Violations:   []model.Violation{},
		Diagnostics:  []model.Diagnostic{},
		Utterances:   len(utts),
		TaxonomyHash: e.tax.Hash(),
	}

	for _, u := range utts {
		a, err := detect.Analyze(e.seg, e.tagger, u.Text)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Line:    u.Line,
				Kind:    model.UnparseableUtterance,
				Message: err.Error(),
			})
			continue
		}

		switch u.Speaker {
		case model.Caller:
			for _, term := range detect.SelfReferences(e.tax, a) {
				state.Disclose(term)
			}
		case model.Agent:
			res.Violations = append(res.Violations, e.checkAgent(u.Line, a, state)...)
		}
	}

	res.Disclosed = e.ordered(state)
	res.LatestDisclosure = state.Latest()
	res.Status = model.Pass
	if len(res.Violations) > 0 {
		res.Status = model.Fail
	}
	res.Score = res.Status.Score()
	return res
}

func (e *Evaluator) checkAgent(line int, a *detect.Analysis, state *model.ConversationState) []model.Violation {
	occ := detect.FindTerms(e.tax, a)
	if len(occ) == 0 {
		return nil
	}

	var allowed map[string]bool
	if e.mode == Latest {
		allowed = LatestAllowedSet(e.tax, state.Latest())
	} else {
		allowed = AllowedSet(e.tax, state.Disclosed())
	}

	var forbidden, disallowed []model.Occurrence
	for _, o := range occ {
		switch {
		case o.Term == e.tax.Forbidden():
			forbidden = append(forbidden, o)
		case !allowed[o.Term]:
			disallowed = append(disallowed, o)
		}
	}

	var out []model.Violation
	if len(forbidden) > 0 {
		out = append(out, model.Violation{
			Line:    line,
			Kind:    model.ForbiddenTerm,
			Terms:   forbidden,
			Message: fmt.Sprintf("used forbidden term: %s", model.Forms(forbidden)),
		})
	}
	if len(disallowed) > 0 {
		msg := fmt.Sprintf("used unapproved terms: %s", model.Forms(disallowed))
		if state.Len() == 0 {
			msg = fmt.Sprintf("used address terms before any caller self-reference: %s", model.Forms(disallowed))
		}
		out = append(out, model.Violation{
			Line:    line,
			Kind:    model.DisallowedTerm,
			Terms:   disallowed,
			Message: msg,
		})
	}
	return out
}

// ordered returns the disclosed terms in taxonomy order.
func (e *Evaluator) ordered(state *model.ConversationState) []string {
	out := []string{}
	for _, term := range e.tax.Disclosable() {
		if state.HasDisclosed(term) {
			out = append(out, term)
		}
	}
	return out
}

// EvaluateDocument evaluates a parsed transcript.
func (e *Evaluator) EvaluateDocument(doc *transcript.Document) *model.Result {
	return e.Evaluate(doc.Utterances)
}

// EvaluateFile loads and evaluates a transcript file. A missing or
// unreadable file fails before any line is evaluated.
func (e *Evaluator) EvaluateFile(path string) (*model.Result, *transcript.Document, error) {
	doc, err := transcript.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return e.EvaluateDocument(doc), doc, nil
}

// AllowedSet returns the terms an agent may use given every disclosure so
// far: all monk address terms, each disclosed family or monk address term,
// and all monk address terms again for any disclosed monk self-reference.
// The forbidden term is never included.
func AllowedSet(tax *taxonomy.Taxonomy, disclosed []string) map[string]bool {
	allowed := baseAllowed(tax)
	for _, term := range disclosed {
		for _, u := range tax.Unlocks(term) {
			allowed[u] = true
		}
	}
	return allowed
}

// LatestAllowedSet is AllowedSet restricted to the most recent disclosure.
func LatestAllowedSet(tax *taxonomy.Taxonomy, latest string) map[string]bool {
	allowed := baseAllowed(tax)
	for _, u := range tax.Unlocks(latest) {
		allowed[u] = true
	}
	return allowed
}

func baseAllowed(tax *taxonomy.Taxonomy) map[string]bool {
	allowed := make(map[string]bool)
	for _, term := range tax.InCategory(taxonomy.MonkAddress) {
		allowed[term] = true
	}
	return allowed
}
