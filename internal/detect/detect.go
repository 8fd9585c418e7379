// Package detect finds policy terms in utterances.
//
// An utterance is tokenised once (Analyze) and the resulting Analysis is
// shared by the self-reference detector and the occurrence finder, so a
// segmentation failure is observed exactly once per line.
package detect

import (
	"strings"

	"github.com/ppiankov/termwatch/internal/model"
	"github.com/ppiankov/termwatch/internal/segment"
	"github.com/ppiankov/termwatch/internal/taxonomy"
)

// Analysis is one utterance with its tokens and, if a tagger ran, its tags.
type Analysis struct {
	Text   string
	Tokens []string
	Tagged []segment.Tagged
}

// Analyze tokenises text and tags it when tagger is non-nil.
func Analyze(seg segment.Segmenter, tagger segment.Tagger, text string) (*Analysis, error) {
	tokens, err := seg.Segment(text)
	if err != nil {
		return nil, err
	}
	a := &Analysis{Text: text, Tokens: tokens}
	if tagger != nil {
		tagged, err := tagger.Tag(tokens)
		if err != nil {
			return nil, err
		}
		a.Tagged = tagged
	}
	return a, nil
}

// HasToken reports whether tok is one of the analysis tokens.
func (a *Analysis) HasToken(tok string) bool {
	for _, t := range a.Tokens {
		if t == tok {
			return true
		}
	}
	return false
}

// IsSelfReference decides whether the speaker used term to refer to
// themselves.
//
// Monk self-reference terms count wherever they appear in the raw text.
// Any other term must be a whole token, and the match is discarded when the
// text contains the negation marker immediately followed by the term
// (e.g. ไม่ใช่ลุง, "not an uncle").
func IsSelfReference(tax *taxonomy.Taxonomy, term string, a *Analysis) bool {
	if tax.Is(term, taxonomy.MonkSelfReference) && strings.Contains(a.Text, term) {
		return true
	}
	if !a.HasToken(term) {
		return false
	}
	if strings.Contains(a.Text, tax.Negation()+term) {
		return false
	}
	return true
}

// SelfReferences returns every disclosable term judged a self-reference in
// a, in taxonomy order.
func SelfReferences(tax *taxonomy.Taxonomy, a *Analysis) []string {
	var out []string
	for _, term := range tax.Disclosable() {
		if IsSelfReference(tax, term, a) {
			out = append(out, term)
		}
	}
	return out
}

// FindTerms returns the taxonomy terms present in a, forbidden included.
//
// A term is present when it is a token, or when a token the tagger marked
// as a common noun equals it. A token equal to prefix+term for a known
// honorific prefix is recorded as a prefixed occurrence of term.
// Occurrences are de-duplicated and ordered by first appearance.
func FindTerms(tax *taxonomy.Taxonomy, a *Analysis) []model.Occurrence {
	var out []model.Occurrence
	seen := make(map[model.Occurrence]bool)
	add := func(o model.Occurrence) {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}

	prefixes := tax.Prefixes()
	for _, tok := range a.Tokens {
		if _, ok := tax.Category(tok); ok {
			add(model.Occurrence{Term: tok})
			continue
		}
		if o, ok := matchPrefixed(tax, prefixes, tok); ok {
			add(o)
		}
	}

	for _, tg := range a.Tagged {
		if !segment.CommonNounTags[tg.Tag] {
			continue
		}
		if _, ok := tax.Category(tg.Token); ok {
			add(model.Occurrence{Term: tg.Token})
		}
	}

	return out
}

func matchPrefixed(tax *taxonomy.Taxonomy, prefixes []string, tok string) (model.Occurrence, bool) {
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(tok, p)
		if !ok || rest == "" {
			continue
		}
		if _, ok := tax.Category(rest); ok && taxonomy.Prefixed(p, rest) == tok {
			return model.Occurrence{Term: rest, Prefix: p}, true
		}
	}
	return model.Occurrence{}, false
}
