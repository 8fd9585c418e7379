// Package segment turns raw utterance text into whole-word tokens.
//
// Thai is written without spaces between words, so term matching must run
// over segmented tokens rather than substrings: อา is a substring of อาหาร
// and อากาศ but is only an address term when it stands as its own word.
// Segmentation is an injected capability (Segmenter) so the evaluator can be
// tested against a deterministic fake and the dictionary can be swapped.
package segment

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Segmenter splits text into an ordered sequence of tokens.
// Implementations must be deterministic for identical input.
type Segmenter interface {
	Segment(text string) ([]string, error)
}

// Tagged is a token with its grammatical tag. Tag is empty when unknown.
type Tagged struct {
	Token string
	Tag   string
}

// Tagger assigns grammatical tags to tokens.
type Tagger interface {
	Tag(tokens []string) ([]Tagged, error)
}

// CommonNounTags are the tags treated as the common-noun class.
var CommonNounTags = map[string]bool{
	"NCMN": true,
	"NOUN": true,
}

// SegmentationError reports text that could not be segmented.
type SegmentationError struct {
	Text   string
	Reason string
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("segment: %s", e.Reason)
}

// Normalize validates and NFC-normalises text before segmentation.
func Normalize(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", &SegmentationError{Text: text, Reason: "text is not valid UTF-8"}
	}
	return norm.NFC.String(text), nil
}

// Whitespace splits on Unicode whitespace only.
// Use it for transcripts that are already segmented.
type Whitespace struct{}

// Segment implements Segmenter.
func (Whitespace) Segment(text string) ([]string, error) {
	text, err := Normalize(text)
	if err != nil {
		return nil, err
	}
	return strings.Fields(text), nil
}

// Func adapts a plain function to the Segmenter interface.
type Func func(text string) ([]string, error)

// Segment implements Segmenter.
func (f Func) Segment(text string) ([]string, error) { return f(text) }

func isThai(r rune) bool {
	return unicode.Is(unicode.Thai, r)
}

// runClass groups non-Thai runes into runs that stay together as one token.
func runClass(r rune) int {
	switch {
	case isThai(r):
		return 0
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return 1
	default:
		return 2
	}
}
