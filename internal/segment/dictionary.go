package segment

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed lexicon.txt
var builtinLexicon string

// Dictionary is a maximal-matching segmenter backed by a word list.
//
// Each whitespace-separated chunk is split into runs of Thai and non-Thai
// runes. Thai runs are segmented into the fewest pieces, each a lexicon word
// or a maximal unknown span, in the manner of newmm: unknown text never
// starts where a lexicon word starts, so known words stay whole.
//
// A Dictionary also tags tokens with the tag recorded in its lexicon.
type Dictionary struct {
	words  map[string]string // word → tag
	maxLen int               // longest word, in runes
}

// NewDictionary builds a Dictionary from lexicon text in the
// "word<TAB>tag" line format. Lines starting with # are comments.
func NewDictionary(r io.Reader) (*Dictionary, error) {
	d := &Dictionary{words: make(map[string]string)}
	if err := d.merge(r); err != nil {
		return nil, err
	}
	return d, nil
}

// Builtin returns a Dictionary over the embedded lexicon.
func Builtin() *Dictionary {
	d, err := NewDictionary(strings.NewReader(builtinLexicon))
	if err != nil {
		panic(err)
	}
	return d
}

// LoadDictionary returns the built-in dictionary extended with the lexicon
// at path. An empty path returns the built-in dictionary.
func LoadDictionary(path string) (*Dictionary, error) {
	d := Builtin()
	if path == "" {
		return d, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: open lexicon: %w", err)
	}
	defer f.Close()
	if err := d.merge(f); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dictionary) merge(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		word, err := Normalize(fields[0])
		if err != nil {
			return fmt.Errorf("segment: lexicon line %d: %w", lineNum, err)
		}
		tag := ""
		if len(fields) > 1 {
			tag = fields[1]
		}
		d.Add(word, tag)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("segment: read lexicon: %w", err)
	}
	return nil
}

// Add inserts or retags a word.
func (d *Dictionary) Add(word, tag string) {
	if word == "" {
		return
	}
	d.words[word] = tag
	if n := len([]rune(word)); n > d.maxLen {
		d.maxLen = n
	}
}

// Contains reports whether word is in the lexicon.
func (d *Dictionary) Contains(word string) bool {
	_, ok := d.words[word]
	return ok
}

// Len returns the number of lexicon entries.
func (d *Dictionary) Len() int { return len(d.words) }

// Segment implements Segmenter.
func (d *Dictionary) Segment(text string) ([]string, error) {
	text, err := Normalize(text)
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, chunk := range strings.Fields(text) {
		runes := []rune(chunk)
		start := 0
		for start < len(runes) {
			class := runClass(runes[start])
			end := start + 1
			for end < len(runes) && runClass(runes[end]) == class {
				end++
			}
			switch class {
			case 0:
				tokens = append(tokens, d.segmentThai(runes[start:end])...)
			case 1:
				tokens = append(tokens, string(runes[start:end]))
			default:
				for _, r := range runes[start:end] {
					tokens = append(tokens, string(r))
				}
			}
			start = end
		}
	}
	return tokens, nil
}

type cell struct {
	tokens  int
	unknown int // runes outside the lexicon
	next    int // end of the first piece starting here
}

func better(a, b cell) bool {
	if a.tokens != b.tokens {
		return a.tokens < b.tokens
	}
	if a.unknown != b.unknown {
		return a.unknown < b.unknown
	}
	return a.next > b.next
}

// segmentThai finds the split of a Thai run with the fewest pieces, where
// every piece is either a lexicon word or an unknown span. Pieces start and
// end only on cluster boundaries. An unknown span may only begin where no
// lexicon word begins and stops at the next position where one does, so a
// known word is never pulled apart or swallowed to absorb an unknown
// neighbour. Ties go to fewer unknown runes, then the longer first piece.
func (d *Dictionary) segmentThai(runes []rune) []string {
	n := len(runes)

	// words[i] lists the end positions of lexicon words starting at i.
	words := make([][]int, n)
	for i := 0; i < n; i++ {
		if !clusterBoundary(runes, i) {
			continue
		}
		limit := d.maxLen
		if n-i < limit {
			limit = n - i
		}
		for l := limit; l >= 1; l-- {
			if !clusterBoundary(runes, i+l) {
				continue
			}
			if _, ok := d.words[string(runes[i:i+l])]; ok {
				words[i] = append(words[i], i+l)
			}
		}
	}

	best := make([]cell, n+1)
	for i := n - 1; i >= 0; i-- {
		if !clusterBoundary(runes, i) {
			continue
		}
		if len(words[i]) == 0 {
			j := i + 1
			for j < n && (!clusterBoundary(runes, j) || len(words[j]) == 0) {
				j++
			}
			best[i] = cell{
				tokens:  best[j].tokens + 1,
				unknown: best[j].unknown + j - i,
				next:    j,
			}
			continue
		}
		var c cell
		for k, end := range words[i] {
			cand := cell{
				tokens:  best[end].tokens + 1,
				unknown: best[end].unknown,
				next:    end,
			}
			if k == 0 || better(cand, c) {
				c = cand
			}
		}
		best[i] = c
	}

	tokens := make([]string, 0, best[0].tokens)
	for i := 0; i < n; i = best[i].next {
		tokens = append(tokens, string(runes[i:best[i].next]))
	}
	return tokens
}

// clusterBoundary reports whether a word may begin or end before
// runes[i]. Dependent vowels, tone marks and other combining signs attach
// to the preceding consonant, and a leading vowel attaches to the one that
// follows it.
func clusterBoundary(runes []rune, i int) bool {
	if i <= 0 || i >= len(runes) {
		return true
	}
	if isDependent(runes[i]) {
		return false
	}
	return !isLeadingVowel(runes[i-1])
}

// isDependent reports Thai signs that cannot start a cluster: sara a, mai
// han-akat, sara aa, sara am, the above and below vowels, lakkhangyao,
// maitaikhu, the tone marks, thanthakhat and the other combining marks.
func isDependent(r rune) bool {
	switch {
	case r == 0x0E30 || r == 0x0E31 || r == 0x0E32 || r == 0x0E33:
		return true
	case r >= 0x0E34 && r <= 0x0E3A:
		return true
	case r == 0x0E45:
		return true
	case r >= 0x0E47 && r <= 0x0E4E:
		return true
	}
	return false
}

// isLeadingVowel reports sara e, sara ae, sara o, sara ai maimuan and sara
// ai maimalai, which are written before the consonant they follow in speech.
func isLeadingVowel(r rune) bool {
	return r >= 0x0E40 && r <= 0x0E44
}

// Tag implements Tagger using the lexicon tags.
func (d *Dictionary) Tag(tokens []string) ([]Tagged, error) {
	out := make([]Tagged, len(tokens))
	for i, tok := range tokens {
		out[i] = Tagged{Token: tok, Tag: d.words[tok]}
	}
	return out, nil
}
