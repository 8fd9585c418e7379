// Package transcript parses line-oriented call transcripts.
//
// Each non-blank line is expected to start with a speaker label:
//
//	Speaker 1: <agent text>
//	Speaker 2: <caller text>
//
// Blank lines are dropped and do not count toward line numbers. Non-blank
// lines with neither label keep their line number but are not attributed to
// anyone and are excluded from evaluation.
package transcript

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/termwatch/internal/model"
)

// Speaker labels as they appear in transcript files.
const (
	AgentLabel  = "Speaker 1:"
	CallerLabel = "Speaker 2:"
)

// maxLineBytes bounds a single transcript line.
const maxLineBytes = 1 << 20

// Document is a parsed transcript.
type Document struct {
	Path         string            `json:"path,omitempty"`
	Hash         string            `json:"hash"`
	Lines        int               `json:"lines"`
	Unattributed int               `json:"unattributed"`
	Utterances   []model.Utterance `json:"utterances"`
}

// Parse reads a transcript. The returned hash covers the raw bytes read.
func Parse(r io.Reader) (*Document, error) {
	h := sha256.New()
	scanner := bufio.NewScanner(io.TeeReader(r, h))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	doc := &Document{Utterances: []model.Utterance{}}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		doc.Lines++

		u, ok := ParseLine(line, doc.Lines)
		if !ok {
			doc.Unattributed++
			continue
		}
		doc.Utterances = append(doc.Utterances, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: read: %w", err)
	}

	doc.Hash = "sha256:" + hex.EncodeToString(h.Sum(nil))
	return doc, nil
}

// ParseLine attributes one trimmed, non-blank line.
func ParseLine(line string, lineNum int) (model.Utterance, bool) {
	if text, ok := strings.CutPrefix(line, AgentLabel); ok {
		return model.Utterance{Speaker: model.Agent, Text: strings.TrimSpace(text), Line: lineNum}, true
	}
	if text, ok := strings.CutPrefix(line, CallerLabel); ok {
		return model.Utterance{Speaker: model.Caller, Text: strings.TrimSpace(text), Line: lineNum}, true
	}
	return model.Utterance{}, false
}

// Load reads and parses a transcript file. A missing or unreadable file
// fails before any line is parsed.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// FromLines parses an in-memory transcript.
func FromLines(lines []string) (*Document, error) {
	return Parse(strings.NewReader(strings.Join(lines, "\n")))
}
