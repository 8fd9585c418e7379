// Package taxonomy holds the read-only registry of policy terms: the
// forbidden term, family and monk address terms, monk self-references,
// honorific prefixes and the negation marker. A Taxonomy is built once at
// startup and shared by pointer; nothing mutates it afterwards.
package taxonomy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category classifies a policy term.
type Category string

const (
	Forbidden         Category = "forbidden"
	FamilyAddress     Category = "family_address"
	MonkAddress       Category = "monk_address"
	MonkSelfReference Category = "monk_self_reference"
)

// Lists holds the raw term lists as they appear in a taxonomy YAML file.
type Lists struct {
	Forbidden         string   `yaml:"forbidden"`
	FamilyAddress     []string `yaml:"family_address"`
	MonkAddress       []string `yaml:"monk_address"`
	MonkSelfReference []string `yaml:"monk_self_reference"`
	Prefixes          []string `yaml:"prefixes"`
	Negation          string   `yaml:"negation"`
}

// Taxonomy is the validated, indexed form of Lists.
type Taxonomy struct {
	raw        Lists
	categories map[string]Category
	order      []string // every term, forbidden included, in declaration order
	prefixes   []string
	hash       string
}

// New validates the lists and builds a Taxonomy.
func New(l Lists) (*Taxonomy, error) {
	l.Forbidden = strings.TrimSpace(l.Forbidden)
	if l.Forbidden == "" {
		return nil, errors.New("taxonomy: forbidden term is required")
	}
	if strings.TrimSpace(l.Negation) == "" {
		return nil, errors.New("taxonomy: negation marker is required")
	}

	t := &Taxonomy{
		raw:        l,
		categories: make(map[string]Category),
	}

	add := func(term string, c Category) error {
		term = strings.TrimSpace(term)
		if term == "" {
			return fmt.Errorf("taxonomy: empty term in %s", c)
		}
		if prev, ok := t.categories[term]; ok {
			return fmt.Errorf("taxonomy: term %q listed in both %s and %s", term, prev, c)
		}
		t.categories[term] = c
		t.order = append(t.order, term)
		return nil
	}

	for _, term := range l.FamilyAddress {
		if err := add(term, FamilyAddress); err != nil {
			return nil, err
		}
	}
	if err := add(l.Forbidden, Forbidden); err != nil {
		return nil, err
	}
	for _, term := range l.MonkAddress {
		if err := add(term, MonkAddress); err != nil {
			return nil, err
		}
	}
	for _, term := range l.MonkSelfReference {
		if err := add(term, MonkSelfReference); err != nil {
			return nil, err
		}
	}

	for _, p := range l.Prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errors.New("taxonomy: empty honorific prefix")
		}
		t.prefixes = append(t.prefixes, p)
	}

	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: encode for hash: %w", err)
	}
	h := sha256.Sum256(data)
	t.hash = "sha256:" + hex.EncodeToString(h[:])

	return t, nil
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := New(DefaultLists)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultPath returns ~/.termwatch/taxonomy.yaml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".termwatch", "taxonomy.yaml")
}

// Load reads a taxonomy from a YAML file.
// Empty path falls back to ~/.termwatch/taxonomy.yaml.
// A missing file returns the defaults. Invalid YAML returns an error.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}

	var l Lists
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("taxonomy: parse %s: %w", path, err)
	}
	return New(l)
}

// Category returns the category of term.
func (t *Taxonomy) Category(term string) (Category, bool) {
	c, ok := t.categories[term]
	return c, ok
}

// Is reports whether term belongs to category c.
func (t *Taxonomy) Is(term string, c Category) bool {
	got, ok := t.categories[term]
	return ok && got == c
}

// Forbidden returns the single forbidden term.
func (t *Taxonomy) Forbidden() string { return t.raw.Forbidden }

// Negation returns the negation marker.
func (t *Taxonomy) Negation() string { return t.raw.Negation }

// Prefixes returns the honorific prefixes.
func (t *Taxonomy) Prefixes() []string { return append([]string(nil), t.prefixes...) }

// Prefixed builds the prefixed form of term.
func Prefixed(prefix, term string) string { return prefix + term }

// Terms returns every term, forbidden included.
func (t *Taxonomy) Terms() []string { return append([]string(nil), t.order...) }

// InCategory returns the terms of category c in declaration order.
func (t *Taxonomy) InCategory(c Category) []string {
	var out []string
	for _, term := range t.order {
		if t.categories[term] == c {
			out = append(out, term)
		}
	}
	return out
}

// Disclosable returns the terms a caller can disclose: family address,
// monk address and monk self-reference terms.
func (t *Taxonomy) Disclosable() []string {
	var out []string
	for _, term := range t.order {
		if t.categories[term] != Forbidden {
			out = append(out, term)
		}
	}
	return out
}

// Unlocks returns the terms an agent may use once term has been disclosed.
// A monk self-reference unlocks every monk address term; a family or monk
// address term unlocks only itself; the forbidden term unlocks nothing.
func (t *Taxonomy) Unlocks(term string) []string {
	switch t.categories[term] {
	case MonkSelfReference:
		return t.InCategory(MonkAddress)
	case FamilyAddress, MonkAddress:
		return []string{term}
	default:
		return nil
	}
}

// Lists returns a copy of the raw lists.
func (t *Taxonomy) Lists() Lists {
	l := t.raw
	l.FamilyAddress = append([]string(nil), l.FamilyAddress...)
	l.MonkAddress = append([]string(nil), l.MonkAddress...)
	l.MonkSelfReference = append([]string(nil), l.MonkSelfReference...)
	l.Prefixes = append([]string(nil), l.Prefixes...)
	return l
}

// Hash returns "sha256:<hex>" of the canonical YAML encoding.
func (t *Taxonomy) Hash() string { return t.hash }

// YAML returns the taxonomy as a YAML document, suitable for `termwatch init`.
func (t *Taxonomy) YAML() ([]byte, error) {
	return yaml.Marshal(t.raw)
}
