package policy

import "fmt"

// Mode selects how caller disclosures combine into the allowed set.
type Mode string

const (
	// Accumulate keeps every disclosure for the rest of the conversation.
	Accumulate Mode = "accumulate"
	// Latest honours only the most recent disclosure. Earlier ones are
	// still reported but no longer unlock anything.
	Latest Mode = "latest"
)

// ParseMode parses a mode name. The empty string selects Accumulate.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Accumulate:
		return Accumulate, nil
	case Latest:
		return Latest, nil
	default:
		return "", fmt.Errorf("unknown disclosure mode %q (want %s or %s)", s, Accumulate, Latest)
	}
}

func (m Mode) String() string { return string(m) }
