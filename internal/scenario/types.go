package scenario

// ExpectedViolation is one violation a case expects, matched by line and
// kind. Terms, when given, must equal the reported surface forms in order.
type ExpectedViolation struct {
	Line  int      `yaml:"line" json:"line"`
	Kind  string   `yaml:"kind" json:"kind"`
	Terms []string `yaml:"terms,omitempty" json:"terms,omitempty"`
}

// Expect is the expected verdict of a case. Disclosed and Violations are
// only compared when present in the file.
type Expect struct {
	Status     string              `yaml:"status"`
	Disclosed  []string            `yaml:"disclosed,omitempty"`
	Violations []ExpectedViolation `yaml:"violations,omitempty"`
}

// Case is one transcript with its expected verdict.
type Case struct {
	Name       string   `yaml:"name"`
	Mode       string   `yaml:"mode,omitempty"`
	Transcript []string `yaml:"transcript"`
	Expect     Expect   `yaml:"expect"`
}

// Scenario is a named collection of transcript cases.
type Scenario struct {
	Name  string `yaml:"name"`
	Mode  string `yaml:"mode,omitempty"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one case.
type CaseResult struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Expected   string   `json:"expected"`
	Actual     string   `json:"actual"`
	Mismatches []string `json:"mismatches,omitempty"`
	Messages   []string `json:"messages,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
