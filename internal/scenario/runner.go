package scenario

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/termwatch/internal/model"
	"github.com/ppiankov/termwatch/internal/policy"
	"github.com/ppiankov/termwatch/internal/transcript"
)

// Run evaluates every case in s. Cases are independent: each transcript
// starts from an empty conversation state. A mode set on the case
// overrides the scenario mode, which overrides the evaluator's.
func Run(s *Scenario, e *policy.Evaluator) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
		Cases: []CaseResult{},
	}

	for i, c := range s.Cases {
		cr := runCase(i+1, s, c, e)
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func runCase(index int, s *Scenario, c Case, e *policy.Evaluator) CaseResult {
	cr := CaseResult{
		Index:    index,
		Name:     c.Name,
		Expected: strings.ToUpper(c.Expect.Status),
	}

	eval, err := evaluatorFor(e, s.Mode, c.Mode)
	if err != nil {
		cr.Actual = "ERROR"
		cr.Mismatches = []string{err.Error()}
		return cr
	}

	doc, err := transcript.FromLines(c.Transcript)
	if err != nil {
		cr.Actual = "ERROR"
		cr.Mismatches = []string{err.Error()}
		return cr
	}

	res := eval.EvaluateDocument(doc)
	cr.Actual = string(res.Status)
	cr.Messages = res.Messages()
	cr.Mismatches = compare(c.Expect, res)
	cr.Passed = len(cr.Mismatches) == 0
	return cr
}

func evaluatorFor(e *policy.Evaluator, scenarioMode, caseMode string) (*policy.Evaluator, error) {
	name := scenarioMode
	if caseMode != "" {
		name = caseMode
	}
	if name == "" {
		return e, nil
	}
	m, err := policy.ParseMode(name)
	if err != nil {
		return nil, err
	}
	return e.InMode(m), nil
}

// compare returns a description of every way res differs from want.
func compare(want Expect, res *model.Result) []string {
	var out []string

	if !strings.EqualFold(want.Status, string(res.Status)) {
		out = append(out, fmt.Sprintf("status: expected %s, got %s", strings.ToUpper(want.Status), res.Status))
	}

	if want.Disclosed != nil && !sameSet(want.Disclosed, res.Disclosed) {
		out = append(out, fmt.Sprintf("disclosed: expected %v, got %v", want.Disclosed, res.Disclosed))
	}

	if want.Violations != nil {
		if len(want.Violations) != len(res.Violations) {
			out = append(out, fmt.Sprintf("violations: expected %d, got %d", len(want.Violations), len(res.Violations)))
		} else {
			for i, wv := range want.Violations {
				if msg := compareViolation(wv, res.Violations[i]); msg != "" {
					out = append(out, fmt.Sprintf("violation %d: %s", i+1, msg))
				}
			}
		}
	}

	return out
}

func compareViolation(want ExpectedViolation, got model.Violation) string {
	if want.Line != got.Line || want.Kind != string(got.Kind) {
		return fmt.Sprintf("expected %s at line %d, got %s at line %d", want.Kind, want.Line, got.Kind, got.Line)
	}
	if want.Terms == nil {
		return ""
	}
	forms := make([]string, len(got.Terms))
	for i, o := range got.Terms {
		forms[i] = o.Form()
	}
	if !reflect.DeepEqual(want.Terms, forms) {
		return fmt.Sprintf("expected terms %v, got %v", want.Terms, forms)
	}
	return ""
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	in := make(map[string]bool, len(a))
	for _, s := range a {
		in[s] = true
	}
	for _, s := range b {
		if !in[s] {
			return false
		}
	}
	return true
}

// Load reads a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("parse scenario %s: missing name", path)
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and runs it against e.
func LoadAndRun(path string, e *policy.Evaluator) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	result := Run(s, e)
	result.File = path

	return result, nil
}
