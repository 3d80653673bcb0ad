// Package behave runs behaviour scenarios declared in TOML against the
// judging service and reports mismatches.
package behave

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/service"
	"github.com/programme-lv/judge/internal/store"
	"github.com/programme-lv/judge/internal/verdict"
)

// SpecTest is a single test case of a scenario request.
type SpecTest struct {
	In  string `toml:"in"`
	Ans string `toml:"ans"`
}

type SpecLanguage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type SpecLimits struct {
	TimeMs      int64 `toml:"time_ms"`
	MemoryBytes int64 `toml:"memory_bytes"`
}

type SpecRequest struct {
	Code     string       `toml:"code"`
	Language SpecLanguage `toml:"language"`
	Tests    []SpecTest   `toml:"tests"`
	Limits   SpecLimits   `toml:"limits"`
}

type SpecTestVerdict struct {
	Verdict string `toml:"verdict"`
}

// SpecExpect is the expected overall status and, when given, the expected
// verdict of every test in order.
type SpecExpect struct {
	Status      string            `toml:"status"`
	TestResults []SpecTestVerdict `toml:"test_results"`
}

type specScenario struct {
	Description string      `toml:"description"`
	Request     SpecRequest `toml:"request"`
	Expect      SpecExpect  `toml:"expect"`
}

type specRoot struct {
	Scenarios []specScenario `toml:"scenarios"`
	// Languages the scenarios need beyond the judge's own registry.
	Languages []lang.Spec `toml:"languages"`
}

// Case is a runnable scenario.
type Case struct {
	Name    string
	Request service.TestRequest
	Expect  SpecExpect
}

type Suite struct {
	Languages []lang.Spec
	Cases     []Case
}

// ParseFile reads a behaviour TOML file.
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Suite, error) {
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	suite := &Suite{Languages: root.Languages, Cases: make([]Case, 0, len(root.Scenarios))}
	for i, s := range root.Scenarios {
		name := s.Description
		if name == "" {
			name = fmt.Sprintf("scenario %d", i+1)
		}
		if s.Request.Language.Name == "" {
			return nil, fmt.Errorf("%s: language name is required", name)
		}
		if s.Expect.Status == "" {
			return nil, fmt.Errorf("%s: expected status is required", name)
		}
		tests := make([]verdict.TestCase, 0, len(s.Request.Tests))
		for j, t := range s.Request.Tests {
			tests = append(tests, verdict.TestCase{ID: int64(j + 1), Input: t.In, Output: t.Ans})
		}
		suite.Cases = append(suite.Cases, Case{
			Name: name,
			Request: service.TestRequest{
				Code:             s.Request.Code,
				Language:         store.LanguageRef{Name: s.Request.Language.Name, Version: s.Request.Language.Version},
				Tests:            tests,
				TimeLimitMs:      s.Request.Limits.TimeMs,
				MemoryLimitBytes: s.Request.Limits.MemoryBytes,
			},
			Expect: s.Expect,
		})
	}
	return suite, nil
}

// Registry extends base with the suite's own languages.
func (s *Suite) Registry(base *lang.Registry) (*lang.Registry, error) {
	if len(s.Languages) == 0 {
		return base, nil
	}
	return lang.New(append(base.Languages(), s.Languages...))
}

type Report struct {
	Passed int
	Failed int
}

var (
	pass = color.New(color.FgGreen, color.Bold)
	fail = color.New(color.FgRed, color.Bold)
)

// Run executes every case and writes a line per case to w. Only a canceled
// ctx stops it early.
func Run(ctx context.Context, svc *service.Service, cases []Case, w io.Writer) (Report, error) {
	var rep Report
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		eval, err := svc.Test(ctx, c.Request)
		var problems []string
		if err != nil {
			problems = []string{err.Error()}
		} else {
			problems = Check(c.Expect, eval.Result, eval.TestResults)
		}
		if len(problems) == 0 {
			rep.Passed++
			pass.Fprint(w, "PASS")
			fmt.Fprintf(w, " %s\n", c.Name)
			continue
		}
		rep.Failed++
		fail.Fprint(w, "FAIL")
		fmt.Fprintf(w, " %s\n", c.Name)
		for _, p := range problems {
			fmt.Fprintf(w, "     %s\n", p)
		}
	}
	fmt.Fprintf(w, "%d passed, %d failed\n", rep.Passed, rep.Failed)
	return rep, nil
}

// Check lists the differences between the expectation and a result.
func Check(exp SpecExpect, res verdict.SubmissionResult, tests []verdict.TestResult) []string {
	var problems []string
	if string(res.Status) != exp.Status {
		msg := fmt.Sprintf("status: want %s, got %s", exp.Status, res.Status)
		if res.Message != nil {
			msg += " (" + *res.Message + ")"
		}
		problems = append(problems, msg)
	}
	if exp.TestResults == nil {
		return problems
	}
	if len(exp.TestResults) != len(tests) {
		return append(problems, fmt.Sprintf("test results: want %d, got %d", len(exp.TestResults), len(tests)))
	}
	for i, want := range exp.TestResults {
		if string(tests[i].Status) != want.Verdict {
			problems = append(problems, fmt.Sprintf("test %d: want %s, got %s", tests[i].TestCaseID, want.Verdict, tests[i].Status))
		}
	}
	return problems
}
