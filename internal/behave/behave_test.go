package behave_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/programme-lv/judge/internal/behave"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/sandbox/sandboxtest"
	"github.com/programme-lv/judge/internal/service"
	"github.com/programme-lv/judge/internal/store"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, suite *behave.Suite) *service.Service {
	t.Helper()
	base, err := lang.New([]lang.Spec{sandboxtest.ToyScript})
	require.NoError(t, err)
	langs, err := suite.Registry(base)
	require.NoError(t, err)
	problems, err := store.NewMemoryProblems()
	require.NoError(t, err)

	p := pipeline.New(sandboxtest.Toy(), pipeline.Config{Workers: 1, QueueSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return service.New(langs, problems, store.NewMemorySubmissions(), p, nil)
}

func TestParse(t *testing.T) {
	suite, err := behave.ParseFile("testdata/toy.toml")
	require.NoError(t, err)
	require.Len(t, suite.Languages, 1)
	assert.Equal(t, "toyc", suite.Languages[0].Name)
	require.Len(t, suite.Cases, 4)

	c := suite.Cases[2]
	assert.Equal(t, int64(100), c.Request.TimeLimitMs)
	require.Len(t, c.Request.Tests, 2)
	assert.Equal(t, verdict.TestCase{ID: 2, Input: "2", Output: "2"}, c.Request.Tests[1])
}

func TestParseRejectsIncompleteScenario(t *testing.T) {
	_, err := behave.Parse([]byte(`
[[scenarios]]
description = "no language"
[scenarios.expect]
status = "Accepted"
`))
	assert.ErrorContains(t, err, "language name is required")

	_, err = behave.Parse([]byte("[[scenarios"))
	assert.Error(t, err)
}

func TestRunScenarios(t *testing.T) {
	color.NoColor = true
	suite, err := behave.ParseFile("testdata/toy.toml")
	require.NoError(t, err)
	svc := newService(t, suite)

	var buf bytes.Buffer
	rep, err := behave.Run(context.Background(), svc, suite.Cases, &buf)
	require.NoError(t, err)
	assert.Equal(t, behave.Report{Passed: 4}, rep, buf.String())
	assert.Contains(t, buf.String(), "PASS B: syntax error is a compile error")
}

func TestRunReportsMismatch(t *testing.T) {
	color.NoColor = true
	suite, err := behave.ParseFile("testdata/toy.toml")
	require.NoError(t, err)
	svc := newService(t, suite)

	c := suite.Cases[0]
	c.Expect = behave.SpecExpect{Status: "WrongAnswer"}
	unknown := behave.Case{Name: "unknown", Request: service.TestRequest{
		Code: "echo", Language: store.LanguageRef{Name: "cobol"}, Tests: c.Request.Tests,
	}, Expect: behave.SpecExpect{Status: "Accepted"}}

	var buf bytes.Buffer
	rep, err := behave.Run(context.Background(), svc, []behave.Case{c, unknown}, &buf)
	require.NoError(t, err)
	assert.Equal(t, behave.Report{Failed: 2}, rep)
	assert.Contains(t, buf.String(), "status: want WrongAnswer, got Accepted")
	assert.Contains(t, buf.String(), "unknown language")
}

func TestCheck(t *testing.T) {
	exp := behave.SpecExpect{Status: "WrongAnswer", TestResults: []behave.SpecTestVerdict{{Verdict: "Passed"}, {Verdict: "Failed"}}}
	res := verdict.SubmissionResult{Status: verdict.WrongAnswer}
	tests := []verdict.TestResult{{TestCaseID: 1, Status: verdict.Passed}, {TestCaseID: 2, Status: verdict.Failed}}
	assert.Empty(t, behave.Check(exp, res, tests))

	tests[0].Status = verdict.Failed
	assert.Equal(t, []string{"test 1: want Passed, got Failed"}, behave.Check(exp, res, tests))
	assert.Equal(t, []string{"test results: want 2, got 1"}, behave.Check(exp, res, tests[:1]))
}
