package termgath_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/gatherer/termgath"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
)

func TestPrintsEvaluation(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	var g evaluator.Gatherer = termgath.New(&buf)

	zero := 0
	msg := "expected \"b\""
	g.StartJob("linux")
	g.StartCompile()
	g.FinishCompile(&verdict.Outcome{Reason: verdict.Normal, ExitCode: &zero, CpuTimeMs: 12})
	g.ReachTest(1, []byte("a"), []byte("a"))
	g.FinishTest(1, &verdict.Outcome{Reason: verdict.Normal, ExitCode: &zero, Stdout: []byte("a")},
		verdict.TestResult{TestCaseID: 1, Status: verdict.Passed})
	g.ReachTest(2, []byte("a"), []byte("b"))
	g.FinishTest(2, &verdict.Outcome{Reason: verdict.Normal, ExitCode: &zero, Stdout: []byte("a")},
		verdict.TestResult{TestCaseID: 2, Status: verdict.Failed, Message: &msg})
	g.FinishJob(verdict.SubmissionResult{Status: verdict.WrongAnswer})

	out := buf.String()
	assert.Contains(t, out, "== Evaluation started ==")
	assert.Contains(t, out, "reason=Normal exit=0 cpu=12ms")
	assert.Contains(t, out, "<- Test 1 Passed\n")
	assert.Contains(t, out, "<- Test 2 Failed: expected \"b\"\n")
	assert.Contains(t, out, "== WrongAnswer ==")
	assert.NotContains(t, out, "stdout:")
}

func TestPrintsCompileFailure(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	g := termgath.New(&buf)
	g.Verbose = true

	one := 1
	g.FinishCompile(&verdict.Outcome{Reason: verdict.CompileFailed, ExitCode: &one, Stderr: []byte("main.c:1: error")})
	g.InternalError("box lost")

	out := buf.String()
	assert.Contains(t, out, "compilation failed")
	assert.Contains(t, out, "main.c:1: error")
	assert.Contains(t, out, "== Internal error: box lost ==")
}
