// Package verdict holds the result model shared by the runner, the evaluator
// and the pipeline: statuses, test cases, execution outcomes and the rules
// that fold them into a submission verdict.
package verdict

import (
	"bytes"
	"fmt"
)

type TestStatus string

const (
	Passed TestStatus = "Passed"
	Failed TestStatus = "Failed"
)

type SubmissionStatus string

const (
	Accepted     SubmissionStatus = "Accepted"
	WrongAnswer  SubmissionStatus = "WrongAnswer"
	RuntimeError SubmissionStatus = "RuntimeError"
	CompileError SubmissionStatus = "CompileError"
)

// TestCase is an input with its expected output. ID is the position of the
// test inside its problem unless the problem assigns one.
type TestCase struct {
	ID     int64  `json:"id" toml:"id"`
	Input  string `json:"input" toml:"input"`
	Output string `json:"output" toml:"output"`
}

type TestResult struct {
	TestCaseID int64      `json:"test_case_id"`
	Status     TestStatus `json:"status"`
	Message    *string    `json:"message,omitempty"`
}

type SubmissionResult struct {
	Status  SubmissionStatus `json:"status"`
	Message *string          `json:"message,omitempty"`
}

func strPtr(s string) *string {
	return &s
}

// NormalizeOutput drops a single trailing newline. Nothing else is touched,
// comparisons stay byte-exact otherwise.
func NormalizeOutput(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte("\n"))
}

// OutputMatches reports whether actual equals expected after normalization.
func OutputMatches(actual []byte, expected string) bool {
	return bytes.Equal(NormalizeOutput(actual), NormalizeOutput([]byte(expected)))
}

// Judge turns one execution outcome into a test result.
func Judge(tc TestCase, out *Outcome) TestResult {
	res := TestResult{TestCaseID: tc.ID}
	if out.Abnormal() {
		res.Status = Failed
		res.Message = strPtr(out.Describe())
		return res
	}
	if OutputMatches(out.Stdout, tc.Output) {
		res.Status = Passed
		if out.StdoutTruncated {
			res.Message = strPtr(fmt.Sprintf("stdout truncated to %d bytes", len(out.Stdout)))
		}
		return res
	}
	res.Status = Failed
	msg := "output does not match expected output"
	if out.StdoutTruncated {
		msg += fmt.Sprintf(" (stdout truncated to %d bytes)", len(out.Stdout))
	}
	res.Message = strPtr(msg)
	return res
}

// Aggregate folds ordered test results into the submission verdict.
// abnormal must be true iff at least one execution terminated abnormally.
func Aggregate(results []TestResult, abnormal bool, abnormalMsg string) SubmissionResult {
	if abnormal {
		return SubmissionResult{Status: RuntimeError, Message: strPtr(abnormalMsg)}
	}
	failed := 0
	for _, r := range results {
		if r.Status != Passed {
			failed++
		}
	}
	if failed == 0 {
		return SubmissionResult{Status: Accepted}
	}
	return SubmissionResult{
		Status:  WrongAnswer,
		Message: strPtr(fmt.Sprintf("%d of %d tests failed", failed, len(results))),
	}
}

// CompileErrorResult is the verdict for a submission whose compile step failed.
func CompileErrorResult(out *Outcome) SubmissionResult {
	msg := string(bytes.TrimSpace(out.Stderr))
	if msg == "" {
		msg = string(bytes.TrimSpace(out.Stdout))
	}
	if msg == "" {
		msg = out.Describe()
	}
	return SubmissionResult{Status: CompileError, Message: strPtr(msg)}
}
