package transport

import (
	"time"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/store"
	"github.com/programme-lv/judge/internal/verdict"
)

func LanguageRef(l api.Language) store.LanguageRef {
	return store.LanguageRef{Name: l.Name, Version: l.Version}
}

func TestCases(tcs []api.TestCase) []verdict.TestCase {
	res := make([]verdict.TestCase, len(tcs))
	for i, tc := range tcs {
		res[i] = verdict.TestCase{ID: tc.ID, Input: tc.Input, Output: tc.Output}
	}
	return res
}

// TestReqCases returns the test cases of a TestReq. A single input and
// expected output pair comes first, followed by Tests.
func TestReqCases(req api.TestReq) []verdict.TestCase {
	var res []verdict.TestCase
	if req.Input != nil || req.ExpectedOutput != nil {
		tc := verdict.TestCase{}
		if req.Input != nil {
			tc.Input = *req.Input
		}
		if req.ExpectedOutput != nil {
			tc.Output = *req.ExpectedOutput
		}
		res = append(res, tc)
	}
	return append(res, TestCases(req.Tests)...)
}

func TestResult(r verdict.TestResult) api.TestResult {
	return api.TestResult{TestCaseID: r.TestCaseID, Status: string(r.Status), Message: r.Message}
}

func TestResults(rs []verdict.TestResult) []api.TestResult {
	res := make([]api.TestResult, len(rs))
	for i, r := range rs {
		res[i] = TestResult(r)
	}
	return res
}

func SubmissionResult(r verdict.SubmissionResult) api.SubmissionResult {
	return api.SubmissionResult{Status: string(r.Status), Message: r.Message}
}

func Submission(s *store.Submission) *api.Submission {
	tcs := make([]api.TestCase, len(s.TestCases))
	for i, tc := range s.TestCases {
		tcs[i] = api.TestCase{ID: tc.ID, Input: tc.Input, Output: tc.Output}
	}
	return &api.Submission{
		ID:          s.ID,
		ProblemID:   s.ProblemID,
		StudentID:   s.StudentID,
		Code:        s.Code,
		Language:    api.Language{Name: s.Language.Name, Version: s.Language.Version},
		Result:      SubmissionResult(s.Result),
		TestResults: TestResults(s.TestResults),
		TestCases:   tcs,
		SubmittedAt: s.SubmittedAt.Format(time.RFC3339),
	}
}

func LanguageInfo(s lang.Spec) api.LanguageInfo {
	return api.LanguageInfo{
		Name:             s.Name,
		Version:          s.Version,
		SourceFile:       s.SourceFile,
		Compiled:         s.Kind() == lang.Compiled,
		TimeLimitMs:      s.TimeLimitMs,
		MemoryLimitBytes: s.MemoryLimitBytes,
	}
}
