package service_test

import (
	"context"
	"testing"

	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/sandbox/sandboxtest"
	"github.com/programme-lv/judge/internal/service"
	"github.com/programme-lv/judge/internal/store"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	toy  = store.LanguageRef{Name: "toy", Version: "1"}
	toyc = store.LanguageRef{Name: "toyc", Version: "1"}
)

func newService(t *testing.T) *service.Service {
	t.Helper()
	langs, err := lang.New([]lang.Spec{sandboxtest.ToyScript, sandboxtest.ToyCompiled})
	require.NoError(t, err)

	problems, err := store.NewMemoryProblems(
		&store.Problem{
			ID: "echo",
			TestCases: []verdict.TestCase{
				{Input: "hello", Output: "hello"},
				{Input: "world", Output: "world"},
			},
		},
		&store.Problem{
			ID:                 "compiled-only",
			SupportedLanguages: []store.LanguageRef{toyc},
			TestCases:          []verdict.TestCase{{Input: "x", Output: "x"}},
		},
		&store.Problem{ID: "empty"},
	)
	require.NoError(t, err)

	p := pipeline.New(sandboxtest.Toy(), pipeline.Config{Workers: 2, QueueSize: 8}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return service.New(langs, problems, store.NewMemorySubmissions(), p, nil)
}

func TestSubmitAccepted(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	subm, err := svc.Submit(ctx, service.SubmitRequest{ProblemID: "echo", StudentID: "s1", Code: "echo", Language: toy})
	require.NoError(t, err)
	assert.Equal(t, int64(1), subm.ID)
	assert.Equal(t, verdict.Accepted, subm.Result.Status)
	require.Len(t, subm.TestResults, 2)
	assert.Equal(t, int64(1), subm.TestResults[0].TestCaseID)
	assert.Equal(t, int64(2), subm.TestResults[1].TestCaseID)
	assert.Len(t, subm.TestCases, 2)
	assert.False(t, subm.SubmittedAt.IsZero())

	stored, err := svc.Submission(ctx, subm.ID)
	require.NoError(t, err)
	assert.Equal(t, subm.Result, stored.Result)

	list, err := svc.Submissions(ctx, "echo")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSubmitVerdicts(t *testing.T) {
	svc := newService(t)
	tests := []struct {
		code   string
		lang   store.LanguageRef
		status verdict.SubmissionStatus
		nTests int
	}{
		{"print hello", toy, verdict.WrongAnswer, 2},
		{"loop", toy, verdict.RuntimeError, 2},
		{"syntax error", toyc, verdict.CompileError, 0},
		{"echo", toyc, verdict.Accepted, 2},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			subm, err := svc.Submit(context.Background(), service.SubmitRequest{ProblemID: "echo", Code: tt.code, Language: tt.lang})
			require.NoError(t, err)
			assert.Equal(t, tt.status, subm.Result.Status)
			assert.Len(t, subm.TestResults, tt.nTests)
		})
	}
}

func TestSubmitErrors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, service.SubmitRequest{ProblemID: "echo", Code: "echo", Language: store.LanguageRef{Name: "cobol", Version: "85"}})
	assert.ErrorIs(t, err, lang.ErrUnknownLanguage)

	_, err = svc.Submit(ctx, service.SubmitRequest{ProblemID: "nope", Code: "echo", Language: toy})
	assert.ErrorIs(t, err, store.ErrProblemNotFound)

	_, err = svc.Submit(ctx, service.SubmitRequest{ProblemID: "compiled-only", Code: "echo", Language: toy})
	assert.ErrorIs(t, err, service.ErrUnsupportedLanguage)

	_, err = svc.Submit(ctx, service.SubmitRequest{ProblemID: "empty", Code: "echo", Language: toy})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	_, err = svc.Submit(ctx, service.SubmitRequest{ProblemID: "echo", Language: toy})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
}

func TestTest(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	eval, err := svc.Test(ctx, service.TestRequest{
		Code:     "echo",
		Language: toy,
		Tests:    []verdict.TestCase{{Input: "hello", Output: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, eval.Result.Status)
	require.Len(t, eval.TestResults, 1)
	assert.Equal(t, verdict.Passed, eval.TestResults[0].Status)
	assert.Equal(t, int64(1), eval.TestResults[0].TestCaseID)

	eval, err = svc.Test(ctx, service.TestRequest{
		Code:     "print goodbye",
		Language: toy,
		Tests:    []verdict.TestCase{{Input: "", Output: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, verdict.WrongAnswer, eval.Result.Status)

	_, err = svc.Test(ctx, service.TestRequest{Code: "echo", Language: toy})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	list, err := svc.Submissions(ctx, "echo")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// An ad hoc pair numbered 1 next to an explicit test 1 would give two
// results nobody can tell apart.
func TestTestRejectsDuplicateIDs(t *testing.T) {
	svc := newService(t)
	_, err := svc.Test(context.Background(), service.TestRequest{
		Code:     "echo",
		Language: toy,
		Tests: []verdict.TestCase{
			{Input: "a", Output: "a"},
			{ID: 1, Input: "b", Output: "b"},
		},
	})
	require.ErrorIs(t, err, service.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "duplicate test id 1")

	eval, err := svc.Test(context.Background(), service.TestRequest{
		Code:     "echo",
		Language: toy,
		Tests: []verdict.TestCase{
			{Input: "a", Output: "a"},
			{ID: 7, Input: "b", Output: "b"},
		},
	})
	require.NoError(t, err)
	require.Len(t, eval.TestResults, 2)
	assert.Equal(t, int64(1), eval.TestResults[0].TestCaseID)
	assert.Equal(t, int64(7), eval.TestResults[1].TestCaseID)
}

func TestRejudgeIsStable(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	subm, err := svc.Submit(ctx, service.SubmitRequest{ProblemID: "echo", Code: "print hello", Language: toyc})
	require.NoError(t, err)

	eval, err := svc.Rejudge(ctx, subm.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, subm.Result, eval.Result)
	assert.Equal(t, subm.TestResults, eval.TestResults)

	_, err = svc.Rejudge(ctx, 1000, nil)
	assert.ErrorIs(t, err, store.ErrSubmissionNotFound)
}
