// Package service implements the operations exposed to transports: Submit
// judges code against a stored problem and records it, Test judges code
// against ad hoc test cases without recording anything.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/runner"
	"github.com/programme-lv/judge/internal/store"
	"github.com/programme-lv/judge/internal/verdict"
)

var (
	ErrUnsupportedLanguage = errors.New("language is not supported by the problem")
	ErrInvalidRequest      = errors.New("invalid request")
)

// Judge is satisfied by *pipeline.Pipeline.
type Judge interface {
	Judge(ctx context.Context, req pipeline.Request) (*evaluator.Evaluation, error)
}

type Service struct {
	langs    *lang.Registry
	problems store.ProblemStore
	subms    store.SubmissionStore
	judge    Judge
	log      *slog.Logger
	now      func() time.Time
}

func New(langs *lang.Registry, problems store.ProblemStore, subms store.SubmissionStore,
	judge Judge, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		langs:    langs,
		problems: problems,
		subms:    subms,
		judge:    judge,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Languages() []lang.Spec {
	return s.langs.Languages()
}

type SubmitRequest struct {
	ProblemID string
	StudentID string
	Code      string
	Language  store.LanguageRef
	Gatherer  evaluator.Gatherer
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Submit judges code against every test case of the problem and stores the
// result together with the test cases it was judged against.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.Submission, error) {
	if req.ProblemID == "" {
		return nil, invalid("problem id is required")
	}
	if req.Code == "" {
		return nil, invalid("code is empty")
	}
	spec, err := s.langs.Resolve(req.Language.Name, req.Language.Version)
	if err != nil {
		return nil, err
	}
	problem, err := s.problems.Problem(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	if !problem.Supports(spec.Key()) {
		return nil, fmt.Errorf("%w: %s for problem %s", ErrUnsupportedLanguage, spec.Key(), problem.ID)
	}
	if len(problem.TestCases) == 0 {
		return nil, invalid("problem %s has no test cases", problem.ID)
	}

	subm := &store.Submission{
		ProblemID:   problem.ID,
		StudentID:   req.StudentID,
		Code:        req.Code,
		Language:    store.LanguageRef{Name: spec.Name, Version: spec.Version},
		TestCases:   problem.TestCases,
		SubmittedAt: s.now().UTC(),
	}
	eval, err := s.judge.Judge(ctx, pipeline.Request{
		ID:       uuid.NewString(),
		Spec:     spec,
		Code:     req.Code,
		Tests:    problem.TestCases,
		Limits:   limitsFor(spec, problem.TimeLimitMs, problem.MemoryLimitBytes),
		Gatherer: req.Gatherer,
	})
	if err != nil {
		return nil, err
	}
	subm.Result = eval.Result
	subm.TestResults = eval.TestResults

	if err := s.subms.Create(ctx, subm); err != nil {
		return nil, fmt.Errorf("store submission: %w", err)
	}
	s.log.Info("submission judged", slog.Int64("subm", subm.ID), slog.String("problem", problem.ID),
		slog.String("lang", spec.Key().String()), slog.String("status", string(subm.Result.Status)))
	return subm, nil
}

type TestRequest struct {
	Code     string
	Language store.LanguageRef
	// Tests are usually a single input and expected output pair.
	Tests []verdict.TestCase
	// Zero limits fall back to the language defaults.
	TimeLimitMs      int64
	MemoryLimitBytes int64
	Gatherer         evaluator.Gatherer
}

// Test judges code against ad hoc test cases. Nothing is stored.
func (s *Service) Test(ctx context.Context, req TestRequest) (*evaluator.Evaluation, error) {
	if req.Code == "" {
		return nil, invalid("code is empty")
	}
	if len(req.Tests) == 0 {
		return nil, invalid("at least one test case is required")
	}
	spec, err := s.langs.Resolve(req.Language.Name, req.Language.Version)
	if err != nil {
		return nil, err
	}
	tests := make([]verdict.TestCase, len(req.Tests))
	seen := mapset.NewThreadUnsafeSet[int64]()
	for i, tc := range req.Tests {
		if tc.ID == 0 {
			tc.ID = int64(i + 1)
		}
		if !seen.Add(tc.ID) {
			return nil, invalid("duplicate test id %d", tc.ID)
		}
		tests[i] = tc
	}
	return s.judge.Judge(ctx, pipeline.Request{
		ID:       uuid.NewString(),
		Spec:     spec,
		Code:     req.Code,
		Tests:    tests,
		Limits:   limitsFor(spec, req.TimeLimitMs, req.MemoryLimitBytes),
		Gatherer: req.Gatherer,
	})
}

func (s *Service) Submission(ctx context.Context, id int64) (*store.Submission, error) {
	return s.subms.Get(ctx, id)
}

func (s *Service) Submissions(ctx context.Context, problemID string) ([]*store.Submission, error) {
	return s.subms.ListByProblem(ctx, problemID)
}

// Rejudge evaluates a stored submission again against its frozen test cases
// and returns the fresh evaluation. The stored record is left untouched.
func (s *Service) Rejudge(ctx context.Context, id int64, gath evaluator.Gatherer) (*evaluator.Evaluation, error) {
	subm, err := s.subms.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	spec, err := s.langs.Resolve(subm.Language.Name, subm.Language.Version)
	if err != nil {
		return nil, err
	}
	var timeMs, memBytes int64
	if problem, err := s.problems.Problem(ctx, subm.ProblemID); err == nil {
		timeMs, memBytes = problem.TimeLimitMs, problem.MemoryLimitBytes
	}
	return s.judge.Judge(ctx, pipeline.Request{
		ID:       "subm-" + strconv.FormatInt(id, 10),
		Spec:     spec,
		Code:     subm.Code,
		Tests:    subm.TestCases,
		Limits:   limitsFor(spec, timeMs, memBytes),
		Gatherer: gath,
	})
}

func limitsFor(spec lang.Spec, timeMs, memoryBytes int64) runner.Limits {
	l := runner.Limits{TimeMs: spec.TimeLimitMs, MemoryBytes: spec.MemoryLimitBytes}
	if timeMs > 0 {
		l.TimeMs = timeMs
	}
	if memoryBytes > 0 {
		l.MemoryBytes = memoryBytes
	}
	return l
}
