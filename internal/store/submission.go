package store

import (
	"context"
	"time"

	"github.com/programme-lv/judge/internal/verdict"
)

// Submission is a judged submission. TestCases is the snapshot the
// submission was judged against, so later problem edits do not change how
// it is displayed.
type Submission struct {
	ID          int64                    `json:"id"`
	ProblemID   string                   `json:"problem_id"`
	StudentID   string                   `json:"student_id,omitempty"`
	Code        string                   `json:"code"`
	Language    LanguageRef              `json:"language"`
	Result      verdict.SubmissionResult `json:"result"`
	TestResults []verdict.TestResult     `json:"test_results"`
	TestCases   []verdict.TestCase       `json:"test_cases"`
	SubmittedAt time.Time                `json:"submitted_at"`
}

type SubmissionStore interface {
	// Create assigns the next id to s and stores it.
	Create(ctx context.Context, s *Submission) error
	Get(ctx context.Context, id int64) (*Submission, error)
	// ListByProblem returns the problem's submissions in id order.
	ListByProblem(ctx context.Context, problemID string) ([]*Submission, error)
}
