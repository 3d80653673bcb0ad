package api

type TestResult struct {
	TestCaseID int64   `json:"test_case_id"`
	Status     string  `json:"status"`
	Message    *string `json:"message,omitempty"`
}

type SubmissionResult struct {
	Status  string  `json:"status"`
	Message *string `json:"message,omitempty"`
}

type Submission struct {
	ID          int64            `json:"id"`
	ProblemID   string           `json:"problem_id"`
	StudentID   string           `json:"student_id,omitempty"`
	Code        string           `json:"code"`
	Language    Language         `json:"language"`
	Result      SubmissionResult `json:"result"`
	TestResults []TestResult     `json:"test_results"`
	TestCases   []TestCase       `json:"test_cases"`
	SubmittedAt string           `json:"submitted_at"`
}

type ErrorCode string

const (
	ErrUnknownLanguage     ErrorCode = "unknown_language"
	ErrUnsupportedLanguage ErrorCode = "unsupported_language"
	ErrInvalidRequest      ErrorCode = "invalid_request"
	ErrProblemNotFound     ErrorCode = "problem_not_found"
	ErrSubmissionNotFound  ErrorCode = "submission_not_found"
	ErrQueueFull           ErrorCode = "queue_full"
	ErrAlreadyJudging      ErrorCode = "already_judging"
	ErrUnavailable         ErrorCode = "unavailable"
	ErrCanceled            ErrorCode = "canceled"
	ErrInternal            ErrorCode = "internal"
)

// Error is a request level failure. Judging outcomes, compile errors
// included, are never errors. Status is the closest HTTP status code.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Retryable bool      `json:"retryable"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

type SubmitResp struct {
	Submission *Submission `json:"submission,omitempty"`
	Error      *Error      `json:"error,omitempty"`
}

type TestResp struct {
	Result      *SubmissionResult `json:"result,omitempty"`
	TestResults []TestResult      `json:"test_results,omitempty"`
	Error       *Error            `json:"error,omitempty"`
}

type SubmissionsResp struct {
	Submissions []Submission `json:"submissions"`
	Error       *Error       `json:"error,omitempty"`
}

type LanguageInfo struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	SourceFile       string `json:"source_file"`
	Compiled         bool   `json:"compiled"`
	TimeLimitMs      int64  `json:"time_limit_ms"`
	MemoryLimitBytes int64  `json:"memory_limit_bytes"`
}

type LanguagesResp struct {
	Languages []LanguageInfo `json:"languages"`
}

// SqsResp answers an SqsReq.
type SqsResp struct {
	ReqID  string      `json:"req_id"`
	Submit *SubmitResp `json:"submit,omitempty"`
	Test   *TestResp   `json:"test,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}
