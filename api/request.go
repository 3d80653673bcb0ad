package api

type Language struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type TestCase struct {
	ID     int64  `json:"id,omitempty"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// SubmitReq judges code against every test case of a stored problem.
type SubmitReq struct {
	ProblemID string   `json:"problem_id"`
	StudentID string   `json:"student_id,omitempty"`
	Code      string   `json:"code"`
	Language  Language `json:"language"`

	// StreamInbox receives progress messages (see stream.go) when set.
	StreamInbox string `json:"stream_inbox,omitempty"`
}

// TestReq judges code against ad hoc test cases. Either Input and
// ExpectedOutput or Tests must be given.
type TestReq struct {
	Code     string   `json:"code"`
	Language Language `json:"language"`

	Input          *string    `json:"input,omitempty"`
	ExpectedOutput *string    `json:"expected_output,omitempty"`
	Tests          []TestCase `json:"tests,omitempty"`

	TimeLimitMs      int64 `json:"time_limit_ms,omitempty"`
	MemoryLimitBytes int64 `json:"memory_limit_bytes,omitempty"`

	StreamInbox string `json:"stream_inbox,omitempty"`
}

type GetSubmissionReq struct {
	ID int64 `json:"id"`
}

// RejudgeReq judges a stored submission again. The answer is a TestResp and
// the stored record does not change.
type RejudgeReq struct {
	ID          int64  `json:"id"`
	StreamInbox string `json:"stream_inbox,omitempty"`
}

type ListSubmissionsReq struct {
	ProblemID string `json:"problem_id"`
}

// SqsReq is the envelope of requests arriving over SQS. Exactly one of
// Submit and Test is set.
type SqsReq struct {
	ReqID  string     `json:"req_id"`
	Submit *SubmitReq `json:"submit,omitempty"`
	Test   *TestReq   `json:"test,omitempty"`
	// ResSqsUrl overrides the queue the response is sent to.
	ResSqsUrl string `json:"res_sqs_url,omitempty"`
}
