package api

import "time"

// MsgType is a message type for streaming responses
type MsgType string

// Message types, one per Gatherer event
const (
	StartJobMsg      MsgType = "job_start"
	StartCompileMsg  MsgType = "compile_start"
	FinishCompileMsg MsgType = "compile_finish"
	ReachTestMsg     MsgType = "test_reach"
	IgnoreTestMsg    MsgType = "test_ignore"
	FinishTestMsg    MsgType = "test_finish"
	InternalErrorMsg MsgType = "internal_error"
	FinishJobMsg     MsgType = "job_finish"
)

// Stream output is trimmed to this many lines of this many characters
const (
	MaxRuntimeDataHeight = 40
	MaxRuntimeDataWidth  = 80
)

// Header is the common header for all streaming messages
type Header struct {
	EvalUuid string  `json:"eval_uuid"`
	MsgType  MsgType `json:"msg_type"`
}

// StartJob is sent once a worker picks up the evaluation
type StartJob struct {
	Header
	SystemInfo  string `json:"system_info"`
	StartedTime string `json:"started_time"`
}

// StartCompile is sent before compiling, never for interpreted languages
type StartCompile struct {
	Header
}

// FinishCompile carries the compiler's output and usage
type FinishCompile struct {
	Header
	RuntimeData *RuntimeData `json:"runtime_data"`
}

// ReachTest is sent before a test case runs
type ReachTest struct {
	Header
	TestId int64   `json:"test_id"`
	Input  *string `json:"input"`
	Answer *string `json:"answer"`
}

// IgnoreTest is sent for a test case that will not run
type IgnoreTest struct {
	Header
	TestId int64 `json:"test_id"`
}

// FinishTest carries the outcome of one test case
type FinishTest struct {
	Header
	TestId      int64        `json:"test_id"`
	Result      TestResult   `json:"result"`
	RuntimeData *RuntimeData `json:"runtime_data"`
}

// InternalError reports a judge fault, not a fault of the submission
type InternalError struct {
	Header
	Message string `json:"message"`
}

// FinishJob is the last message of every evaluation
type FinishJob struct {
	Header
	Result SubmissionResult `json:"result"`
}

// NewHeader builds the header shared by every stream message
func NewHeader(evalUuid string, msgType MsgType) Header {
	return Header{
		EvalUuid: evalUuid,
		MsgType:  msgType,
	}
}

// NewStartJob stamps the message with the current time
func NewStartJob(evalUuid, systemInfo string) StartJob {
	return StartJob{
		Header:      NewHeader(evalUuid, StartJobMsg),
		SystemInfo:  systemInfo,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

// NewStartCompile creates a compile_start message
func NewStartCompile(evalUuid string) StartCompile {
	return StartCompile{Header: NewHeader(evalUuid, StartCompileMsg)}
}

// NewFinishCompile creates a compile_finish message
func NewFinishCompile(evalUuid string, runtimeData *RuntimeData) FinishCompile {
	return FinishCompile{
		Header:      NewHeader(evalUuid, FinishCompileMsg),
		RuntimeData: runtimeData,
	}
}

// NewReachTest creates a test_reach message, input and answer already trimmed
func NewReachTest(evalUuid string, testId int64, input, answer *string) ReachTest {
	return ReachTest{
		Header: NewHeader(evalUuid, ReachTestMsg),
		TestId: testId,
		Input:  input,
		Answer: answer,
	}
}

// NewIgnoreTest creates a test_ignore message
func NewIgnoreTest(evalUuid string, testId int64) IgnoreTest {
	return IgnoreTest{
		Header: NewHeader(evalUuid, IgnoreTestMsg),
		TestId: testId,
	}
}

// NewFinishTest creates a test_finish message
func NewFinishTest(evalUuid string, testId int64, result TestResult, runtimeData *RuntimeData) FinishTest {
	return FinishTest{
		Header:      NewHeader(evalUuid, FinishTestMsg),
		TestId:      testId,
		Result:      result,
		RuntimeData: runtimeData,
	}
}

// NewInternalError creates an internal_error message
func NewInternalError(evalUuid string, msg string) InternalError {
	return InternalError{
		Header:  NewHeader(evalUuid, InternalErrorMsg),
		Message: msg,
	}
}

// NewFinishJob creates a job_finish message
func NewFinishJob(evalUuid string, result SubmissionResult) FinishJob {
	return FinishJob{
		Header: NewHeader(evalUuid, FinishJobMsg),
		Result: result,
	}
}
