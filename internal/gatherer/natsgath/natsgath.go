// Package natsgath streams evaluation progress as JSON messages to a NATS
// subject, normally the requester's inbox.
package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/transport"
	"github.com/programme-lv/judge/internal/verdict"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Gatherer implements evaluator.Gatherer. Publish failures are logged and
// never fail the evaluation.
type Gatherer struct {
	nc       Publisher
	inbox    string
	evalUuid string
	log      *slog.Logger
}

// New creates a gatherer that streams messages to inbox.
func New(nc Publisher, evalUuid string, inbox string, log *slog.Logger) *Gatherer {
	if log == nil {
		log = slog.Default()
	}
	return &Gatherer{nc: nc, inbox: inbox, evalUuid: evalUuid, log: log}
}

var _ evaluator.Gatherer = (*Gatherer)(nil)

func (s *Gatherer) send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to marshal stream message", slog.Any("error", err))
		return
	}
	if err := s.nc.Publish(s.inbox, b); err != nil {
		s.log.Warn("failed to publish stream message", slog.String("inbox", s.inbox), slog.Any("error", err))
	}
}

func (s *Gatherer) StartJob(systemInfo string) {
	s.send(api.NewStartJob(s.evalUuid, systemInfo))
}

func (s *Gatherer) StartCompile() {
	s.send(api.NewStartCompile(s.evalUuid))
}

func (s *Gatherer) FinishCompile(out *verdict.Outcome) {
	s.send(api.NewFinishCompile(s.evalUuid, runtimeData(out)))
}

func (s *Gatherer) ReachTest(testId int64, input []byte, answer []byte) {
	s.send(api.NewReachTest(s.evalUuid, testId, trimmedPtr(input), trimmedPtr(answer)))
}

func (s *Gatherer) IgnoreTest(testId int64) {
	s.send(api.NewIgnoreTest(s.evalUuid, testId))
}

func (s *Gatherer) FinishTest(testId int64, out *verdict.Outcome, res verdict.TestResult) {
	s.send(api.NewFinishTest(s.evalUuid, testId, transport.TestResult(res), runtimeData(out)))
}

func (s *Gatherer) InternalError(msg string) {
	s.send(api.NewInternalError(s.evalUuid, msg))
}

func (s *Gatherer) FinishJob(res verdict.SubmissionResult) {
	s.send(api.NewFinishJob(s.evalUuid, transport.SubmissionResult(res)))
}

func trimmedPtr(b []byte) *string {
	s := trimStrToRect(string(b), api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth)
	if s == "" {
		return nil
	}
	return &s
}

func runtimeData(out *verdict.Outcome) *api.RuntimeData {
	if out == nil {
		return nil
	}
	h, w := api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth
	data := &api.RuntimeData{
		Stdout:          trimStrToRect(string(out.Stdout), h, w),
		Stderr:          trimStrToRect(string(out.Stderr), h, w),
		Reason:          string(out.Reason),
		CpuMillis:       out.CpuTimeMs,
		WallMillis:      out.WallTimeMs,
		RamKiBytes:      out.MemoryKiB,
		StdoutTruncated: out.StdoutTruncated,
		StderrTruncated: out.StderrTruncated,
	}
	if out.ExitCode != nil {
		code := int64(*out.ExitCode)
		data.ExitCode = &code
	}
	if out.ExitSignal != nil {
		sig := int64(*out.ExitSignal)
		data.ExitSignal = &sig
	}
	return data
}
