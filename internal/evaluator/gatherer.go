package evaluator

import "github.com/programme-lv/judge/internal/verdict"

// Gatherer receives progress events of one evaluation, in order.
//
//go:generate mockgen -source=gatherer.go -destination=mocks/gatherer.go -package=mocks
type Gatherer interface {
	StartJob(systemInfo string)

	StartCompile()
	FinishCompile(out *verdict.Outcome)

	ReachTest(testID int64, input []byte, answer []byte)
	IgnoreTest(testID int64)
	FinishTest(testID int64, out *verdict.Outcome, res verdict.TestResult)

	InternalError(msg string)
	FinishJob(res verdict.SubmissionResult)
}

type NopGatherer struct{}

func (NopGatherer) StartJob(string)                                        {}
func (NopGatherer) StartCompile()                                          {}
func (NopGatherer) FinishCompile(*verdict.Outcome)                         {}
func (NopGatherer) ReachTest(int64, []byte, []byte)                        {}
func (NopGatherer) IgnoreTest(int64)                                       {}
func (NopGatherer) FinishTest(int64, *verdict.Outcome, verdict.TestResult) {}
func (NopGatherer) InternalError(string)                                   {}
func (NopGatherer) FinishJob(verdict.SubmissionResult)                     {}

// Multi fans events out to several gatherers.
type Multi []Gatherer

func (m Multi) StartJob(systemInfo string) {
	for _, g := range m {
		g.StartJob(systemInfo)
	}
}

func (m Multi) StartCompile() {
	for _, g := range m {
		g.StartCompile()
	}
}

func (m Multi) FinishCompile(out *verdict.Outcome) {
	for _, g := range m {
		g.FinishCompile(out)
	}
}

func (m Multi) ReachTest(testID int64, input []byte, answer []byte) {
	for _, g := range m {
		g.ReachTest(testID, input, answer)
	}
}

func (m Multi) IgnoreTest(testID int64) {
	for _, g := range m {
		g.IgnoreTest(testID)
	}
}

func (m Multi) FinishTest(testID int64, out *verdict.Outcome, res verdict.TestResult) {
	for _, g := range m {
		g.FinishTest(testID, out, res)
	}
}

func (m Multi) InternalError(msg string) {
	for _, g := range m {
		g.InternalError(msg)
	}
}

func (m Multi) FinishJob(res verdict.SubmissionResult) {
	for _, g := range m {
		g.FinishJob(res)
	}
}
