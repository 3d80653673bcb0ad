// Package evaluator judges one submission: it compiles the code once, runs
// every test case in order and folds the outcomes into a verdict.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/runner"
	"github.com/programme-lv/judge/internal/verdict"
)

const internalErrorMsg = "internal error"

type Evaluation struct {
	TestResults []verdict.TestResult
	Result      verdict.SubmissionResult
}

type Evaluator struct {
	runner     *runner.Runner
	systemInfo string
	log        *slog.Logger
}

func New(r *runner.Runner, systemInfo string, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{runner: r, systemInfo: systemInfo, log: log}
}

// Evaluate judges code against tests. Cancellation of ctx is only observed
// between test cases; a started test always runs to completion. On
// cancellation the results gathered so far are returned with ctx's error.
func (e *Evaluator) Evaluate(ctx context.Context, spec lang.Spec, code string,
	tests []verdict.TestCase, limits runner.Limits, gath Gatherer) (*Evaluation, error) {

	if gath == nil {
		gath = NopGatherer{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gath.StartJob(e.systemInfo)

	if spec.Kind() == lang.Compiled {
		gath.StartCompile()
	}
	prog, compileOut, err := e.runner.Compile(spec, code)
	if err != nil {
		return e.abort(tests, 0, err, gath), nil
	}
	if spec.Kind() == lang.Compiled {
		gath.FinishCompile(compileOut)
	}
	if prog == nil {
		res := verdict.CompileErrorResult(compileOut)
		gath.FinishJob(res)
		return &Evaluation{TestResults: []verdict.TestResult{}, Result: res}, nil
	}
	defer func() {
		if err := prog.Close(); err != nil {
			e.log.Warn("failed to clean up program", slog.Any("error", err))
		}
	}()

	eval := &Evaluation{TestResults: make([]verdict.TestResult, 0, len(tests))}
	abnormalMsg := ""
	for i, tc := range tests {
		if err := ctx.Err(); err != nil {
			for _, rest := range tests[i:] {
				gath.IgnoreTest(rest.ID)
			}
			return eval, err
		}

		gath.ReachTest(tc.ID, []byte(tc.Input), []byte(tc.Output))
		out, err := prog.Execute(tc.Input, limits)
		if err != nil {
			partial := e.abort(tests, i, err, gath)
			partial.TestResults = append(eval.TestResults, partial.TestResults...)
			return partial, nil
		}

		res := verdict.Judge(tc, out)
		gath.FinishTest(tc.ID, out, res)
		eval.TestResults = append(eval.TestResults, res)
		if out.Abnormal() && abnormalMsg == "" {
			abnormalMsg = fmt.Sprintf("test %d: %s", tc.ID, out.Describe())
		}
	}

	eval.Result = verdict.Aggregate(eval.TestResults, abnormalMsg != "", abnormalMsg)
	gath.FinishJob(eval.Result)
	return eval, nil
}

// abort reports a sandbox fault. Tests from index from onwards are marked
// failed without being run and the submission becomes a RuntimeError.
func (e *Evaluator) abort(tests []verdict.TestCase, from int, cause error,
	gath Gatherer) *Evaluation {

	e.log.Error("execution fault", slog.Any("error", cause))
	gath.InternalError(cause.Error())

	eval := &Evaluation{TestResults: make([]verdict.TestResult, 0, len(tests)-from)}
	msg := internalErrorMsg
	for _, tc := range tests[from:] {
		gath.IgnoreTest(tc.ID)
		eval.TestResults = append(eval.TestResults, verdict.TestResult{
			TestCaseID: tc.ID,
			Status:     verdict.Failed,
			Message:    &msg,
		})
	}
	eval.Result = verdict.SubmissionResult{Status: verdict.RuntimeError, Message: &msg}
	gath.FinishJob(eval.Result)
	return eval
}
