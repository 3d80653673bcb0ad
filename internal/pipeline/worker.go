package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/runner"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

type worker struct {
	id   int
	p    *Pipeline
	box  sandbox.Box
	eval *evaluator.Evaluator
	log  *slog.Logger
}

func (p *Pipeline) newWorker(id int, box sandbox.Box) *worker {
	log := p.log.With(slog.Int("worker", id), slog.Int("box", box.ID()))
	info := fmt.Sprintf("%s worker %d", p.cfg.SystemInfo, id)
	return &worker{
		id:   id,
		p:    p,
		box:  box,
		eval: evaluator.New(runner.New(box, p.cfg.Runner, log), info, log),
		log:  log,
	}
}

func (w *worker) loop(ctx context.Context) error {
	for ctx.Err() == nil {
		if j := w.p.next(); j != nil {
			w.handle(j)
			continue
		}
		select {
		case <-ctx.Done():
		case <-w.p.ready:
		}
	}
	return nil
}

// handle runs a job next has already marked running.
func (w *worker) handle(j *job) {
	log := w.log.With(slog.String("subm", j.req.ID))
	log.Debug("judging", slog.String("lang", j.req.Spec.Key().String()), slog.Int("tests", len(j.req.Tests)))

	eval, err := w.judge(j)
	if err := w.box.Reset(); err != nil {
		log.Error("failed to wipe box", slog.Any("error", err))
	}
	j.state.Store(stateDone)
	w.p.release(j)
	if eval != nil {
		log.Debug("judged", slog.String("status", string(eval.Result.Status)))
	}
	j.finish(eval, err)
}

func (w *worker) judge(j *job) (eval *evaluator.Evaluation, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("panic while judging", slog.String("subm", j.req.ID),
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			eval, err = internalError(j.req.Tests), nil
		}
	}()
	return w.eval.Evaluate(j.ctx, j.req.Spec, j.req.Code, j.req.Tests, j.req.Limits, j.req.Gatherer)
}

func internalError(tests []verdict.TestCase) *evaluator.Evaluation {
	msg := "internal error"
	eval := &evaluator.Evaluation{
		TestResults: make([]verdict.TestResult, 0, len(tests)),
		Result:      verdict.SubmissionResult{Status: verdict.RuntimeError, Message: &msg},
	}
	for _, tc := range tests {
		eval.TestResults = append(eval.TestResults, verdict.TestResult{
			TestCaseID: tc.ID,
			Status:     verdict.Failed,
			Message:    &msg,
		})
	}
	return eval
}
