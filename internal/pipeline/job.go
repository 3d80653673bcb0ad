package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/programme-lv/judge/internal/evaluator"
)

const (
	stateQueued int32 = iota
	stateRunning
	stateCanceled
	stateDone
)

type jobResult struct {
	eval *evaluator.Evaluation
	err  error
}

type job struct {
	ctx   context.Context
	seq   uint64
	req   Request
	state atomic.Int32
	done  chan jobResult
}

func newJob(ctx context.Context, seq uint64, req Request) *job {
	return &job{ctx: ctx, seq: seq, req: req, done: make(chan jobResult, 1)}
}

func (j *job) finish(eval *evaluator.Evaluation, err error) {
	j.done <- jobResult{eval: eval, err: err}
}
