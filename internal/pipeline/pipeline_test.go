package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/runner"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/sandbox/sandboxtest"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var limits = runner.Limits{TimeMs: 1000, MemoryBytes: 64 << 20}

// blocking is a language whose programs wait until released.
var blocking = lang.Spec{Name: "block", Version: "1", SourceFile: "main.b", RunCmd: "block {src}"}

type gate struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
}

func withGate(sb *sandboxtest.Sandbox) *gate {
	g := &gate{started: make(chan struct{}, 16), release: make(chan struct{})}
	sb.Handle("block", func(c *sandboxtest.Call) (*sandbox.Result, error) {
		g.runs.Add(1)
		g.started <- struct{}{}
		<-g.release
		return sandboxtest.Exit(0, "done\n", ""), nil
	})
	return g
}

func start(t *testing.T, sb sandbox.Sandbox, workers, queue int) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New(sb, pipeline.Config{Workers: workers, QueueSize: queue}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func one(in, out string) []verdict.TestCase {
	return []verdict.TestCase{{ID: 1, Input: in, Output: out}}
}

func TestManySubmissionsFewWorkers(t *testing.T) {
	p := start(t, sandboxtest.Toy(), 2, 32)

	const k = 12
	var wg sync.WaitGroup
	errs := make([]error, k)
	statuses := make([]verdict.SubmissionStatus, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			expected := fmt.Sprint(i)
			if i%3 == 0 {
				expected = "wrong"
			}
			eval, err := p.Judge(context.Background(), pipeline.Request{
				ID:     fmt.Sprintf("s%d", i),
				Spec:   sandboxtest.ToyCompiled,
				Code:   "echo",
				Tests:  one(fmt.Sprint(i), expected),
				Limits: limits,
			})
			errs[i] = err
			if err == nil {
				statuses[i] = eval.Result.Status
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < k; i++ {
		require.NoError(t, errs[i])
		if i%3 == 0 {
			assert.Equal(t, verdict.WrongAnswer, statuses[i], "submission %d", i)
		} else {
			assert.Equal(t, verdict.Accepted, statuses[i], "submission %d", i)
		}
	}
	assert.Equal(t, pipeline.Stats{Workers: 2}, p.Stats())
}

func TestSubmissionsDoNotSeeEachOthersFiles(t *testing.T) {
	p := start(t, sandboxtest.Toy(), 1, 8)

	for _, marker := range []string{"a.txt", "b.txt"} {
		eval, err := p.Judge(context.Background(), pipeline.Request{
			Spec:   sandboxtest.ToyScript,
			Code:   "marker " + marker,
			Tests:  one("", ""),
			Limits: limits,
		})
		require.NoError(t, err)
		assert.Equal(t, verdict.Accepted, eval.Result.Status, "%s saw a leftover file", marker)
	}
}

func TestQueueFull(t *testing.T) {
	sb := sandboxtest.New()
	g := withGate(sb)
	p := start(t, sb, 1, 1)

	req := pipeline.Request{Spec: blocking, Code: "x", Tests: one("", "done"), Limits: limits}
	results := make(chan error, 2)
	go func() {
		_, err := p.Judge(context.Background(), req)
		results <- err
	}()
	<-g.started

	go func() {
		_, err := p.Judge(context.Background(), req)
		results <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Queued == 1 }, time.Second, 5*time.Millisecond)

	_, err := p.Judge(context.Background(), req)
	assert.ErrorIs(t, err, pipeline.ErrQueueFull)

	close(g.release)
	assert.NoError(t, <-results)
	assert.NoError(t, <-results)
}

// Requests cancelled while queued must give their admission slots back.
func TestCancelledRequestsFreeQueueSlots(t *testing.T) {
	sb := sandboxtest.New()
	g := withGate(sb)
	p := start(t, sb, 1, 2)

	req := pipeline.Request{Spec: blocking, Code: "x", Tests: one("", "done"), Limits: limits}
	results := make(chan error, 3)
	go func() {
		_, err := p.Judge(context.Background(), req)
		results <- err
	}()
	<-g.started

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := p.Judge(ctx, req)
			cancelled <- err
		}()
	}
	require.Eventually(t, func() bool { return p.Stats().Queued == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-cancelled, context.Canceled)
	assert.ErrorIs(t, <-cancelled, context.Canceled)
	assert.Equal(t, 0, p.Stats().Queued)

	for i := 0; i < 2; i++ {
		go func() {
			_, err := p.Judge(context.Background(), req)
			results <- err
		}()
	}
	require.Eventually(t, func() bool { return p.Stats().Queued == 2 }, time.Second, 5*time.Millisecond)

	_, err := p.Judge(context.Background(), req)
	assert.ErrorIs(t, err, pipeline.ErrQueueFull)

	close(g.release)
	for i := 0; i < 3; i++ {
		assert.NoError(t, <-results)
	}
	assert.Equal(t, int32(3), g.runs.Load())
}

func TestCancelQueued(t *testing.T) {
	sb := sandboxtest.New()
	g := withGate(sb)
	p := start(t, sb, 1, 4)

	req := pipeline.Request{Spec: blocking, Code: "x", Tests: one("", "done"), Limits: limits}
	first := make(chan error, 1)
	go func() {
		_, err := p.Judge(context.Background(), req)
		first <- err
	}()
	<-g.started

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := p.Judge(ctx, req)
		second <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Queued == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-second, context.Canceled)

	close(g.release)
	require.NoError(t, <-first)

	// the cancelled request never reaches a box
	_, err := p.Judge(context.Background(), pipeline.Request{Spec: sandboxtest.ToyScript, Code: "echo", Tests: one("", ""), Limits: limits})
	require.NoError(t, err)
	assert.Equal(t, int32(1), g.runs.Load())
}

func TestCancelWhileRunningFinishesCurrentTest(t *testing.T) {
	sb := sandboxtest.New()
	g := withGate(sb)
	p := start(t, sb, 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	tests := []verdict.TestCase{{ID: 1, Output: "done"}, {ID: 2, Output: "done"}}
	res := make(chan error, 1)
	var evalLen atomic.Int32
	go func() {
		eval, err := p.Judge(ctx, pipeline.Request{Spec: blocking, Code: "x", Tests: tests, Limits: limits})
		if eval != nil {
			evalLen.Store(int32(len(eval.TestResults)))
		}
		res <- err
	}()
	<-g.started
	cancel()
	close(g.release)

	assert.ErrorIs(t, <-res, context.Canceled)
	assert.Equal(t, int32(1), evalLen.Load())
	assert.Equal(t, int32(1), g.runs.Load())
}

func TestAlreadyJudging(t *testing.T) {
	sb := sandboxtest.New()
	g := withGate(sb)
	p := start(t, sb, 2, 4)

	req := pipeline.Request{ID: "42", Spec: blocking, Code: "x", Tests: one("", "done"), Limits: limits}
	first := make(chan error, 1)
	go func() {
		_, err := p.Judge(context.Background(), req)
		first <- err
	}()
	<-g.started

	_, err := p.Judge(context.Background(), req)
	assert.ErrorIs(t, err, pipeline.ErrAlreadyJudging)

	close(g.release)
	require.NoError(t, <-first)

	_, err = p.Judge(context.Background(), req)
	assert.NoError(t, err)
}

func TestPanicIsContained(t *testing.T) {
	p := start(t, sandboxtest.Toy(), 1, 4)

	eval, err := p.Judge(context.Background(), pipeline.Request{
		Spec: sandboxtest.ToyScript, Code: "panic", Tests: one("", ""), Limits: limits,
	})
	require.NoError(t, err)
	assert.Equal(t, verdict.RuntimeError, eval.Result.Status)
	require.NotNil(t, eval.Result.Message)
	assert.Equal(t, "internal error", *eval.Result.Message)
	require.Len(t, eval.TestResults, 1)

	eval, err = p.Judge(context.Background(), pipeline.Request{
		Spec: sandboxtest.ToyScript, Code: "echo", Tests: one("ok", "ok"), Limits: limits,
	})
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, eval.Result.Status)
}

func TestClosed(t *testing.T) {
	p := pipeline.New(sandboxtest.Toy(), pipeline.Config{Workers: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	_, err := p.Judge(context.Background(), pipeline.Request{Spec: sandboxtest.ToyScript, Code: "echo", Tests: one("", "")})
	assert.ErrorIs(t, err, pipeline.ErrClosed)
}
