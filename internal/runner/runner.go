// Package runner compiles and executes submissions inside a sandbox box.
// A Runner is bound to one box and is not safe for concurrent use.
package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

type Limits struct {
	TimeMs      int64
	MemoryBytes int64
}

type Config struct {
	CompileTimeMs      int64
	CompileMemoryBytes int64
	MaxOutputBytes     int64
	MaxProcesses       int
}

func DefaultConfig() Config {
	return Config{
		CompileTimeMs:      10_000,
		CompileMemoryBytes: 512 << 20,
		MaxOutputBytes:     1 << 20,
		MaxProcesses:       64,
	}
}

// ExecutionFault is a failure of the isolation layer itself, as opposed to
// misbehaviour of the submitted program.
type ExecutionFault struct {
	Op  string
	Err error
}

func (e *ExecutionFault) Error() string {
	return fmt.Sprintf("execution fault during %s: %v", e.Op, e.Err)
}

func (e *ExecutionFault) Unwrap() error {
	return e.Err
}

func fault(op string, err error) error {
	return &ExecutionFault{Op: op, Err: err}
}

func IsExecutionFault(err error) bool {
	var f *ExecutionFault
	return errors.As(err, &f)
}

type Runner struct {
	box sandbox.Box
	cfg Config
	log *slog.Logger
}

func New(box sandbox.Box, cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{box: box, cfg: cfg, log: log.With(slog.Int("box", box.ID()))}
}

// Execute compiles code when the language needs it and runs it once. A
// failed compile is returned as an outcome with reason CompileFailed.
func (r *Runner) Execute(spec lang.Spec, code, input string, limits Limits) (*verdict.Outcome, error) {
	prog, compileOut, err := r.Compile(spec, code)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return compileOut, nil
	}
	defer prog.Close()
	return prog.Execute(input, limits)
}

func (r *Runner) sandboxLimits(timeMs, memoryBytes int64) sandbox.Limits {
	return sandbox.Limits{
		WallTimeMs:     timeMs,
		CpuTimeMs:      timeMs,
		MemoryKiB:      memoryBytes / 1024,
		MaxProcesses:   r.cfg.MaxProcesses,
		MaxOutputBytes: r.cfg.MaxOutputBytes,
	}
}

// classify maps a raw box result onto a termination reason. A timeout wins
// over a memory kill, which wins over any other signal.
func classify(res *sandbox.Result, timeMs, memoryBytes int64) *verdict.Outcome {
	out := &verdict.Outcome{
		Stdout:           res.Stdout,
		Stderr:           res.Stderr,
		StdoutTruncated:  res.StdoutTruncated,
		StderrTruncated:  res.StderrTruncated,
		ExitCode:         res.ExitCode,
		ExitSignal:       res.ExitSignal,
		WallTimeMs:       res.WallTimeMs,
		CpuTimeMs:        res.CpuTimeMs,
		MemoryKiB:        res.MemoryKiB,
		TimeLimitMs:      timeMs,
		MemoryLimitBytes: memoryBytes,
	}
	switch {
	case res.TimedOut:
		out.Reason = verdict.Timeout
	case res.MemoryExceeded:
		out.Reason = verdict.MemoryExceeded
	case res.ExitSignal != nil:
		out.Reason = verdict.Signaled
	default:
		out.Reason = verdict.Normal
	}
	return out
}

func (r *Runner) reset() error {
	if err := r.box.Reset(); err != nil {
		return fault("box reset", err)
	}
	return nil
}

func fileMode(executable bool) os.FileMode {
	if executable {
		return 0o755
	}
	return 0o644
}
