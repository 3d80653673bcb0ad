package verdict

import "fmt"

type TerminationReason string

const (
	Normal         TerminationReason = "Normal"
	Timeout        TerminationReason = "Timeout"
	MemoryExceeded TerminationReason = "MemoryExceeded"
	Signaled       TerminationReason = "Signaled"
	CompileFailed  TerminationReason = "CompileFailed"
)

// Outcome is what a single sandboxed run produced. It lives only until the
// evaluator has turned it into a TestResult.
type Outcome struct {
	Stdout []byte
	Stderr []byte

	StdoutTruncated bool
	StderrTruncated bool

	ExitCode   *int
	ExitSignal *int

	WallTimeMs int64
	CpuTimeMs  int64
	MemoryKiB  int64

	Reason TerminationReason

	TimeLimitMs      int64
	MemoryLimitBytes int64
}

// Abnormal reports a run that did not terminate cleanly: any non-Normal
// reason, or a normal termination with a non-zero exit code.
func (o *Outcome) Abnormal() bool {
	if o.Reason != Normal {
		return true
	}
	return o.ExitCode == nil || *o.ExitCode != 0
}

func (o *Outcome) Describe() string {
	switch o.Reason {
	case Timeout:
		if o.TimeLimitMs > 0 {
			return fmt.Sprintf("Timeout: time limit of %d ms exceeded", o.TimeLimitMs)
		}
		return "Timeout"
	case MemoryExceeded:
		if o.MemoryLimitBytes > 0 {
			return fmt.Sprintf("MemoryExceeded: memory limit of %d bytes exceeded", o.MemoryLimitBytes)
		}
		return "MemoryExceeded"
	case Signaled:
		if o.ExitSignal != nil {
			return fmt.Sprintf("Signaled: killed by signal %d", *o.ExitSignal)
		}
		return "Signaled"
	case CompileFailed:
		if o.ExitCode != nil {
			return fmt.Sprintf("CompileFailed: compiler exited with code %d", *o.ExitCode)
		}
		return "CompileFailed"
	}
	if o.ExitCode == nil {
		return "RuntimeError: exit status unknown"
	}
	if *o.ExitCode != 0 {
		return fmt.Sprintf("RuntimeError: exit code %d", *o.ExitCode)
	}
	return "Normal"
}
