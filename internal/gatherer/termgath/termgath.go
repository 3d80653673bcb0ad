// Package termgath prints evaluation progress for a human at a terminal.
package termgath

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/judge/internal/verdict"
)

var (
	header = color.New(color.Bold)
	good   = color.New(color.FgGreen)
	bad    = color.New(color.FgRed)
	faint  = color.New(color.Faint)
)

type TerminalGatherer struct {
	w         io.Writer
	startedAt time.Time
	// Verbose also prints the output of every test.
	Verbose bool
}

// New writes to w, or to stdout when w is nil.
func New(w io.Writer) *TerminalGatherer {
	if w == nil {
		w = os.Stdout
	}
	return &TerminalGatherer{w: w, startedAt: time.Now()}
}

func (t *TerminalGatherer) StartJob(systemInfo string) {
	t.startedAt = time.Now()
	header.Fprintln(t.w, "== Evaluation started ==")
	if systemInfo != "" {
		faint.Fprintln(t.w, systemInfo)
	}
}

func (t *TerminalGatherer) StartCompile() {
	fmt.Fprintln(t.w, "-- Compilation started --")
}

func (t *TerminalGatherer) FinishCompile(out *verdict.Outcome) {
	fmt.Fprintln(t.w, "-- Compilation finished --")
	if out == nil {
		return
	}
	t.usage("", out)
	if out.Reason == verdict.CompileFailed {
		bad.Fprintln(t.w, "compilation failed")
	}
	if len(out.Stderr) > 0 {
		fmt.Fprintf(t.w, "stderr:\n%s\n", out.Stderr)
	}
}

func (t *TerminalGatherer) ReachTest(testID int64, input []byte, answer []byte) {
	fmt.Fprintf(t.w, "-> Test %d reached\n", testID)
}

func (t *TerminalGatherer) IgnoreTest(testID int64) {
	faint.Fprintf(t.w, "-> Test %d ignored\n", testID)
}

func (t *TerminalGatherer) FinishTest(testID int64, out *verdict.Outcome, res verdict.TestResult) {
	c := good
	if res.Status != verdict.Passed {
		c = bad
	}
	c.Fprintf(t.w, "<- Test %d %s", testID, res.Status)
	if res.Message != nil {
		fmt.Fprintf(t.w, ": %s", *res.Message)
	}
	fmt.Fprintln(t.w)
	if out == nil {
		return
	}
	t.usage("  ", out)
	if t.Verbose {
		fmt.Fprintf(t.w, "  stdout:\n%s\n", out.Stdout)
		if len(out.Stderr) > 0 {
			fmt.Fprintf(t.w, "  stderr:\n%s\n", out.Stderr)
		}
	}
}

func (t *TerminalGatherer) usage(indent string, out *verdict.Outcome) {
	exit := "-"
	if out.ExitCode != nil {
		exit = fmt.Sprint(*out.ExitCode)
	}
	faint.Fprintf(t.w, "%sreason=%s exit=%s cpu=%dms wall=%dms mem=%dKiB\n", indent,
		out.Reason, exit, out.CpuTimeMs, out.WallTimeMs, out.MemoryKiB)
}

func (t *TerminalGatherer) InternalError(msg string) {
	bad.Fprintf(t.w, "== Internal error: %s ==\n", msg)
}

func (t *TerminalGatherer) FinishJob(res verdict.SubmissionResult) {
	c := good
	if res.Status != verdict.Accepted {
		c = bad
	}
	c.Fprintf(t.w, "== %s ==\n", res.Status)
	if res.Message != nil {
		fmt.Fprintln(t.w, *res.Message)
	}
	dur := time.Since(t.startedAt).Round(time.Millisecond)
	faint.Fprintf(t.w, "evaluation finished in %s\n", dur)
}
