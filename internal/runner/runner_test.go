package runner_test

import (
	"testing"

	"github.com/programme-lv/judge/internal/runner"
	"github.com/programme-lv/judge/internal/sandbox/sandboxtest"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var limits = runner.Limits{TimeMs: 1000, MemoryBytes: 64 << 20}

func newRunner(t *testing.T) (*runner.Runner, *sandboxtest.Box) {
	t.Helper()
	sb := sandboxtest.Toy()
	box, err := sb.NewBox()
	require.NoError(t, err)
	return runner.New(box, runner.DefaultConfig(), nil), box.(*sandboxtest.Box)
}

func TestExecuteInterpreted(t *testing.T) {
	r, _ := newRunner(t)
	out, err := r.Execute(sandboxtest.ToyScript, "echo", "hello", limits)
	require.NoError(t, err)
	assert.Equal(t, verdict.Normal, out.Reason)
	assert.Equal(t, "hello", string(out.Stdout))
	assert.False(t, out.Abnormal())
}

func TestExecuteClassifiesTermination(t *testing.T) {
	tests := []struct {
		code   string
		reason verdict.TerminationReason
	}{
		{"loop", verdict.Timeout},
		{"oom", verdict.MemoryExceeded},
		{"segv", verdict.Signaled},
		{"exit 1", verdict.Normal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r, _ := newRunner(t)
			out, err := r.Execute(sandboxtest.ToyScript, tt.code, "", limits)
			require.NoError(t, err)
			assert.Equal(t, tt.reason, out.Reason)
			assert.True(t, out.Abnormal())
			assert.Equal(t, limits.TimeMs, out.TimeLimitMs)
		})
	}
}

func TestCompileOnceRunMany(t *testing.T) {
	r, box := newRunner(t)
	prog, out, err := r.Compile(sandboxtest.ToyCompiled, "echo")
	require.NoError(t, err)
	require.NotNil(t, prog)
	assert.Equal(t, verdict.Normal, out.Reason)

	for _, in := range []string{"a", "b", "c"} {
		res, err := prog.Execute(in, limits)
		require.NoError(t, err)
		assert.Equal(t, in, string(res.Stdout))
	}
	require.NoError(t, prog.Close())

	compiles := 0
	for _, argv := range box.Runs {
		if argv[0] == "toycc" {
			compiles++
		}
	}
	assert.Equal(t, 1, compiles)
	assert.Len(t, box.Runs, 4)

	_, err = prog.Execute("d", limits)
	assert.Error(t, err)
}

func TestCompileFailure(t *testing.T) {
	r, _ := newRunner(t)
	prog, out, err := r.Compile(sandboxtest.ToyCompiled, "syntax error here")
	require.NoError(t, err)
	assert.Nil(t, prog)
	require.NotNil(t, out)
	assert.Equal(t, verdict.CompileFailed, out.Reason)
	assert.Contains(t, string(out.Stderr), "syntax error")

	out, err = r.Execute(sandboxtest.ToyCompiled, "syntax error", "", limits)
	require.NoError(t, err)
	assert.Equal(t, verdict.CompileFailed, out.Reason)
}

func TestCompileStrictStderr(t *testing.T) {
	r, _ := newRunner(t)
	lenient := sandboxtest.ToyCompiled
	prog, _, err := r.Compile(lenient, "warn echo")
	require.NoError(t, err)
	require.NotNil(t, prog)

	strict := sandboxtest.ToyCompiled
	strict.StrictCompileStderr = true
	prog, out, err := r.Compile(strict, "warn echo")
	require.NoError(t, err)
	assert.Nil(t, prog)
	assert.Equal(t, verdict.CompileFailed, out.Reason)
}

func TestMissingArtifactIsCompileFailure(t *testing.T) {
	r, _ := newRunner(t)
	spec := sandboxtest.ToyCompiled
	spec.CompileCmd = "toycc -o elsewhere {src}"
	spec.CompiledFile = "other"
	prog, out, err := r.Compile(spec, "echo")
	require.NoError(t, err)
	assert.Nil(t, prog)
	assert.Contains(t, string(out.Stderr), "other was not produced")
}

func TestExecutionFault(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Execute(sandboxtest.ToyScript, "fault", "", limits)
	require.Error(t, err)
	assert.True(t, runner.IsExecutionFault(err))
	assert.ErrorIs(t, err, sandboxtest.ErrToyFault)
}

func TestEachRunStartsWithCleanBox(t *testing.T) {
	r, _ := newRunner(t)
	prog, _, err := r.Compile(sandboxtest.ToyScript, "marker left.txt")
	require.NoError(t, err)

	first, err := prog.Execute("", limits)
	require.NoError(t, err)
	second, err := prog.Execute("", limits)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(first.Stdout))
	assert.Equal(t, "\n", string(second.Stdout))
}
