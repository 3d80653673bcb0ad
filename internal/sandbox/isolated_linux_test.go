//go:build linux

package sandbox_test

import (
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIsolatedSandbox skips when the host does not allow unprivileged
// user namespaces, as in many containers.
func newIsolatedSandbox(t *testing.T) sandbox.Sandbox {
	t.Helper()
	sb, err := sandbox.NewLocal(sandbox.LocalConfig{Root: t.TempDir()}, nil)
	require.NoError(t, err)
	box, err := sb.NewBox()
	require.NoError(t, err)
	defer box.Close()
	if _, err := box.Run([]string{"/bin/true"}, nil, defaultLimits()); err != nil {
		t.Skipf("namespaces unavailable: %v", err)
	}
	return sb
}

func newIsolatedBox(t *testing.T, sb sandbox.Sandbox) sandbox.Box {
	t.Helper()
	box, err := sb.NewBox()
	require.NoError(t, err)
	t.Cleanup(func() { _ = box.Close() })
	return box
}

func TestIsolatedRunEcho(t *testing.T) {
	box := newIsolatedBox(t, newIsolatedSandbox(t))
	require.NoError(t, box.AddFile("main.sh", []byte("read x\necho \"got $x\"\npwd\n"), 0o644))

	res, err := box.Run([]string{"/bin/sh", "main.sh"}, []byte("hello\n"), defaultLimits())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode, string(res.Stderr))
	assert.Equal(t, "got hello\n/box\n", string(res.Stdout))
}

func TestIsolatedRunWritesStayInBox(t *testing.T) {
	box := newIsolatedBox(t, newIsolatedSandbox(t))
	res, err := box.Run([]string{"/bin/sh", "-c", "echo out > result.txt"}, nil, defaultLimits())
	require.NoError(t, err)
	require.Equal(t, 0, *res.ExitCode, string(res.Stderr))

	data, err := box.ReadFile("result.txt")
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(data))

	res, err = box.Run([]string{"/bin/sh", "-c", "touch /usr/planted"}, nil, defaultLimits())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	assert.NotEqual(t, 0, *res.ExitCode)
}

func TestIsolatedRunMissingProgram(t *testing.T) {
	box := newIsolatedBox(t, newIsolatedSandbox(t))
	res, err := box.Run([]string{"./does-not-exist"}, nil, defaultLimits())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 127, *res.ExitCode)
}

func TestIsolatedRunWallTimeout(t *testing.T) {
	box := newIsolatedBox(t, newIsolatedSandbox(t))
	limits := defaultLimits()
	limits.WallTimeMs = 300

	res, err := box.Run([]string{"/bin/sh", "-c", "sleep 30 & wait"}, nil, limits)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Less(t, res.WallTimeMs, int64(3000))
}

func TestIsolatedBoxCannotReadConcurrentBox(t *testing.T) {
	sb := newIsolatedSandbox(t)
	alpha := newIsolatedBox(t, sb)
	beta := newIsolatedBox(t, sb)
	alphaDir := alpha.(interface{ Path() string }).Path()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = alpha.Run([]string{"/bin/sh", "-c", "echo 42 > answer.txt; sleep 1"}, nil, defaultLimits())
	}()

	script := "sleep 0.2; cat ../*/answer.txt; cat " + filepath.Join(alphaDir, "answer.txt") + "; ls /"
	res, err := beta.Run([]string{"/bin/sh", "-c", script}, nil, defaultLimits())
	wg.Wait()
	require.NoError(t, err)

	assert.NotContains(t, string(res.Stdout), "42")
	assert.NotContains(t, string(res.Stdout), "root")
	assert.NotContains(t, string(res.Stdout), "home")

	data, err := alpha.ReadFile("answer.txt")
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(data))
}

func TestAddressSpaceExhaustionIsMemoryExceeded(t *testing.T) {
	awk, err := exec.LookPath("awk")
	if err != nil {
		t.Skip("awk not installed")
	}
	box := newLocalBox(t)
	limits := defaultLimits()
	limits.MemoryKiB = 32 << 10

	res, err := box.Run([]string{awk, `BEGIN { s = "x"; while (length(s) < 200000000) s = s s; print length(s) }`}, nil, limits)
	require.NoError(t, err)
	assert.True(t, res.MemoryExceeded, "exit %v signal %v memory %d KiB", res.ExitCode, res.ExitSignal, res.MemoryKiB)
	assert.False(t, res.TimedOut)
}

func TestNormalExitUnderMemoryLimitIsNotMemoryExceeded(t *testing.T) {
	box := newLocalBox(t)
	limits := defaultLimits()
	limits.MemoryKiB = 64 << 10

	res, err := box.Run([]string{"/bin/sh", "-c", "exit 1"}, nil, limits)
	require.NoError(t, err)
	assert.False(t, res.MemoryExceeded)
}
