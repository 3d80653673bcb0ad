//go:build linux

package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sh = lang.Spec{Name: "sh", Version: "posix", SourceFile: "main.sh", RunCmd: "/bin/sh {src}"}

// Each submission drops a marker in its working directory, waits a little
// and then lists every marker it can see. It must only ever see its own.
func TestCwdMarkersStayPrivate(t *testing.T) {
	sb, err := sandbox.NewLocal(sandbox.LocalConfig{Root: t.TempDir(), Unisolated: true}, nil)
	require.NoError(t, err)
	p := start(t, sb, 2, 8)

	code := func(name string) string {
		return "touch " + name + ".marker; sleep 0.2; ls *.marker"
	}

	var wg sync.WaitGroup
	for _, name := range []string{"alpha", "beta", "gamma", "delta"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			eval, err := p.Judge(context.Background(), pipeline.Request{
				ID:     name,
				Spec:   sh,
				Code:   code(name),
				Tests:  []verdict.TestCase{{ID: 1, Output: name + ".marker"}},
				Limits: limits,
			})
			if assert.NoError(t, err) {
				assert.Equal(t, verdict.Accepted, eval.Result.Status, name)
			}
		}(name)
	}
	wg.Wait()
}

// Submissions judged side by side try to read the answer files of their
// neighbours through the parent directory.
func TestSubmissionsCannotReadNeighbourBoxes(t *testing.T) {
	sb, err := sandbox.NewLocal(sandbox.LocalConfig{Root: t.TempDir()}, nil)
	require.NoError(t, err)
	box, err := sb.NewBox()
	require.NoError(t, err)
	_, err = box.Run([]string{"/bin/true"}, nil, sandbox.Limits{WallTimeMs: 5000})
	_ = box.Close()
	if err != nil {
		t.Skipf("namespaces unavailable: %v", err)
	}
	p := start(t, sb, 2, 8)

	requests := map[string]string{
		"alpha": "echo alpha > answer.txt; sleep 0.6; cat answer.txt",
		"beta":  "sleep 0.2; cat ../*/answer.txt 2>/dev/null; echo beta",
	}
	var wg sync.WaitGroup
	for name, code := range requests {
		wg.Add(1)
		go func(name, code string) {
			defer wg.Done()
			eval, err := p.Judge(context.Background(), pipeline.Request{
				ID:     name,
				Spec:   sh,
				Code:   code,
				Tests:  []verdict.TestCase{{ID: 1, Output: name}},
				Limits: limits,
			})
			if assert.NoError(t, err) {
				assert.Equal(t, verdict.Accepted, eval.Result.Status, name)
			}
		}(name, code)
	}
	wg.Wait()
}
