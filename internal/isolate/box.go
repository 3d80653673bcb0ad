package isolate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/programme-lv/judge/internal/sandbox"
)

type Box struct {
	id      int
	path    string
	isolate *Isolate
}

func newBox(isolate *Isolate, id int, path string) *Box {
	return &Box{id: id, path: path, isolate: isolate}
}

func (box *Box) ID() int {
	return box.id
}

func (box *Box) Path() string {
	return box.path
}

func (box *Box) Close() error {
	return box.isolate.releaseBox(box.id)
}

// Reset re-initializes the box, which also removes leftover processes.
func (box *Box) Reset() error {
	if err := box.isolate.cleanupBox(box.id); err != nil {
		return err
	}
	path, err := box.isolate.initBox(box.id)
	if err != nil {
		return err
	}
	box.path = path
	return nil
}

func (box *Box) AddFile(name string, content []byte, mode os.FileMode) error {
	if err := sandbox.CheckFileName(name); err != nil {
		return err
	}
	path := filepath.Join(box.path, "box", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

func (box *Box) ReadFile(name string) ([]byte, error) {
	if err := sandbox.CheckFileName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(box.path, "box", name))
}

func (box *Box) runArgs(metaPath string, argv []string, limits sandbox.Limits) []string {
	args := []string{
		// without it isolate appends its own status line to the
		// program's stderr
		"--silent",
		"--cg",
		"--box-id", strconv.Itoa(box.id),
		"--meta=" + metaPath,
		"--env=HOME=/box",
		"--env=PATH=" + box.isolate.cfg.Path,
		"--env=LANG=C.UTF-8",
	}
	args = append(args, ConstraintsFor(limits).ToArgs()...)
	args = append(args, "--run", "--", "/usr/bin/env")
	return append(args, argv...)
}

func (box *Box) Run(argv []string, stdin []byte, limits sandbox.Limits) (*sandbox.Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command is required")
	}
	metaPath, err := newTempMetaFilePath()
	if err != nil {
		return nil, err
	}
	defer os.Remove(metaPath)

	stdout := sandbox.NewCapWriter(limits.MaxOutputBytes)
	stderr := sandbox.NewCapWriter(limits.MaxOutputBytes)

	cmd := exec.Command(box.isolate.cfg.Binary, box.runArgs(metaPath, argv, limits)...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		// isolate exits with 1 when the program failed, 2 on its own errors
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, fmt.Errorf("isolate run: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
	}

	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("read meta file: %w", err)
	}
	metrics, err := parseMetaFile(metaBytes)
	if err != nil {
		return nil, err
	}
	return toResult(metrics, stdout, stderr, limits)
}

func toResult(m *Metrics, stdout, stderr *sandbox.CapWriter, limits sandbox.Limits) (*sandbox.Result, error) {
	if m.Status == "XX" {
		return nil, fmt.Errorf("isolate internal error: %s", m.Message)
	}
	res := &sandbox.Result{
		Stdout:          stdout.Bytes(),
		Stderr:          stderr.Bytes(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		WallTimeMs:      int64(m.TimeWallSec * 1000),
		CpuTimeMs:       int64(m.TimeSec * 1000),
		MemoryKiB:       m.MemoryKiB(),
		TimedOut:        m.Status == "TO",
		MemoryExceeded:  m.CgOomKilled,
	}
	if limits.MemoryKiB > 0 && res.MemoryKiB > limits.MemoryKiB {
		res.MemoryExceeded = true
	}
	if m.Status == "SG" {
		sig := m.ExitSig
		res.ExitSignal = &sig
	} else {
		code := m.ExitCode
		res.ExitCode = &code
	}
	return res, nil
}

func newTempMetaFilePath() (string, error) {
	file, err := os.CreateTemp("", "isolate.*.meta")
	if err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return file.Name(), nil
}
