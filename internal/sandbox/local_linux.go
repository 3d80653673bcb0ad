//go:build linux

package sandbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	waitDelay = 500 * time.Millisecond
	// written files are capped so a program cannot fill the disk
	maxFileSizeBytes = 64 << 20
)

type local struct {
	cfg    LocalConfig
	log    *slog.Logger
	nextID atomic.Int64
}

// NewLocal creates the host process backend.
func NewLocal(cfg LocalConfig, log *slog.Logger) (Sandbox, error) {
	cfg = cfg.withDefaults()
	log = nopLogger(log)
	if cfg.Cgroup && cfg.CgroupRoot == "" {
		return nil, fmt.Errorf("cgroup root is required when cgroups are enabled")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create box root: %w", err)
	}
	if !cfg.Unisolated {
		if err := os.MkdirAll(cfg.rootDir(), 0o755); err != nil {
			return nil, fmt.Errorf("create private root mount point: %w", err)
		}
	} else {
		log.Warn("local sandbox is unisolated, programs see the host filesystem and network")
	}
	return &local{cfg: cfg, log: log}, nil
}

func (l *local) NewBox() (Box, error) {
	id := int(l.nextID.Add(1))
	dir, err := os.MkdirTemp(l.cfg.Root, fmt.Sprintf("box-%d-", id))
	if err != nil {
		return nil, fmt.Errorf("create box dir: %w", err)
	}
	return &localBox{id: id, dir: dir, cfg: l.cfg, log: l.log.With(slog.Int("box", id))}, nil
}

type localBox struct {
	id   int
	dir  string
	cfg  LocalConfig
	log  *slog.Logger
	runs int
}

func (b *localBox) ID() int {
	return b.id
}

func (b *localBox) Path() string {
	return b.dir
}

func (b *localBox) AddFile(name string, content []byte, mode os.FileMode) error {
	if err := CheckFileName(name); err != nil {
		return err
	}
	path := filepath.Join(b.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return err
	}
	// WriteFile leaves the mode of an existing file alone
	return os.Chmod(path, mode)
}

func (b *localBox) ReadFile(name string) ([]byte, error) {
	if err := CheckFileName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(b.dir, name))
}

func (b *localBox) Reset() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("read box dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(b.dir, e.Name())); err != nil {
			return fmt.Errorf("wipe box: %w", err)
		}
	}
	return nil
}

func (b *localBox) Close() error {
	return os.RemoveAll(b.dir)
}

func (b *localBox) Run(argv []string, stdin []byte, limits Limits) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command is required")
	}
	b.runs++

	cgroupPath := ""
	if b.cfg.Cgroup {
		var err error
		cgroupPath, err = createRunCgroup(b.cfg.CgroupRoot, b.id, b.runs)
		if err != nil {
			return nil, fmt.Errorf("create cgroup: %w", err)
		}
		defer removeCgroup(cgroupPath)
		if err := applyCgroupLimits(cgroupPath, limits); err != nil {
			return nil, fmt.Errorf("apply cgroup limits: %w", err)
		}
	}

	stdout := NewCapWriter(limits.MaxOutputBytes)
	stderr := NewCapWriter(limits.MaxOutputBytes)
	rlimits := rlimitsFor(limits, cgroupPath != "")

	cmd, status, err := b.command(argv, rlimits)
	if err != nil {
		return nil, err
	}
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err = cmd.Start()
	// the child holds its own copy of the status pipe's write end
	for _, f := range cmd.ExtraFiles {
		f.Close()
	}
	if err != nil {
		if status != nil {
			status.Close()
			return nil, fmt.Errorf("start box init: %w", err)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return missingProgram(err.Error()), nil
		}
		return nil, fmt.Errorf("start process: %w", err)
	}
	pid := cmd.Process.Pid

	if cgroupPath != "" {
		if err := addProcessToCgroup(cgroupPath, pid); err != nil {
			b.log.Warn("add process to cgroup failed", slog.String("cgroup", cgroupPath), slog.Any("error", err))
		}
	}
	if status == nil {
		if err := applyRlimits(pid, rlimits); err != nil {
			b.log.Warn("set rlimits failed", slog.Int("pid", pid), slog.Any("error", err))
		}
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if limits.WallTimeMs > 0 {
			t := time.NewTimer(time.Duration(limits.WallTimeMs) * time.Millisecond)
			defer t.Stop()
			wallTimer = t.C
		}
		select {
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(pid)
		case <-done:
		}
	}()

	var initFailure *initStatus
	if status != nil {
		initFailure = readInitStatus(status)
	}

	waitErr := cmd.Wait()
	close(done)
	wall := time.Since(start)
	// reap anything the program left behind in its group
	killProcessGroup(pid)

	if initFailure != nil {
		if initFailure.Missing {
			return missingProgram(initFailure.Error), nil
		}
		return nil, fmt.Errorf("box init: %s", initFailure.Error)
	}
	state := cmd.ProcessState
	if state == nil {
		return nil, fmt.Errorf("wait process: %w", waitErr)
	}
	if waitErr != nil && !isExitErr(waitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return nil, fmt.Errorf("wait process: %w", waitErr)
	}

	res := &Result{
		Stdout:          stdout.Bytes(),
		Stderr:          stderr.Bytes(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		WallTimeMs:      wall.Milliseconds(),
		CpuTimeMs:       (state.UserTime() + state.SystemTime()).Milliseconds(),
		MemoryKiB:       memoryPeakKiB(cgroupPath, state),
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := int(ws.Signal())
		res.ExitSignal = &sig
	} else {
		code := state.ExitCode()
		res.ExitCode = &code
	}

	res.TimedOut = timedOut.Load()
	if limits.CpuTimeMs > 0 && res.CpuTimeMs > limits.CpuTimeMs {
		res.TimedOut = true
	}
	if res.ExitSignal != nil && syscall.Signal(*res.ExitSignal) == syscall.SIGXCPU {
		res.TimedOut = true
	}
	if wasOomKilled(cgroupPath) {
		res.MemoryExceeded = true
	}
	if limits.MemoryKiB > 0 && res.MemoryKiB > limits.MemoryKiB {
		res.MemoryExceeded = true
	}
	if cgroupPath == "" && hitAddressSpaceCap(res, limits) {
		res.MemoryExceeded = true
	}
	return res, nil
}

// hitAddressSpaceCap guesses whether an address space cap failed the run.
// The cap never kills: allocations fail with ENOMEM and the program dies
// on its own, reporting whatever its runtime prints. A program that ends
// abnormally after its resident set grew to half the cap is taken to
// have run out of memory.
func hitAddressSpaceCap(res *Result, limits Limits) bool {
	if limits.MemoryKiB <= 0 || res.TimedOut {
		return false
	}
	abnormal := res.ExitSignal != nil || (res.ExitCode != nil && *res.ExitCode != 0)
	return abnormal && res.MemoryKiB*2 >= limits.MemoryKiB
}

func missingProgram(msg string) *Result {
	code := 127
	return &Result{
		Stderr:   []byte(msg),
		ExitCode: &code,
	}
}

// command builds the process for one run. In the isolated mode the
// binary re-executes itself as the box init and the returned pipe
// carries the init's failure report.
func (b *localBox) command(argv []string, rlimits []rlimit) (*exec.Cmd, *os.File, error) {
	if b.cfg.Unisolated {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Dir = b.dir
		cmd.Env = localEnv(b.cfg, b.dir)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
		return cmd, nil, nil
	}

	req, err := json.Marshal(initRequest{
		Argv:         argv,
		BoxDir:       b.dir,
		RootDir:      b.cfg.rootDir(),
		ReadOnlyDirs: b.cfg.ReadOnlyDirs,
		Rlimits:      rlimits,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode init request: %w", err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("status pipe: %w", err)
	}
	cmd := &exec.Cmd{
		Path:        "/proc/self/exe",
		Args:        []string{initArg0, string(req)},
		Dir:         b.dir,
		Env:         localEnv(b.cfg, boxMountPoint),
		ExtraFiles:  []*os.File{w},
		SysProcAttr: namespacedProcAttr(),
	}
	return cmd, r, nil
}

// readInitStatus blocks until the init execs the program or fails.
func readInitStatus(r *os.File) *initStatus {
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var st initStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return &initStatus{Error: fmt.Sprintf("unreadable init status %q", data)}
	}
	return &st
}

func isExitErr(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func namespacedProcAttr() *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	attr.Cloneflags = syscall.CLONE_NEWUSER | syscall.CLONE_NEWNS | syscall.CLONE_NEWPID |
		syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC | syscall.CLONE_NEWNET
	attr.GidMappingsEnableSetgroups = false
	attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getuid(), Size: 1}}
	attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: 0, HostID: os.Getgid(), Size: 1}}
	return attr
}

type rlimit struct {
	Resource int    `json:"resource"`
	Cur      uint64 `json:"cur"`
	Max      uint64 `json:"max"`
}

// rlimitsFor lists the limits for one run. Address space is only capped
// when no cgroup is accounting memory, since runtimes like the JVM reserve
// far more virtual memory than they use.
func rlimitsFor(limits Limits, haveCgroup bool) []rlimit {
	var out []rlimit
	if limits.CpuTimeMs > 0 {
		secs := uint64((limits.CpuTimeMs + 999) / 1000)
		// SIGXCPU at the soft limit, SIGKILL one second later
		out = append(out, rlimit{Resource: unix.RLIMIT_CPU, Cur: secs, Max: secs + 1})
	}
	if limits.MemoryKiB > 0 && !haveCgroup {
		as := uint64(limits.MemoryKiB) * 1024
		out = append(out, rlimit{Resource: unix.RLIMIT_AS, Cur: as, Max: as})
	}
	out = append(out,
		rlimit{Resource: unix.RLIMIT_FSIZE, Cur: maxFileSizeBytes, Max: maxFileSizeBytes},
		rlimit{Resource: unix.RLIMIT_CORE},
	)
	return out
}

// applyRlimits limits an already started process.
func applyRlimits(pid int, rlimits []rlimit) error {
	for _, r := range rlimits {
		if err := unix.Prlimit(pid, r.Resource, &unix.Rlimit{Cur: r.Cur, Max: r.Max}, nil); err != nil {
			return fmt.Errorf("rlimit %d: %w", r.Resource, err)
		}
	}
	return nil
}
