//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

func createRunCgroup(root string, boxID, run int) (string, error) {
	path := filepath.Join(root, fmt.Sprintf("box-%d-run-%d-%d", boxID, run, os.Getpid()))
	if err := os.MkdirAll(path, 0o750); err != nil {
		return "", fmt.Errorf("create cgroup path: %w", err)
	}
	return path, nil
}

func applyCgroupLimits(path string, limits Limits) error {
	pids := "max"
	if limits.MaxProcesses > 0 {
		pids = strconv.Itoa(limits.MaxProcesses)
	}
	if err := writeCgroupValue(path, "pids.max", pids); err != nil {
		return err
	}
	if limits.MemoryKiB > 0 {
		if err := writeCgroupValue(path, "memory.max", strconv.FormatInt(limits.MemoryKiB*1024, 10)); err != nil {
			return err
		}
		// swap would hide memory overuse
		_ = writeCgroupValue(path, "memory.swap.max", "0")
	}
	return nil
}

func addProcessToCgroup(path string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid")
	}
	return writeCgroupValue(path, "cgroup.procs", strconv.Itoa(pid))
}

// removeCgroup kills whatever is left in the group and removes it. cgroupfs
// directories are removed with rmdir, not by unlinking their files.
func removeCgroup(path string) {
	_ = os.WriteFile(filepath.Join(path, "cgroup.kill"), []byte("1"), 0o600)
	_ = os.Remove(path)
}

func wasOomKilled(path string) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(path, "memory.events"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "oom_kill" {
			val, _ := strconv.ParseInt(fields[1], 10, 64)
			return val > 0
		}
	}
	return false
}

func memoryPeakKiB(path string, state *os.ProcessState) int64 {
	if path != "" {
		if val, err := readCgroupInt(path, "memory.peak"); err == nil && val > 0 {
			return val / 1024
		}
	}
	if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
		return usage.Maxrss
	}
	return 0
}

func readCgroupInt(path, name string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(path, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

func writeCgroupValue(path, name, value string) error {
	return os.WriteFile(filepath.Join(path, name), []byte(value), 0o640)
}
