//go:build linux

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// initArg0 marks a re-executed binary as the box init. The init runs
// inside fresh namespaces, assembles a private root from read-only host
// directories plus the box, pivots into it and execs the program.
const initArg0 = "judge-box-init"

// the status pipe is the first extra file handed to the init
const initStatusFd = 3

// /box is where the box directory appears inside the private root
const boxMountPoint = "/box"

type initRequest struct {
	Argv         []string `json:"argv"`
	BoxDir       string   `json:"box_dir"`
	RootDir      string   `json:"root_dir"`
	ReadOnlyDirs []string `json:"read_only_dirs"`
	Rlimits      []rlimit `json:"rlimits"`
}

// initStatus is written to the status pipe only when the init fails
// before exec. A closed, empty pipe means the program is running.
type initStatus struct {
	Missing bool   `json:"missing"`
	Error   string `json:"error"`
}

func init() {
	if len(os.Args) < 2 || os.Args[0] != initArg0 {
		return
	}
	status := os.NewFile(initStatusFd, "status")
	var req initRequest
	if err := json.Unmarshal([]byte(os.Args[1]), &req); err != nil {
		failInit(status, initStatus{Error: fmt.Sprintf("decode request: %v", err)})
	}
	failInit(status, runInit(req, status))
}

func failInit(status *os.File, st initStatus) {
	_ = json.NewEncoder(status).Encode(st)
	os.Exit(1)
}

// runInit only returns on failure.
func runInit(req initRequest, status *os.File) initStatus {
	if len(req.Argv) == 0 {
		return initStatus{Error: "command is required"}
	}
	if err := buildRoot(req); err != nil {
		return initStatus{Error: err.Error()}
	}
	if err := pivotInto(req.RootDir); err != nil {
		return initStatus{Error: err.Error()}
	}
	if err := os.Chdir(boxMountPoint); err != nil {
		return initStatus{Error: fmt.Sprintf("chdir box: %v", err)}
	}

	path, err := exec.LookPath(req.Argv[0])
	if err != nil {
		return initStatus{Missing: true, Error: err.Error()}
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return initStatus{Error: fmt.Sprintf("no new privs: %v", err)}
	}
	unix.CloseOnExec(int(status.Fd()))
	env := os.Environ()

	// last, so the address space cap does not apply to this runtime
	for _, r := range req.Rlimits {
		lim := unix.Rlimit{Cur: r.Cur, Max: r.Max}
		if err := unix.Setrlimit(r.Resource, &lim); err != nil {
			return initStatus{Error: fmt.Sprintf("set rlimit %d: %v", r.Resource, err)}
		}
	}
	err = unix.Exec(path, req.Argv, env)
	// exec failures past lookup are the program's fault, like a bad binary
	return initStatus{Missing: true, Error: fmt.Sprintf("exec %s: %v", req.Argv[0], err)}
}

func buildRoot(req initRequest) error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make mounts private: %w", err)
	}
	root := req.RootDir
	if err := unix.Mount("tmpfs", root, "tmpfs", unix.MS_NOSUID|unix.MS_NODEV, "size=1m,mode=0755"); err != nil {
		return fmt.Errorf("mount root: %w", err)
	}

	for _, dir := range req.ReadOnlyDirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := bindMount(dir, filepath.Join(root, dir), true); err != nil {
			return err
		}
	}
	if err := bindMount(req.BoxDir, filepath.Join(root, boxMountPoint), false); err != nil {
		return err
	}
	for _, dev := range []string{"/dev/null", "/dev/zero", "/dev/random", "/dev/urandom"} {
		if err := bindMount(dev, filepath.Join(root, dev), false); err != nil {
			return err
		}
	}

	tmp := filepath.Join(root, "tmp")
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("mkdir tmp: %w", err)
	}
	if err := unix.Mount("tmpfs", tmp, "tmpfs", unix.MS_NOSUID|unix.MS_NODEV, "size=64m,mode=1777"); err != nil {
		return fmt.Errorf("mount tmp: %w", err)
	}

	// a fresh proc needs a fully visible host proc, which some
	// containers do not have; programs mostly run fine without it
	proc := filepath.Join(root, "proc")
	if err := os.MkdirAll(proc, 0o755); err != nil {
		return fmt.Errorf("mkdir proc: %w", err)
	}
	_ = unix.Mount("proc", proc, "proc", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, "")
	return nil
}

// bindMount keeps the flags the kernel locked on the source mount, since
// a read-only remount that drops them is refused in a user namespace.
func bindMount(source, target string, readOnly bool) error {
	if err := ensureMountTarget(source, target); err != nil {
		return err
	}
	if err := unix.Mount(source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind %s: %w", source, err)
	}
	if !readOnly {
		return nil
	}
	var st unix.Statfs_t
	if err := unix.Statfs(target, &st); err != nil {
		return fmt.Errorf("statfs %s: %w", target, err)
	}
	locked := uintptr(st.Flags) & (unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC |
		unix.MS_NOATIME | unix.MS_NODIRATIME | unix.MS_RELATIME)
	flags := unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY | locked
	if err := unix.Mount("", target, "", flags, ""); err != nil {
		return fmt.Errorf("remount %s read-only: %w", target, err)
	}
	return nil
}

func ensureMountTarget(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat mount source: %w", err)
	}
	if info.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("mkdir mount target: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir mount target dir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("create mount target file: %w", err)
	}
	return f.Close()
}

// pivotInto swaps the root and detaches the host tree, so unlike a plain
// chroot nothing outside the new root stays reachable.
func pivotInto(root string) error {
	old := filepath.Join(root, ".oldroot")
	if err := os.MkdirAll(old, 0o700); err != nil {
		return fmt.Errorf("mkdir old root: %w", err)
	}
	if err := unix.PivotRoot(root, old); err != nil {
		return fmt.Errorf("pivot root: %w", err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir root: %w", err)
	}
	if err := unix.Unmount("/.oldroot", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detach old root: %w", err)
	}
	if err := os.Remove("/.oldroot"); err != nil {
		return fmt.Errorf("remove old root: %w", err)
	}
	flags := uintptr(unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY | unix.MS_NOSUID | unix.MS_NODEV)
	if err := unix.Mount("", "/", "", flags, ""); err != nil {
		return fmt.Errorf("remount root read-only: %w", err)
	}
	return nil
}
