package sandbox

import (
	"log/slog"
	"os"
	"path/filepath"
)

// LocalConfig configures the process backend. Each program runs in fresh
// user, mount, pid, uts, ipc and network namespaces, rooted in a private
// tree that holds only ReadOnlyDirs, a few device nodes, a scratch /tmp
// and its own box mounted at /box.
type LocalConfig struct {
	// Root holds one scratch directory per box.
	Root string
	// ReadOnlyDirs are host directories exposed to programs, typically
	// where compilers, interpreters and their libraries live.
	ReadOnlyDirs []string
	// Unisolated runs programs straight on the host with rlimits only.
	// They see the whole filesystem and network, so it only suits
	// trusted code on hosts without user namespaces.
	Unisolated bool
	// Cgroup enables cgroup v2 memory and pids accounting under CgroupRoot,
	// which must be a delegated, writable cgroup directory.
	Cgroup     bool
	CgroupRoot string
	// Path is the PATH given to sandboxed processes.
	Path string
}

const defaultSandboxPath = "/usr/local/bin:/usr/bin:/bin"

var defaultReadOnlyDirs = []string{"/usr", "/bin", "/lib", "/lib32", "/lib64", "/etc", "/opt"}

func (c LocalConfig) withDefaults() LocalConfig {
	if c.Root == "" {
		c.Root = filepath.Join(os.TempDir(), "judge-boxes")
	}
	if c.Path == "" {
		c.Path = defaultSandboxPath
	}
	if c.ReadOnlyDirs == nil {
		c.ReadOnlyDirs = defaultReadOnlyDirs
	}
	return c
}

// rootDir is the empty mount point each box init builds its private
// root on. The mounts live in the init's namespace only.
func (c LocalConfig) rootDir() string {
	return filepath.Join(c.Root, ".root")
}

func localEnv(cfg LocalConfig, home string) []string {
	return []string{
		"PATH=" + cfg.Path,
		"HOME=" + home,
		"LANG=C.UTF-8",
	}
}

func nopLogger(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
