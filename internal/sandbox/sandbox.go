// Package sandbox defines the isolation boundary used to run untrusted
// programs. A Box is an exclusive scratch directory plus the means to run a
// single process inside it under resource limits.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrInvalidFileName = errors.New("invalid file name")

type Limits struct {
	WallTimeMs     int64
	CpuTimeMs      int64
	MemoryKiB      int64
	MaxProcesses   int
	MaxOutputBytes int64
}

type Result struct {
	Stdout []byte
	Stderr []byte

	StdoutTruncated bool
	StderrTruncated bool

	// ExitCode is nil when the process was terminated by a signal.
	ExitCode   *int
	ExitSignal *int

	WallTimeMs int64
	CpuTimeMs  int64
	MemoryKiB  int64

	TimedOut       bool
	MemoryExceeded bool
}

// Box is owned by one goroutine at a time. Run blocks until the process
// exits or its wall time limit fires; it is never interrupted midway.
type Box interface {
	ID() int
	AddFile(name string, content []byte, mode os.FileMode) error
	ReadFile(name string) ([]byte, error)
	Run(argv []string, stdin []byte, limits Limits) (*Result, error)
	// Reset wipes every file and process left over from previous runs.
	Reset() error
	Close() error
}

type Sandbox interface {
	NewBox() (Box, error)
}

// CheckFileName rejects names that would escape the box directory.
func CheckFileName(name string) error {
	if name == "" || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}
