// Package sandboxtest provides an in-memory sandbox for tests. Programs are
// Go functions keyed by the first argument of the command.
package sandboxtest

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/programme-lv/judge/internal/sandbox"
)

// Call is what a fake program sees when it is run.
type Call struct {
	Argv   []string
	Stdin  []byte
	Limits sandbox.Limits
	// Files is the box content; programs may modify it.
	Files map[string][]byte
}

type Program func(call *Call) (*sandbox.Result, error)

type Sandbox struct {
	mu       sync.Mutex
	programs map[string]Program
	nextID   atomic.Int64
	boxes    []*Box
}

func New() *Sandbox {
	return &Sandbox{programs: map[string]Program{}}
}

// Handle registers a program under the command name argv[0].
func (s *Sandbox) Handle(name string, p Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[name] = p
}

func (s *Sandbox) program(name string) (Program, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[name]
	return p, ok
}

func (s *Sandbox) NewBox() (sandbox.Box, error) {
	b := &Box{id: int(s.nextID.Add(1)), sb: s, files: map[string][]byte{}}
	s.mu.Lock()
	s.boxes = append(s.boxes, b)
	s.mu.Unlock()
	return b, nil
}

// Boxes returns every box created so far.
func (s *Sandbox) Boxes() []*Box {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Box(nil), s.boxes...)
}

type Box struct {
	id     int
	sb     *Sandbox
	files  map[string][]byte
	Runs   [][]string
	Resets int
	Closed bool
}

func (b *Box) ID() int {
	return b.id
}

func (b *Box) AddFile(name string, content []byte, mode os.FileMode) error {
	if err := sandbox.CheckFileName(name); err != nil {
		return err
	}
	b.files[name] = append([]byte(nil), content...)
	return nil
}

func (b *Box) ReadFile(name string) ([]byte, error) {
	data, ok := b.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return data, nil
}

func (b *Box) Run(argv []string, stdin []byte, limits sandbox.Limits) (*sandbox.Result, error) {
	b.Runs = append(b.Runs, argv)
	p, ok := b.sb.program(argv[0])
	if !ok {
		code := 127
		return &sandbox.Result{Stderr: []byte(argv[0] + ": not found"), ExitCode: &code}, nil
	}
	return p(&Call{Argv: argv, Stdin: stdin, Limits: limits, Files: b.files})
}

func (b *Box) Reset() error {
	b.Resets++
	b.files = map[string][]byte{}
	return nil
}

func (b *Box) Close() error {
	b.Closed = true
	return nil
}

// Exit builds a result for a program that exited with code.
func Exit(code int, stdout, stderr string) *sandbox.Result {
	return &sandbox.Result{Stdout: []byte(stdout), Stderr: []byte(stderr), ExitCode: &code}
}
