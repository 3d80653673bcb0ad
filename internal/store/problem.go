// Package store holds the collaborators of the judging core: problems with
// their test cases, and judged submissions.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/verdict"
)

var (
	ErrProblemNotFound    = errors.New("problem not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)

type LanguageRef struct {
	Name    string `toml:"name" json:"name"`
	Version string `toml:"version" json:"version"`
}

func (l LanguageRef) Key() lang.Key {
	return lang.Key{Name: strings.ToLower(l.Name), Version: l.Version}
}

type Problem struct {
	ID    string `toml:"id" json:"id"`
	Title string `toml:"title" json:"title"`
	// SupportedLanguages restricts submissions; empty allows every language.
	SupportedLanguages []LanguageRef `toml:"supported_languages" json:"supported_languages,omitempty"`
	// Zero limits fall back to the language defaults.
	TimeLimitMs      int64              `toml:"time_limit_ms" json:"time_limit_ms,omitempty"`
	MemoryLimitBytes int64              `toml:"memory_limit_bytes" json:"memory_limit_bytes,omitempty"`
	TestCases        []verdict.TestCase `toml:"test_cases" json:"test_cases"`
}

func (p *Problem) Supports(key lang.Key) bool {
	if len(p.SupportedLanguages) == 0 {
		return true
	}
	for _, l := range p.SupportedLanguages {
		if l.Key() == key {
			return true
		}
	}
	return false
}

// numberTests gives position based ids to tests that have none.
func (p *Problem) numberTests() error {
	seen := make(map[int64]bool, len(p.TestCases))
	for i := range p.TestCases {
		if p.TestCases[i].ID == 0 {
			p.TestCases[i].ID = int64(i + 1)
		}
		if seen[p.TestCases[i].ID] {
			return fmt.Errorf("duplicate test id %d", p.TestCases[i].ID)
		}
		seen[p.TestCases[i].ID] = true
	}
	return nil
}

type ProblemStore interface {
	Problem(ctx context.Context, id string) (*Problem, error)
}

// MemoryProblems is a fixed set of problems.
type MemoryProblems struct {
	problems map[string]*Problem
}

func NewMemoryProblems(problems ...*Problem) (*MemoryProblems, error) {
	m := &MemoryProblems{problems: make(map[string]*Problem, len(problems))}
	for _, p := range problems {
		if p.ID == "" {
			return nil, fmt.Errorf("problem without id")
		}
		if _, dup := m.problems[p.ID]; dup {
			return nil, fmt.Errorf("duplicate problem %q", p.ID)
		}
		if err := p.numberTests(); err != nil {
			return nil, fmt.Errorf("problem %q: %w", p.ID, err)
		}
		m.problems[p.ID] = p
	}
	return m, nil
}

// LoadProblemDir reads every *.toml file in dir. A problem without an id
// takes the file name without extension.
func LoadProblemDir(dir string) (*MemoryProblems, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, err
	}
	problems := make([]*Problem, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read problem: %w", err)
		}
		var p Problem
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(filepath.Base(path), ".toml")
		}
		problems = append(problems, &p)
	}
	return NewMemoryProblems(problems...)
}

// Problem returns a copy, so callers may keep its test cases as a snapshot.
func (m *MemoryProblems) Problem(_ context.Context, id string) (*Problem, error) {
	p, ok := m.problems[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, id)
	}
	cp := *p
	cp.SupportedLanguages = append([]LanguageRef(nil), p.SupportedLanguages...)
	cp.TestCases = append([]verdict.TestCase(nil), p.TestCases...)
	return &cp, nil
}
