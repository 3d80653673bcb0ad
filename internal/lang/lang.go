// Package lang is the language registry. A registry is built once at startup
// from a TOML file (or the embedded default set) and is read-only afterwards.
package lang

import (
	"errors"
	"path/filepath"
)

var ErrUnknownLanguage = errors.New("unknown language")

type Kind int

const (
	Interpreted Kind = iota
	Compiled
)

func (k Kind) String() string {
	if k == Compiled {
		return "compiled"
	}
	return "interpreted"
}

const (
	DefaultTimeLimitMs      int64 = 2000
	DefaultMemoryLimitBytes int64 = 256 << 20
)

// Spec describes one toolchain. CompileCmd and RunCmd are templates,
// see Expand for the placeholders they may use.
type Spec struct {
	Name         string `toml:"name" json:"name"`
	Version      string `toml:"version" json:"version"`
	SourceFile   string `toml:"source_file" json:"source_file"`
	CompiledFile string `toml:"compiled_file" json:"compiled_file,omitempty"`
	CompileCmd   string `toml:"compile_cmd" json:"compile_cmd,omitempty"`
	RunCmd       string `toml:"run_cmd" json:"run_cmd"`

	TimeLimitMs      int64 `toml:"time_limit_ms" json:"time_limit_ms"`
	MemoryLimitBytes int64 `toml:"memory_limit_bytes" json:"memory_limit_bytes"`

	// StrictCompileStderr makes any compiler diagnostic fail the compile
	// step, even when the compiler exits with zero.
	StrictCompileStderr bool `toml:"strict_compile_stderr" json:"strict_compile_stderr,omitempty"`
}

func (s Spec) Kind() Kind {
	if s.CompileCmd != "" {
		return Compiled
	}
	return Interpreted
}

func (s Spec) Key() Key {
	return Key{Name: s.Name, Version: s.Version}
}

func (s Spec) FileExtension() string {
	return filepath.Ext(s.SourceFile)
}

// CompileArgv expands the compile template. It returns nil for
// interpreted languages.
func (s Spec) CompileArgv() ([]string, error) {
	if s.Kind() == Interpreted {
		return nil, nil
	}
	return Expand(s.CompileCmd, s.vars())
}

func (s Spec) RunArgv() ([]string, error) {
	return Expand(s.RunCmd, s.vars())
}

// Artifact is the file a run needs inside the box: the compiled file for
// compiled languages, the source otherwise.
func (s Spec) Artifact() string {
	if s.Kind() == Compiled {
		return s.CompiledFile
	}
	return s.SourceFile
}

func (s Spec) vars() map[string]string {
	return map[string]string{
		"src": s.SourceFile,
		"bin": s.CompiledFile,
	}
}

type Key struct {
	Name    string
	Version string
}

func (k Key) String() string {
	return k.Name + " " + k.Version
}
