package lang

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed languages.toml
var defaultLanguages []byte

type Registry struct {
	specs map[Key]Spec
}

type registryFile struct {
	Languages []Spec `toml:"languages"`
}

// New validates specs and builds a registry. Names are matched
// case-insensitively, versions exactly.
func New(specs []Spec) (*Registry, error) {
	r := &Registry{specs: make(map[Key]Spec, len(specs))}
	for i, s := range specs {
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		s.Version = strings.TrimSpace(s.Version)
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("language #%d (%s): %w", i+1, s.Key(), err)
		}
		if s.TimeLimitMs <= 0 {
			s.TimeLimitMs = DefaultTimeLimitMs
		}
		if s.MemoryLimitBytes <= 0 {
			s.MemoryLimitBytes = DefaultMemoryLimitBytes
		}
		if _, dup := r.specs[s.Key()]; dup {
			return nil, fmt.Errorf("duplicate language %s", s.Key())
		}
		r.specs[s.Key()] = s
	}
	return r, nil
}

func validate(s Spec) error {
	if s.Name == "" || s.Version == "" {
		return fmt.Errorf("name and version are required")
	}
	if s.SourceFile == "" {
		return fmt.Errorf("source_file is required")
	}
	if s.RunCmd == "" {
		return fmt.Errorf("run_cmd is required")
	}
	if s.CompileCmd != "" && s.CompiledFile == "" {
		return fmt.Errorf("compile_cmd requires compiled_file")
	}
	if _, err := s.CompileArgv(); err != nil {
		return err
	}
	if _, err := s.RunArgv(); err != nil {
		return err
	}
	return nil
}

// Parse reads a registry from TOML `[[languages]]` tables.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse languages: %w", err)
	}
	return New(f.Languages)
}

func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read languages file: %w", err)
	}
	return Parse(data)
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultLanguages)
}

func (r *Registry) Resolve(name, version string) (Spec, error) {
	key := Key{Name: strings.ToLower(strings.TrimSpace(name)), Version: strings.TrimSpace(version)}
	s, ok := r.specs[key]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownLanguage, key)
	}
	return s, nil
}

// Languages lists all specs ordered by name, then version.
func (r *Registry) Languages() []Spec {
	res := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].Version < res[j].Version
	})
	return res
}
