package runner

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/verdict"
)

// Program is a submission ready to run: the compiled artifact, or the
// source for interpreted languages. It lives for one worker occupancy.
type Program struct {
	r        *Runner
	spec     lang.Spec
	artifact []byte
	runArgv  []string
	closed   bool
}

// Compile prepares code for execution. When compilation fails the returned
// Program is nil and the outcome carries reason CompileFailed; errors are
// reserved for sandbox faults and broken language templates.
func (r *Runner) Compile(spec lang.Spec, code string) (*Program, *verdict.Outcome, error) {
	runArgv, err := spec.RunArgv()
	if err != nil {
		return nil, nil, fault("run template", err)
	}
	prog := &Program{r: r, spec: spec, runArgv: runArgv}

	if spec.Kind() == lang.Interpreted {
		prog.artifact = []byte(code)
		return prog, nil, nil
	}

	compileArgv, err := spec.CompileArgv()
	if err != nil {
		return nil, nil, fault("compile template", err)
	}
	if err := r.reset(); err != nil {
		return nil, nil, err
	}
	if err := r.box.AddFile(spec.SourceFile, []byte(code), fileMode(false)); err != nil {
		return nil, nil, fault("write source", err)
	}

	limits := r.sandboxLimits(r.cfg.CompileTimeMs, r.cfg.CompileMemoryBytes)
	res, err := r.box.Run(compileArgv, nil, limits)
	if err != nil {
		return nil, nil, fault("compile", err)
	}
	out := classify(res, r.cfg.CompileTimeMs, r.cfg.CompileMemoryBytes)

	switch {
	case out.Reason == verdict.Timeout:
		out.Stderr = append(out.Stderr, fmt.Sprintf("compilation exceeded %d ms\n", r.cfg.CompileTimeMs)...)
	case out.Abnormal():
	case spec.StrictCompileStderr && len(bytes.TrimSpace(out.Stderr)) > 0:
	default:
		prog.artifact, err = r.box.ReadFile(spec.CompiledFile)
		if err == nil {
			r.log.Debug("compiled", slog.String("lang", spec.Key().String()),
				slog.Int64("wall_ms", out.WallTimeMs), slog.Int("artifact_bytes", len(prog.artifact)))
			return prog, out, nil
		}
		out.Stderr = append(out.Stderr, fmt.Sprintf("compiled file %s was not produced\n", spec.CompiledFile)...)
	}

	out.Reason = verdict.CompileFailed
	r.log.Debug("compilation failed", slog.String("lang", spec.Key().String()), slog.String("reason", string(out.Reason)))
	return nil, out, nil
}

// Execute runs the program on one input in a freshly wiped box.
func (p *Program) Execute(input string, limits Limits) (*verdict.Outcome, error) {
	if p.closed {
		return nil, fmt.Errorf("program is closed")
	}
	r := p.r
	if err := r.reset(); err != nil {
		return nil, err
	}
	name := p.spec.Artifact()
	if err := r.box.AddFile(name, p.artifact, fileMode(p.spec.Kind() == lang.Compiled)); err != nil {
		return nil, fault("write program", err)
	}
	res, err := r.box.Run(p.runArgv, []byte(input), r.sandboxLimits(limits.TimeMs, limits.MemoryBytes))
	if err != nil {
		return nil, fault("run", err)
	}
	return classify(res, limits.TimeMs, limits.MemoryBytes), nil
}

// Close drops the cached artifact and wipes the box.
func (p *Program) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.artifact = nil
	return p.r.reset()
}
