package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/programme-lv/judge/internal/environment"
	"github.com/programme-lv/judge/internal/isolate"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/logging"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/runner"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/service"
	"github.com/programme-lv/judge/internal/store"
	"github.com/urfave/cli/v3"
)

// app is the configuration shared by every command.
type app struct {
	cfg   *environment.Config
	log   *slog.Logger
	langs *lang.Registry
}

func setup(cmd *cli.Command) (*app, error) {
	cfg, err := environment.Load(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("sandbox") {
		cfg.Sandbox = cmd.String("sandbox")
	}
	if cmd.IsSet("workers") {
		cfg.Workers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("languages") {
		cfg.LanguagesFile = cmd.String("languages")
	}
	if cmd.IsSet("problems") {
		cfg.ProblemsDir = cmd.String("problems")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logging.New(os.Stderr, level, color.NoColor)
	slog.SetDefault(log)

	var langs *lang.Registry
	if cfg.LanguagesFile != "" {
		langs, err = lang.Load(cfg.LanguagesFile)
	} else {
		langs, err = lang.Default()
	}
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, langs: langs}, nil
}

func (a *app) newSandbox() (sandbox.Sandbox, error) {
	switch a.cfg.Sandbox {
	case "isolate":
		return isolate.New(isolate.Config{MaxBoxes: a.cfg.Workers}, a.log), nil
	default:
		return sandbox.NewLocal(sandbox.LocalConfig{
			Root:       a.cfg.WorkRoot,
			Cgroup:     a.cfg.Cgroup,
			CgroupRoot: a.cfg.CgroupRoot,
		}, a.log)
	}
}

func (a *app) systemInfo() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("host=%s os=%s/%s cpus=%d sandbox=%s workers=%d",
		host, runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), a.cfg.Sandbox, a.cfg.Workers)
}

func (a *app) newPipeline() (*pipeline.Pipeline, error) {
	sb, err := a.newSandbox()
	if err != nil {
		return nil, err
	}
	return pipeline.New(sb, pipeline.Config{
		Workers:   a.cfg.Workers,
		QueueSize: a.cfg.QueueSize,
		Runner: runner.Config{
			CompileTimeMs:      a.cfg.CompileTimeMs,
			CompileMemoryBytes: a.cfg.CompileMemoryBytes,
			MaxOutputBytes:     a.cfg.MaxOutputBytes,
			MaxProcesses:       runner.DefaultConfig().MaxProcesses,
		},
		SystemInfo: a.systemInfo(),
	}, a.log), nil
}

// startPipeline runs a pipeline until ctx is done. The returned wait
// function blocks until every worker has stopped.
func (a *app) startPipeline(ctx context.Context) (*pipeline.Pipeline, func() error, error) {
	p, err := a.newPipeline()
	if err != nil {
		return nil, nil, err
	}
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return p, func() error { return <-done }, nil
}

func (a *app) problems() (store.ProblemStore, error) {
	if _, err := os.Stat(a.cfg.ProblemsDir); errors.Is(err, fs.ErrNotExist) {
		a.log.Warn("problem directory does not exist, serving no problems", slog.String("dir", a.cfg.ProblemsDir))
		return store.NewMemoryProblems()
	}
	return store.LoadProblemDir(a.cfg.ProblemsDir)
}

// submissions returns the store and a function closing it.
func (a *app) submissions() (store.SubmissionStore, func() error, error) {
	if a.cfg.SubmissionsDir == "" {
		return store.NewMemorySubmissions(), func() error { return nil }, nil
	}
	arch, err := store.OpenArchive(a.cfg.SubmissionsDir)
	if err != nil {
		return nil, nil, err
	}
	return arch, arch.Close, nil
}

// newService assembles a service over a running pipeline.
func (a *app) newService(judge service.Judge) (*service.Service, func() error, error) {
	problems, err := a.problems()
	if err != nil {
		return nil, nil, err
	}
	subms, closeSubms, err := a.submissions()
	if err != nil {
		return nil, nil, err
	}
	return service.New(a.langs, problems, subms, judge, a.log), closeSubms, nil
}
