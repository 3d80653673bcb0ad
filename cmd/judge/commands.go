package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/judge/internal/behave"
	"github.com/programme-lv/judge/internal/gatherer/termgath"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/service"
	"github.com/programme-lv/judge/internal/store"
	"github.com/programme-lv/judge/internal/transport"
	"github.com/programme-lv/judge/internal/transport/natsrpc"
	"github.com/programme-lv/judge/internal/transport/sqsq"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve judge requests over NATS, and over SQS when a request queue is configured",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "nats-url", Sources: cli.EnvVars("JUDGE_NATS_URL")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("nats-url") {
				a.cfg.NatsUrl = cmd.String("nats-url")
			}
			nc, err := nats.Connect(a.cfg.NatsUrl, nats.Name("judge"))
			if err != nil {
				return fmt.Errorf("connect to nats: %w", err)
			}
			defer nc.Close()

			return a.serve(ctx, natsrpc.StreamFactory(nc, a.log), func(g *errgroup.Group, ctx context.Context, h *transport.Handler) {
				g.Go(func() error { return natsrpc.New(nc, h, a.log).Serve(ctx) })
			})
		},
	}
}

func sqsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sqs",
		Usage: "consume judge requests from an SQS queue",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			if a.cfg.SqsRequestUrl == "" {
				return errors.New("JUDGE_SQS_REQUEST_URL is not set")
			}
			return a.serve(ctx, nil, nil)
		},
	}
}

// serve runs the pipeline, the given transports and, when configured, the
// SQS consumer until ctx is done or one of them fails.
func (a *app) serve(ctx context.Context, stream transport.StreamFactory,
	transports func(g *errgroup.Group, ctx context.Context, h *transport.Handler)) error {
	p, err := a.newPipeline()
	if err != nil {
		return err
	}
	svc, closeSubms, err := a.newService(p)
	if err != nil {
		return err
	}
	defer closeSubms()
	h := transport.NewHandler(svc, stream)

	var consumer *sqsq.Consumer
	if a.cfg.SqsRequestUrl != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(a.cfg.AwsRegion))
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		consumer = sqsq.New(sqs.NewFromConfig(awsCfg), sqsq.Config{
			RequestQueueUrl:  a.cfg.SqsRequestUrl,
			ResponseQueueUrl: a.cfg.SqsResponseUrl,
			Pollers:          a.cfg.Workers,
		}, h, a.log)
	}

	return superviseServing(ctx, p.Run, func(g *errgroup.Group, ctx context.Context) {
		if transports != nil {
			transports(g, ctx, h)
		}
		if consumer != nil {
			g.Go(func() error { return consumer.Run(ctx) })
		}
	})
}

// superviseServing runs the pipeline next to the transports. A failing
// pipeline stops the transports, while the pipeline is only stopped once
// every transport has returned so requests already admitted can finish.
func superviseServing(ctx context.Context, runPipeline func(context.Context) error,
	transports func(g *errgroup.Group, ctx context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)
	pctx, stopPipeline := context.WithCancel(context.WithoutCancel(ctx))
	defer stopPipeline()

	g.Go(func() error { return runPipeline(pctx) })
	g.Go(func() error {
		defer stopPipeline()
		tg, tctx := errgroup.WithContext(gctx)
		transports(tg, tctx)
		return tg.Wait()
	})
	return g.Wait()
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "judge a source file against inline test cases",
		ArgsUsage: "<source file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Usage: "language name, guessed from the file extension when empty"},
			&cli.StringFlag{Name: "lang-version", Usage: "language version"},
			&cli.StringSliceFlag{Name: "in", Usage: "test input, repeat for more tests"},
			&cli.StringSliceFlag{Name: "ans", Usage: "expected output of the matching --in"},
			&cli.IntFlag{Name: "time-ms", Usage: "time limit, the language default when zero"},
			&cli.IntFlag{Name: "memory-bytes", Usage: "memory limit, the language default when zero"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print the output of every test"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("source file is required")
			}
			code, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			ref, err := guessLanguage(a.langs, path, cmd.String("lang"), cmd.String("lang-version"))
			if err != nil {
				return err
			}
			ins, answers := cmd.StringSlice("in"), cmd.StringSlice("ans")
			if len(ins) == 0 || len(ins) != len(answers) {
				return errors.New("give at least one --in and exactly one --ans per --in")
			}
			tests := make([]verdict.TestCase, len(ins))
			for i := range ins {
				tests[i] = verdict.TestCase{ID: int64(i + 1), Input: ins[i], Output: answers[i]}
			}

			a.cfg.Workers = 1
			pctx, cancel := context.WithCancel(ctx)
			defer cancel()
			p, waitPipeline, err := a.startPipeline(pctx)
			if err != nil {
				return err
			}
			problems, _ := store.NewMemoryProblems()
			svc := service.New(a.langs, problems, store.NewMemorySubmissions(), p, a.log)

			gath := termgath.New(os.Stdout)
			gath.Verbose = cmd.Bool("verbose")
			_, err = svc.Test(ctx, service.TestRequest{
				Code:             string(code),
				Language:         ref,
				Tests:            tests,
				TimeLimitMs:      int64(cmd.Int("time-ms")),
				MemoryLimitBytes: int64(cmd.Int("memory-bytes")),
				Gatherer:         gath,
			})
			cancel()
			return errors.Join(err, waitPipeline())
		},
	}
}

// guessLanguage picks the first registered language using the file's
// extension when no name is given.
func guessLanguage(langs *lang.Registry, path, name, version string) (store.LanguageRef, error) {
	if name != "" {
		spec, err := langs.Resolve(name, version)
		if err != nil {
			return store.LanguageRef{}, err
		}
		return store.LanguageRef{Name: spec.Name, Version: spec.Version}, nil
	}
	ext := filepath.Ext(path)
	for _, spec := range langs.Languages() {
		if ext != "" && spec.FileExtension() == ext {
			return store.LanguageRef{Name: spec.Name, Version: spec.Version}, nil
		}
	}
	return store.LanguageRef{}, fmt.Errorf("%w: no language for %q files, use --lang", lang.ErrUnknownLanguage, ext)
}

func behaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "behave",
		Usage:     "run behaviour scenarios from a TOML file",
		ArgsUsage: "<scenarios.toml>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("scenario file is required")
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			suite, err := behave.ParseFile(path)
			if err != nil {
				return err
			}
			if a.langs, err = suite.Registry(a.langs); err != nil {
				return err
			}

			pctx, cancel := context.WithCancel(ctx)
			defer cancel()
			p, waitPipeline, err := a.startPipeline(pctx)
			if err != nil {
				return err
			}
			problems, _ := store.NewMemoryProblems()
			svc := service.New(a.langs, problems, store.NewMemorySubmissions(), p, a.log)

			rep, err := behave.Run(ctx, svc, suite.Cases, os.Stdout)
			cancel()
			if err := errors.Join(err, waitPipeline()); err != nil {
				return err
			}
			if rep.Failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", rep.Failed, rep.Failed+rep.Passed)
			}
			return nil
		},
	}
}

func langsCommand() *cli.Command {
	return &cli.Command{
		Name:  "langs",
		Usage: "list the language registry",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			for _, s := range a.langs.Languages() {
				kind := "interpreted"
				if s.Kind() == lang.Compiled {
					kind = "compiled"
				}
				fmt.Printf("%-12s %-8s %-12s %-12s %s\n", s.Name, s.Version, kind, s.SourceFile, s.RunCmd)
			}
			return nil
		},
	}
}
