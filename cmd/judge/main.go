package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "judge:", err)
		os.Exit(1)
	}
}

func command() *cli.Command {
	return &cli.Command{
		Name:  "judge",
		Usage: "compile, run and judge programs against test cases",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file read before the environment", Value: ".env"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Sources: cli.EnvVars("JUDGE_LOG_LEVEL")},
			&cli.StringFlag{Name: "sandbox", Usage: "local or isolate", Sources: cli.EnvVars("JUDGE_SANDBOX")},
			&cli.IntFlag{Name: "workers", Usage: "number of concurrent judging workers", Sources: cli.EnvVars("JUDGE_WORKERS")},
			&cli.StringFlag{Name: "languages", Usage: "language registry TOML file", Sources: cli.EnvVars("JUDGE_LANGUAGES_FILE")},
			&cli.StringFlag{Name: "problems", Usage: "directory of problem TOML files", Sources: cli.EnvVars("JUDGE_PROBLEMS_DIR")},
		},
		Commands: []*cli.Command{
			serveCommand(),
			sqsCommand(),
			runCommand(),
			behaveCommand(),
			langsCommand(),
		},
	}
}
