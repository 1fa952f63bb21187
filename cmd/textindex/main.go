// Package main is a command line client for the add-to-text-index API. It
// talks to the API directly and needs no gateway, database or cache.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiranshivaraju/textindex/pkg/textindex"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Results go to stdout, logs to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	// Flags hold parsed state, so every command gets its own instances.
	intervalFlag := func() cli.Flag {
		return &cli.DurationFlag{
			Name:  "interval",
			Usage: "polling interval used with --wait",
			Value: textindex.DefaultPollInterval,
		}
	}
	submitFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "index",
				Aliases:  []string{"i"},
				Usage:    "name of the text index to add to",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "additional parameter as key=value, may be repeated",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "wait for the job to finish and print its result",
			},
			intervalFlag(),
		}
	}

	return &cli.Command{
		Name:  "textindex",
		Usage: "add documents to a text index and follow the resulting jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path of an env file to load",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "API base URL, overrides IOD_BASE_URL",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "API key, overrides IOD_API_KEY",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout, overrides IOD_TIMEOUT",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "submit content for indexing",
				Commands: []*cli.Command{
					{
						Name:      "json",
						Usage:     "index JSON documents read from files (\"-\" for stdin)",
						ArgsUsage: "FILE...",
						Flags:     submitFlags(),
						Action:    submitJSONAction,
					},
					{
						Name:      "file",
						Usage:     "index the content of a file",
						ArgsUsage: "PATH",
						Flags:     submitFlags(),
						Action:    submitFileAction,
					},
					{
						Name:      "reference",
						Usage:     "index a previously uploaded object store reference",
						ArgsUsage: "REFERENCE",
						Flags:     submitFlags(),
						Action:    submitReferenceAction,
					},
					{
						Name:      "url",
						Usage:     "index the document at a public URL",
						ArgsUsage: "URL",
						Flags:     submitFlags(),
						Action:    submitURLAction,
					},
				},
			},
			{
				Name:      "status",
				Usage:     "show the current status of a job",
				ArgsUsage: "JOB_ID",
				Action:    statusAction,
			},
			{
				Name:      "result",
				Usage:     "show the result of a job, waiting server-side until it completes",
				ArgsUsage: "JOB_ID",
				Action:    resultAction,
			},
			{
				Name:      "wait",
				Usage:     "poll a job until it finishes, then show its result",
				ArgsUsage: "JOB_ID",
				Flags:     []cli.Flag{intervalFlag()},
				Action:    waitAction,
			},
		},
	}
}
