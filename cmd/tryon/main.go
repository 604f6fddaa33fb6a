// Package main provides the tryon CLI: it drives the full try-on workflow
// against a running inference service using a photo file as the capture
// collaborator.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dressly/tryon/pkg/client"
	"github.com/dressly/tryon/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "tryon",
		EnableShellCompletion: true,
		Usage:                 "Run virtual try-on workflows from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Capture a photo from a file, preprocess it and submit a try-on",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "server-url",
						Usage:   "Base URL of the try-on inference service",
						Sources: cli.EnvVars("TRYON_SERVER_URL"),
					},
					&cli.StringFlag{
						Name:    "config",
						Usage:   "Path to a YAML profile with defaults for the other flags",
						Sources: cli.EnvVars("TRYON_CONFIG"),
					},
					&cli.StringFlag{
						Name:     "photo",
						Usage:    "Path to the person photo",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "garment",
						Usage: "Catalog garment id (falls back to the first entry)",
					},
					&cli.StringFlag{
						Name:    "catalog",
						Usage:   "Path to an external catalog JSON file",
						Sources: cli.EnvVars("TRYON_CATALOG"),
					},
					&cli.StringFlag{
						Name:    "cache-dir",
						Usage:   "Directory for resolved garment files",
						Sources: cli.EnvVars("TRYON_CACHE_DIR"),
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Where to write the composed result image",
						Value: "tryon-result.png",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "End-to-end ceiling for the try-on call",
						Value: client.DefaultSubmitTimeout,
					},
					&cli.DurationFlag{
						Name:  "preprocess-wait",
						Usage: "How long to wait for the background preprocess token before submitting",
						Value: 2 * time.Second,
					},
					&cli.StringFlag{
						Name:    "event-bus",
						Usage:   "Event bus provider for lifecycle events",
						Value:   "memory",
						Sources: cli.EnvVars("TRYON_EVENT_BUS"),
					},
					&cli.BoolFlag{
						Name:    "trace",
						Usage:   "Export OTLP traces for this run",
						Sources: cli.EnvVars("TRYON_TRACE"),
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Print the diagnostic log after the run",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return runTryOn(ctx, command)
				},
			},
			{
				Name:  "garments",
				Usage: "List the garments available in the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "catalog",
						Usage:   "Path to an external catalog JSON file",
						Sources: cli.EnvVars("TRYON_CATALOG"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return listGarments(command)
				},
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
