// Package main provides a local mock of the try-on inference service,
// implementing the same HTTP contract the engine consumes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dressly/tryon/internal/mockserver"
	"github.com/dressly/tryon/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "tryon-mock-server",
		EnableShellCompletion: true,
		Usage:                 "Serve a mock try-on inference service for local development",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Port to listen on",
				Value:   8890,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithComponent("mockserver")
			logger.InfoContext(ctx, "starting mock try-on service", "port", command.Int("port"))

			server := mockserver.New(logger)

			return server.Start(int(command.Int("port")))
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
