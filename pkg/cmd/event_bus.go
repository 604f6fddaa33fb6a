// Package cmd provides common initialization functions for the command-line
// binaries.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dressly/tryon/pkg/channels/gochannel"
	"github.com/dressly/tryon/pkg/eventbus"
)

// NewEventBus creates a workflow event bus instance based on the provider.
// The engine runs in-process, so "memory" is the only provider today; the
// switch keeps the seam for a broker-backed bus.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "", "memory":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
