package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dressly/tryon/pkg/assets"
	"github.com/dressly/tryon/pkg/catalog"
	"github.com/dressly/tryon/pkg/client"
	"github.com/dressly/tryon/pkg/cmd"
	"github.com/dressly/tryon/pkg/config"
	"github.com/dressly/tryon/pkg/diag"
	"github.com/dressly/tryon/pkg/eventbus"
	"github.com/dressly/tryon/pkg/events"
	"github.com/dressly/tryon/pkg/log"
	"github.com/dressly/tryon/pkg/otelhelper"
	"github.com/dressly/tryon/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// loadProfile layers explicitly-set flags over the optional YAML profile over
// built-in defaults.
func loadProfile(command *cli.Command) (config.Profile, error) {
	defaults := config.Profile{
		Out:            "tryon-result.png",
		SubmitTimeout:  client.DefaultSubmitTimeout,
		PreprocessWait: 2 * time.Second,
	}

	if path := command.String("config"); path != "" {
		loaded, err := config.LoadProfile(path)
		if err != nil {
			return config.Profile{}, err
		}

		defaults = loaded.Merge(defaults)
	}

	flags := config.Profile{
		ServerURL: command.String("server-url"),
		Catalog:   command.String("catalog"),
		CacheDir:  command.String("cache-dir"),
	}

	if command.IsSet("out") {
		flags.Out = command.String("out")
	}

	if command.IsSet("timeout") {
		flags.SubmitTimeout = command.Duration("timeout")
	}

	if command.IsSet("preprocess-wait") {
		flags.PreprocessWait = command.Duration("preprocess-wait")
	}

	profile := flags.Merge(defaults)
	if profile.ServerURL == "" {
		return config.Profile{}, fmt.Errorf("server URL is required (--server-url, TRYON_SERVER_URL or the config file)")
	}

	return profile, nil
}

func runTryOn(ctx context.Context, command *cli.Command) error {
	logger := log.WithComponent("cli")

	profile, err := loadProfile(command)
	if err != nil {
		return err
	}

	provider, err := loadCatalog(profile.Catalog)
	if err != nil {
		return err
	}

	bundle, err := catalog.Assets()
	if err != nil {
		return fmt.Errorf("failed to open bundled assets: %w", err)
	}

	diagnostic := diag.NewLog(0)

	resolver, err := assets.NewResolver(bundle, profile.CacheDir, log.WithComponent("assets"), diagnostic)
	if err != nil {
		return err
	}

	cfg := client.NewConfig(profile.ServerURL)
	cfg.SubmitTimeout = profile.SubmitTimeout

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid client configuration: %w", err)
	}

	tracer := otelhelper.NoopTracer()
	if command.Bool("trace") {
		tracer, err = otelhelper.NewTracer(ctx, "tryon-cli")
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	bus := cmd.NewEventBus(command.String("event-bus"), log.WithComponent("eventbus"))
	defer bus.Close()

	if err := attachDebugHandlers(ctx, bus, logger); err != nil {
		return err
	}

	source := filePhotoSource{path: command.String("photo")}

	controller := workflow.NewController(workflow.Deps{
		Capture:      source,
		Picker:       source,
		Preprocessor: client.NewPreprocessClient(cfg, log.WithComponent("preprocess"), diagnostic, tracer),
		Submitter:    client.NewTryOnClient(cfg, log.WithComponent("tryon"), diagnostic, tracer),
		Resolver:     resolver,
		Catalog:      provider,
		Bus:          bus,
		Diagnostic:   diagnostic,
		Logger:       log.WithComponent("workflow"),
		Tracer:       tracer,
	})

	garment := controller.SelectGarment(command.String("garment"))
	logger.InfoContext(ctx, "running try-on", "garment", garment.ID, "cloth_type", garment.ClothType)

	if err := controller.PickFromGallery(ctx); err != nil {
		return err
	}

	waitForToken(ctx, controller, profile.PreprocessWait)

	err = controller.Submit(ctx)
	snapshot := controller.Snapshot()

	// The diagnostic log is the bug-report artifact: always shown on failure,
	// opt-in on success.
	if command.Bool("verbose") || err != nil {
		fmt.Fprintln(os.Stderr, diagnostic.Export())
	}

	if err != nil {
		if snapshot.ErrorMessage != "" {
			fmt.Fprintln(os.Stderr, snapshot.ErrorMessage)
		}

		return err
	}

	if snapshot.Result == nil {
		return fmt.Errorf("workflow finished in step %s without a result", snapshot.Step)
	}

	if err := os.WriteFile(profile.Out, snapshot.Result.Image, 0o644); err != nil {
		return fmt.Errorf("failed to write result image: %w", err)
	}

	logger.InfoContext(ctx, "result written", "path", profile.Out, "mime_type", snapshot.Result.MimeType)

	return nil
}

func listGarments(command *cli.Command) error {
	provider, err := loadCatalog(command.String("catalog"))
	if err != nil {
		return err
	}

	for _, garment := range provider.Garments() {
		fmt.Printf("%-16s %-10s %s\n", garment.ID, garment.ClothType, garment.Name)
	}

	return nil
}

func loadCatalog(path string) (*catalog.Provider, error) {
	if path == "" {
		return catalog.NewDefault()
	}

	return catalog.Load(path)
}

// attachDebugHandlers mirrors workflow lifecycle events into the debug log.
func attachDebugHandlers(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	for _, eventType := range []events.EventType{
		events.StepChangedEvent,
		events.PreprocessStartedEvent,
		events.PreprocessFinishedEvent,
		events.SubmissionStartedEvent,
		events.SubmissionCompletedEvent,
		events.SubmissionFailedEvent,
	} {
		if err := bus.Handle(eventType, func(ctx context.Context, event any) error {
			logger.DebugContext(ctx, "workflow event", "event", fmt.Sprintf("%+v", event))

			return nil
		}); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}

// waitForToken gives the background preprocess call a short window to finish
// so the submission can ride on the cache key. Submitting earlier is always
// correct, just heavier on the wire.
func waitForToken(ctx context.Context, controller *workflow.Controller, wait time.Duration) {
	if wait <= 0 {
		return
	}

	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if controller.Snapshot().HasToken {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
