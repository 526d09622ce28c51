package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/evalmate-go-client/internal/chat"
	"github.com/noah-isme/evalmate-go-client/internal/cli"
	"github.com/noah-isme/evalmate-go-client/internal/config"
	"github.com/noah-isme/evalmate-go-client/internal/evaluation"
	"github.com/noah-isme/evalmate-go-client/internal/export"
	"github.com/noah-isme/evalmate-go-client/internal/observability"
	"github.com/noah-isme/evalmate-go-client/internal/progress"
	"github.com/noah-isme/evalmate-go-client/internal/state"
	"github.com/noah-isme/evalmate-go-client/internal/uploads"
	"github.com/noah-isme/evalmate-go-client/pkg/evalmate"
)

func main() {
	command, done, err := cli.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		log.Fatalf("failed to parse arguments: %v", err)
	}
	if done {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if level, levelErr := zerolog.ParseLevel(cfg.LogLevel); levelErr == nil {
		logger = logger.Level(level)
	}

	client, err := evalmate.New(evalmate.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create api client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.ServeMetrics(ctx, cfg.MetricsAddr, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := state.NewStore(logger)

	renderer := cli.NewProgressRenderer(os.Stdout)
	est := progress.New(progress.Config{}, renderer.Render, logger)

	queue := uploads.New(client, store, est, validate, cfg.MaxUploadMB, logger)
	queue.Start(ctx)
	defer queue.Close()

	orch := evaluation.New(client, store, est, cfg.MinStageDuration, logger)

	chatMgr := chat.NewManager(client, store, chat.Config{
		Temperature:  cfg.ChatTemperature,
		MaxTokens:    cfg.ChatMaxTokens,
		HistoryLimit: cfg.ChatHistoryLimit,
		SessionTTL:   cfg.ChatSessionTTL,
	}, logger)
	defer chatMgr.Close(context.Background())

	app := cli.NewApp(cli.Dependencies{
		Backend:      client,
		Store:        store,
		Queue:        queue,
		Orchestrator: orch,
		Chat:         chatMgr,
		Export:       export.NewWriter(cfg.DataDir, logger),
		Input:        os.Stdin,
		Output:       os.Stdout,
		Logger:       logger,
	})

	var runErr error
	switch command {
	case cli.CommandStatus:
		runErr = app.Status(ctx)
	case cli.CommandHealth:
		runErr = app.Health(ctx)
	default:
		runErr = app.Run(ctx)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error().Err(runErr).Msg("command failed")
		os.Exit(1)
	}
}
