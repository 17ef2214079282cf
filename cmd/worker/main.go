package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"guidance-chat/internal/config"
	"guidance-chat/internal/dispatch"
	"guidance-chat/internal/integrations/paramstore"
	"guidance-chat/internal/repository"
	"guidance-chat/internal/task"
	"guidance-chat/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}
	cfg, err := config.Load(ctx, params)
	if err != nil {
		fatal("failed to load configuration", err)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		fatal("failed to create state client", err)
	}
	queue, err := dispatch.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		fatal("failed to create task queue client", err)
	}
	defer queue.Close()
	scheduler, err := task.NewScheduler(queue)
	if err != nil {
		fatal("failed to create guidance scheduler", err)
	}
	svc, err := usecase.NewConversationService(store, scheduler, logger)
	if err != nil {
		fatal("failed to create conversation service", err)
	}
	analyzer, err := usecase.NewGuidanceAnalyzer(svc, store, logger)
	if err != nil {
		fatal("failed to create guidance analyzer", err)
	}

	srv, err := dispatch.NewAsynqServer(cfg.RedisURL, cfg.Concurrency, cfg.Queues, logger)
	if err != nil {
		fatal("failed to create worker server", err)
	}
	if err := task.RegisterAnalyzeGuidance(srv, analyzer); err != nil {
		fatal("failed to register tasks", err)
	}

	logger.Info("worker starting", "concurrency", cfg.Concurrency, "queues", cfg.Queues)
	if err := srv.Run(ctx); err != nil {
		fatal("worker stopped", err)
	}
	logger.Info("worker stopped")
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
