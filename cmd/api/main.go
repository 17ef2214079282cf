package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"guidance-chat/handler"
	"guidance-chat/internal/config"
	"guidance-chat/internal/dispatch"
	"guidance-chat/internal/integrations/paramstore"
	"guidance-chat/internal/repository"
	"guidance-chat/internal/task"
	"guidance-chat/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(ctx, params)
	if err != nil {
		fatal("failed to load configuration", err)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// ---- Clients ----
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		fatal("failed to create state client", err)
	}
	queue, err := dispatch.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		fatal("failed to create task queue client", err)
	}
	scheduler, err := task.NewScheduler(queue)
	if err != nil {
		fatal("failed to create guidance scheduler", err)
	}

	// ---- Handler ----
	svc, err := usecase.NewConversationService(store, scheduler, logger)
	if err != nil {
		fatal("failed to create conversation service", err)
	}
	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
