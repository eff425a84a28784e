package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/encode-dcc/serverless-rnaget/internal/logging"
	"github.com/encode-dcc/serverless-rnaget/internal/rnaget"
	appconfig "github.com/encode-dcc/serverless-rnaget/pkg/config"
)

func main() {
	// Every function shares this binary; _HANDLER selects the endpoint
	logger := logging.Setup(os.Getenv("_HANDLER"))

	// Load configuration
	cfg := appconfig.MustLoad()

	logger.Info("rnaget lambda starting",
		slog.String("stage", cfg.Stage.String()),
		slog.String("region", cfg.AWSRegion),
	)

	// Initialize AWS SDK
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		logger.Error("failed to load AWS config", slog.String("error", err.Error()))
		panic(fmt.Sprintf("failed to load AWS config: %v", err))
	}

	service, err := rnaget.NewFromConfig(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to create service", slog.String("error", err.Error()))
		panic(err.Error())
	}

	handler, err := service.Handler(cfg.Handler)
	if err != nil {
		logger.Error("unknown handler",
			slog.String("handler", cfg.Handler),
			slog.Any("available", rnaget.HandlerNames()),
		)
		panic(fmt.Sprintf("failed to resolve handler: %v", err))
	}

	// Start Lambda handler
	lambda.Start(handler)
}
