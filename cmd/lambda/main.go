package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/generator"
	lambdatransport "github.com/teranos/threatbrief/internal/transport/lambdatransport"
	"github.com/teranos/threatbrief/logger"
)

func main() {
	if err := logger.InitializeForLambda(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	cfg, err := am.Load()
	if err != nil {
		logger.Errorw("Failed to load configuration", logger.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorw("Invalid configuration", logger.FieldError, err)
		os.Exit(1)
	}

	// No metrics collector: Lambda instances are not scraped
	svc, err := generator.NewFromConfig(cfg, nil, logger.ComponentLogger("generator"))
	if err != nil {
		logger.Errorw("Failed to build report service", logger.FieldError, err)
		os.Exit(1)
	}

	h := lambdatransport.NewHandler(svc, cfg.Render.KeepArtifacts, logger.ComponentLogger("lambda"))
	lambda.Start(h.GenerateReport)
}
