package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
	"github.com/imrishuroy/go-crm-backend/internal/client"
	"github.com/imrishuroy/go-crm-backend/internal/config"
	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/jobs"
	"github.com/imrishuroy/go-crm-backend/internal/runs"
	"github.com/imrishuroy/go-crm-backend/internal/store"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	var clients *aws.AWSClients
	if cfg.NeedsAWS() {
		var err error
		clients, err = aws.NewAWSClients(ctx)
		if err != nil {
			log.Fatalf("failed to init aws clients: %v", err)
		}
	}

	var api jobs.API
	if cfg.APIBaseURL != "" {
		log.Printf("[worker] jobs call the API at %s", cfg.APIBaseURL)
		api = client.New(cfg.APIBaseURL, cfg.JobTimeout)
	} else {
		opts := cfg.StoreOptions()
		if clients != nil {
			opts.DynamoDB = clients.DynamoDB
		}
		repo, err := store.Open(ctx, opts)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer repo.Close()
		log.Printf("[worker] jobs call the service in process")
		api = jobs.ServiceAPI{Service: crm.NewService(repo)}
	}

	var metrics jobs.MetricsRecorder
	if clients != nil && cfg.MetricsNamespace != "" {
		metrics = aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace)
	}

	registry := jobs.DefaultRegistry(api, cfg.JobLogPaths)
	runner := jobs.NewRunner(cfg.JobTimeout, metrics)

	if cfg.RunLocal {
		res, err := registry.RunByName(ctx, runner, cfg.LocalJob)
		if err != nil {
			log.Fatalf("local run: %v (known jobs: %v)", err, registry.Names())
		}
		log.Printf("[worker] local run job=%s status=%s", res.Job, res.Status)
		if !res.Succeeded() {
			os.Exit(1)
		}
		return
	}

	var ledger RunLedger
	if clients != nil && cfg.JobRunsTable != "" {
		ledger = runs.NewLedger(clients.DynamoDB, cfg.JobRunsTable, runs.DefaultTTL)
	}
	lambda.Start(NewProcessor(registry, runner, ledger).Handle)
}
