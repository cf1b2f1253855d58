package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
	"github.com/imrishuroy/go-crm-backend/internal/config"
	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/handlers"
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

	opts := cfg.StoreOptions()
	if clients != nil {
		opts.DynamoDB = clients.DynamoDB
	}
	repo, err := store.Open(ctx, opts)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer repo.Close()

	hc := handlers.HandlerConfig{Service: crm.NewService(repo), RequestLogging: cfg.RunLocal}
	if clients != nil {
		hc.Events = aws.NewPublisher(clients.SQS, cfg.EventsQueueURL)
		hc.Jobs = aws.NewPublisher(clients.SQS, cfg.JobsQueueURL)
	}
	r := handlers.NewRouter(hc)

	if cfg.RunLocal {
		runLocal(r, ":"+cfg.Port)
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// runLocal serves r until SIGINT/SIGTERM, then drains in-flight requests.
func runLocal(r *gin.Engine, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[api] running local server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run local server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[api] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[api] forced shutdown: %v", err)
	}
}
