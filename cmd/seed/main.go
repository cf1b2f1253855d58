package main

import (
	"context"
	"log"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
	"github.com/imrishuroy/go-crm-backend/internal/config"
	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/store"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	opts := cfg.StoreOptions()
	if opts.Backend == store.BackendDynamoDB {
		clients, err := aws.NewAWSClients(ctx)
		if err != nil {
			log.Fatalf("failed to init aws clients: %v", err)
		}
		opts.DynamoDB = clients.DynamoDB
	}
	repo, err := store.Open(ctx, opts)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer repo.Close()

	sum, err := Seed(ctx, crm.NewService(repo))
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	log.Printf("[seed] customers created=%d existing=%d, products created=%d existing=%d",
		sum.CustomersCreated, sum.CustomersExisted, sum.ProductsCreated, sum.ProductsExisted)
}
