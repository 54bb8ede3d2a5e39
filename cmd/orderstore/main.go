package main

import (
	"context"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/config"
	"github.com/cafelumiere/orderflow/internal/events"
	"github.com/cafelumiere/orderflow/internal/metrics"
	"github.com/cafelumiere/orderflow/internal/server"
	"github.com/cafelumiere/orderflow/internal/store"
)

func main() {
	//decimals at json as numbers
	//https://github.com/shopspring/decimal/issues/21
	decimal.MarshalJSONWithoutQuotes = true

	z, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	sugaredLogger := z.Sugar()
	defer sugaredLogger.Sync()

	cfg, err := config.NewStore(os.Args[1:])
	if err != nil {
		sugaredLogger.Fatal(err)
	}

	db, err := store.Connect(context.Background(), cfg.DatabaseURI, cfg.ConnectAttempts, cfg.ConnectBackoff, sugaredLogger)
	if err != nil {
		sugaredLogger.Fatal(err)
	}
	defer db.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, sugaredLogger)
		if err != nil {
			sugaredLogger.Fatal(err)
		}
	}
	defer publisher.Close()

	repository := store.NewRepository(db, sugaredLogger)
	service := store.NewService(repository, publisher, cfg.Policy, sugaredLogger)
	handlers := store.NewHandlers(service, sugaredLogger)

	app := server.New("order-store", sugaredLogger, metrics.New("order_store", prometheus.NewRegistry()))
	handlers.Register(app)

	sugaredLogger.Infof("Transition policy: %s", cfg.Policy)
	server.Run(app, cfg.RunAddress, sugaredLogger)
}
