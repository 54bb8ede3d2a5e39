package main

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/config"
	"github.com/cafelumiere/orderflow/internal/kitchen"
	"github.com/cafelumiere/orderflow/internal/metrics"
	"github.com/cafelumiere/orderflow/internal/resilient"
	"github.com/cafelumiere/orderflow/internal/server"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	z, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	sugaredLogger := z.Sugar()
	defer sugaredLogger.Sync()

	cfg, err := config.NewKitchen(os.Args[1:])
	if err != nil {
		sugaredLogger.Fatal(err)
	}

	m := metrics.New("kitchen", prometheus.NewRegistry())
	client := resilient.New(cfg.Client, sugaredLogger, resilient.WithObserver(m.ObserveUpstream))

	service := kitchen.NewService(kitchen.NewStoreClient(cfg.OrderServiceURL, client), sugaredLogger)
	handlers := kitchen.NewHandlers(service, sugaredLogger)

	app := server.New("kitchen", sugaredLogger, m)
	handlers.Register(app)

	sugaredLogger.Infof("Order store at %s", cfg.OrderServiceURL)
	server.Run(app, cfg.RunAddress, sugaredLogger)
}
