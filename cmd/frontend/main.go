package main

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/config"
	"github.com/cafelumiere/orderflow/internal/frontend"
	"github.com/cafelumiere/orderflow/internal/metrics"
	"github.com/cafelumiere/orderflow/internal/server"
)

func main() {
	z, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	sugaredLogger := z.Sugar()
	defer sugaredLogger.Sync()

	cfg, err := config.NewFrontend(os.Args[1:])
	if err != nil {
		sugaredLogger.Fatal(err)
	}

	gateway := frontend.NewGateway(cfg.OrderServiceURL, cfg.KitchenServiceURL, cfg.ForwardTimeout, sugaredLogger)

	app := server.New("frontend", sugaredLogger, metrics.New("frontend", prometheus.NewRegistry()))
	gateway.Register(app)

	server.Run(app, cfg.RunAddress, sugaredLogger)
}
