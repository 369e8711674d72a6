package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/gateway"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	"github.com/radieske/updown-rounds-poc/internal/shared/logger"
	"github.com/radieske/updown-rounds-poc/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("api-gateway")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	h, err := gateway.New(cfg.RoundServiceURL, cfg.WalletServiceURL)
	if err != nil {
		log.Fatal("gateway upstreams", zap.Error(err))
	}

	metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("rounds", cfg.RoundServiceURL),
		zap.String("wallet", cfg.WalletServiceURL))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
