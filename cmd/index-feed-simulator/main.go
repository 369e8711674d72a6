package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/index-feed/simulator"
	"github.com/radieske/updown-rounds-poc/internal/round/index"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	"github.com/radieske/updown-rounds-poc/internal/shared/logger"
	"github.com/radieske/updown-rounds-poc/internal/shared/metrics"
)

// Métricas Prometheus para monitoramento de conexões e mensagens
var (
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "index_feed_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	ticksSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "index_feed_ticks_total",
		Help: "Total de ticks gerados",
	})
	wsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "index_feed_ws_dropped_total",
		Help: "Clientes lentos desconectados",
	})
)

func main() {
	cfg := config.LoadFor("index-feed-simulator")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	start, err := decimal.NewFromString(cfg.IndexStart)
	if err != nil {
		log.Fatal("INDEX_START", zap.Error(err))
	}
	step, err := decimal.NewFromString(cfg.IndexStep)
	if err != nil {
		log.Fatal("INDEX_MAX_STEP", zap.Error(err))
	}

	prometheus.MustRegister(wsConnections, ticksSent, wsDropped)

	sim := simulator.New(index.NewRandomWalk(start, step, 0), cfg.IndexTick, log)
	sim.OnTick = ticksSent.Inc
	sim.Hub().OnConnect = wsConnections.Inc
	sim.Hub().OnDisconnect = wsConnections.Dec
	sim.Hub().OnDropped = wsDropped.Inc

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go sim.Run(ctx)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	publicSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("index feed simulator running",
			zap.String("addr", publicSrv.Addr),
			zap.String("paths", "/ws,/v1/index/current"),
			zap.Duration("tick", cfg.IndexTick),
		)
		if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
	defer stop()
	_ = publicSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
