package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round-events/pools"
	"github.com/radieske/updown-rounds-poc/internal/round/bootstrap"
	"github.com/radieske/updown-rounds-poc/internal/round/clock"
	httpapi "github.com/radieske/updown-rounds-poc/internal/round/http"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	roundmetrics "github.com/radieske/updown-rounds-poc/internal/round/metrics"
	"github.com/radieske/updown-rounds-poc/internal/round/producer"
	"github.com/radieske/updown-rounds-poc/internal/round/snapcache"
	"github.com/radieske/updown-rounds-poc/internal/round/ws"
	sharedcache "github.com/radieske/updown-rounds-poc/internal/shared/cache"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	"github.com/radieske/updown-rounds-poc/internal/shared/logger"
	"github.com/radieske/updown-rounds-poc/internal/shared/metrics"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

func main() {
	cfg := config.LoadFor("round-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.OpenStores(cfg)
	if err != nil {
		log.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	mcfg, err := bootstrap.MachineConfig(cfg)
	if err != nil {
		log.Fatal("round config", zap.Error(err))
	}
	rm := roundmetrics.New(prometheus.DefaultRegisterer)

	// STORE_DRIVER=memory roda tudo em um processo: relógio embutido e hub alimentado direto
	embedded := cfg.StoreDriver == "memory"

	var rdb *redis.Client
	if !embedded {
		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
	}

	var m *machine.Machine
	hub := ws.NewHub(func(*http.Request) bool { return true }, func(ctx context.Context) ([]byte, bool) {
		r, err := m.CurrentRound(ctx)
		if err != nil {
			return nil, false
		}
		b, err := json.Marshal(events.RoundEvent{
			Type:    events.RoundCurrent,
			Round:   machine.Snapshot(r),
			Version: r.Version,
			Ts:      time.Now().UTC(),
		})
		return b, err == nil
	}, log.Named("ws"))
	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{Name: "round_ws_connections", Help: "clientes websocket conectados"})
	prometheus.MustRegister(wsClients)
	hub.OnConnect = wsClients.Inc
	hub.OnDisconnect = wsClients.Dec

	var pub machine.Publisher
	var index machine.IndexSource
	if embedded {
		pub = ws.LocalPublisher{Hub: hub}
		index, err = bootstrap.IndexSource(ctx, cfg, log, nil)
		if err != nil {
			log.Fatal("index source", zap.Error(err))
		}
	} else {
		kp := producer.NewKafkaPublisher(cfg.Brokers(), cfg.TopicRoundEvents, cfg.TopicWagerPlaced, log.Named("producer"))
		defer kp.Close()
		pub = kp
	}

	m = machine.New(mcfg, machine.Deps{
		Store:     stores.Rounds,
		Ledger:    stores.Ledger,
		Index:     index,
		Publisher: pub,
		Hooks:     rm.MachineHooks(),
		Log:       log.Named("machine"),
	})

	api := &httpapi.API{Rounds: m, WS: hub.HandleWS, Log: log}
	if rdb != nil {
		api.Cache = snapcache.New(rdb, 0)
		api.Pools = pools.New(rdb, 0)
		ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log.Named("ws"))
	}

	if embedded {
		c := clock.New(m, clock.SingleNodeLeader{}, cfg.ClockTick, log.Named("clock"), rm.ClockHooks())
		if err := c.Start(); err != nil {
			log.Fatal("clock start", zap.Error(err))
		}
		defer c.Stop(context.Background())
	}

	health := []metrics.HealthFunc{stores.Health}
	if rdb != nil {
		health = append(health, sharedcache.Health(rdb))
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(health...), log)

	handler := api.Router()
	if embedded {
		handler = bootstrap.EmbeddedHandler(handler, stores.Wallet, log.Named("wallet"))
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr), zap.Bool("embeddedClock", embedded))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("round-service stopped")
}
