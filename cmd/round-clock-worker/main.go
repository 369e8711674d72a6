package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/bootstrap"
	"github.com/radieske/updown-rounds-poc/internal/round/clock"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	roundmetrics "github.com/radieske/updown-rounds-poc/internal/round/metrics"
	"github.com/radieske/updown-rounds-poc/internal/round/producer"
	sharedcache "github.com/radieske/updown-rounds-poc/internal/shared/cache"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	sharedkafka "github.com/radieske/updown-rounds-poc/internal/shared/kafka"
	"github.com/radieske/updown-rounds-poc/internal/shared/logger"
	"github.com/radieske/updown-rounds-poc/internal/shared/metrics"
)

func main() {
	once := flag.Bool("once", false, "executa um único Advance e sai (cron/serverless)")
	flag.Parse()

	cfg := config.LoadFor("round-clock-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

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

	feedTicks := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_index_feed_ticks_total", Help: "ticks recebidos do feed de índice"})
	prometheus.MustRegister(feedTicks)
	index, err := bootstrap.IndexSource(ctx, cfg, log, feedTicks.Inc)
	if err != nil {
		log.Fatal("index source", zap.Error(err))
	}

	if sharedkafka.DevEnv(cfg.Env) {
		tctx, tcancel := context.WithTimeout(ctx, 10*time.Second)
		if err := sharedkafka.EnsureTopics(tctx, cfg.Brokers(), cfg.TopicRoundEvents, cfg.TopicWagerPlaced, cfg.TopicRoundEventsDLQ); err != nil {
			log.Warn("ensure kafka topics", zap.Error(err))
		}
		tcancel()
	}
	pub := producer.NewKafkaPublisher(cfg.Brokers(), cfg.TopicRoundEvents, cfg.TopicWagerPlaced, log.Named("producer"))
	defer pub.Close()

	rm := roundmetrics.New(prometheus.DefaultRegisterer)
	m := machine.New(mcfg, machine.Deps{
		Store:     stores.Rounds,
		Ledger:    stores.Ledger,
		Index:     index,
		Publisher: pub,
		Hooks:     rm.MachineHooks(),
		Log:       log.Named("machine"),
	})

	if *once {
		// cron é o único driver; os CAS do store cobrem execuções sobrepostas
		c := clock.New(m, clock.SingleNodeLeader{}, cfg.ClockTick, log.Named("clock"), rm.ClockHooks())
		waitIndex(ctx, index, 5*time.Second)
		if err := c.Tick(ctx); err != nil {
			log.Error("advance failed", zap.Error(err))
			log.Sync()
			os.Exit(1)
		}
		log.Info("advance done")
		return
	}

	var leader clock.Leader = clock.SingleNodeLeader{}
	health := []metrics.HealthFunc{stores.Health}
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	switch {
	case err == nil:
		defer rdb.Close()
		rl := clock.NewRedisLeader(rdb, cfg.LeaderKey, cfg.LeaderTTL)
		log.Info("leader election via redis", zap.String("key", cfg.LeaderKey), zap.String("nodeId", rl.ID()))
		leader = rl
		health = append(health, sharedcache.Health(rdb))
	case cfg.Env == "local":
		log.Warn("redis unavailable, running as single node", zap.Error(err))
	default:
		log.Fatal("redis connect", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(health...), log)

	c := clock.New(m, leader, cfg.ClockTick, log.Named("clock"), rm.ClockHooks())
	if err := c.Start(); err != nil {
		log.Fatal("clock start", zap.Error(err))
	}

	<-ctx.Done()
	c.Stop(context.Background())

	shutdownCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("round-clock-worker stopped")
}

// waitIndex dá ao feed a chance de receber o primeiro tick antes do Advance único
func waitIndex(ctx context.Context, src machine.IndexSource, max time.Duration) {
	deadline := time.Now().Add(max)
	for time.Now().Before(deadline) {
		if _, err := src.Current(ctx); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}
