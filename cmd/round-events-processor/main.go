package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round-events/consumer"
	"github.com/radieske/updown-rounds-poc/internal/round-events/pools"
	"github.com/radieske/updown-rounds-poc/internal/round-events/pubsub"
	"github.com/radieske/updown-rounds-poc/internal/round/snapcache"
	sharedcache "github.com/radieske/updown-rounds-poc/internal/shared/cache"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	sharedkafka "github.com/radieske/updown-rounds-poc/internal/shared/kafka"
	"github.com/radieske/updown-rounds-poc/internal/shared/logger"
	"github.com/radieske/updown-rounds-poc/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("round-events-processor")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	if sharedkafka.DevEnv(cfg.Env) {
		tctx, tcancel := context.WithTimeout(ctx, 10*time.Second)
		if err := sharedkafka.EnsureTopics(tctx, cfg.Brokers(), cfg.TopicRoundEvents, cfg.TopicRoundEventsDLQ, cfg.TopicWagerPlaced); err != nil {
			log.Warn("ensure kafka topics", zap.Error(err))
		}
		tcancel()
	}

	// consumer group round-events-processor
	reader := sharedkafka.NewReader(cfg.Brokers(), cfg.TopicRoundEvents, "round-events-processor")
	defer reader.Close()
	dlq := sharedkafka.NewWriter(cfg.Brokers(), cfg.TopicRoundEventsDLQ)
	defer dlq.Close()

	// Métricas Prometheus por etapa
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_events_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_events_cache_sets_total", Help: "snapshots gravados no cache"})
	broadcast := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_events_broadcast_total", Help: "eventos publicados no pub/sub"})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_events_dlq_total", Help: "mensagens enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_events_errors_total", Help: "erros por estágio"}, []string{"stage"})
	poolsApplied := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_pools_wagers_applied_total", Help: "apostas somadas aos totais por lado"})
	prometheus.MustRegister(consumed, cached, broadcast, deadLettered, errorsBy, poolsApplied)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		DLQ:         dlq,
		Cache:       snapcache.New(redisClient, 0),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		OnConsumed:  consumed.Inc,
		OnCached:    cached.Inc,
		OnBroadcast: broadcast.Inc,
		OnDLQ:       deadLettered.Inc,
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// totais por lado: consumer group próprio no tópico wager_placed
	wagerReader := sharedkafka.NewReader(cfg.Brokers(), cfg.TopicWagerPlaced, "round-pools")
	defer wagerReader.Close()
	poolWorker := &pools.Worker{
		Log:       log.Named("pools"),
		Reader:    wagerReader,
		Tracker:   pools.New(redisClient, 0),
		OnApplied: poolsApplied.Inc,
		OnError:   func(stage string) { errorsBy.WithLabelValues("pools_" + stage).Inc() },
	}
	go func() {
		if err := poolWorker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("pools worker stopped", zap.Error(err))
		}
	}()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, sharedcache.Health(redisClient), log)
	defer metricsSrv.Close()

	log.Info("round-events-processor started",
		zap.String("topic", cfg.TopicRoundEvents),
		zap.String("wagers", cfg.TopicWagerPlaced))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("round-events-processor stopped")
}
