package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/bot"
	roundclient "github.com/radieske/updown-rounds-poc/internal/round/client"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	"github.com/radieske/updown-rounds-poc/internal/shared/logger"
	"github.com/radieske/updown-rounds-poc/internal/shared/metrics"
	walletclient "github.com/radieske/updown-rounds-poc/internal/wallet-service/client"
)

func main() {
	cfg := config.LoadFor("round-bot")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	participants := make([]string, 0, cfg.BotParticipants)
	for i := 1; i <= cfg.BotParticipants; i++ {
		participants = append(participants, fmt.Sprintf("bot-%02d", i))
	}

	placed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_bot_wagers_placed_total", Help: "apostas aceitas por lado"}, []string{"side"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_bot_wagers_rejected_total", Help: "apostas recusadas por código"}, []string{"code"})
	prometheus.MustRegister(placed, rejected)

	b := bot.New(bot.Config{
		Participants: participants,
		Tiers:        cfg.StakeTiers,
		SeedAmount:   cfg.BotSeedAmount,
		Every:        cfg.BotTick,
	},
		roundclient.New(cfg.RoundServiceURL),
		walletclient.New(cfg.WalletServiceURL),
		log.Named("bot"),
		bot.Hooks{
			OnPlaced:   func(side string) { placed.WithLabelValues(side).Inc() },
			OnRejected: func(code string) { rejected.WithLabelValues(code).Inc() },
		},
		time.Now().UnixNano(),
	)

	// wallet pode subir depois do bot
	for {
		err := b.Fund(ctx)
		if err == nil {
			break
		}
		log.Warn("funding participants failed, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	if err := b.Start(ctx); err != nil {
		log.Fatal("bot start", zap.Error(err))
	}
	log.Info("round-bot started",
		zap.Int("participants", len(participants)),
		zap.String("rounds", cfg.RoundServiceURL),
		zap.String("wallet", cfg.WalletServiceURL))

	<-ctx.Done()
	b.Stop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("round-bot stopped")
}
