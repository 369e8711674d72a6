// Package bot gera carga sintética: financia participantes e aposta uma vez
// por participante em cada rodada aberta
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/client"
	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/round/dto"
	walletdto "github.com/radieske/updown-rounds-poc/internal/wallet-service/dto"
)

type RoundAPI interface {
	Current(ctx context.Context) (dto.RoundResponse, error)
	PlaceWager(ctx context.Context, roundID, participantID, side, stakeTier string) (dto.PlaceWagerResponse, error)
}

type WalletAPI interface {
	Deposit(ctx context.Context, userID, amount, externalRef string) (walletdto.WalletResponse, error)
}

type Config struct {
	Participants []string
	Tiers        []string // valores aceitos pela API ("1", "2")
	SeedAmount   string   // depósito inicial e recarga
	Every        time.Duration
}

// Hooks callbacks de métricas
type Hooks struct {
	OnPlaced   func(side string)
	OnRejected func(code string)
}

type Bot struct {
	cfg    Config
	rounds RoundAPI
	wallet WalletAPI
	log    *zap.Logger
	hooks  Hooks
	sched  *gocron.Scheduler

	mu        sync.Mutex
	rnd       *rand.Rand
	lastRound string
}

func New(cfg Config, rounds RoundAPI, wallet WalletAPI, log *zap.Logger, hooks Hooks, seed int64) *Bot {
	if cfg.Every <= 0 {
		cfg.Every = time.Second
	}
	if cfg.SeedAmount == "" {
		cfg.SeedAmount = "20"
	}
	return &Bot{
		cfg:    cfg,
		rounds: rounds,
		wallet: wallet,
		log:    log,
		hooks:  hooks,
		sched:  gocron.NewScheduler(time.UTC),
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// Fund deposita o valor inicial de cada participante; idempotente por participante
func (b *Bot) Fund(ctx context.Context) error {
	for _, p := range b.cfg.Participants {
		if _, err := b.wallet.Deposit(ctx, p, b.cfg.SeedAmount, "bot-seed-"+p); err != nil {
			return fmt.Errorf("fund %s: %w", p, err)
		}
	}
	return nil
}

// Tick aposta na rodada corrente se ela estiver aberta e ainda não tiver sido jogada
func (b *Bot) Tick(ctx context.Context) error {
	cur, err := b.rounds.Current(ctx)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "UNKNOWN_ROUND" {
			return nil
		}
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cur.Phase != string(domain.PhaseOpen) || cur.RoundID == b.lastRound {
		return nil
	}
	b.lastRound = cur.RoundID

	for _, p := range b.cfg.Participants {
		side := string(domain.SideBuy)
		if b.rnd.Intn(2) == 1 {
			side = string(domain.SideSell)
		}
		tier := b.cfg.Tiers[b.rnd.Intn(len(b.cfg.Tiers))]

		_, err := b.rounds.PlaceWager(ctx, cur.RoundID, p, side, tier)
		if err == nil {
			if b.hooks.OnPlaced != nil {
				b.hooks.OnPlaced(side)
			}
			continue
		}

		var apiErr *client.APIError
		if !errors.As(err, &apiErr) {
			return err
		}
		if b.hooks.OnRejected != nil {
			b.hooks.OnRejected(apiErr.Code)
		}
		switch apiErr.Code {
		case "INSUFFICIENT_FUNDS":
			// recarga uma vez por rodada
			if _, err := b.wallet.Deposit(ctx, p, b.cfg.SeedAmount, "bot-topup-"+cur.RoundID+"-"+p); err != nil {
				b.log.Warn("top up failed", zap.String("participant", p), zap.Error(err))
			}
		case "ROUND_NOT_OPEN":
			return nil
		default:
			b.log.Warn("wager rejected", zap.String("participant", p), zap.String("code", apiErr.Code))
		}
	}
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	if len(b.cfg.Participants) == 0 || len(b.cfg.Tiers) == 0 {
		return errors.New("bot needs participants and tiers")
	}
	_, err := b.sched.Every(b.cfg.Every).SingletonMode().Do(func() {
		if err := b.Tick(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn("bot tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule bot tick: %w", err)
	}
	b.sched.StartAsync()
	return nil
}

func (b *Bot) Stop() { b.sched.Stop() }
