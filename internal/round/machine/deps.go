package machine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

// Store persiste rodadas e apostas. Transições são CAS: false significa que outro driver venceu
type Store interface {
	LatestRound(ctx context.Context) (*domain.Round, error) // nil, nil quando não há rodadas
	GetRound(ctx context.Context, id string) (*domain.Round, error)
	CreateRound(ctx context.Context, r *domain.Round) error
	PlaceWager(ctx context.Context, w domain.Wager, now time.Time) (domain.Wager, error)
	TransitionPhase(ctx context.Context, id string, from, to domain.Phase) (bool, error)
	ClaimSettlement(ctx context.Context, id string, finalIndex decimal.Decimal, now time.Time) (bool, error)
	ReclaimSettlement(ctx context.Context, id string, staleSince, now time.Time) (bool, error)
	ListWagers(ctx context.Context, roundID string) ([]domain.Wager, error)
	CompleteSettlement(ctx context.Context, id string, outcome domain.Outcome, feeMicros int64, settled []domain.Wager, now time.Time) (bool, error)
	ListParticipantWagers(ctx context.Context, participantID string, limit int) ([]domain.Wager, error)
	ListUnsettled(ctx context.Context) ([]*domain.Round, error)
}

// Ledger aplica o lote de liquidação de forma idempotente por rodada
type Ledger interface {
	ApplySettlement(ctx context.Context, batch walletrepo.SettlementBatch) error
}

// IndexSource fornece o valor atual do índice
type IndexSource interface {
	Current(ctx context.Context) (decimal.Decimal, error)
}

// Publisher propaga eventos de rodada e aposta (Kafka em produção)
type Publisher interface {
	PublishRound(ctx context.Context, ev events.RoundEvent) error
	PublishWager(ctx context.Context, ev events.WagerPlaced) error
}

// NopPublisher descarta eventos
type NopPublisher struct{}

func (NopPublisher) PublishRound(context.Context, events.RoundEvent) error { return nil }
func (NopPublisher) PublishWager(context.Context, events.WagerPlaced) error { return nil }

// Hooks são callbacks opcionais para métricas
type Hooks struct {
	OnWagerAccepted func(side domain.Side, stakeMicros int64)
	OnWagerRejected func(reason string)
	OnConflictRetry func()
	OnTransition    func(t domain.Transition)
	OnSettled       func(outcome domain.Outcome, feeMicros int64, took time.Duration)
	OnStuck         func(phase domain.Phase)
}

func (h Hooks) wagerAccepted(side domain.Side, stake int64) {
	if h.OnWagerAccepted != nil {
		h.OnWagerAccepted(side, stake)
	}
}

func (h Hooks) wagerRejected(reason string) {
	if h.OnWagerRejected != nil {
		h.OnWagerRejected(reason)
	}
}

func (h Hooks) conflictRetry() {
	if h.OnConflictRetry != nil {
		h.OnConflictRetry()
	}
}

func (h Hooks) transition(t domain.Transition) {
	if h.OnTransition != nil {
		h.OnTransition(t)
	}
}

func (h Hooks) settled(o domain.Outcome, fee int64, took time.Duration) {
	if h.OnSettled != nil {
		h.OnSettled(o, fee, took)
	}
}

func (h Hooks) stuck(p domain.Phase) {
	if h.OnStuck != nil {
		h.OnStuck(p)
	}
}
