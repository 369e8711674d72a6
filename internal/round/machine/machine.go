// Package machine é a máquina de estados das rodadas: aceita apostas e avança
// OPEN -> PROCESSING -> SETTLING -> CLOSED -> próxima rodada a partir do relógio
package machine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

const (
	defaultParticipantLimit = 50
	maxParticipantLimit     = 200
)

// Config parâmetros da máquina
type Config struct {
	Round              domain.RoundConfig // snapshot aplicado a cada nova rodada
	SettlementGrace    time.Duration      // tolerância antes de retomar uma liquidação parada
	MaxConflictRetries int
	MaxStepsPerAdvance int
}

// Deps colaboradores da máquina
type Deps struct {
	Store     Store
	Ledger    Ledger
	Index     IndexSource
	Publisher Publisher
	Hooks     Hooks
	Log       *zap.Logger
	Now       func() time.Time
}

type Machine struct {
	cfg   Config
	store Store
	led   Ledger
	index IndexSource
	pub   Publisher
	hooks Hooks
	log   *zap.Logger
	now   func() time.Time
}

func New(cfg Config, d Deps) *Machine {
	if cfg.SettlementGrace <= 0 {
		cfg.SettlementGrace = 15 * time.Second
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = 3
	}
	if cfg.MaxStepsPerAdvance <= 0 {
		cfg.MaxStepsPerAdvance = 8
	}
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Machine{
		cfg:   cfg,
		store: d.Store,
		led:   d.Ledger,
		index: d.Index,
		pub:   d.Publisher,
		hooks: d.Hooks,
		log:   d.Log,
		now:   d.Now,
	}
}

// AcceptWager valida e registra uma aposta. Débito e insert são atômicos no store;
// conflitos de concorrência são repetidos até MaxConflictRetries
func (m *Machine) AcceptWager(ctx context.Context, roundID, participantID string, side domain.Side, stakeMicros int64) (domain.Wager, error) {
	w, err := m.acceptWager(ctx, roundID, participantID, side, stakeMicros)
	if err != nil {
		m.hooks.wagerRejected(rejectReason(err))
		return domain.Wager{}, err
	}
	m.hooks.wagerAccepted(w.Side, w.StakeMicros)

	if err := m.pub.PublishWager(ctx, events.WagerPlaced{
		WagerID:       w.ID,
		RoundID:       w.RoundID,
		ParticipantID: w.ParticipantID,
		Side:          string(w.Side),
		StakeMicros:   w.StakeMicros,
		Ts:            w.PlacedAt,
	}); err != nil {
		m.log.Warn("publish wager failed", zap.String("wagerId", w.ID), zap.Error(err))
	}
	return w, nil
}

func (m *Machine) acceptWager(ctx context.Context, roundID, participantID string, side domain.Side, stakeMicros int64) (domain.Wager, error) {
	if participantID == "" {
		return domain.Wager{}, domain.ErrInvalidParticipant
	}
	if !side.Valid() {
		return domain.Wager{}, domain.ErrInvalidSide
	}

	r, err := m.store.GetRound(ctx, roundID)
	if err != nil {
		return domain.Wager{}, err
	}
	if _, ok := r.Config.TierIndex(stakeMicros); !ok {
		return domain.Wager{}, domain.ErrInvalidStakeTier
	}

	w := domain.Wager{
		ID:            uuid.NewString(),
		RoundID:       r.ID,
		ParticipantID: participantID,
		Side:          side,
		StakeMicros:   stakeMicros,
		Status:        domain.WagerPending,
	}

	for attempt := 0; ; attempt++ {
		now := m.now().UTC()
		if !r.Accepting(now) {
			return domain.Wager{}, domain.ErrRoundNotOpen
		}
		w.PlacedAt = now

		placed, err := m.store.PlaceWager(ctx, w, now)
		if err == nil {
			return placed, nil
		}
		if !errors.Is(err, domain.ErrStorageConflict) || attempt >= m.cfg.MaxConflictRetries {
			return domain.Wager{}, err
		}
		m.hooks.conflictRetry()
		m.log.Debug("wager conflict, retrying", zap.String("roundId", r.ID), zap.Int("attempt", attempt+1))
	}
}

// CurrentRound devolve a rodada mais recente, em qualquer fase
func (m *Machine) CurrentRound(ctx context.Context) (*domain.Round, error) {
	r, err := m.store.LatestRound(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, domain.ErrUnknownRound
	}
	return r, nil
}

// Result é o resultado público de uma rodada fechada
type Result struct {
	RoundID    string
	Outcome    domain.Outcome
	FinalIndex decimal.Decimal
	FeeMicros  int64
	ClosedAt   time.Time
}

// RoundResult só responde para rodadas fechadas; antes disso devolve ErrRoundNotClosed
func (m *Machine) RoundResult(ctx context.Context, roundID string) (Result, error) {
	r, err := m.store.GetRound(ctx, roundID)
	if err != nil {
		return Result{}, err
	}
	if r.Phase != domain.PhaseClosed || r.FinalIndex == nil {
		return Result{}, fmt.Errorf("round %s is %s: %w", r.ID, r.Phase.Public(), domain.ErrRoundNotClosed)
	}
	res := Result{
		RoundID:    r.ID,
		Outcome:    r.Outcome,
		FinalIndex: *r.FinalIndex,
		FeeMicros:  r.FeeMicros,
	}
	if r.ClosedAt != nil {
		res.ClosedAt = *r.ClosedAt
	}
	return res, nil
}

// ParticipantWagers lista as apostas do participante, mais recentes primeiro
func (m *Machine) ParticipantWagers(ctx context.Context, participantID string, limit int) ([]domain.Wager, error) {
	if participantID == "" {
		return nil, domain.ErrInvalidParticipant
	}
	if limit <= 0 {
		limit = defaultParticipantLimit
	}
	if limit > maxParticipantLimit {
		limit = maxParticipantLimit
	}
	return m.store.ListParticipantWagers(ctx, participantID, limit)
}

// StuckRounds devolve rodadas paradas além da tolerância (condição de alerta operacional)
func (m *Machine) StuckRounds(ctx context.Context, now time.Time) ([]*domain.Round, error) {
	rounds, err := m.store.ListUnsettled(ctx)
	if err != nil {
		return nil, err
	}
	var stuck []*domain.Round
	for _, r := range rounds {
		if !r.Stuck(now, m.cfg.SettlementGrace) {
			continue
		}
		stuck = append(stuck, r)
		m.hooks.stuck(r.Phase)
		m.log.Warn("round stuck",
			zap.String("roundId", r.ID),
			zap.String("phase", string(r.Phase)),
			zap.Time("settlesAt", r.SettlesAt))
	}
	return stuck, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoundNotOpen):
		return "round_not_open"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvalidStakeTier):
		return "invalid_stake_tier"
	case errors.Is(err, domain.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, domain.ErrInvalidParticipant):
		return "invalid_participant"
	case errors.Is(err, domain.ErrUnknownRound):
		return "unknown_round"
	case errors.Is(err, domain.ErrStorageConflict):
		return "storage_conflict"
	}
	return "internal"
}
