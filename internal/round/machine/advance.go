package machine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/round/settlement"
	"github.com/radieske/updown-rounds-poc/internal/shared/money"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

// Step é uma transição avaliada durante um Advance
type Step struct {
	RoundID    string
	Transition domain.Transition
	Applied    bool // false quando outro driver venceu o CAS
}

// AdvanceReport lista as transições disparadas num Advance
type AdvanceReport struct {
	Steps []Step
}

// Applied conta as transições efetivamente aplicadas por este driver
func (r AdvanceReport) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if s.Applied {
			n++
		}
	}
	return n
}

// Advance é o ponto de entrada idempotente do relógio. Repete enquanto houver transição
// devida, então um tick atrasado além de dois limites executa as duas em ordem
func (m *Machine) Advance(ctx context.Context, now time.Time) (AdvanceReport, error) {
	var report AdvanceReport
	now = now.UTC()

	for i := 0; i < m.cfg.MaxStepsPerAdvance; i++ {
		r, err := m.store.LatestRound(ctx)
		if err != nil {
			return report, fmt.Errorf("load latest round: %w", err)
		}

		t := domain.TransitionOpenNext
		roundID := ""
		if r != nil {
			t = r.DueTransition(now, m.cfg.SettlementGrace)
			roundID = r.ID
		}
		if t == domain.TransitionNone {
			return report, nil
		}

		applied, err := m.apply(ctx, r, t, now)
		if err != nil {
			return report, fmt.Errorf("%s round %s: %w", t, roundID, err)
		}
		report.Steps = append(report.Steps, Step{RoundID: roundID, Transition: t, Applied: applied})
		if applied {
			m.hooks.transition(t)
		}
	}

	m.log.Warn("advance step limit reached", zap.Int("steps", len(report.Steps)))
	return report, nil
}

func (m *Machine) apply(ctx context.Context, r *domain.Round, t domain.Transition, now time.Time) (bool, error) {
	switch t {
	case domain.TransitionCloseBetting:
		return m.closeBetting(ctx, r)
	case domain.TransitionSettle:
		return m.settle(ctx, r, now)
	case domain.TransitionResumeSettlement:
		return m.resumeSettlement(ctx, r, now)
	case domain.TransitionOpenNext:
		return m.openNext(ctx, now)
	}
	return false, nil
}

func (m *Machine) closeBetting(ctx context.Context, r *domain.Round) (bool, error) {
	ok, err := m.store.TransitionPhase(ctx, r.ID, domain.PhaseOpen, domain.PhaseProcessing)
	if err != nil || !ok {
		return false, err
	}
	r.Phase = domain.PhaseProcessing
	r.Version++
	m.log.Info("betting closed", zap.String("roundId", r.ID))
	m.publish(ctx, events.RoundBettingClosed, r)
	return true, nil
}

// settle reivindica a liquidação gravando o índice final e então a executa
func (m *Machine) settle(ctx context.Context, r *domain.Round, now time.Time) (bool, error) {
	final, err := m.index.Current(ctx)
	if err != nil {
		return false, fmt.Errorf("read final index: %w", err)
	}
	final = money.RoundIndex(final)

	ok, err := m.store.ClaimSettlement(ctx, r.ID, final, now)
	if err != nil || !ok {
		return false, err
	}
	r.Phase = domain.PhaseSettling
	r.FinalIndex = &final
	r.SettlingSince = &now
	r.Version++
	m.publish(ctx, events.RoundSettlingStarted, r)

	return m.finishSettlement(ctx, r, now)
}

// resumeSettlement retoma uma liquidação parada com o índice final já gravado
func (m *Machine) resumeSettlement(ctx context.Context, r *domain.Round, now time.Time) (bool, error) {
	if r.FinalIndex == nil {
		return false, fmt.Errorf("settling round %s has no final index", r.ID)
	}
	var stale time.Time
	if r.SettlingSince != nil {
		stale = *r.SettlingSince
	}

	ok, err := m.store.ReclaimSettlement(ctx, r.ID, stale, now)
	if err != nil || !ok {
		return false, err
	}
	m.log.Warn("resuming stalled settlement",
		zap.String("roundId", r.ID),
		zap.Time("settlingSince", stale),
		zap.String("finalIndex", r.FinalIndex.String()))
	r.SettlingSince = &now

	return m.finishSettlement(ctx, r, now)
}

// finishSettlement é seguro para replay: o ledger deduplica por rodada e o fechamento é CAS
func (m *Machine) finishSettlement(ctx context.Context, r *domain.Round, now time.Time) (bool, error) {
	started := time.Now()

	wagers, err := m.store.ListWagers(ctx, r.ID)
	if err != nil {
		return false, fmt.Errorf("list wagers: %w", err)
	}

	res, err := settlement.Settle(settlement.Input{
		RoundID:      r.ID,
		NeutralIndex: r.NeutralIndex,
		FinalIndex:   *r.FinalIndex,
		Wagers:       wagers,
		Config:       r.Config,
	})
	if err == nil {
		err = res.Verify()
	}
	if err != nil {
		m.log.Error("settlement failed", zap.String("roundId", r.ID), zap.Error(err))
		return false, err
	}

	err = m.led.ApplySettlement(ctx, batchFor(res))
	switch {
	case errors.Is(err, walletrepo.ErrSettlementAlreadyApplied):
		m.log.Info("settlement batch already applied", zap.String("roundId", r.ID))
	case err != nil:
		return false, fmt.Errorf("apply settlement: %w", err)
	}

	settled := make([]domain.Wager, 0, len(res.Payouts))
	for _, p := range res.Payouts {
		settled = append(settled, domain.Wager{ID: p.WagerID, Status: p.Status, PayoutMicros: p.PayoutMicros})
	}

	closed, err := m.store.CompleteSettlement(ctx, r.ID, res.Outcome, res.FeeMicros, settled, now)
	if err != nil || !closed {
		return false, err
	}

	took := time.Since(started)
	r.Phase = domain.PhaseClosed
	r.Outcome = res.Outcome
	r.FeeMicros = res.FeeMicros
	r.ClosedAt = &now
	r.Version++

	m.hooks.settled(res.Outcome, res.FeeMicros, took)
	m.log.Info("round settled",
		zap.String("roundId", r.ID),
		zap.String("outcome", string(res.Outcome)),
		zap.String("voidReason", string(res.VoidReason)),
		zap.Int("wagers", len(wagers)),
		zap.Int64("feeMicros", res.FeeMicros),
		zap.Duration("took", took))
	m.publish(ctx, events.RoundClosed, r)
	return true, nil
}

// openNext cria a próxima rodada; conflito significa que outro driver já a criou
func (m *Machine) openNext(ctx context.Context, now time.Time) (bool, error) {
	neutral, err := m.index.Current(ctx)
	if err != nil {
		return false, fmt.Errorf("read neutral index: %w", err)
	}

	r := domain.NewRound(uuid.NewString(), now, money.RoundIndex(neutral), m.cfg.Round)
	if err := m.store.CreateRound(ctx, r); err != nil {
		if errors.Is(err, domain.ErrStorageConflict) {
			return false, nil
		}
		return false, err
	}

	m.log.Info("round opened",
		zap.String("roundId", r.ID),
		zap.String("neutralIndex", r.NeutralIndex.String()),
		zap.Time("bettingClosesAt", r.BettingClosesAt))
	m.publish(ctx, events.RoundOpened, r)
	return true, nil
}

// publish falhas de publicação não desfazem a transição: o estado no store é a fonte da verdade
func (m *Machine) publish(ctx context.Context, typ string, r *domain.Round) {
	ev := events.RoundEvent{Type: typ, Round: Snapshot(r), Version: r.Version, Ts: m.now().UTC()}
	if err := m.pub.PublishRound(ctx, ev); err != nil {
		m.log.Warn("publish round event failed", zap.String("type", typ), zap.String("roundId", r.ID), zap.Error(err))
	}
}

func batchFor(res settlement.Result) walletrepo.SettlementBatch {
	batch := walletrepo.SettlementBatch{RoundID: res.RoundID, FeeMicros: res.FeeMicros}
	for _, p := range res.Payouts {
		if p.PayoutMicros == 0 {
			continue
		}
		op := walletrepo.OpSettlementCredit
		if p.Status == domain.WagerVoided {
			op = walletrepo.OpRefund
		}
		batch.Credits = append(batch.Credits, walletrepo.Credit{
			ParticipantID: p.ParticipantID,
			AmountMicros:  p.PayoutMicros,
			Type:          op,
			WagerID:       p.WagerID,
		})
	}
	return batch
}

// Snapshot converte a rodada na visão pública publicada em eventos
func Snapshot(r *domain.Round) events.RoundSnapshot {
	s := events.RoundSnapshot{
		RoundID:         r.ID,
		Phase:           string(r.Phase.Public()),
		OpenedAt:        r.OpenedAt,
		BettingClosesAt: r.BettingClosesAt,
		SettlesAt:       r.SettlesAt,
		NeutralIndex:    r.NeutralIndex.String(),
		Outcome:         string(r.Outcome),
		FeeMicros:       r.FeeMicros,
		ClosedAt:        r.ClosedAt,
	}
	if r.Phase == domain.PhaseClosed && r.FinalIndex != nil {
		s.FinalIndex = r.FinalIndex.String()
	}
	return s
}
