package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

// Memory guarda rodadas e apostas em memória. O mutex é mantido durante débito + insert,
// o que dá a mesma atomicidade do lock de linha no Postgres
type Memory struct {
	mu     sync.Mutex
	ledger Debiter
	rounds []*domain.Round // ordem de criação
	byID   map[string]*domain.Round
	wagers map[string][]domain.Wager // por rodada
}

func NewMemory(ledger Debiter) *Memory {
	return &Memory{
		ledger: ledger,
		byID:   make(map[string]*domain.Round),
		wagers: make(map[string][]domain.Wager),
	}
}

func (m *Memory) LatestRound(context.Context) (*domain.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rounds) == 0 {
		return nil, nil
	}
	return cloneRound(m.rounds[len(m.rounds)-1]), nil
}

func (m *Memory) GetRound(_ context.Context, id string) (*domain.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUnknownRound
	}
	return cloneRound(r), nil
}

func (m *Memory) ListUnsettled(context.Context) ([]*domain.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Round
	for _, r := range m.rounds {
		if r.Phase == domain.PhaseProcessing || r.Phase == domain.PhaseSettling {
			out = append(out, cloneRound(r))
		}
	}
	return out, nil
}

func (m *Memory) CreateRound(_ context.Context, r *domain.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[r.ID]; ok {
		return domain.ErrStorageConflict
	}
	for _, existing := range m.rounds {
		if existing.Phase != domain.PhaseClosed {
			return domain.ErrStorageConflict
		}
	}
	c := cloneRound(r)
	m.rounds = append(m.rounds, c)
	m.byID[c.ID] = c
	return nil
}

func (m *Memory) PlaceWager(ctx context.Context, w domain.Wager, now time.Time) (domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byID[w.RoundID]
	if !ok {
		return domain.Wager{}, domain.ErrUnknownRound
	}
	if !r.Accepting(now) {
		return domain.Wager{}, domain.ErrRoundNotOpen
	}
	if _, err := m.ledger.Debit(ctx, w.ParticipantID, w.StakeMicros,
		walletrepo.DebitRef{RoundID: w.RoundID, WagerID: w.ID}); err != nil {
		return domain.Wager{}, ledgerErr(err)
	}
	m.wagers[w.RoundID] = append(m.wagers[w.RoundID], w)
	return w, nil
}

func (m *Memory) TransitionPhase(_ context.Context, id string, from, to domain.Phase) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return false, domain.ErrUnknownRound
	}
	if r.Phase != from {
		return false, nil
	}
	r.Phase = to
	r.Version++
	return true, nil
}

func (m *Memory) ClaimSettlement(_ context.Context, id string, finalIndex decimal.Decimal, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return false, domain.ErrUnknownRound
	}
	if r.Phase != domain.PhaseProcessing {
		return false, nil
	}
	r.Phase = domain.PhaseSettling
	r.FinalIndex = &finalIndex
	r.SettlingSince = &now
	r.Version++
	return true, nil
}

func (m *Memory) ReclaimSettlement(_ context.Context, id string, staleSince, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return false, domain.ErrUnknownRound
	}
	if r.Phase != domain.PhaseSettling || r.SettlingSince == nil || !r.SettlingSince.Equal(staleSince) {
		return false, nil
	}
	r.SettlingSince = &now
	r.Version++
	return true, nil
}

func (m *Memory) ListWagers(_ context.Context, roundID string) ([]domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Wager(nil), m.wagers[roundID]...), nil
}

func (m *Memory) ListParticipantWagers(_ context.Context, participantID string, limit int) ([]domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Wager
	for _, ws := range m.wagers {
		for _, w := range ws {
			if w.ParticipantID == participantID {
				out = append(out, w)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlacedAt.After(out[j].PlacedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CompleteSettlement(_ context.Context, id string, outcome domain.Outcome, feeMicros int64, settled []domain.Wager, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return false, domain.ErrUnknownRound
	}
	if r.Phase != domain.PhaseSettling {
		return false, nil
	}

	results := make(map[string]domain.Wager, len(settled))
	for _, w := range settled {
		results[w.ID] = w
	}
	ws := m.wagers[id]
	for i := range ws {
		res, ok := results[ws[i].ID]
		if !ok || ws[i].Status != domain.WagerPending {
			continue
		}
		ws[i].Status = res.Status
		ws[i].PayoutMicros = res.PayoutMicros
		settledAt := now
		ws[i].SettledAt = &settledAt
	}

	r.Phase = domain.PhaseClosed
	r.Outcome = outcome
	r.FeeMicros = feeMicros
	r.ClosedAt = &now
	r.Version++
	return true, nil
}
