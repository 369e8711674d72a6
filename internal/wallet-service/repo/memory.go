package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implementa o ledger em memória com a mesma semântica do Postgres.
// Usado em testes e com STORE_DRIVER=memory
type Memory struct {
	mu      sync.Mutex
	wallets map[string]*memWallet // por participante
	applied map[string]bool       // rodadas já liquidadas
	now     func() time.Time
}

type memWallet struct {
	id      string
	balance int64
	entries []Transaction
}

func NewMemory() *Memory {
	return &Memory{
		wallets: make(map[string]*memWallet),
		applied: make(map[string]bool),
		now:     time.Now,
	}
}

func (m *Memory) GetOrCreateWallet(_ context.Context, participantID string) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(participantID)
	return w.id, w.balance, nil
}

func (m *Memory) Balance(_ context.Context, participantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[participantID]
	if !ok {
		return 0, ErrNotFound
	}
	return w.balance, nil
}

func (m *Memory) Deposit(_ context.Context, participantID string, amount int64, externalRef string) (string, int64, error) {
	if amount <= 0 {
		return "", 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.wallet(participantID)
	if w.hasRef(OpDeposit, externalRef) {
		return w.id, w.balance, nil
	}
	m.apply(participantID, w, amount, Transaction{
		Type:        OpDeposit,
		Description: description(OpDeposit, externalRef),
		ExternalRef: externalRef,
	})
	return w.id, w.balance, nil
}

func (m *Memory) Withdraw(_ context.Context, participantID string, amount int64, externalRef string) (string, int64, error) {
	if amount <= 0 {
		return "", 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// sem carteira equivale a saldo zero
	w, ok := m.wallets[participantID]
	if !ok {
		return "", 0, ErrInsufficientFunds
	}
	if w.hasRef(OpWithdrawal, externalRef) {
		return w.id, w.balance, nil
	}
	if w.balance < amount {
		return "", 0, ErrInsufficientFunds
	}
	m.apply(participantID, w, -amount, Transaction{
		Type:        OpWithdrawal,
		Description: description(OpWithdrawal, externalRef),
		ExternalRef: externalRef,
	})
	return w.id, w.balance, nil
}

func (m *Memory) Debit(_ context.Context, participantID string, amount int64, ref DebitRef) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[participantID]
	if !ok || w.balance < amount {
		return Transaction{}, ErrInsufficientFunds
	}
	return m.apply(participantID, w, -amount, Transaction{
		Type:        OpWagerDebit,
		Description: description(OpWagerDebit, ref.WagerID),
		RoundID:     ref.RoundID,
		WagerID:     ref.WagerID,
	}), nil
}

func (m *Memory) Credit(_ context.Context, participantID string, amount int64, op OperationType, ref string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(participantID, m.wallet(participantID), amount, Transaction{
		Type:        op,
		Description: description(op, ref),
	}), nil
}

func (m *Memory) ApplySettlement(_ context.Context, batch SettlementBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.applied[batch.RoundID] {
		return ErrSettlementAlreadyApplied
	}
	m.applied[batch.RoundID] = true

	for _, c := range batch.ordered() {
		m.apply(c.ParticipantID, m.wallet(c.ParticipantID), c.AmountMicros, Transaction{
			Type:        c.Type,
			Description: description(c.Type, c.WagerID),
			RoundID:     batch.RoundID,
			WagerID:     c.WagerID,
		})
	}
	if batch.FeeMicros > 0 {
		m.apply(PlatformAccount, m.wallet(PlatformAccount), batch.FeeMicros, Transaction{
			Type:        OpPlatformFee,
			Description: description(OpPlatformFee, batch.RoundID),
			RoundID:     batch.RoundID,
			FeeMicros:   batch.FeeMicros,
		})
	}
	return nil
}

func (m *Memory) Transactions(_ context.Context, participantID string, limit int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[participantID]
	if !ok || limit <= 0 {
		return nil, nil
	}
	out := make([]Transaction, 0, limit)
	for i := len(w.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.entries[i])
	}
	return out, nil
}

// TotalBalance soma todos os saldos, inclusive o da plataforma (usado em testes de conservação)
func (m *Memory) TotalBalance() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, w := range m.wallets {
		total += w.balance
	}
	return total
}

func (m *Memory) wallet(participantID string) *memWallet {
	w, ok := m.wallets[participantID]
	if !ok {
		w = &memWallet{id: uuid.NewString()}
		m.wallets[participantID] = w
	}
	return w
}

// apply aplica delta (positivo crédito, negativo débito) e registra o lançamento
func (m *Memory) apply(participantID string, w *memWallet, delta int64, t Transaction) Transaction {
	w.balance += delta
	t.ID = uuid.NewString()
	t.WalletID = w.id
	t.ParticipantID = participantID
	t.AmountMicros = delta
	if delta < 0 {
		t.AmountMicros = -delta
	}
	t.BalanceAfter = w.balance
	t.CreatedAt = m.now().UTC()
	w.entries = append(w.entries, t)
	return t
}

func (w *memWallet) hasRef(op OperationType, ref string) bool {
	if ref == "" {
		return false
	}
	for _, e := range w.entries {
		if e.Type == op && e.ExternalRef == ref {
			return true
		}
	}
	return false
}
