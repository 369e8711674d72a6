package repo

import (
	"errors"
	"sort"
	"time"
)

// OperationType é o tipo de lançamento no ledger
type OperationType string

const (
	OpDeposit          OperationType = "DEPOSIT"
	OpWithdrawal       OperationType = "WITHDRAWAL"
	OpWagerDebit       OperationType = "WAGER_DEBIT"
	OpSettlementCredit OperationType = "SETTLEMENT_CREDIT"
	OpRefund           OperationType = "REFUND"
	OpPlatformFee      OperationType = "PLATFORM_FEE"
)

// PlatformAccount é o participante que recebe os fees das rodadas
const PlatformAccount = "platform"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")

	// ErrSettlementAlreadyApplied o lote da rodada já foi aplicado; quem chama trata como sucesso
	ErrSettlementAlreadyApplied = errors.New("settlement already applied")
)

// Transaction é uma linha do wallet_ledger
type Transaction struct {
	ID            string        `json:"id"`
	WalletID      string        `json:"walletId"`
	ParticipantID string        `json:"participantId"`
	Type          OperationType `json:"type"`
	AmountMicros  int64         `json:"amountMicros"`
	FeeMicros     int64         `json:"feeMicros"`
	BalanceAfter  int64         `json:"balanceAfter"`
	Description   string        `json:"description"`
	ExternalRef   string        `json:"externalRef,omitempty"`
	RoundID       string        `json:"roundId,omitempty"`
	WagerID       string        `json:"wagerId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// DebitRef liga um débito de aposta à rodada e à aposta
type DebitRef struct {
	RoundID string
	WagerID string
}

// Credit é um crédito individual dentro de um lote de liquidação
type Credit struct {
	ParticipantID string
	AmountMicros  int64
	Type          OperationType // SETTLEMENT_CREDIT ou REFUND
	WagerID       string
}

// SettlementBatch é o conjunto de créditos de uma rodada, aplicado atomicamente
type SettlementBatch struct {
	RoundID   string
	Credits   []Credit
	FeeMicros int64
}

// CreditsTotal soma os créditos do lote (sem o fee)
func (b SettlementBatch) CreditsTotal() int64 {
	var total int64
	for _, c := range b.Credits {
		total += c.AmountMicros
	}
	return total
}

// ordered devolve os créditos com valor > 0 ordenados por participante,
// para que transações concorrentes travem carteiras na mesma ordem
func (b SettlementBatch) ordered() []Credit {
	out := make([]Credit, 0, len(b.Credits))
	for _, c := range b.Credits {
		if c.AmountMicros > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}

func description(op OperationType, ref string) string {
	switch op {
	case OpDeposit:
		return "deposit:" + ref
	case OpWithdrawal:
		return "withdraw:" + ref
	case OpWagerDebit:
		return "wager:" + ref
	case OpSettlementCredit:
		return "payout:" + ref
	case OpRefund:
		return "refund:" + ref
	case OpPlatformFee:
		return "fee:" + ref
	}
	return string(op) + ":" + ref
}
