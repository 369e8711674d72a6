package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

// Debiter debita o stake fora de transação SQL (store em memória)
type Debiter interface {
	Debit(ctx context.Context, participantID string, amount int64, ref walletrepo.DebitRef) (walletrepo.Transaction, error)
}

// TxDebiter debita dentro da transação que insere a aposta (store Postgres)
type TxDebiter interface {
	DebitTx(ctx context.Context, tx *sql.Tx, participantID string, amount int64, ref walletrepo.DebitRef) (walletrepo.Transaction, error)
}

// ledgerErr traduz erros do ledger para os erros de domínio
func ledgerErr(err error) error {
	if errors.Is(err, walletrepo.ErrInsufficientFunds) {
		return domain.ErrInsufficientFunds
	}
	return err
}

func cloneRound(r *domain.Round) *domain.Round {
	c := *r
	if r.FinalIndex != nil {
		v := *r.FinalIndex
		c.FinalIndex = &v
	}
	if r.SettlingSince != nil {
		v := *r.SettlingSince
		c.SettlingSince = &v
	}
	if r.ClosedAt != nil {
		v := *r.ClosedAt
		c.ClosedAt = &v
	}
	c.Config.Tiers = append([]domain.StakeTier(nil), r.Config.Tiers...)
	return &c
}
