package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/updown-rounds-poc/internal/shared/db"
)

// Postgres implementa o ledger de saldos em banco
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db, now: time.Now} }

// GetOrCreateWallet retorna o walletId e saldo de um participante, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, participantID string) (walletID string, balance int64, err error) {
	err = db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		walletID, balance, err = ensureWallet(ctx, tx, participantID, false)
		return err
	})
	return walletID, balance, err
}

// Balance devolve o saldo atual; ErrNotFound se o participante não tem carteira
func (p *Postgres) Balance(ctx context.Context, participantID string) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance_micros FROM wallets WHERE participant_id=$1`, participantID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return bal, err
}

// Deposit incrementa o saldo e registra DEPOSIT no ledger.
// Idempotente por externalRef: um depósito repetido devolve o saldo atual sem creditar de novo
func (p *Postgres) Deposit(ctx context.Context, participantID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	if amount <= 0 {
		return "", 0, ErrInvalidAmount
	}
	err = db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		walletID, newBalance, err = ensureWallet(ctx, tx, participantID, true)
		if err != nil {
			return err
		}
		if dup, err := refExists(ctx, tx, walletID, OpDeposit, externalRef); err != nil || dup {
			return err
		}
		newBalance += amount
		return p.move(ctx, tx, &Transaction{
			WalletID:      walletID,
			ParticipantID: participantID,
			Type:          OpDeposit,
			AmountMicros:  amount,
			BalanceAfter:  newBalance,
			Description:   description(OpDeposit, externalRef),
			ExternalRef:   externalRef,
		})
	})
	return walletID, newBalance, err
}

// Withdraw debita saldo para saque; ErrInsufficientFunds se o saldo não cobre o valor
func (p *Postgres) Withdraw(ctx context.Context, participantID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	if amount <= 0 {
		return "", 0, ErrInvalidAmount
	}
	err = db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		walletID, newBalance, err = lockWallet(ctx, tx, participantID)
		if errors.Is(err, ErrNotFound) {
			return ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		if dup, err := refExists(ctx, tx, walletID, OpWithdrawal, externalRef); err != nil || dup {
			return err
		}
		if newBalance < amount {
			return ErrInsufficientFunds
		}
		newBalance -= amount
		return p.move(ctx, tx, &Transaction{
			WalletID:      walletID,
			ParticipantID: participantID,
			Type:          OpWithdrawal,
			AmountMicros:  amount,
			BalanceAfter:  newBalance,
			Description:   description(OpWithdrawal, externalRef),
			ExternalRef:   externalRef,
		})
	})
	return walletID, newBalance, err
}

// Debit debita o stake de uma aposta numa transação própria
func (p *Postgres) Debit(ctx context.Context, participantID string, amount int64, ref DebitRef) (Transaction, error) {
	var out Transaction
	err := db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		var err error
		out, err = p.DebitTx(ctx, tx, participantID, amount, ref)
		return err
	})
	return out, err
}

// DebitTx debita dentro da transação do chamador (usado na inserção da aposta).
// Lock pessimista na carteira; sem carteira equivale a saldo zero
func (p *Postgres) DebitTx(ctx context.Context, tx *sql.Tx, participantID string, amount int64, ref DebitRef) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	walletID, balance, err := lockWallet(ctx, tx, participantID)
	if errors.Is(err, ErrNotFound) {
		return Transaction{}, ErrInsufficientFunds
	}
	if err != nil {
		return Transaction{}, err
	}
	if balance < amount {
		return Transaction{}, ErrInsufficientFunds
	}

	t := Transaction{
		WalletID:      walletID,
		ParticipantID: participantID,
		Type:          OpWagerDebit,
		AmountMicros:  amount,
		BalanceAfter:  balance - amount,
		Description:   description(OpWagerDebit, ref.WagerID),
		RoundID:       ref.RoundID,
		WagerID:       ref.WagerID,
	}
	if err := p.move(ctx, tx, &t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Credit credita um valor avulso (cria a carteira se preciso); sempre sucede salvo erro de banco
func (p *Postgres) Credit(ctx context.Context, participantID string, amount int64, op OperationType, ref string) (Transaction, error) {
	var out Transaction
	err := db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		var err error
		out, err = p.creditTx(ctx, tx, participantID, amount, op, Transaction{Description: description(op, ref)})
		return err
	})
	return out, err
}

// ApplySettlement aplica o lote da rodada numa única transação:
// registra a aplicação (dedup por round_id), credita pagamentos e o fee da plataforma.
// Qualquer falha desfaz o lote inteiro
func (p *Postgres) ApplySettlement(ctx context.Context, batch SettlementBatch) error {
	return db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO settlement_applications(round_id, fee_micros, credits_total_micros)
			VALUES($1,$2,$3) ON CONFLICT (round_id) DO NOTHING`,
			batch.RoundID, batch.FeeMicros, batch.CreditsTotal())
		if err != nil {
			return fmt.Errorf("record settlement %s: %w", batch.RoundID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSettlementAlreadyApplied
		}

		for _, c := range batch.ordered() {
			if _, err := p.creditTx(ctx, tx, c.ParticipantID, c.AmountMicros, c.Type, Transaction{
				Description: description(c.Type, c.WagerID),
				RoundID:     batch.RoundID,
				WagerID:     c.WagerID,
			}); err != nil {
				return fmt.Errorf("credit %s: %w", c.ParticipantID, err)
			}
		}

		if batch.FeeMicros > 0 {
			if _, err := p.creditTx(ctx, tx, PlatformAccount, batch.FeeMicros, OpPlatformFee, Transaction{
				Description: description(OpPlatformFee, batch.RoundID),
				RoundID:     batch.RoundID,
				FeeMicros:   batch.FeeMicros,
			}); err != nil {
				return fmt.Errorf("credit platform fee: %w", err)
			}
		}
		return nil
	})
}

// Transactions lista os lançamentos do participante, mais recentes primeiro
func (p *Postgres) Transactions(ctx context.Context, participantID string, limit int) ([]Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT l.id, l.wallet_id, w.participant_id, l.operation_type, l.amount_micros, l.fee_micros,
		       l.balance_after, l.description, COALESCE(l.external_ref,''), COALESCE(l.round_id,''),
		       COALESCE(l.wager_id,''), l.created_at
		FROM wallet_ledger l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.participant_id=$1
		ORDER BY l.created_at DESC, l.id
		LIMIT $2`, participantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.ParticipantID, &t.Type, &t.AmountMicros, &t.FeeMicros,
			&t.BalanceAfter, &t.Description, &t.ExternalRef, &t.RoundID, &t.WagerID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// creditTx credita via upsert na carteira e registra o lançamento
func (p *Postgres) creditTx(ctx context.Context, tx *sql.Tx, participantID string, amount int64, op OperationType, entry Transaction) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	var walletID string
	var balance int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO wallets(id, participant_id, balance_micros) VALUES($1,$2,$3)
		ON CONFLICT (participant_id) DO UPDATE
		SET balance_micros = wallets.balance_micros + EXCLUDED.balance_micros,
		    version = wallets.version + 1, updated_at = NOW()
		RETURNING id, balance_micros`,
		uuid.NewString(), participantID, amount).Scan(&walletID, &balance); err != nil {
		return Transaction{}, err
	}

	entry.WalletID = walletID
	entry.ParticipantID = participantID
	entry.Type = op
	entry.AmountMicros = amount
	entry.BalanceAfter = balance
	if err := p.insertEntry(ctx, tx, &entry); err != nil {
		return Transaction{}, err
	}
	return entry, nil
}

// move grava o novo saldo (já calculado em t.BalanceAfter) e o lançamento
func (p *Postgres) move(ctx context.Context, tx *sql.Tx, t *Transaction) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance_micros=$1, version = version + 1, updated_at = NOW() WHERE id=$2`,
		t.BalanceAfter, t.WalletID); err != nil {
		if db.IsCheckViolation(err) {
			return ErrInsufficientFunds
		}
		return err
	}
	return p.insertEntry(ctx, tx, t)
}

func (p *Postgres) insertEntry(ctx context.Context, tx *sql.Tx, t *Transaction) error {
	t.ID = uuid.NewString()
	t.CreatedAt = p.now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(id, wallet_id, operation_type, amount_micros, fee_micros, balance_after,
		                          description, external_ref, round_id, wager_id, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.WalletID, t.Type, t.AmountMicros, t.FeeMicros, t.BalanceAfter,
		t.Description, nullString(t.ExternalRef), nullString(t.RoundID), nullString(t.WagerID), t.CreatedAt)
	return err
}

// ensureWallet cria a carteira se faltar; com lock=true trava a linha para atualização
func ensureWallet(ctx context.Context, tx *sql.Tx, participantID string, lock bool) (string, int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, participant_id, balance_micros) VALUES($1,$2,0) ON CONFLICT (participant_id) DO NOTHING`,
		uuid.NewString(), participantID); err != nil {
		return "", 0, err
	}
	if lock {
		return lockWallet(ctx, tx, participantID)
	}
	var id string
	var bal int64
	err := tx.QueryRowContext(ctx,
		`SELECT id, balance_micros FROM wallets WHERE participant_id=$1`, participantID).Scan(&id, &bal)
	return id, bal, err
}

func lockWallet(ctx context.Context, tx *sql.Tx, participantID string) (string, int64, error) {
	var id string
	var bal int64
	err := tx.QueryRowContext(ctx,
		`SELECT id, balance_micros FROM wallets WHERE participant_id=$1 FOR UPDATE`, participantID).Scan(&id, &bal)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return id, bal, err
}

func refExists(ctx context.Context, tx *sql.Tx, walletID string, op OperationType, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM wallet_ledger WHERE wallet_id=$1 AND operation_type=$2 AND external_ref=$3`,
		walletID, op, ref).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
