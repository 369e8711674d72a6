package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/shared/db"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

// Postgres persiste rodadas e apostas; o débito da aposta usa a mesma transação do insert
type Postgres struct {
	db     *sql.DB
	ledger TxDebiter
}

func NewPostgres(db *sql.DB, ledger TxDebiter) *Postgres {
	return &Postgres{db: db, ledger: ledger}
}

const roundColumns = `id, opened_at, betting_closes_at, settles_at, neutral_index, phase, final_index,
	COALESCE(outcome,''), fee_micros, settling_since, closed_at, config, version`

// LatestRound devolve a rodada mais recente, ou nil se ainda não existe nenhuma
func (p *Postgres) LatestRound(ctx context.Context) (*domain.Round, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM rounds ORDER BY seq DESC LIMIT 1`))
	if errors.Is(err, domain.ErrUnknownRound) {
		return nil, nil
	}
	return r, err
}

func (p *Postgres) GetRound(ctx context.Context, id string) (*domain.Round, error) {
	return scanRound(p.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id=$1`, id))
}

// ListUnsettled devolve rodadas em PROCESSING ou SETTLING
func (p *Postgres) ListUnsettled(ctx context.Context) ([]*domain.Round, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE phase IN ('PROCESSING','SETTLING') ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateRound insere uma rodada Open; o índice único parcial garante uma rodada ativa por vez
func (p *Postgres) CreateRound(ctx context.Context, r *domain.Round) error {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal round config: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO rounds(id, opened_at, betting_closes_at, settles_at, neutral_index, phase, config, version)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.OpenedAt, r.BettingClosesAt, r.SettlesAt, r.NeutralIndex, r.Phase, cfg, r.Version)
	return storeErr(err)
}

// PlaceWager re-checa a janela sob lock compartilhado da rodada, debita e insere a aposta.
// Tudo numa transação: ou as duas coisas acontecem, ou nenhuma
func (p *Postgres) PlaceWager(ctx context.Context, w domain.Wager, now time.Time) (domain.Wager, error) {
	err := db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		var phase domain.Phase
		var closesAt time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT phase, betting_closes_at FROM rounds WHERE id=$1 FOR SHARE`, w.RoundID).Scan(&phase, &closesAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUnknownRound
		}
		if err != nil {
			return err
		}
		if phase != domain.PhaseOpen || !now.Before(closesAt) {
			return domain.ErrRoundNotOpen
		}

		if _, err := p.ledger.DebitTx(ctx, tx, w.ParticipantID, w.StakeMicros,
			walletrepo.DebitRef{RoundID: w.RoundID, WagerID: w.ID}); err != nil {
			return ledgerErr(err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO wagers(id, round_id, participant_id, side, stake_micros, status, payout_micros, placed_at)
			VALUES($1,$2,$3,$4,$5,$6,0,$7)`,
			w.ID, w.RoundID, w.ParticipantID, w.Side, w.StakeMicros, w.Status, w.PlacedAt)
		return err
	})
	if err != nil {
		return domain.Wager{}, storeErr(err)
	}
	return w, nil
}

// TransitionPhase faz CAS de fase; false quando outro driver já transicionou
func (p *Postgres) TransitionPhase(ctx context.Context, id string, from, to domain.Phase) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rounds SET phase=$3, version = version + 1 WHERE id=$1 AND phase=$2`, id, from, to)
	return affected(res, err)
}

// ClaimSettlement faz CAS PROCESSING->SETTLING gravando o índice final (uma única vez)
func (p *Postgres) ClaimSettlement(ctx context.Context, id string, finalIndex decimal.Decimal, now time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rounds SET phase='SETTLING', final_index=$2, settling_since=$3, version = version + 1
		WHERE id=$1 AND phase='PROCESSING'`, id, finalIndex, now)
	return affected(res, err)
}

// ReclaimSettlement assume uma liquidação parada; o CAS em settling_since impede dois recuperadores
func (p *Postgres) ReclaimSettlement(ctx context.Context, id string, staleSince, now time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE rounds SET settling_since=$3, version = version + 1
		WHERE id=$1 AND phase='SETTLING' AND settling_since=$2`, id, staleSince, now)
	return affected(res, err)
}

func (p *Postgres) ListWagers(ctx context.Context, roundID string) ([]domain.Wager, error) {
	return p.queryWagers(ctx, `
		SELECT id, round_id, participant_id, side, stake_micros, status, payout_micros, placed_at, settled_at
		FROM wagers WHERE round_id=$1 ORDER BY placed_at, id`, roundID)
}

// ListParticipantWagers lista apostas do participante, mais recentes primeiro
func (p *Postgres) ListParticipantWagers(ctx context.Context, participantID string, limit int) ([]domain.Wager, error) {
	return p.queryWagers(ctx, `
		SELECT id, round_id, participant_id, side, stake_micros, status, payout_micros, placed_at, settled_at
		FROM wagers WHERE participant_id=$1 ORDER BY placed_at DESC, id LIMIT $2`, participantID, limit)
}

// CompleteSettlement fecha a rodada (CAS SETTLING->CLOSED) e grava o status final das apostas
func (p *Postgres) CompleteSettlement(ctx context.Context, id string, outcome domain.Outcome, feeMicros int64, settled []domain.Wager, now time.Time) (bool, error) {
	closed := false
	err := db.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE rounds SET phase='CLOSED', outcome=$2, fee_micros=$3, closed_at=$4, version = version + 1
			WHERE id=$1 AND phase='SETTLING'`, id, outcome, feeMicros, now)
		if closed, err = affected(res, err); err != nil || !closed {
			return err
		}

		for _, w := range settled {
			if _, err := tx.ExecContext(ctx, `
				UPDATE wagers SET status=$2, payout_micros=$3, settled_at=$4
				WHERE id=$1 AND status='PENDING'`, w.ID, w.Status, w.PayoutMicros, now); err != nil {
				return fmt.Errorf("settle wager %s: %w", w.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, storeErr(err)
	}
	return closed, nil
}

func (p *Postgres) queryWagers(ctx context.Context, query string, args ...any) ([]domain.Wager, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Wager
	for rows.Next() {
		var w domain.Wager
		var settledAt sql.NullTime
		if err := rows.Scan(&w.ID, &w.RoundID, &w.ParticipantID, &w.Side, &w.StakeMicros,
			&w.Status, &w.PayoutMicros, &w.PlacedAt, &settledAt); err != nil {
			return nil, err
		}
		if settledAt.Valid {
			t := settledAt.Time
			w.SettledAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*domain.Round, error) {
	var (
		r             domain.Round
		finalIndex    decimal.NullDecimal
		settlingSince sql.NullTime
		closedAt      sql.NullTime
		cfg           []byte
	)
	err := row.Scan(&r.ID, &r.OpenedAt, &r.BettingClosesAt, &r.SettlesAt, &r.NeutralIndex, &r.Phase,
		&finalIndex, &r.Outcome, &r.FeeMicros, &settlingSince, &closedAt, &cfg, &r.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUnknownRound
	}
	if err != nil {
		return nil, err
	}

	if finalIndex.Valid {
		r.FinalIndex = &finalIndex.Decimal
	}
	if settlingSince.Valid {
		r.SettlingSince = &settlingSince.Time
	}
	if closedAt.Valid {
		r.ClosedAt = &closedAt.Time
	}
	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return nil, fmt.Errorf("round %s config: %w", r.ID, err)
	}
	return &r, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// storeErr mapeia conflitos de concorrência do Postgres para ErrStorageConflict
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if db.IsRetryable(err) || db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrStorageConflict, err)
	}
	return err
}
