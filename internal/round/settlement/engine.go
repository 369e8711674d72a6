// Package settlement implementa a liquidação pari-mutuel de uma rodada.
// É uma função pura de (rodada, apostas) para (outcome, pagamentos, fee);
// quem aplica o resultado nos stores é a máquina de estados.
package settlement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/shared/money"
)

// VoidReason explica por que uma rodada foi anulada
type VoidReason string

const (
	VoidNone       VoidReason = ""
	VoidNoWagers   VoidReason = "NO_WAGERS"
	VoidOneSided   VoidReason = "ONE_SIDED"
	VoidEqualPools VoidReason = "EQUAL_POOLS"
	VoidTie        VoidReason = "TIE"
)

var ErrConservation = errors.New("settlement does not conserve stakes")

// Input é tudo o que a liquidação precisa de uma rodada
type Input struct {
	RoundID      string
	NeutralIndex decimal.Decimal
	FinalIndex   decimal.Decimal
	Wagers       []domain.Wager
	Config       domain.RoundConfig
}

// WagerPayout é o resultado por aposta
type WagerPayout struct {
	WagerID       string
	ParticipantID string
	Side          domain.Side
	StakeMicros   int64
	PayoutMicros  int64
	Status        domain.WagerStatus
}

// Result é o resultado completo da liquidação
type Result struct {
	RoundID          string
	Outcome          domain.Outcome
	VoidReason       VoidReason
	FinalIndex       decimal.Decimal
	Payouts          []WagerPayout
	FeeMicros        int64 // fee da plataforma, já incluindo resíduos de arredondamento
	ResidualMicros   int64 // parte do fee vinda de truncamentos
	TotalStakeMicros int64
	TotalBuyMicros   int64
	TotalSellMicros  int64
	LosingPoolMicros int64
	NetPoolMicros    int64
}

// PayoutsTotal soma todos os valores devolvidos aos participantes
func (r Result) PayoutsTotal() int64 {
	var total int64
	for _, p := range r.Payouts {
		total += p.PayoutMicros
	}
	return total
}

// Verify checa conservação: Σ pagamentos + fee == Σ stakes
func (r Result) Verify() error {
	if paid := r.PayoutsTotal(); paid+r.FeeMicros != r.TotalStakeMicros {
		return fmt.Errorf("%w: round %s paid=%d fee=%d stakes=%d",
			ErrConservation, r.RoundID, paid, r.FeeMicros, r.TotalStakeMicros)
	}
	if r.Outcome == domain.OutcomeVoid && r.FeeMicros != 0 {
		return fmt.Errorf("%w: void round %s collected fee %d", ErrConservation, r.RoundID, r.FeeMicros)
	}
	return nil
}

// Settle executa o algoritmo pari-mutuel:
//  1. direção pelo índice final vs neutro
//  2. totais por lado
//  3. void em empate, lado vazio ou pools iguais (pools iguais têm precedência sobre a direção)
//  4. fee sobre o pool perdedor
//  5. divisão do prêmio líquido por tier (pesos do config)
//  6. pagamento igual dentro de cada tier, stake devolvido
func Settle(in Input) (Result, error) {
	res := Result{
		RoundID:    in.RoundID,
		FinalIndex: in.FinalIndex,
		Payouts:    make([]WagerPayout, 0, len(in.Wagers)),
	}

	tierOf := make([]int, len(in.Wagers))
	for i, w := range in.Wagers {
		if w.RoundID != in.RoundID {
			return Result{}, fmt.Errorf("wager %s belongs to round %s, not %s", w.ID, w.RoundID, in.RoundID)
		}
		if w.Status != domain.WagerPending {
			return Result{}, fmt.Errorf("wager %s already settled as %s", w.ID, w.Status)
		}
		idx, ok := in.Config.TierIndex(w.StakeMicros)
		if !ok {
			return Result{}, fmt.Errorf("wager %s stake %d: %w", w.ID, w.StakeMicros, domain.ErrInvalidStakeTier)
		}
		tierOf[i] = idx

		switch w.Side {
		case domain.SideBuy:
			res.TotalBuyMicros += w.StakeMicros
		case domain.SideSell:
			res.TotalSellMicros += w.StakeMicros
		default:
			return Result{}, fmt.Errorf("wager %s side %q: %w", w.ID, w.Side, domain.ErrInvalidSide)
		}
	}
	res.TotalStakeMicros = res.TotalBuyMicros + res.TotalSellMicros

	direction := domain.Direction(in.NeutralIndex, in.FinalIndex)
	switch {
	case len(in.Wagers) == 0:
		res.VoidReason = VoidNoWagers
	case res.TotalBuyMicros == 0 || res.TotalSellMicros == 0:
		res.VoidReason = VoidOneSided
	case res.TotalBuyMicros == res.TotalSellMicros:
		res.VoidReason = VoidEqualPools
	case direction == domain.OutcomeVoid:
		res.VoidReason = VoidTie
	}
	if res.VoidReason != VoidNone {
		res.Outcome = domain.OutcomeVoid
		for _, w := range in.Wagers {
			res.Payouts = append(res.Payouts, payoutFor(w, w.StakeMicros, domain.WagerVoided))
		}
		return res, nil
	}

	res.Outcome = direction
	winningSide := domain.SideBuy
	res.LosingPoolMicros = res.TotalSellMicros
	if direction == domain.OutcomeSellWon {
		winningSide = domain.SideSell
		res.LosingPoolMicros = res.TotalBuyMicros
	}

	fee, _ := money.MulTrunc(res.LosingPoolMicros, in.Config.FeeRate)
	res.NetPoolMicros = res.LosingPoolMicros - fee

	// vencedores agrupados por tier
	winnersByTier := make(map[int][]int)
	for i, w := range in.Wagers {
		if w.Side == winningSide {
			winnersByTier[tierOf[i]] = append(winnersByTier[tierOf[i]], i)
		}
	}
	shareByWager, residual := splitPool(res.NetPoolMicros, winnersByTier, in.Config.Tiers)

	res.ResidualMicros = residual
	res.FeeMicros = fee + residual

	for i, w := range in.Wagers {
		if w.Side == winningSide {
			res.Payouts = append(res.Payouts, payoutFor(w, w.StakeMicros+shareByWager[i], domain.WagerWon))
			continue
		}
		res.Payouts = append(res.Payouts, payoutFor(w, 0, domain.WagerLost))
	}

	return res, res.Verify()
}

// splitPool divide o prêmio líquido entre os tiers que têm vencedores, na proporção
// dos pesos, e cada sub-pool igualmente entre os vencedores do tier.
// O último tier recebe o restante de pool, então os sub-pools somam pool exatamente.
func splitPool(pool int64, winnersByTier map[int][]int, tiers []domain.StakeTier) (map[int]int64, int64) {
	shares := make(map[int]int64)
	if len(winnersByTier) == 0 {
		return shares, pool
	}

	active := make([]int, 0, len(winnersByTier))
	weightSum := decimal.Zero
	for tier := range winnersByTier {
		active = append(active, tier)
		weightSum = weightSum.Add(tiers[tier].Weight)
	}
	sort.Ints(active)

	var residual int64
	remaining := pool
	for n, tier := range active {
		subPool := remaining
		if n < len(active)-1 {
			subPool, _ = money.MulTrunc(pool, tiers[tier].Weight.Div(weightSum))
			remaining -= subPool
		}

		winners := winnersByTier[tier]
		share, rest := money.DivTrunc(subPool, int64(len(winners)))
		residual += rest
		for _, idx := range winners {
			shares[idx] = share
		}
	}
	return shares, residual
}

func payoutFor(w domain.Wager, payout int64, status domain.WagerStatus) WagerPayout {
	return WagerPayout{
		WagerID:       w.ID,
		ParticipantID: w.ParticipantID,
		Side:          w.Side,
		StakeMicros:   w.StakeMicros,
		PayoutMicros:  payout,
		Status:        status,
	}
}
