package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// StakeTier é uma denominação fixa de aposta com seu peso na divisão do prêmio
type StakeTier struct {
	AmountMicros int64           `json:"amountMicros"`
	Weight       decimal.Decimal `json:"weight"`
}

// RoundConfig é o snapshot de parâmetros congelado na criação de cada rodada
type RoundConfig struct {
	Tiers            []StakeTier     `json:"tiers"` // ordem crescente de valor
	FeeRate          decimal.Decimal `json:"feeRate"`
	BettingWindow    time.Duration   `json:"bettingWindow"`
	ProcessingWindow time.Duration   `json:"processingWindow"`
}

// NewRoundConfig monta a configuração a partir dos parâmetros de deploy.
// Com dois tiers e sem pesos explícitos usa lowShare / 1-lowShare.
func NewRoundConfig(
	tierMicros []int64,
	weights []decimal.Decimal,
	feeRate, lowShare decimal.Decimal,
	betting, processing time.Duration,
) (RoundConfig, error) {
	explicit := len(weights) > 0
	if explicit && len(weights) != len(tierMicros) {
		return RoundConfig{}, fmt.Errorf("got %d tier weights for %d tiers", len(weights), len(tierMicros))
	}

	tiers := make([]StakeTier, len(tierMicros))
	for i := range tierMicros {
		tiers[i] = StakeTier{AmountMicros: tierMicros[i]}
		if explicit {
			tiers[i].Weight = weights[i]
		}
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].AmountMicros < tiers[j].AmountMicros })

	// pesos padrão aplicados depois da ordenação: lowShare vai sempre para o menor tier
	if !explicit {
		switch len(tiers) {
		case 1:
			tiers[0].Weight = decimal.NewFromInt(1)
		case 2:
			tiers[0].Weight = lowShare
			tiers[1].Weight = decimal.NewFromInt(1).Sub(lowShare)
		default:
			return RoundConfig{}, fmt.Errorf("tier weights required for %d tiers", len(tiers))
		}
	}

	cfg := RoundConfig{
		Tiers:            tiers,
		FeeRate:          feeRate,
		BettingWindow:    betting,
		ProcessingWindow: processing,
	}
	return cfg, cfg.Validate()
}

// DefaultRoundConfig valores do deploy de referência: tiers {1,2}, fee 8%, lowShare 35%, 10s/5s
func DefaultRoundConfig() RoundConfig {
	cfg, _ := NewRoundConfig(
		[]int64{1_000_000, 2_000_000},
		nil,
		decimal.RequireFromString("0.08"),
		decimal.RequireFromString("0.35"),
		10*time.Second,
		5*time.Second,
	)
	return cfg
}

func (c RoundConfig) Validate() error {
	if len(c.Tiers) == 0 {
		return errors.New("at least one stake tier is required")
	}
	for i, t := range c.Tiers {
		if t.AmountMicros <= 0 {
			return fmt.Errorf("tier %d: amount must be positive", i)
		}
		if !t.Weight.IsPositive() {
			return fmt.Errorf("tier %d: weight must be positive", i)
		}
		if i > 0 && t.AmountMicros <= c.Tiers[i-1].AmountMicros {
			return fmt.Errorf("tier %d: amounts must be strictly increasing", i)
		}
	}
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee rate %s out of range [0,1)", c.FeeRate)
	}
	if c.BettingWindow <= 0 || c.ProcessingWindow <= 0 {
		return errors.New("betting and processing windows must be positive")
	}
	return nil
}

// TierIndex devolve a posição do tier com o valor informado
func (c RoundConfig) TierIndex(amountMicros int64) (int, bool) {
	for i, t := range c.Tiers {
		if t.AmountMicros == amountMicros {
			return i, true
		}
	}
	return -1, false
}
