package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DecimalConfig define a precisão de ponto fixo de uma grandeza
type DecimalConfig struct {
	DecimalPrecision int32 // casas decimais
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Valores monetários: 1 unidade = 1_000_000 micros
	AmountConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}
	// Valores de índice (neutral/final) guardados com 6 casas
	IndexConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}
)

// FromUnits converte unidades inteiras de moeda em micros
func FromUnits(units int64) int64 { return units * AmountConfig.Scale }

// ToDecimal converte micros em decimal (unidades de moeda)
func ToDecimal(micros int64) decimal.Decimal {
	return decimal.New(micros, -AmountConfig.DecimalPrecision)
}

// FromDecimal converte unidades decimais em micros, truncando em direção a zero
func FromDecimal(d decimal.Decimal) int64 {
	return d.Shift(AmountConfig.DecimalPrecision).Truncate(0).IntPart()
}

// Parse interpreta uma string decimal ("1.25") como micros; rejeita precisão acima de micros
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	shifted := d.Shift(AmountConfig.DecimalPrecision)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %q exceeds %d decimal places", s, AmountConfig.DecimalPrecision)
	}
	return shifted.IntPart(), nil
}

// Format renderiza micros como string decimal com 6 casas ("2.030400")
func Format(micros int64) string {
	return ToDecimal(micros).StringFixed(AmountConfig.DecimalPrecision)
}

// MulTrunc calcula micros × rate truncando para micros.
// O resto descartado é devolvido para que o chamador o contabilize (nunca some).
func MulTrunc(micros int64, rate decimal.Decimal) (result int64, dropped decimal.Decimal) {
	exact := decimal.NewFromInt(micros).Mul(rate)
	truncated := exact.Truncate(0)
	return truncated.IntPart(), exact.Sub(truncated)
}

// DivTrunc divide micros em n partes iguais truncadas e devolve o resíduo em micros
func DivTrunc(micros int64, n int64) (share int64, residual int64) {
	if n <= 0 {
		return 0, micros
	}
	share = micros / n
	return share, micros - share*n
}

// RoundIndex normaliza um valor de índice para a precisão armazenada
func RoundIndex(d decimal.Decimal) decimal.Decimal {
	return d.Round(IndexConfig.DecimalPrecision)
}
