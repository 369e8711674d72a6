// Package index fornece o valor do índice usado como neutro e final das rodadas
package index

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds-poc/internal/shared/money"
)

var minIndex = decimal.New(1, -money.IndexConfig.DecimalPrecision)

// RandomWalk gera um índice pseudo-aleatório: cada leitura anda no máximo maxStep
type RandomWalk struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	current decimal.Decimal
	maxStep decimal.Decimal
}

func NewRandomWalk(start, maxStep decimal.Decimal, seed int64) *RandomWalk {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomWalk{
		rnd:     rand.New(rand.NewSource(seed)),
		current: money.RoundIndex(start),
		maxStep: maxStep,
	}
}

// Current avança o passeio e devolve o novo valor
func (w *RandomWalk) Current(context.Context) (decimal.Decimal, error) {
	return w.Next(), nil
}

// Next anda um passo em [-maxStep, +maxStep], nunca abaixo do menor valor representável
func (w *RandomWalk) Next() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()

	// fator em [-1, 1] com 6 casas
	factor := decimal.New(w.rnd.Int63n(2_000_001)-1_000_000, -6)
	next := money.RoundIndex(w.current.Add(w.maxStep.Mul(factor)))
	if next.LessThan(minIndex) {
		next = minIndex
	}
	w.current = next
	return next
}

// Peek devolve o valor atual sem andar
func (w *RandomWalk) Peek() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
