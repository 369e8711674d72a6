package domain

import (
	"strings"
	"time"
)

// Side é o lado apostado
type Side string

const (
	SideBuy  Side = "BUY"  // vence quando final > neutral
	SideSell Side = "SELL" // vence quando final < neutral
)

// ParseSide aceita "buy"/"sell" em qualquer caixa
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", ErrInvalidSide
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// Wins informa se o lado vence dado o outcome
func (s Side) Wins(o Outcome) bool {
	return (s == SideBuy && o == OutcomeBuyWon) || (s == SideSell && o == OutcomeSellWon)
}

// WagerStatus é o status de liquidação de uma aposta
type WagerStatus string

const (
	WagerPending WagerStatus = "PENDING"
	WagerWon     WagerStatus = "WON"
	WagerLost    WagerStatus = "LOST"
	WagerVoided  WagerStatus = "VOIDED"
)

// Wager é a aposta de um participante numa rodada
type Wager struct {
	ID            string
	RoundID       string
	ParticipantID string
	Side          Side
	StakeMicros   int64
	Status        WagerStatus
	PayoutMicros  int64
	PlacedAt      time.Time
	SettledAt     *time.Time
}
