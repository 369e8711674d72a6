package events

import "time"

// Tipos de evento publicados no tópico "round_events"
const (
	RoundOpened          = "ROUND_OPENED"
	RoundBettingClosed   = "ROUND_BETTING_CLOSED"
	RoundSettlingStarted = "ROUND_SETTLING_STARTED"
	RoundClosed          = "ROUND_CLOSED"

	// enviado só pelo websocket, na conexão
	RoundCurrent = "ROUND_CURRENT"
)

// RoundSnapshot é a visão pública de uma rodada (fase SETTLING aparece como PROCESSING)
type RoundSnapshot struct {
	RoundID         string     `json:"roundId"`
	Phase           string     `json:"phase"`
	OpenedAt        time.Time  `json:"openedAt"`
	BettingClosesAt time.Time  `json:"bettingClosesAt"`
	SettlesAt       time.Time  `json:"settlesAt"`
	NeutralIndex    string     `json:"neutralIndex"`
	FinalIndex      string     `json:"finalIndex,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	FeeMicros       int64      `json:"feeMicros,omitempty"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
}

// RoundEvent é emitido pelo round-clock-worker a cada transição de fase
type RoundEvent struct {
	Type    string        `json:"type"`
	Round   RoundSnapshot `json:"round"`
	Version int64         `json:"version"` // versão da linha da rodada, crescente por rodada
	Ts      time.Time     `json:"ts"`
}
