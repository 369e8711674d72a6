package events

import "time"

// Evento publicado no tópico "wager_placed" quando uma aposta é aceita
type WagerPlaced struct {
	WagerID       string    `json:"wagerId"`
	RoundID       string    `json:"roundId"`
	ParticipantID string    `json:"participantId"`
	Side          string    `json:"side"`
	StakeMicros   int64     `json:"stakeMicros"`
	Ts            time.Time `json:"ts"`
}
