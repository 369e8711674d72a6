package events

import "time"

// Evento enviado pelo index-feed-simulator via WebSocket
type IndexTick struct {
	Value string    `json:"value"` // decimal com 6 casas
	Seq   int64     `json:"seq"`   // incrementado a cada tick
	Ts    time.Time `json:"ts"`
}
