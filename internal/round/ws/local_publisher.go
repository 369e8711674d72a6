package ws

import (
	"context"

	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

// LocalPublisher entrega eventos de rodada direto ao Hub, sem Kafka/Redis (modo memory)
type LocalPublisher struct {
	Hub *Hub
}

func (p LocalPublisher) PublishRound(_ context.Context, ev events.RoundEvent) error {
	p.Hub.Broadcast(ev)
	return nil
}

func (p LocalPublisher) PublishWager(context.Context, events.WagerPlaced) error { return nil }
