package producer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/updown-rounds-poc/internal/shared/kafka"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

// MessageWriter é o subconjunto do kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publica eventos de rodada e de aposta em tópicos separados.
// A chave é o roundId, garantindo ordem por rodada dentro da partição
type KafkaPublisher struct {
	rounds MessageWriter
	wagers MessageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, roundTopic, wagerTopic string, log *zap.Logger) *KafkaPublisher {
	return NewWithWriters(
		sharedkafka.NewWriter(brokers, roundTopic),
		sharedkafka.NewWriter(brokers, wagerTopic),
		log,
	)
}

func NewWithWriters(rounds, wagers MessageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{rounds: rounds, wagers: wagers, log: log}
}

// PublishRound serializa o evento de ciclo de vida da rodada
func (p *KafkaPublisher) PublishRound(ctx context.Context, ev events.RoundEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.Round.RoundID),
		Value: value,
		Time:  ev.Ts,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.rounds.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish round event", zap.String("type", ev.Type), zap.Error(err))
		return err
	}
	p.log.Debug("published round event", zap.String("type", ev.Type), zap.String("roundId", ev.Round.RoundID))
	return nil
}

func (p *KafkaPublisher) PublishWager(ctx context.Context, ev events.WagerPlaced) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(ev.RoundID), Value: value, Time: ev.Ts}
	if err := p.wagers.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish wager", zap.String("wagerId", ev.WagerID), zap.Error(err))
		return err
	}
	return nil
}

// Close finaliza os writers
func (p *KafkaPublisher) Close() error {
	return errors.Join(p.rounds.Close(), p.wagers.Close())
}
