package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

// Reader subconjunto do kafka.Reader (fetch + commit explícito)
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SnapshotCache grava o snapshot; true quando o corrente mudou
type SnapshotCache interface {
	Apply(ctx context.Context, ev events.RoundEvent) (bool, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// Processor consome eventos de rodada, atualiza o cache e replica para o websocket.
// Mensagens inválidas vão para a DLQ; o offset só é confirmado após o processamento
type Processor struct {
	Log         *zap.Logger
	Reader      Reader
	DLQ         Writer
	Cache       SnapshotCache
	Broadcaster Broadcaster

	OnConsumed  func()       // métricas
	OnCached    func()       // métricas
	OnBroadcast func()       // métricas
	OnDLQ       func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run loop principal; retorna quando o contexto é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.Handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// sem commit: a mensagem volta no próximo rebalance/restart
			p.Log.Warn("round event not processed", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processa uma mensagem. Só devolve erro quando nem a DLQ aceitou o veneno
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.RoundEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Round.RoundID == "" {
		if err == nil {
			err = fmt.Errorf("round event without roundId")
		}
		p.Log.Warn("invalid round event", zap.Error(err))
		p.fail("decode")
		return p.deadLetter(ctx, m, err)
	}

	if _, err := p.Cache.Apply(ctx, ev); err != nil {
		// o broadcast segue mesmo sem cache; a API cai para o store
		p.Log.Warn("snapshot cache apply failed", zap.String("roundId", ev.Round.RoundID), zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Broadcast(bctx, m.Value); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.Error(err))
		p.fail("broadcast")
	} else if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
	return nil
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	if p.DLQ == nil {
		return nil
	}
	dl := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: append(m.Headers,
			kafka.Header{Key: "dlq_error", Value: []byte(cause.Error())},
			kafka.Header{Key: "dlq_source", Value: []byte(fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset))},
		),
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		p.fail("dlq")
		return fmt.Errorf("write dlq: %w", err)
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
	return nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
