package pools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Applier interface {
	Apply(ctx context.Context, w events.WagerPlaced) (bool, error)
}

// Worker consome wager_placed e acumula os totais por lado
type Worker struct {
	Log     *zap.Logger
	Reader  Reader
	Tracker Applier

	OnApplied func()       // métricas
	OnError   func(string) // métricas por fase
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			w.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if err := w.Handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("wager not applied", zap.Int64("offset", m.Offset), zap.Error(err))
			// backoff simples para não inundar o Redis fora do ar
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if err := w.Reader.CommitMessages(ctx, m); err != nil {
			w.Log.Warn("kafka commit failed", zap.Error(err))
			w.fail("commit")
		}
	}
}

// Handle aplica uma mensagem; mensagens ilegíveis são descartadas (totais são só informativos)
func (w *Worker) Handle(ctx context.Context, m kafka.Message) error {
	var placed events.WagerPlaced
	if err := json.Unmarshal(m.Value, &placed); err != nil {
		w.Log.Warn("unmarshal wager_placed", zap.Error(err))
		w.fail("decode")
		return nil
	}
	applied, err := w.Tracker.Apply(ctx, placed)
	if err != nil {
		w.fail("apply")
		return err
	}
	if applied && w.OnApplied != nil {
		w.OnApplied()
	}
	return nil
}

func (w *Worker) fail(stage string) {
	if w.OnError != nil {
		w.OnError(stage)
	}
}
