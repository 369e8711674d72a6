package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

var ErrNoIndex = errors.New("index feed has no fresh value")

// FeedSource consome o index-feed-simulator via WebSocket e guarda o último valor.
// Em caso de desconexão, reconecta com backoff
type FeedSource struct {
	URL        string
	StaleAfter time.Duration // valor mais velho que isso não é usado
	Log        *zap.Logger
	OnTick     func()

	mu   sync.RWMutex
	last decimal.Decimal
	seq  int64
	at   time.Time
}

// Current devolve o último valor recebido, desde que recente
func (f *FeedSource) Current(context.Context) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.at.IsZero() || (f.StaleAfter > 0 && time.Since(f.at) > f.StaleAfter) {
		return decimal.Decimal{}, ErrNoIndex
	}
	return f.last, nil
}

// Start inicia o loop de conexão e escuta; retorna quando ctx é cancelado
func (f *FeedSource) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.Log.Info("context canceled, stopping index feed client")
			return
		default:
			if err := f.connectAndListen(ctx); err != nil {
				f.Log.Warn("index feed connection closed", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(3 * time.Second):
				}
			}
		}
	}
}

func (f *FeedSource) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	f.Log.Info("connected to index feed", zap.String("url", f.URL))

	// o simulador pode ter reiniciado a sequência
	f.mu.Lock()
	f.seq = -1
	f.mu.Unlock()

	// fecha o socket quando o contexto termina para destravar ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := f.Apply(message); err != nil {
			f.Log.Warn("invalid index tick", zap.Error(err))
		}
	}
}

// Apply interpreta um tick; ticks fora de ordem são ignorados
func (f *FeedSource) Apply(message []byte) error {
	var tick events.IndexTick
	if err := json.Unmarshal(message, &tick); err != nil {
		return err
	}
	v, err := decimal.NewFromString(tick.Value)
	if err != nil {
		return fmt.Errorf("tick value %q: %w", tick.Value, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if tick.Seq <= f.seq && !f.at.IsZero() {
		return nil
	}
	f.last = v
	f.seq = tick.Seq
	f.at = time.Now()
	if f.OnTick != nil {
		f.OnTick()
	}
	return nil
}
