// Package simulator publica um índice pseudo-aleatório via WebSocket e HTTP
package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/index"
	"github.com/radieske/updown-rounds-poc/internal/round/ws"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

// Simulator anda o passeio aleatório a cada Interval e transmite o tick
type Simulator struct {
	walk     *index.RandomWalk
	hub      *ws.Hub
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last events.IndexTick

	OnTick func()
}

func New(walk *index.RandomWalk, interval time.Duration, log *zap.Logger) *Simulator {
	s := &Simulator{walk: walk, interval: interval, log: log, now: time.Now}
	s.last = events.IndexTick{Value: walk.Peek().StringFixed(6), Ts: s.now().UTC()}
	s.hub = ws.NewHub(func(*http.Request) bool { return true }, s.snapshot, log)
	return s
}

// Hub exposto para conectar métricas de conexão
func (s *Simulator) Hub() *ws.Hub { return s.hub }

// Step gera e transmite um tick
func (s *Simulator) Step() events.IndexTick {
	v := s.walk.Next()
	s.mu.Lock()
	s.last = events.IndexTick{Value: v.StringFixed(6), Seq: s.last.Seq + 1, Ts: s.now().UTC()}
	t := s.last
	s.mu.Unlock()

	s.hub.Broadcast(t)
	if s.OnTick != nil {
		s.OnTick()
	}
	return t
}

// Run gera ticks até o contexto ser cancelado
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Last devolve o último tick emitido
func (s *Simulator) Last() events.IndexTick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Simulator) snapshot(context.Context) ([]byte, bool) {
	b, err := json.Marshal(s.Last())
	return b, err == nil
}

// Router /ws (stream) e /v1/index/current
func (s *Simulator) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.hub.HandleWS)
	mux.HandleFunc("GET /v1/index/current", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Last())
	})
	return mux
}
