// Package metrics expõe os contadores Prometheus das rodadas e os conecta
// aos callbacks da máquina e do relógio
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/updown-rounds-poc/internal/round/clock"
	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	"github.com/radieske/updown-rounds-poc/internal/shared/money"
)

type Metrics struct {
	WagersAccepted  *prometheus.CounterVec
	StakeUnits      *prometheus.CounterVec
	WagersRejected  *prometheus.CounterVec
	ConflictRetries prometheus.Counter
	Transitions     *prometheus.CounterVec
	Settlements     *prometheus.CounterVec
	FeeUnits        prometheus.Counter
	SettleDuration  prometheus.Histogram
	Stuck           *prometheus.CounterVec
	ClockTicks      *prometheus.CounterVec
	ClockErrors     *prometheus.CounterVec
}

// New cria e registra os coletores em reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WagersAccepted:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_wagers_accepted_total", Help: "apostas aceitas por lado"}, []string{"side"}),
		StakeUnits:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_stake_units_total", Help: "volume apostado em unidades por lado"}, []string{"side"}),
		WagersRejected:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_wagers_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"reason"}),
		ConflictRetries: prometheus.NewCounter(prometheus.CounterOpts{Name: "round_storage_conflict_retries_total", Help: "retentativas por conflito de storage"}),
		Transitions:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_transitions_total", Help: "transições aplicadas por tipo"}, []string{"transition"}),
		Settlements:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_settlements_total", Help: "rodadas liquidadas por resultado"}, []string{"outcome"}),
		FeeUnits:        prometheus.NewCounter(prometheus.CounterOpts{Name: "round_fee_units_total", Help: "taxa da plataforma em unidades"}),
		SettleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "round_settlement_duration_seconds",
			Help:    "tempo entre o claim e o fechamento",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		Stuck:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_stuck_total", Help: "rodadas além do prazo por fase"}, []string{"phase"}),
		ClockTicks:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_clock_ticks_total", Help: "ticks do relógio por papel"}, []string{"role"}),
		ClockErrors: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_clock_errors_total", Help: "erros do relógio por estágio"}, []string{"stage"}),
	}
	reg.MustRegister(
		m.WagersAccepted, m.StakeUnits, m.WagersRejected, m.ConflictRetries,
		m.Transitions, m.Settlements, m.FeeUnits, m.SettleDuration,
		m.Stuck, m.ClockTicks, m.ClockErrors,
	)
	return m
}

// MachineHooks conecta os callbacks da máquina aos coletores
func (m *Metrics) MachineHooks() machine.Hooks {
	return machine.Hooks{
		OnWagerAccepted: func(side domain.Side, stakeMicros int64) {
			m.WagersAccepted.WithLabelValues(string(side)).Inc()
			m.StakeUnits.WithLabelValues(string(side)).Add(units(stakeMicros))
		},
		OnWagerRejected: func(reason string) { m.WagersRejected.WithLabelValues(reason).Inc() },
		OnConflictRetry: func() { m.ConflictRetries.Inc() },
		OnTransition:    func(t domain.Transition) { m.Transitions.WithLabelValues(t.String()).Inc() },
		OnSettled: func(outcome domain.Outcome, feeMicros int64, took time.Duration) {
			m.Settlements.WithLabelValues(string(outcome)).Inc()
			m.FeeUnits.Add(units(feeMicros))
			m.SettleDuration.Observe(took.Seconds())
		},
		OnStuck: func(phase domain.Phase) { m.Stuck.WithLabelValues(string(phase)).Inc() },
	}
}

func (m *Metrics) ClockHooks() clock.Hooks {
	return clock.Hooks{
		OnTick: func(leader bool) {
			role := "follower"
			if leader {
				role = "leader"
			}
			m.ClockTicks.WithLabelValues(role).Inc()
		},
		OnError: func(stage string) { m.ClockErrors.WithLabelValues(stage).Inc() },
	}
}

func units(micros int64) float64 {
	f, _ := money.ToDecimal(micros).Float64()
	return f
}
