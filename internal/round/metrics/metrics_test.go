package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
)

func TestMachineHooks(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := m.MachineHooks()

	h.OnWagerAccepted(domain.SideBuy, 2_000_000)
	h.OnWagerAccepted(domain.SideBuy, 1_500_000)
	h.OnWagerRejected("round_not_open")
	h.OnConflictRetry()
	h.OnTransition(domain.TransitionSettle)
	h.OnSettled(domain.OutcomeBuyWon, 1_280_000, 30*time.Millisecond)
	h.OnStuck(domain.PhaseSettling)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WagersAccepted.WithLabelValues("BUY")))
	assert.InDelta(t, 3.5, testutil.ToFloat64(m.StakeUnits.WithLabelValues("BUY")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WagersRejected.WithLabelValues("round_not_open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("settle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Settlements.WithLabelValues("BUY_WON")))
	assert.InDelta(t, 1.28, testutil.ToFloat64(m.FeeUnits), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stuck.WithLabelValues("SETTLING")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SettleDuration))
}

func TestClockHooks(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := m.ClockHooks()

	h.OnTick(true)
	h.OnTick(false)
	h.OnTick(false)
	h.OnError("advance")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClockTicks.WithLabelValues("leader")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ClockTicks.WithLabelValues("follower")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClockErrors.WithLabelValues("advance")))
}
