// Package clock dispara o Advance da máquina de rodadas em intervalos fixos.
// Só o líder do momento avança; réplicas seguidoras apenas renovam a tentativa de liderança
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
)

// Advancer é a parte da máquina que o relógio dirige
type Advancer interface {
	Advance(ctx context.Context, now time.Time) (machine.AdvanceReport, error)
	StuckRounds(ctx context.Context, now time.Time) ([]*domain.Round, error)
}

// Leader decide qual réplica do relógio avança as rodadas
type Leader interface {
	Acquire(ctx context.Context) (bool, error) // adquire ou renova
	Release(ctx context.Context) error
}

// Hooks callbacks de métricas
type Hooks struct {
	OnTick  func(leader bool)
	OnError func(stage string)
}

type Clock struct {
	sched   *gocron.Scheduler
	adv     Advancer
	leader  Leader
	every   time.Duration
	timeout time.Duration
	log     *zap.Logger
	hooks   Hooks
	now     func() time.Time
}

func New(adv Advancer, leader Leader, every time.Duration, log *zap.Logger, hooks Hooks) *Clock {
	if every <= 0 {
		every = 500 * time.Millisecond
	}
	timeout := 4 * every
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return &Clock{
		sched:   gocron.NewScheduler(time.UTC),
		adv:     adv,
		leader:  leader,
		every:   every,
		timeout: timeout,
		log:     log,
		hooks:   hooks,
		now:     time.Now,
	}
}

// Start agenda o tick em singleton mode (ticks nunca se sobrepõem) e inicia o scheduler
func (c *Clock) Start() error {
	if _, err := c.sched.Every(c.every).SingletonMode().Do(c.run); err != nil {
		return fmt.Errorf("schedule clock tick: %w", err)
	}
	c.sched.StartAsync()
	c.log.Info("clock started", zap.Duration("every", c.every))
	return nil
}

// Stop para o scheduler e libera a liderança
func (c *Clock) Stop(ctx context.Context) {
	c.sched.Stop()
	if err := c.leader.Release(ctx); err != nil {
		c.log.Warn("release leadership failed", zap.Error(err))
	}
	c.log.Info("clock stopped")
}

func (c *Clock) run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.Tick(ctx)
}

// Tick executa um ciclo: liderança, Advance e checagem de rodadas paradas.
// Falhas são logadas e repetidas no próximo tick
func (c *Clock) Tick(ctx context.Context) error {
	leader, err := c.leader.Acquire(ctx)
	if err != nil {
		c.fail("leader", err)
		return err
	}
	if c.hooks.OnTick != nil {
		c.hooks.OnTick(leader)
	}
	if !leader {
		return nil
	}

	now := c.now()
	report, err := c.adv.Advance(ctx, now)
	if err != nil {
		c.fail("advance", err)
		return err
	}
	for _, s := range report.Steps {
		if s.Applied {
			c.log.Debug("transition fired", zap.String("roundId", s.RoundID), zap.Stringer("transition", s.Transition))
		}
	}

	if _, err := c.adv.StuckRounds(ctx, now); err != nil {
		c.fail("stuck_check", err)
		return err
	}
	return nil
}

func (c *Clock) fail(stage string, err error) {
	c.log.Warn("clock tick failed", zap.String("stage", stage), zap.Error(err))
	if c.hooks.OnError != nil {
		c.hooks.OnError(stage)
	}
}
