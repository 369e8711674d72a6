package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase é a fase de uma rodada
type Phase string

const (
	PhaseOpen       Phase = "OPEN"       // aceitando apostas
	PhaseProcessing Phase = "PROCESSING" // apostas encerradas, aguardando resultado
	PhaseSettling   Phase = "SETTLING"   // liquidação reivindicada, em andamento
	PhaseClosed     Phase = "CLOSED"     // resultado final, pagamentos aplicados
)

// Public esconde a fase interna de liquidação dos clientes
func (p Phase) Public() Phase {
	if p == PhaseSettling {
		return PhaseProcessing
	}
	return p
}

// Outcome é o resultado explícito de uma rodada
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeBuyWon  Outcome = "BUY_WON"
	OutcomeSellWon Outcome = "SELL_WON"
	OutcomeVoid    Outcome = "VOID"
)

// Transition indica qual transição está pendente para uma rodada
type Transition int

const (
	TransitionNone Transition = iota
	TransitionCloseBetting
	TransitionSettle
	TransitionResumeSettlement
	TransitionOpenNext
)

func (t Transition) String() string {
	switch t {
	case TransitionCloseBetting:
		return "close_betting"
	case TransitionSettle:
		return "settle"
	case TransitionResumeSettlement:
		return "resume_settlement"
	case TransitionOpenNext:
		return "open_next"
	default:
		return "none"
	}
}

// Round é a sessão de apostas
type Round struct {
	ID              string
	OpenedAt        time.Time
	BettingClosesAt time.Time
	SettlesAt       time.Time
	NeutralIndex    decimal.Decimal
	Phase           Phase
	FinalIndex      *decimal.Decimal // gravado uma vez, no claim da liquidação
	Outcome         Outcome          // gravado uma vez, no fechamento
	FeeMicros       int64
	SettlingSince   *time.Time
	ClosedAt        *time.Time
	Config          RoundConfig
	Version         int64
}

// NewRound cria uma rodada Open com janelas derivadas do config
func NewRound(id string, now time.Time, neutral decimal.Decimal, cfg RoundConfig) *Round {
	closes := now.Add(cfg.BettingWindow)
	return &Round{
		ID:              id,
		OpenedAt:        now,
		BettingClosesAt: closes,
		SettlesAt:       closes.Add(cfg.ProcessingWindow),
		NeutralIndex:    neutral,
		Phase:           PhaseOpen,
		Config:          cfg,
		Version:         1,
	}
}

// Accepting informa se uma aposta feita em now pode entrar na rodada
func (r *Round) Accepting(now time.Time) bool {
	return r.Phase == PhaseOpen && now.Before(r.BettingClosesAt)
}

// DueTransition deriva a transição pendente apenas de timestamps e fase,
// o que permite a um relógio reiniciado retomar sem estado próprio
func (r *Round) DueTransition(now time.Time, settlementGrace time.Duration) Transition {
	switch r.Phase {
	case PhaseOpen:
		if !now.Before(r.BettingClosesAt) {
			return TransitionCloseBetting
		}
	case PhaseProcessing:
		if !now.Before(r.SettlesAt) {
			return TransitionSettle
		}
	case PhaseSettling:
		if r.SettlingSince == nil || !now.Before(r.SettlingSince.Add(settlementGrace)) {
			return TransitionResumeSettlement
		}
	case PhaseClosed:
		return TransitionOpenNext
	}
	return TransitionNone
}

// Stuck indica rodada parada além do período de tolerância (condição de alerta)
func (r *Round) Stuck(now time.Time, grace time.Duration) bool {
	switch r.Phase {
	case PhaseProcessing:
		return !now.Before(r.SettlesAt.Add(grace))
	case PhaseSettling:
		return r.SettlingSince != nil && !now.Before(r.SettlingSince.Add(grace))
	}
	return false
}

// Direction devolve o lado vencedor pela comparação de índices, ou OutcomeVoid no empate exato
func Direction(neutral, final decimal.Decimal) Outcome {
	switch final.Cmp(neutral) {
	case 1:
		return OutcomeBuyWon
	case -1:
		return OutcomeSellWon
	default:
		return OutcomeVoid
	}
}
