package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round-events/pools"
	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/round/dto"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	"github.com/radieske/updown-rounds-poc/internal/shared/money"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

// ParticipantHeader identidade do participante, injetada pelo colaborador de autenticação
const ParticipantHeader = "X-Participant-ID"

// Rounds operações da máquina usadas pela API
type Rounds interface {
	CurrentRound(ctx context.Context) (*domain.Round, error)
	AcceptWager(ctx context.Context, roundID, participantID string, side domain.Side, stakeMicros int64) (domain.Wager, error)
	RoundResult(ctx context.Context, roundID string) (machine.Result, error)
	ParticipantWagers(ctx context.Context, participantID string, limit int) ([]domain.Wager, error)
}

// SnapshotCache leitura do snapshot corrente mantido pelo processador de eventos
type SnapshotCache interface {
	Current(ctx context.Context) (events.RoundSnapshot, bool, error)
}

// PoolReader totais ao vivo por lado
type PoolReader interface {
	Get(ctx context.Context, roundID string) (pools.Pools, error)
}

// API expõe os endpoints REST de rodadas e o websocket de atualizações
type API struct {
	Rounds Rounds
	Cache  SnapshotCache    // opcional
	Pools  PoolReader       // opcional
	WS     http.HandlerFunc // opcional
	Log    *zap.Logger
	Now    func() time.Time
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/rounds/current", a.currentRound)
	r.Post("/v1/rounds/{id}/wagers", a.placeWager)
	r.Get("/v1/rounds/{id}/result", a.roundResult)
	r.Get("/v1/participants/{id}/wagers", a.participantWagers)
	if a.Pools != nil {
		r.Get("/v1/rounds/{id}/pools", a.roundPools)
	}
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// currentRound prefere o snapshot do cache enquanto o prazo da fase não venceu
func (a *API) currentRound(w http.ResponseWriter, r *http.Request) {
	now := a.now().UTC()

	if a.Cache != nil {
		snap, ok, err := a.Cache.Current(r.Context())
		if err != nil {
			a.Log.Warn("snapshot cache read failed", zap.Error(err))
		} else if ok && fresh(snap, now) {
			writeJSON(w, http.StatusOK, roundFromSnapshot(snap, now))
			return
		}
	}

	rd, err := a.Rounds.CurrentRound(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roundFromSnapshot(machine.Snapshot(rd), now))
}

func fresh(s events.RoundSnapshot, now time.Time) bool {
	switch domain.Phase(s.Phase) {
	case domain.PhaseOpen:
		return now.Before(s.BettingClosesAt)
	case domain.PhaseProcessing:
		return now.Before(s.SettlesAt)
	}
	return false
}

func roundFromSnapshot(s events.RoundSnapshot, now time.Time) dto.RoundResponse {
	return dto.RoundResponse{
		RoundID:         s.RoundID,
		Phase:           s.Phase,
		OpenedAt:        s.OpenedAt,
		BettingClosesAt: s.BettingClosesAt,
		SettlesAt:       s.SettlesAt,
		NeutralIndex:    s.NeutralIndex,
		ServerTime:      now,
	}
}

func (a *API) placeWager(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "id")
	participantID := r.Header.Get(ParticipantHeader)

	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json", Code: "BAD_REQUEST"})
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		a.writeError(w, err)
		return
	}
	stake, err := money.Parse(req.StakeTier.String())
	if err != nil {
		a.writeError(w, domain.ErrInvalidStakeTier)
		return
	}

	wager, err := a.Rounds.AcceptWager(r.Context(), roundID, participantID, side, stake)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceWagerResponse{WagerID: wager.ID, Status: string(wager.Status)})
}

func (a *API) roundResult(w http.ResponseWriter, r *http.Request) {
	res, err := a.Rounds.RoundResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ResultResponse{
		RoundID:    res.RoundID,
		Outcome:    string(res.Outcome),
		FinalIndex: res.FinalIndex.String(),
		FeeMicros:  res.FeeMicros,
		ClosedAt:   res.ClosedAt,
	})
}

func (a *API) roundPools(w http.ResponseWriter, r *http.Request) {
	p, err := a.Pools.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PoolsResponse{
		RoundID:    p.RoundID,
		Buy:        money.Format(p.BuyMicros),
		Sell:       money.Format(p.SellMicros),
		BuyMicros:  p.BuyMicros,
		SellMicros: p.SellMicros,
		BuyWagers:  p.BuyWagers,
		SellWagers: p.SellWagers,
	})
}

func (a *API) participantWagers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid limit", Code: "BAD_REQUEST"})
			return
		}
		limit = n
	}

	ws, err := a.Rounds.ParticipantWagers(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]dto.WagerResponse, 0, len(ws))
	for _, wg := range ws {
		out = append(out, dto.WagerResponse{
			WagerID:      wg.ID,
			RoundID:      wg.RoundID,
			Side:         string(wg.Side),
			Stake:        money.Format(wg.StakeMicros),
			StakeMicros:  wg.StakeMicros,
			Status:       string(wg.Status),
			PayoutMicros: wg.PayoutMicros,
			PlacedAt:     wg.PlacedAt,
			SettledAt:    wg.SettledAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError mapeia erros de domínio para status HTTP e código estável
func (a *API) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRoundNotOpen):
		return http.StatusConflict, "ROUND_NOT_OPEN"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict, "INSUFFICIENT_FUNDS"
	case errors.Is(err, domain.ErrUnknownRound):
		return http.StatusNotFound, "UNKNOWN_ROUND"
	case errors.Is(err, domain.ErrUnknownWager):
		return http.StatusNotFound, "UNKNOWN_WAGER"
	case errors.Is(err, domain.ErrRoundNotClosed):
		return http.StatusNotFound, "ROUND_NOT_CLOSED"
	case errors.Is(err, domain.ErrInvalidStakeTier):
		return http.StatusBadRequest, "INVALID_STAKE_TIER"
	case errors.Is(err, domain.ErrInvalidSide):
		return http.StatusBadRequest, "INVALID_SIDE"
	case errors.Is(err, domain.ErrInvalidParticipant):
		return http.StatusBadRequest, "INVALID_PARTICIPANT"
	case errors.Is(err, domain.ErrStorageConflict):
		return http.StatusServiceUnavailable, "STORAGE_CONFLICT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}
