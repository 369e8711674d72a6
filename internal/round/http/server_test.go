package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/updown-rounds-poc/internal/round-events/pools"
	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	"github.com/radieske/updown-rounds-poc/internal/round/dto"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	"github.com/radieske/updown-rounds-poc/internal/round/repo"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type staticIndex struct{ v decimal.Decimal }

func (s staticIndex) Current(context.Context) (decimal.Decimal, error) { return s.v, nil }

type stubCache struct {
	snap events.RoundSnapshot
	ok   bool
	err  error
}

func (s stubCache) Current(context.Context) (events.RoundSnapshot, bool, error) {
	return s.snap, s.ok, s.err
}

type stubPools struct {
	p   pools.Pools
	err error
}

func (s stubPools) Get(_ context.Context, roundID string) (pools.Pools, error) {
	p := s.p
	p.RoundID = roundID
	return p, s.err
}

type fixture struct {
	api    *API
	m      *machine.Machine
	wallet *walletrepo.Memory
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{wallet: walletrepo.NewMemory(), now: t0}
	f.m = machine.New(machine.Config{Round: domain.DefaultRoundConfig()}, machine.Deps{
		Store:  repo.NewMemory(f.wallet),
		Ledger: f.wallet,
		Index:  staticIndex{v: decimal.RequireFromString("100")},
		Now:    func() time.Time { return f.now },
	})
	f.api = &API{Rounds: f.m, Log: zaptest.NewLogger(t), Now: func() time.Time { return f.now }}
	return f
}

func (f *fixture) open(t *testing.T) *domain.Round {
	t.Helper()
	_, err := f.m.Advance(context.Background(), f.now)
	require.NoError(t, err)
	r, err := f.m.CurrentRound(context.Background())
	require.NoError(t, err)
	return r
}

func (f *fixture) do(method, path, participant, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if participant != "" {
		req.Header.Set(ParticipantHeader, participant)
	}
	rec := httptest.NewRecorder()
	f.api.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestCurrentRound_FromStore(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/rounds/current", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	r := f.open(t)
	rec = f.do(http.MethodGet, "/v1/rounds/current", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.RoundResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, r.ID, got.RoundID)
	assert.Equal(t, "OPEN", got.Phase)
	assert.Equal(t, "100", got.NeutralIndex)
	assert.True(t, got.ServerTime.Equal(t0))
}

func TestCurrentRound_PrefersFreshCache(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.api.Cache = stubCache{ok: true, snap: events.RoundSnapshot{
		RoundID: "cached", Phase: "OPEN", BettingClosesAt: t0.Add(5 * time.Second),
	}}

	rec := f.do(http.MethodGet, "/v1/rounds/current", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"roundId":"cached"`)

	// snapshot vencido cai para o store
	f.now = t0.Add(6 * time.Second)
	rec = f.do(http.MethodGet, "/v1/rounds/current", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"roundId":"cached"`)
}

func TestCurrentRound_CacheErrorFallsBack(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	f.api.Cache = stubCache{err: errors.New("redis down")}

	rec := f.do(http.MethodGet, "/v1/rounds/current", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), r.ID)
}

func TestPlaceWager(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	_, _, err := f.wallet.Deposit(context.Background(), "alice", 3_000_000, "seed")
	require.NoError(t, err)
	path := "/v1/rounds/" + r.ID + "/wagers"

	rec := f.do(http.MethodPost, path, "alice", `{"side":"BUY","stakeTier":"2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ok dto.PlaceWagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.NotEmpty(t, ok.WagerID)
	assert.Equal(t, "PENDING", ok.Status)

	cases := []struct {
		name        string
		participant string
		body        string
		status      int
		code        string
	}{
		{"insufficient funds", "alice", `{"side":"SELL","stakeTier":2}`, http.StatusConflict, "INSUFFICIENT_FUNDS"},
		{"invalid tier", "alice", `{"side":"BUY","stakeTier":"1.5"}`, http.StatusBadRequest, "INVALID_STAKE_TIER"},
		{"invalid side", "alice", `{"side":"UP","stakeTier":"1"}`, http.StatusBadRequest, "INVALID_SIDE"},
		{"missing participant", "", `{"side":"BUY","stakeTier":"1"}`, http.StatusBadRequest, "INVALID_PARTICIPANT"},
		{"bad json", "alice", `{`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, path, tc.participant, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Code)
		})
	}

	rec = f.do(http.MethodPost, "/v1/rounds/nope/wagers", "alice", `{"side":"BUY","stakeTier":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_ROUND", decodeError(t, rec).Code)
}

func TestPlaceWager_AfterBettingCloses(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	_, _, err := f.wallet.Deposit(context.Background(), "bob", 5_000_000, "seed")
	require.NoError(t, err)

	f.now = r.BettingClosesAt
	rec := f.do(http.MethodPost, "/v1/rounds/"+r.ID+"/wagers", "bob", `{"side":"SELL","stakeTier":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ROUND_NOT_OPEN", decodeError(t, rec).Code)

	bal, err := f.wallet.Balance(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), bal)
}

func TestRoundResult(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)

	rec := f.do(http.MethodGet, "/v1/rounds/"+r.ID+"/result", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUND_NOT_CLOSED", decodeError(t, rec).Code)

	f.now = r.SettlesAt
	_, err := f.m.Advance(context.Background(), f.now)
	require.NoError(t, err)

	rec = f.do(http.MethodGet, "/v1/rounds/"+r.ID+"/result", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res dto.ResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "VOID", res.Outcome)
	assert.Equal(t, "100", res.FinalIndex)
	assert.Zero(t, res.FeeMicros)
}

func TestParticipantWagers(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	_, _, err := f.wallet.Deposit(context.Background(), "carol", 10_000_000, "seed")
	require.NoError(t, err)
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		_, err := f.m.AcceptWager(context.Background(), r.ID, "carol", side, 1_000_000)
		require.NoError(t, err)
	}

	rec := f.do(http.MethodGet, "/v1/participants/carol/wagers?limit=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []dto.WagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "1.000000", list[0].Stake)

	rec = f.do(http.MethodGet, "/v1/participants/carol/wagers?limit=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoundPools(t *testing.T) {
	f := newFixture(t)

	// sem Redis a rota não existe
	rec := f.do(http.MethodGet, "/v1/rounds/r-1/pools", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.api.Pools = stubPools{p: pools.Pools{BuyMicros: 3_000_000, SellMicros: 1_500_000, BuyWagers: 2, SellWagers: 1}}
	rec = f.do(http.MethodGet, "/v1/rounds/r-1/pools", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.PoolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, dto.PoolsResponse{
		RoundID:    "r-1",
		Buy:        "3.000000",
		Sell:       "1.500000",
		BuyMicros:  3_000_000,
		SellMicros: 1_500_000,
		BuyWagers:  2,
		SellWagers: 1,
	}, got)

	f.api.Pools = stubPools{err: errors.New("redis down")}
	rec = f.do(http.MethodGet, "/v1/rounds/r-1/pools", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", decodeError(t, rec).Code)
}
