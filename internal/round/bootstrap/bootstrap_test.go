package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	httpapi "github.com/radieske/updown-rounds-poc/internal/round/http"
	"github.com/radieske/updown-rounds-poc/internal/round/index"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	walletdto "github.com/radieske/updown-rounds-poc/internal/wallet-service/dto"
)

func TestOpenStores_Memory(t *testing.T) {
	s, err := OpenStores(config.Config{StoreDriver: "memory"})
	require.NoError(t, err)
	assert.Nil(t, s.DB)
	assert.NoError(t, s.Health(context.Background()))
	assert.NoError(t, s.Close())

	_, err = OpenStores(config.Config{StoreDriver: "sqlite"})
	require.Error(t, err)
}

func TestIndexSource_Random(t *testing.T) {
	src, err := IndexSource(context.Background(), config.Config{IndexSource: "random", IndexStart: "100", IndexStep: "0.5"}, zap.NewNop(), nil)
	require.NoError(t, err)
	require.IsType(t, &index.RandomWalk{}, src)

	_, err = IndexSource(context.Background(), config.Config{IndexSource: "random", IndexStart: "x", IndexStep: "0.5"}, zap.NewNop(), nil)
	require.Error(t, err)
}

func TestMachineConfig_FromEnvDefaults(t *testing.T) {
	t.Setenv("STAKE_TIERS", "1,2")
	t.Setenv("TIER_WEIGHTS", "")
	cfg := config.Load()
	mc, err := MachineConfig(cfg)
	require.NoError(t, err)
	assert.Len(t, mc.Round.Tiers, 2)
	assert.Equal(t, cfg.SettlementGrace, mc.SettlementGrace)
}

func TestEmbeddedHandler_DepositThenWager(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{StoreDriver: "memory", IndexSource: "random", IndexStart: "100", IndexStep: "0.5"}
	stores, err := OpenStores(cfg)
	require.NoError(t, err)
	src, err := IndexSource(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	m := machine.New(machine.Config{Round: domain.DefaultRoundConfig()}, machine.Deps{
		Store:  stores.Rounds,
		Ledger: stores.Ledger,
		Index:  src,
	})
	_, err = m.Advance(ctx, time.Now())
	require.NoError(t, err)
	r, err := m.CurrentRound(ctx)
	require.NoError(t, err)

	api := &httpapi.API{Rounds: m, Log: zap.NewNop()}
	h := EmbeddedHandler(api.Router(), stores.Wallet, zap.NewNop())

	do := func(method, path, participant, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if participant != "" {
			req.Header.Set(httpapi.ParticipantHeader, participant)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/wallet/deposit", "", `{"userId":"alice","amount":"5","external_ref":"seed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodPost, "/v1/rounds/"+r.ID+"/wagers", "alice", `{"side":"BUY","stakeTier":"2"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(http.MethodGet, "/wallet?userId=alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var w walletdto.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, int64(3_000_000), w.BalanceMicros)

	rec = do(http.MethodGet, "/v1/rounds/current", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
