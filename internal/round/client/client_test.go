package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/updown-rounds-poc/internal/round/client"
	"github.com/radieske/updown-rounds-poc/internal/round/domain"
	httpapi "github.com/radieske/updown-rounds-poc/internal/round/http"
	"github.com/radieske/updown-rounds-poc/internal/round/machine"
	"github.com/radieske/updown-rounds-poc/internal/round/repo"
	walletrepo "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

type staticIndex struct{}

func (staticIndex) Current(context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("100"), nil
}

func TestClient_AgainstRoundAPI(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	wallet := walletrepo.NewMemory()
	m := machine.New(machine.Config{Round: domain.DefaultRoundConfig()}, machine.Deps{
		Store:  repo.NewMemory(wallet),
		Ledger: wallet,
		Index:  staticIndex{},
		Now:    func() time.Time { return now },
	})
	api := &httpapi.API{Rounds: m, Log: zaptest.NewLogger(t), Now: func() time.Time { return now }}
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	c := client.New(srv.URL)
	ctx := context.Background()

	_, err := c.Current(ctx)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNKNOWN_ROUND", apiErr.Code)

	_, err = m.Advance(ctx, now)
	require.NoError(t, err)
	_, _, err = wallet.Deposit(ctx, "dave", 2_000_000, "seed")
	require.NoError(t, err)

	cur, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", cur.Phase)

	placed, err := c.PlaceWager(ctx, cur.RoundID, "dave", "BUY", "2")
	require.NoError(t, err)
	assert.NotEmpty(t, placed.WagerID)

	_, err = c.PlaceWager(ctx, cur.RoundID, "dave", "SELL", "1")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", apiErr.Code)

	_, err = c.Result(ctx, cur.RoundID)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "ROUND_NOT_CLOSED", apiErr.Code)
}
