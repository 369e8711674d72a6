package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/wallet-service/dto"
	"github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestWallet_DepositWithdrawFlow(t *testing.T) {
	h := NewServer(zap.NewNop(), repo.NewMemory()).Router()

	rec := serve(t, h, http.MethodPost, "/wallet/deposit", `{"userId":"alice","amount":"10","external_ref":"dep-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var wr dto.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wr))
	assert.Equal(t, int64(10_000_000), wr.BalanceMicros)
	assert.Equal(t, "10.000000", wr.Balance)

	// mesma referência não credita duas vezes
	rec = serve(t, h, http.MethodPost, "/wallet/deposit", `{"userId":"alice","amount":"10","external_ref":"dep-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wr))
	assert.Equal(t, int64(10_000_000), wr.BalanceMicros)

	rec = serve(t, h, http.MethodPost, "/wallet/withdraw", `{"userId":"alice","amount":"2.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wr))
	assert.Equal(t, int64(7_500_000), wr.BalanceMicros)

	rec = serve(t, h, http.MethodPost, "/wallet/withdraw", `{"userId":"alice","amount":"100"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_FUNDS")

	rec = serve(t, h, http.MethodGet, "/wallet?userId=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wr))
	assert.Equal(t, int64(7_500_000), wr.BalanceMicros)

	rec = serve(t, h, http.MethodGet, "/wallet/transactions?userId=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var txs dto.TransactionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs.Transactions, 2)
	assert.Equal(t, repo.OpWithdrawal, txs.Transactions[0].Type)
	assert.Equal(t, repo.OpDeposit, txs.Transactions[1].Type)
}

func TestWallet_Validation(t *testing.T) {
	h := NewServer(zap.NewNop(), repo.NewMemory()).Router()

	cases := []struct {
		name, method, path, body string
		status                   int
	}{
		{"missing user", http.MethodGet, "/wallet", "", http.StatusBadRequest},
		{"bad json", http.MethodPost, "/wallet/deposit", `{`, http.StatusBadRequest},
		{"negative amount", http.MethodPost, "/wallet/deposit", `{"userId":"a","amount":"-1"}`, http.StatusBadRequest},
		{"sub-micro amount", http.MethodPost, "/wallet/deposit", `{"userId":"a","amount":"0.0000001"}`, http.StatusBadRequest},
		{"withdraw unknown wallet", http.MethodPost, "/wallet/withdraw", `{"userId":"ghost","amount":"1"}`, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/wallet/transactions?userId=a&limit=0", "", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/wallet/deposit", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, serve(t, h, tc.method, tc.path, tc.body).Code)
		})
	}
}

func TestWallet_WithdrawUnknownParticipant(t *testing.T) {
	h := NewServer(zap.NewNop(), repo.NewMemory()).Router()

	rec := serve(t, h, http.MethodPost, "/wallet/withdraw", `{"userId":"ghost","amount":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_FUNDS")
}
