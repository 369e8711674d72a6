package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.Path+" "+r.Header.Get("X-Participant-ID"))
	}))
}

func TestGateway_Routes(t *testing.T) {
	rounds, wallet := echo("rounds"), echo("wallet")
	defer rounds.Close()
	defer wallet.Close()

	h, err := New(rounds.URL, wallet.URL)
	require.NoError(t, err)

	cases := map[string]string{
		"/api/v1/rounds/current":        "rounds /v1/rounds/current ",
		"/api/wallet":                   "wallet /wallet ",
		"/api/wallet/deposit":           "wallet /wallet/deposit ",
		"/api/v1/participants/p/wagers": "rounds /v1/participants/p/wagers ",
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Body.String(), path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rounds/r/wagers", nil)
	req.Header.Set("X-Participant-ID", "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "rounds /v1/rounds/r/wagers alice", rec.Body.String())
}

func TestGateway_Preflight(t *testing.T) {
	h, err := New("http://rounds:8080", "http://wallet:8082")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/rounds/current", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Participant-ID")
}

func TestGateway_InvalidUpstream(t *testing.T) {
	_, err := New("not a url", "http://wallet:8082")
	require.Error(t, err)
}
