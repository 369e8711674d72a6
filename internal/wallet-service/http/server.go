package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/shared/money"
	"github.com/radieske/updown-rounds-poc/internal/wallet-service/dto"
	"github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

const defaultTxLimit = 50

// Repo operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, participantID string) (walletID string, balance int64, err error)
	Deposit(ctx context.Context, participantID string, amount int64, externalRef string) (walletID string, newBalance int64, err error)
	Withdraw(ctx context.Context, participantID string, amount int64, externalRef string) (walletID string, newBalance int64, err error)
	Transactions(ctx context.Context, participantID string, limit int) ([]repo.Transaction, error)
}

// Server expõe endpoints HTTP da carteira
type Server struct {
	log  *zap.Logger
	repo Repo
}

func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wallet", s.getWallet) // ?userId=...
	mux.HandleFunc("POST /wallet/deposit", s.deposit)
	mux.HandleFunc("POST /wallet/withdraw", s.withdraw)
	mux.HandleFunc("GET /wallet/transactions", s.listTxs) // ?userId=...&limit=
	return mux
}

// getWallet retorna (ou cria) a carteira e o saldo
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARTICIPANT", "userId required")
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse(userID, walletID, bal))
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "bad json")
		return
	}
	amount, ok := parseAmount(w, req.UserID, req.Amount)
	if !ok {
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.UserID, amount, req.ExternalRef)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse(req.UserID, walletID, bal))
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "bad json")
		return
	}
	amount, ok := parseAmount(w, req.UserID, req.Amount)
	if !ok {
		return
	}
	walletID, bal, err := s.repo.Withdraw(r.Context(), req.UserID, amount, req.ExternalRef)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse(req.UserID, walletID, bal))
}

// listTxs histórico da carteira, mais recentes primeiro
func (s *Server) listTxs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARTICIPANT", "userId required")
		return
	}
	limit := defaultTxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid limit")
			return
		}
		limit = n
	}
	txs, err := s.repo.Transactions(r.Context(), userID, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if txs == nil {
		txs = []repo.Transaction{}
	}
	writeJSON(w, http.StatusOK, dto.TransactionsResponse{UserID: userID, Transactions: txs})
}

func parseAmount(w http.ResponseWriter, userID, amount string) (int64, bool) {
	if userID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARTICIPANT", "userId required")
		return 0, false
	}
	micros, err := money.Parse(amount)
	if err != nil || micros <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be a positive decimal")
		return 0, false
	}
	return micros, true
}

func walletResponse(userID, walletID string, bal int64) dto.WalletResponse {
	return dto.WalletResponse{UserID: userID, WalletID: walletID, Balance: money.Format(bal), BalanceMicros: bal}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, repo.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		s.log.Error("wallet request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
