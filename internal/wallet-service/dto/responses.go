package dto

import "github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"

type WalletResponse struct {
	UserID        string `json:"userId"`
	WalletID      string `json:"walletId"`
	Balance       string `json:"balance"`
	BalanceMicros int64  `json:"balance_micros"`
}

type TransactionsResponse struct {
	UserID       string             `json:"userId"`
	Transactions []repo.Transaction `json:"transactions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
