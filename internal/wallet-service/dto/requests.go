package dto

// DepositRequest amount em unidades decimais ("10", "2.5")
type DepositRequest struct {
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"` // idempotência por referência externa
}

type WithdrawRequest struct {
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"`
}
