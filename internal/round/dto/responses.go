package dto

import "time"

type RoundResponse struct {
	RoundID         string    `json:"roundId"`
	Phase           string    `json:"phase"`
	OpenedAt        time.Time `json:"openedAt"`
	BettingClosesAt time.Time `json:"bettingClosesAt"`
	SettlesAt       time.Time `json:"settlesAt"`
	NeutralIndex    string    `json:"neutralIndex"`
	ServerTime      time.Time `json:"serverTime"`
}

type PlaceWagerResponse struct {
	WagerID string `json:"wagerId"`
	Status  string `json:"status"`
}

type ResultResponse struct {
	RoundID    string    `json:"roundId"`
	Outcome    string    `json:"outcome"`
	FinalIndex string    `json:"finalIndex"`
	FeeMicros  int64     `json:"feeMicros"`
	ClosedAt   time.Time `json:"closedAt"`
}

type WagerResponse struct {
	WagerID      string     `json:"wagerId"`
	RoundID      string     `json:"roundId"`
	Side         string     `json:"side"`
	Stake        string     `json:"stake"`
	StakeMicros  int64      `json:"stakeMicros"`
	Status       string     `json:"status"`
	PayoutMicros int64      `json:"payoutMicros"`
	PlacedAt     time.Time  `json:"placedAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// PoolsResponse totais ao vivo por lado; eventualmente consistente com o store
type PoolsResponse struct {
	RoundID    string `json:"roundId"`
	Buy        string `json:"buy"`
	Sell       string `json:"sell"`
	BuyMicros  int64  `json:"buyMicros"`
	SellMicros int64  `json:"sellMicros"`
	BuyWagers  int64  `json:"buyWagers"`
	SellWagers int64  `json:"sellWagers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
