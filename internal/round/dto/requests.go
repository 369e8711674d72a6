package dto

import "encoding/json"

// PlaceWagerRequest stakeTier em unidades decimais ("1", "2" ou 1, 2)
type PlaceWagerRequest struct {
	Side      string      `json:"side"`
	StakeTier json.Number `json:"stakeTier"`
}
