// Package client cliente HTTP da API de rodadas
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/radieske/updown-rounds-poc/internal/round/dto"
)

const participantHeader = "X-Participant-ID"

// APIError resposta não-2xx; Code é o código estável da API (ex. ROUND_NOT_OPEN)
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rounds http %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Current(ctx context.Context) (dto.RoundResponse, error) {
	var out dto.RoundResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/rounds/current", nil)
	if err != nil {
		return out, err
	}
	return out, c.do(req, &out)
}

// PlaceWager aposta em nome do participante; stakeTier é o valor do tier ("1", "2")
func (c *Client) PlaceWager(ctx context.Context, roundID, participantID, side, stakeTier string) (dto.PlaceWagerResponse, error) {
	var out dto.PlaceWagerResponse
	body, err := json.Marshal(dto.PlaceWagerRequest{Side: side, StakeTier: json.Number(stakeTier)})
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/rounds/"+url.PathEscape(roundID)+"/wagers", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(participantHeader, participantID)
	return out, c.do(req, &out)
}

func (c *Client) Result(ctx context.Context, roundID string) (dto.ResultResponse, error) {
	var out dto.ResultResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/v1/rounds/"+url.PathEscape(roundID)+"/result", nil)
	if err != nil {
		return out, err
	}
	return out, c.do(req, &out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		return &APIError{Status: res.StatusCode, Code: e.Code, Message: e.Error}
	}
	return json.NewDecoder(res.Body).Decode(out)
}
