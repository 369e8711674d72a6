// Package client cliente HTTP do wallet-service
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/radieske/updown-rounds-poc/internal/wallet-service/dto"
)

// APIError resposta não-2xx do wallet-service
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wallet http %d %s: %s", e.Status, e.Code, e.Message)
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

// Deposit credita amount (decimal, ex. "10"); externalRef torna a chamada idempotente
func (c *Client) Deposit(ctx context.Context, userID, amount, externalRef string) (dto.WalletResponse, error) {
	var out dto.WalletResponse
	body, err := json.Marshal(dto.DepositRequest{UserID: userID, Amount: amount, ExternalRef: externalRef})
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/deposit", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	return out, c.do(req, &out)
}

func (c *Client) Balance(ctx context.Context, userID string) (dto.WalletResponse, error) {
	var out dto.WalletResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/wallet?userId="+url.QueryEscape(userID), nil)
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
