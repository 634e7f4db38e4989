// Package exec is a minimal REST client for moving funds between an
// exchange's futures and spot wallets, implementing treasury.Executor.
//
// Grounded on internal/clients/tradernet/sdk/client.go's shape (a thin
// *http.Client wrapper, HMAC-signed requests, no third-party HTTP
// library) — the existing exchange integrations in this codebase are
// hand-rolled on net/http, so this one is too.
package exec

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Client moves funds between an exchange's futures and spot wallets via a
// signed REST call.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	log        zerolog.Logger
}

// New builds a venue executor client.
func New(baseURL, apiKey, apiSecret string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("component", "exec-client").Logger(),
	}
}

type transferRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	Type   string `json:"type"` // futures_to_spot
}

// MoveFuturesToSpot implements treasury.Executor.
func (c *Client) MoveFuturesToSpot(ctx context.Context, amount float64) error {
	body, err := json.Marshal(transferRequest{
		Asset:  "USDT",
		Amount: strconv.FormatFloat(amount, 'f', -1, 64),
		Type:   "futures_to_spot",
	})
	if err != nil {
		return fmt.Errorf("failed to encode transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sapi/v1/asset/transfer", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-SIGNATURE", c.sign(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("transfer request returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.log.Info().Float64("amount", amount).Msg("moved futures wallet balance to spot")
	return nil
}

func (c *Client) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
