package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clubops/supporter360/internal/pkg/env"
)

// FutureTicketingClient wraps the Future Ticketing private REST API. Bearer
// tokens come from an API-key + private-key exchange and are cached for 55
// minutes.
type FutureTicketingClient struct {
	BaseURL    string
	APIKey     string
	PrivateKey string

	tokens    *TokenCache
	transport *transport
}

type FTTicketSale struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	EventName string  `json:"event_name"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
	SoldAt    string  `json:"sold_at"`
}

// NewFutureTicketingClientFromEnv builds a client from FUTURE_TICKETING_*
// environment configuration.
func NewFutureTicketingClientFromEnv() *FutureTicketingClient {
	c := &FutureTicketingClient{
		BaseURL:    strings.TrimRight(env.GetEnv("FUTURE_TICKETING_BASE_URL", ""), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("FUTURE_TICKETING_API_KEY", "")),
		PrivateKey: strings.TrimSpace(env.GetEnv("FUTURE_TICKETING_PRIVATE_KEY", "")),
		transport:  newTransport("FutureTicketing"),
	}
	c.tokens = NewTokenCache(DefaultTokenTTL, c.exchangeToken)
	return c
}

// exchangeToken swaps the API key + private key for a bearer token.
func (c *FutureTicketingClient) exchangeToken(ctx context.Context) (string, error) {
	if c.APIKey == "" || c.PrivateKey == "" {
		return "", errors.New("FUTURE_TICKETING_API_KEY/FUTURE_TICKETING_PRIVATE_KEY are not configured")
	}

	body, err := json.Marshal(map[string]string{
		"api_key":     c.APIKey,
		"private_key": c.PrivateKey,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.transport.doJSON(ctx, http.MethodPost, c.BaseURL+"/auth/token", nil, body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", errors.New("future ticketing token exchange returned empty access_token")
	}
	return out.AccessToken, nil
}

// GetTicketSale fetches a ticket sale by ID.
func (c *FutureTicketingClient) GetTicketSale(ctx context.Context, id string) (*FTTicketSale, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("future ticketing auth failed: %w", err)
	}

	var out FTTicketSale
	url := fmt.Sprintf("%s/sales/%s", c.BaseURL, id)
	headers := map[string]string{"Authorization": "Bearer " + token}
	if err := c.transport.doJSON(ctx, http.MethodGet, url, headers, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
