package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/clubops/supporter360/internal/pkg/env"
)

const defaultStripeBaseURL = "https://api.stripe.com/v1"

// StripeClient fetches customer detail when a webhook carries only a customer
// reference.
type StripeClient struct {
	BaseURL string
	APIKey  string

	transport *transport
}

type StripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// NewStripeClientFromEnv builds a client from STRIPE_API_KEY.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		BaseURL:   strings.TrimRight(env.GetEnv("STRIPE_BASE_URL", defaultStripeBaseURL), "/"),
		APIKey:    strings.TrimSpace(env.GetEnv("STRIPE_API_KEY", "")),
		transport: newTransport("Stripe"),
	}
}

// GetCustomer fetches a Stripe customer by ID.
func (c *StripeClient) GetCustomer(ctx context.Context, id string) (*StripeCustomer, error) {
	var out StripeCustomer
	url := fmt.Sprintf("%s/customers/%s", c.BaseURL, id)
	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}
	if err := c.transport.doJSON(ctx, http.MethodGet, url, headers, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
