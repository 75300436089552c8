package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/clubops/supporter360/internal/pkg/env"
)

const (
	defaultGoCardlessBaseURL = "https://api.gocardless.com"
	goCardlessVersion        = "2015-07-06"
)

// GoCardlessClient fetches supplementary detail for webhook events. Webhooks
// only carry resource links; amounts, cadence and customer identity come from
// these lookups.
type GoCardlessClient struct {
	BaseURL     string
	AccessToken string

	transport *transport
}

type GCLinks struct {
	Customer     string `json:"customer"`
	Mandate      string `json:"mandate"`
	Subscription string `json:"subscription"`
	Payment      string `json:"payment"`
}

// GCPayment is a GoCardless payment resource. Amount is in integer minor
// units (pence/cents).
type GCPayment struct {
	ID         string  `json:"id"`
	Amount     int64   `json:"amount"`
	Currency   string  `json:"currency"`
	Status     string  `json:"status"`
	ChargeDate string  `json:"charge_date"`
	Links      GCLinks `json:"links"`
}

type GCMandate struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Links  GCLinks `json:"links"`
}

type GCSubscription struct {
	ID           string  `json:"id"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	Name         string  `json:"name"`
	IntervalUnit string  `json:"interval_unit"`
	Links        GCLinks `json:"links"`
}

type GCCustomer struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Phone      string `json:"phone_number"`
}

// NewGoCardlessClientFromEnv builds a client from GOCARDLESS_* environment
// configuration.
func NewGoCardlessClientFromEnv() *GoCardlessClient {
	return &GoCardlessClient{
		BaseURL:     strings.TrimRight(env.GetEnv("GOCARDLESS_BASE_URL", defaultGoCardlessBaseURL), "/"),
		AccessToken: strings.TrimSpace(env.GetEnv("GOCARDLESS_ACCESS_TOKEN", "")),
		transport:   newTransport("GoCardless"),
	}
}

func (c *GoCardlessClient) headers() map[string]string {
	return map[string]string{
		"Authorization":      "Bearer " + c.AccessToken,
		"GoCardless-Version": goCardlessVersion,
	}
}

// GetPayment fetches a payment by ID.
func (c *GoCardlessClient) GetPayment(ctx context.Context, id string) (*GCPayment, error) {
	var out struct {
		Payments GCPayment `json:"payments"`
	}
	url := fmt.Sprintf("%s/payments/%s", c.BaseURL, id)
	if err := c.transport.doJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Payments, nil
}

// GetMandate fetches a mandate by ID.
func (c *GoCardlessClient) GetMandate(ctx context.Context, id string) (*GCMandate, error) {
	var out struct {
		Mandates GCMandate `json:"mandates"`
	}
	url := fmt.Sprintf("%s/mandates/%s", c.BaseURL, id)
	if err := c.transport.doJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Mandates, nil
}

// GetSubscription fetches a subscription by ID.
func (c *GoCardlessClient) GetSubscription(ctx context.Context, id string) (*GCSubscription, error) {
	var out struct {
		Subscriptions GCSubscription `json:"subscriptions"`
	}
	url := fmt.Sprintf("%s/subscriptions/%s", c.BaseURL, id)
	if err := c.transport.doJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Subscriptions, nil
}

// GetCustomer fetches a customer by ID.
func (c *GoCardlessClient) GetCustomer(ctx context.Context, id string) (*GCCustomer, error) {
	var out struct {
		Customers GCCustomer `json:"customers"`
	}
	url := fmt.Sprintf("%s/customers/%s", c.BaseURL, id)
	if err := c.transport.doJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Customers, nil
}

// Name combines given and family name, empty when both are missing.
func (c *GCCustomer) Name() string {
	return strings.TrimSpace(strings.TrimSpace(c.GivenName) + " " + strings.TrimSpace(c.FamilyName))
}
