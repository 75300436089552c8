package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/clubops/supporter360/internal/pkg/env"
)

const shopifyAPIVersion = "2024-01"

// ShopifyClient wraps the Admin REST API for the configured shop.
type ShopifyClient struct {
	BaseURL     string
	AccessToken string

	transport *transport
}

type ShopifyCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type ShopifyOrder struct {
	ID         int64           `json:"id"`
	Email      string          `json:"email"`
	TotalPrice string          `json:"total_price"`
	Currency   string          `json:"currency"`
	CreatedAt  string          `json:"created_at"`
	Customer   ShopifyCustomer `json:"customer"`
}

// NewShopifyClientFromEnv builds a client for the shop named by
// SHOPIFY_SHOP_DOMAIN using SHOPIFY_ACCESS_TOKEN.
func NewShopifyClientFromEnv() *ShopifyClient {
	shop := strings.TrimSpace(env.GetEnv("SHOPIFY_SHOP_DOMAIN", ""))
	base := env.GetEnv("SHOPIFY_BASE_URL", "")
	if base == "" && shop != "" {
		base = fmt.Sprintf("https://%s/admin/api/%s", shop, shopifyAPIVersion)
	}
	return &ShopifyClient{
		BaseURL:     strings.TrimRight(base, "/"),
		AccessToken: strings.TrimSpace(env.GetEnv("SHOPIFY_ACCESS_TOKEN", "")),
		transport:   newTransport("Shopify"),
	}
}

func (c *ShopifyClient) headers() map[string]string {
	return map[string]string{"X-Shopify-Access-Token": c.AccessToken}
}

// GetOrder fetches an order by ID.
func (c *ShopifyClient) GetOrder(ctx context.Context, id int64) (*ShopifyOrder, error) {
	var out struct {
		Order ShopifyOrder `json:"order"`
	}
	url := fmt.Sprintf("%s/orders/%d.json", c.BaseURL, id)
	if err := c.transport.doJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Order, nil
}

// GetCustomer fetches a customer by ID.
func (c *ShopifyClient) GetCustomer(ctx context.Context, id int64) (*ShopifyCustomer, error) {
	var out struct {
		Customer ShopifyCustomer `json:"customer"`
	}
	url := fmt.Sprintf("%s/customers/%d.json", c.BaseURL, id)
	if err := c.transport.doJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Customer, nil
}

// Name combines first and last name, empty when both are missing.
func (c *ShopifyCustomer) Name() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}
