package providers

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/clubops/supporter360/internal/pkg/env"
)

// MailchimpClient wraps the Mailchimp marketing API. The data-center-scoped
// base URL is derived from the API key suffix ("<key>-us21" -> us21).
type MailchimpClient struct {
	BaseURL string
	APIKey  string

	transport *transport
}

type MailchimpMember struct {
	ID           string            `json:"id"`
	EmailAddress string            `json:"email_address"`
	Status       string            `json:"status"`
	MergeFields  map[string]string `json:"merge_fields"`
}

// NewMailchimpClientFromEnv builds a client from MAILCHIMP_API_KEY.
func NewMailchimpClientFromEnv() *MailchimpClient {
	apiKey := strings.TrimSpace(env.GetEnv("MAILCHIMP_API_KEY", ""))
	base := env.GetEnv("MAILCHIMP_BASE_URL", "")
	if base == "" {
		if dc := dataCenterFromKey(apiKey); dc != "" {
			base = fmt.Sprintf("https://%s.api.mailchimp.com/3.0", dc)
		}
	}
	return &MailchimpClient{
		BaseURL:   strings.TrimRight(base, "/"),
		APIKey:    apiKey,
		transport: newTransport("Mailchimp"),
	}
}

// dataCenterFromKey extracts the data center from the key suffix after the
// last dash.
func dataCenterFromKey(apiKey string) string {
	idx := strings.LastIndex(apiKey, "-")
	if idx < 0 || idx == len(apiKey)-1 {
		return ""
	}
	return apiKey[idx+1:]
}

func (c *MailchimpClient) headers() map[string]string {
	credentials := base64.StdEncoding.EncodeToString([]byte("anystring:" + c.APIKey))
	return map[string]string{"Authorization": "Basic " + credentials}
}

// SubscriberHash is the lowercase-email MD5 hash Mailchimp uses as the member
// resource ID.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// GetMember fetches a list member by email.
func (c *MailchimpClient) GetMember(ctx context.Context, listID, email string) (*MailchimpMember, error) {
	var out MailchimpMember
	url := fmt.Sprintf("%s/lists/%s/members/%s", c.BaseURL, listID, SubscriberHash(email))
	if err := c.transport.doJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
