package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoCardlessClientUnwrapsResources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gc-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2015-07-06", r.Header.Get("GoCardless-Version"))
		switch r.URL.Path {
		case "/payments/PM001":
			w.Write([]byte(`{"payments":{"id":"PM001","amount":1000,"currency":"GBP","status":"confirmed","charge_date":"2026-08-29","links":{"customer":"CU001","mandate":"MD001"}}}`))
		case "/customers/CU001":
			w.Write([]byte(`{"customers":{"id":"CU001","email":"jane@example.org","given_name":"Jane","family_name":"Doe"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := &GoCardlessClient{BaseURL: srv.URL, AccessToken: "gc-token", transport: newTransport("GoCardless")}

	payment, err := c.GetPayment(context.Background(), "PM001")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, payment.Amount)
	assert.Equal(t, "CU001", payment.Links.Customer)

	customer, err := c.GetCustomer(context.Background(), "CU001")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.org", customer.Email)
	assert.Equal(t, "Jane Doe", customer.Name())

	_, err = c.GetMandate(context.Background(), "MD999")
	assert.True(t, IsNotFound(err))
}

func TestStripeClientGetCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/cus_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"cus_1","email":"jane@example.org","name":"Jane Doe"}`))
	}))
	defer srv.Close()

	c := &StripeClient{BaseURL: srv.URL, APIKey: "sk_test_123", transport: newTransport("Stripe")}
	customer, err := c.GetCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.org", customer.Email)
	assert.Equal(t, "Jane Doe", customer.Name)
}

func TestShopifyClientUnwrapsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/820982911946154508.json", r.URL.Path)
		assert.Equal(t, "shpat_token", r.Header.Get("X-Shopify-Access-Token"))
		w.Write([]byte(`{"order":{"id":820982911946154508,"email":"jane@example.org","total_price":"42.50","currency":"GBP","customer":{"id":115310627314723954,"first_name":"Jane","last_name":"Doe"}}}`))
	}))
	defer srv.Close()

	c := &ShopifyClient{BaseURL: srv.URL, AccessToken: "shpat_token", transport: newTransport("Shopify")}
	order, err := c.GetOrder(context.Background(), 820982911946154508)
	require.NoError(t, err)
	assert.Equal(t, "42.50", order.TotalPrice)
	assert.Equal(t, "Jane Doe", order.Customer.Name())
}

func TestFutureTicketingTokenExchangeIsCached(t *testing.T) {
	var tokenCalls, saleCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/token":
			atomic.AddInt32(&tokenCalls, 1)
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "ft-key", creds["api_key"])
			assert.Equal(t, "ft-private", creds["private_key"])
			w.Write([]byte(`{"access_token":"ft-bearer","expires_in":3600}`))
		case "/sales/S100":
			atomic.AddInt32(&saleCalls, 1)
			assert.Equal(t, "Bearer ft-bearer", r.Header.Get("Authorization"))
			w.Write([]byte(`{"id":"S100","email":"jane@example.org","event_name":"Season Opener","total":55.00,"currency":"EUR"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := &FutureTicketingClient{
		BaseURL:    srv.URL,
		APIKey:     "ft-key",
		PrivateKey: "ft-private",
		transport:  newTransport("FutureTicketing"),
	}
	c.tokens = NewTokenCache(DefaultTokenTTL, c.exchangeToken)

	sale, err := c.GetTicketSale(context.Background(), "S100")
	require.NoError(t, err)
	assert.Equal(t, "Season Opener", sale.EventName)
	assert.Equal(t, 55.0, sale.Total)

	_, err = c.GetTicketSale(context.Background(), "S100")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tokenCalls, "second call reuses the cached bearer")
	assert.EqualValues(t, 2, saleCalls)
}

func TestFutureTicketingRequiresCredentials(t *testing.T) {
	c := &FutureTicketingClient{BaseURL: "http://unused", transport: newTransport("FutureTicketing")}
	c.tokens = NewTokenCache(DefaultTokenTTL, c.exchangeToken)

	_, err := c.GetTicketSale(context.Background(), "S100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FUTURE_TICKETING_API_KEY")
}

func TestMailchimpClientMemberLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lists/list1/members/"+SubscriberHash("Jane@Example.org"), r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "anystring", user)
		assert.Equal(t, "key-us21", pass)
		w.Write([]byte(`{"id":"abc","email_address":"jane@example.org","status":"subscribed","merge_fields":{"FNAME":"Jane","LNAME":"Doe"}}`))
	}))
	defer srv.Close()

	c := &MailchimpClient{BaseURL: srv.URL, APIKey: "key-us21", transport: newTransport("Mailchimp")}
	member, err := c.GetMember(context.Background(), "list1", "Jane@Example.org")
	require.NoError(t, err)
	assert.Equal(t, "subscribed", member.Status)
	assert.Equal(t, "Jane", member.MergeFields["FNAME"])
}

func TestSubscriberHashNormalizesEmail(t *testing.T) {
	// Known MD5 of "jane@example.org"; case and whitespace must not matter.
	assert.Equal(t, SubscriberHash("jane@example.org"), SubscriberHash("  Jane@Example.ORG "))
	assert.Len(t, SubscriberHash("jane@example.org"), 32)
}

func TestMailchimpDataCenterFromKey(t *testing.T) {
	assert.Equal(t, "us21", dataCenterFromKey("abc123-us21"))
	assert.Equal(t, "", dataCenterFromKey("abc123"))
	assert.Equal(t, "", dataCenterFromKey("abc123-"))
}
