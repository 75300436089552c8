package processor

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clubops/supporter360/app/models"
	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/ingest"
	"github.com/clubops/supporter360/internal/pkg/providers"
)

type memSupporters struct {
	nextID uint
	items  map[uint]*models.Supporter
}

func (m *memSupporters) Create(s *models.Supporter) error {
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Unix(1700000000+int64(s.ID), 0)
	m.items[s.ID] = s
	return nil
}

func (m *memSupporters) GetByID(id uint) (*models.Supporter, error) {
	if s, ok := m.items[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memSupporters) GetByEmail(email string) ([]models.Supporter, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var out []models.Supporter
	for _, s := range m.items {
		if s.PrimaryEmail != nil && strings.ToLower(*s.PrimaryEmail) == normalized {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSupporters) GetByProviderCustomerID(provider, customerID string) (*models.Supporter, error) {
	for _, s := range m.items {
		for _, l := range s.Links {
			if l.Provider == provider && l.ProviderCustomerID == customerID {
				return s, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memSupporters) Update(s *models.Supporter) error {
	*m.items[s.ID] = *s
	return nil
}

func (m *memSupporters) UpsertLink(link *models.SupporterLink) error {
	for _, s := range m.items {
		for _, l := range s.Links {
			if l.Provider == link.Provider && l.ProviderCustomerID == link.ProviderCustomerID {
				return nil
			}
		}
	}
	owner := m.items[link.SupporterID]
	owner.Links = append(owner.Links, *link)
	return nil
}

func (m *memSupporters) AddEmailAlias(supporterID uint, email string) error {
	owner := m.items[supporterID]
	owner.Aliases = append(owner.Aliases, models.SupporterAlias{SupporterID: supporterID, Email: email})
	return nil
}

func (m *memSupporters) MarkSharedEmail(ids []uint) error {
	for _, id := range ids {
		m.items[id].SharedEmail = true
	}
	return nil
}

func (m *memSupporters) Search(query string, limit int) ([]models.Supporter, error) {
	return nil, nil
}

type memEvents struct {
	nextID  uint
	items   map[string]*models.Event
	upserts int
}

func (m *memEvents) Upsert(event *models.Event) error {
	m.upserts++
	key := event.SourceSystem + "|" + event.ExternalID
	if existing, ok := m.items[key]; ok {
		existing.MetadataJSON = event.MetadataJSON
		existing.RawPayloadRef = event.RawPayloadRef
		*event = *existing
		return nil
	}
	m.nextID++
	event.ID = m.nextID
	stored := *event
	m.items[key] = &stored
	return nil
}

func (m *memEvents) FindByExternalID(sourceSystem, externalID string) (*models.Event, error) {
	if e, ok := m.items[sourceSystem+"|"+externalID]; ok {
		out := *e
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memEvents) ListBySupporter(supporterID uint, offset, limit int) ([]models.Event, error) {
	return nil, nil
}

func (m *memEvents) CountBySupporter(supporterID uint) (int64, error) {
	return int64(len(m.items)), nil
}

type memMemberships struct {
	items map[uint]*models.Membership
}

func (m *memMemberships) FindBySupporterID(supporterID uint) (*models.Membership, error) {
	if v, ok := m.items[supporterID]; ok {
		out := *v
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memMemberships) Upsert(membership *models.Membership) error {
	existing, ok := m.items[membership.SupporterID]
	if !ok {
		stored := *membership
		m.items[membership.SupporterID] = &stored
		return nil
	}
	if membership.Tier != "" {
		existing.Tier = membership.Tier
	}
	if membership.Cadence != "" {
		existing.Cadence = membership.Cadence
	}
	if membership.BillingMethod != "" {
		existing.BillingMethod = membership.BillingMethod
	}
	existing.Status = membership.Status
	if membership.LastPaymentDate != nil {
		existing.LastPaymentDate = membership.LastPaymentDate
	}
	*membership = *existing
	return nil
}

func (m *memMemberships) UpdateLastPaymentDate(supporterID uint, paidAt time.Time) error {
	m.items[supporterID].LastPaymentDate = &paidAt
	return nil
}

func (m *memMemberships) MarkActive(supporterID uint, paidAt time.Time) error {
	m.items[supporterID].Status = models.MembershipStatusActive
	return nil
}

func (m *memMemberships) MarkPastDue(supporterID uint) error {
	m.items[supporterID].Status = models.MembershipStatusPastDue
	return nil
}

func (m *memMemberships) Cancel(supporterID uint) error {
	m.items[supporterID].Status = models.MembershipStatusCancelled
	return nil
}

type fakeGoCardless struct {
	payments      map[string]*providers.GCPayment
	mandates      map[string]*providers.GCMandate
	subscriptions map[string]*providers.GCSubscription
	customers     map[string]*providers.GCCustomer
}

func (f *fakeGoCardless) GetPayment(ctx context.Context, id string) (*providers.GCPayment, error) {
	return f.payments[id], nil
}

func (f *fakeGoCardless) GetMandate(ctx context.Context, id string) (*providers.GCMandate, error) {
	return f.mandates[id], nil
}

func (f *fakeGoCardless) GetSubscription(ctx context.Context, id string) (*providers.GCSubscription, error) {
	return f.subscriptions[id], nil
}

func (f *fakeGoCardless) GetCustomer(ctx context.Context, id string) (*providers.GCCustomer, error) {
	return f.customers[id], nil
}

type fakeStripe struct {
	customers map[string]*providers.StripeCustomer
}

func (f *fakeStripe) GetCustomer(ctx context.Context, id string) (*providers.StripeCustomer, error) {
	return f.customers[id], nil
}

type fakeShopify struct{}

func (f *fakeShopify) GetCustomer(ctx context.Context, id int64) (*providers.ShopifyCustomer, error) {
	return nil, nil
}

type env struct {
	proc        *Processor
	supporters  *memSupporters
	events      *memEvents
	memberships *memMemberships
	gocardless  *fakeGoCardless
	stripe      *fakeStripe
}

func newTestEnv() *env {
	supporters := &memSupporters{items: make(map[uint]*models.Supporter)}
	events := &memEvents{items: make(map[string]*models.Event)}
	memberships := &memMemberships{items: make(map[uint]*models.Membership)}
	gc := &fakeGoCardless{
		payments:      make(map[string]*providers.GCPayment),
		mandates:      make(map[string]*providers.GCMandate),
		subscriptions: make(map[string]*providers.GCSubscription),
		customers:     make(map[string]*providers.GCCustomer),
	}
	stripe := &fakeStripe{customers: make(map[string]*providers.StripeCustomer)}
	svc := ingest.NewService(supporters, events, memberships)
	return &env{
		proc:        New(svc, gc, stripe, &fakeShopify{}),
		supporters:  supporters,
		events:      events,
		memberships: memberships,
		gocardless:  gc,
		stripe:      stripe,
	}
}

func job(event string, key string) *eventqueue.WebhookJobPayload {
	return &eventqueue.WebhookJobPayload{
		Event:         json.RawMessage(event),
		S3Key:         key,
		CorrelationID: "corr-1",
	}
}

func TestGoCardlessConfirmedPaymentForNewCustomer(t *testing.T) {
	te := newTestEnv()
	te.gocardless.payments["PM001"] = &providers.GCPayment{
		ID:         "PM001",
		Amount:     1000,
		Currency:   "GBP",
		Status:     "confirmed",
		ChargeDate: "2026-08-01",
		Links:      providers.GCLinks{Customer: "CU001"},
	}
	te.gocardless.customers["CU001"] = &providers.GCCustomer{
		ID:         "CU001",
		Email:      "new@example.com",
		GivenName:  "New",
		FamilyName: "Supporter",
	}

	payload := job(`{"id":"EV001","resource_type":"payments","action":"confirmed","links":{"payment":"PM001"}}`, "gocardless/2026-08-29/corr-1.json")
	require.NoError(t, te.proc.ProcessGoCardless(context.Background(), payload))

	// Supporter created and linked.
	matches, _ := te.supporters.GetByEmail("new@example.com")
	require.Len(t, matches, 1)
	supporter := matches[0]
	assert.Equal(t, "New Supporter", supporter.Name)
	assert.Equal(t, map[string]string{models.ProviderGoCardless: "CU001"}, supporter.LinkedIDs())

	// One membership event with the amount normalized from minor units.
	event, err := te.events.FindByExternalID(models.ProviderGoCardless, "gocardless-payment-PM001")
	require.NoError(t, err)
	assert.Equal(t, models.EventTypeMembershipEvent, event.EventType)
	require.NotNil(t, event.Amount)
	assert.Equal(t, 10.0, *event.Amount)
	assert.Equal(t, "GBP", event.Currency)
	assert.Equal(t, "gocardless/2026-08-29/corr-1.json", event.RawPayloadRef)

	// Membership upserted active.
	membership, err := te.memberships.FindBySupporterID(supporter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusActive, membership.Status)
	assert.Equal(t, models.ProviderGoCardless, membership.BillingMethod)
	require.NotNil(t, membership.LastPaymentDate)
}

func TestGoCardlessRedeliveryIsNoOp(t *testing.T) {
	te := newTestEnv()
	te.gocardless.payments["PM001"] = &providers.GCPayment{
		ID: "PM001", Amount: 1000, Currency: "GBP",
		Links: providers.GCLinks{Customer: "CU001"},
	}
	te.gocardless.customers["CU001"] = &providers.GCCustomer{ID: "CU001", Email: "new@example.com"}

	payload := job(`{"id":"EV001","resource_type":"payments","action":"confirmed","links":{"payment":"PM001"}}`, "k")
	require.NoError(t, te.proc.ProcessGoCardless(context.Background(), payload))
	upsertsAfterFirst := te.events.upserts
	membershipAfterFirst, _ := te.memberships.FindBySupporterID(1)

	require.NoError(t, te.proc.ProcessGoCardless(context.Background(), payload))
	assert.Equal(t, upsertsAfterFirst, te.events.upserts, "no second event write")
	membershipAfterSecond, _ := te.memberships.FindBySupporterID(1)
	assert.Equal(t, membershipAfterFirst, membershipAfterSecond)
}

func TestGoCardlessFailedPaymentMapsToPaymentEvent(t *testing.T) {
	te := newTestEnv()
	te.gocardless.payments["PM002"] = &providers.GCPayment{
		ID: "PM002", Amount: 500, Currency: "GBP", Status: "failed",
		Links: providers.GCLinks{Customer: "CU001"},
	}
	te.gocardless.customers["CU001"] = &providers.GCCustomer{ID: "CU001", Email: "member@example.com"}

	// Existing active membership from a previous payment.
	email := "member@example.com"
	s := &models.Supporter{PrimaryEmail: &email}
	require.NoError(t, te.supporters.Create(s))
	te.memberships.items[s.ID] = &models.Membership{SupporterID: s.ID, Status: models.MembershipStatusActive}

	payload := job(`{"id":"EV002","resource_type":"payments","action":"failed","links":{"payment":"PM002"}}`, "k")
	require.NoError(t, te.proc.ProcessGoCardless(context.Background(), payload))

	event, err := te.events.FindByExternalID(models.ProviderGoCardless, "gocardless-payment-PM002")
	require.NoError(t, err)
	assert.Equal(t, models.EventTypePaymentEvent, event.EventType)

	membership, _ := te.memberships.FindBySupporterID(s.ID)
	assert.Equal(t, models.MembershipStatusPastDue, membership.Status)
}

func TestGoCardlessMissingCustomerLinkSkipsWithoutError(t *testing.T) {
	te := newTestEnv()
	te.gocardless.payments["PM003"] = &providers.GCPayment{ID: "PM003", Amount: 1000}

	payload := job(`{"id":"EV003","resource_type":"payments","action":"confirmed","links":{"payment":"PM003"}}`, "k")
	require.NoError(t, te.proc.ProcessGoCardless(context.Background(), payload))
	assert.Zero(t, te.events.upserts)
	assert.Empty(t, te.supporters.items)
}

func TestGoCardlessSubscriptionCancellation(t *testing.T) {
	te := newTestEnv()
	te.gocardless.subscriptions["SB001"] = &providers.GCSubscription{
		ID: "SB001", Name: "Gold", IntervalUnit: "monthly",
		Links: providers.GCLinks{Mandate: "MD001"},
	}
	te.gocardless.mandates["MD001"] = &providers.GCMandate{
		ID: "MD001", Links: providers.GCLinks{Customer: "CU001"},
	}
	te.gocardless.customers["CU001"] = &providers.GCCustomer{ID: "CU001", Email: "sub@example.com"}

	payload := job(`{"id":"EV004","resource_type":"subscriptions","action":"cancelled","links":{"subscription":"SB001"}}`, "k")
	require.NoError(t, te.proc.ProcessGoCardless(context.Background(), payload))

	matches, _ := te.supporters.GetByEmail("sub@example.com")
	require.Len(t, matches, 1)
	membership, err := te.memberships.FindBySupporterID(matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusCancelled, membership.Status)
	assert.Equal(t, "Gold", membership.Tier)
}

func TestStripeInvoicePaymentFailed(t *testing.T) {
	te := newTestEnv()

	email := "payer@example.com"
	s := &models.Supporter{PrimaryEmail: &email}
	require.NoError(t, te.supporters.Create(s))
	te.memberships.items[s.ID] = &models.Membership{SupporterID: s.ID, Status: models.MembershipStatusActive}

	payload := job(`{
		"id":"evt_1","type":"invoice.payment_failed","created":1700000000,
		"data":{"object":{"id":"in_1","amount_due":2500,"currency":"eur","customer":"cus_1","customer_email":"payer@example.com"}}
	}`, "k")
	require.NoError(t, te.proc.ProcessStripe(context.Background(), payload))

	event, err := te.events.FindByExternalID(models.ProviderStripe, "stripe-invoice-failed-in_1")
	require.NoError(t, err)
	assert.Equal(t, models.EventTypeMembershipEvent, event.EventType)
	require.NotNil(t, event.Amount)
	assert.Equal(t, 25.0, *event.Amount)
	assert.Equal(t, "EUR", event.Currency)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(event.MetadataJSON), &metadata))
	assert.Equal(t, "payment_failed", metadata["status"])

	membership, _ := te.memberships.FindBySupporterID(s.ID)
	assert.Equal(t, models.MembershipStatusPastDue, membership.Status)
}

func TestStripePaymentIntentAmountNormalization(t *testing.T) {
	te := newTestEnv()

	payload := job(`{
		"id":"evt_2","type":"payment_intent.succeeded","created":1700000000,
		"data":{"object":{"id":"pi_1","amount":10000,"currency":"eur","receipt_email":"buyer@example.com"}}
	}`, "k")
	require.NoError(t, te.proc.ProcessStripe(context.Background(), payload))

	event, err := te.events.FindByExternalID(models.ProviderStripe, "stripe-pi-pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.EventTypePaymentEvent, event.EventType)
	assert.Equal(t, 100.0, *event.Amount)
	assert.Equal(t, "EUR", event.Currency)
}

func TestStripeMissingEmailSkipsWithoutError(t *testing.T) {
	te := newTestEnv()

	payload := job(`{
		"id":"evt_3","type":"payment_intent.succeeded","created":1700000000,
		"data":{"object":{"id":"pi_2","amount":500,"currency":"gbp"}}
	}`, "k")
	require.NoError(t, te.proc.ProcessStripe(context.Background(), payload))
	assert.Zero(t, te.events.upserts)
	assert.Empty(t, te.supporters.items)
}

func TestStripeCustomerCreatedIsIdentityOnly(t *testing.T) {
	te := newTestEnv()

	payload := job(`{
		"id":"evt_4","type":"customer.created",
		"data":{"object":{"id":"cus_9","email":"fresh@example.com","name":"Fresh Face"}}
	}`, "k")
	require.NoError(t, te.proc.ProcessStripe(context.Background(), payload))

	matches, _ := te.supporters.GetByEmail("fresh@example.com")
	require.Len(t, matches, 1)
	assert.Equal(t, map[string]string{models.ProviderStripe: "cus_9"}, matches[0].LinkedIDs())
	assert.Zero(t, te.events.upserts, "customer-only webhooks create no event")
}

func TestStripeSubscriptionLifecycle(t *testing.T) {
	te := newTestEnv()
	te.stripe.customers["cus_2"] = &providers.StripeCustomer{ID: "cus_2", Email: "sub@example.com", Name: "Sub Scriber"}

	created := job(`{
		"id":"evt_5","type":"customer.subscription.created",
		"data":{"object":{"id":"sub_1","customer":"cus_2","status":"active","plan":{"interval":"month","nickname":"Gold"}}}
	}`, "k")
	require.NoError(t, te.proc.ProcessStripe(context.Background(), created))

	matches, _ := te.supporters.GetByEmail("sub@example.com")
	require.Len(t, matches, 1)
	membership, err := te.memberships.FindBySupporterID(matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusActive, membership.Status)
	assert.Equal(t, models.MembershipCadenceMonthly, membership.Cadence)
	assert.Equal(t, "Gold", membership.Tier)

	deleted := job(`{
		"id":"evt_6","type":"customer.subscription.deleted",
		"data":{"object":{"id":"sub_1","customer":"cus_2","status":"canceled","plan":{"interval":"month"}}}
	}`, "k")
	require.NoError(t, te.proc.ProcessStripe(context.Background(), deleted))
	membership, _ = te.memberships.FindBySupporterID(matches[0].ID)
	assert.Equal(t, models.MembershipStatusCancelled, membership.Status)
}

func TestShopifyOrderCreate(t *testing.T) {
	te := newTestEnv()

	payload := job(`{"topic":"orders/create","payload":{
		"id":9001,"email":"shopper@example.com","total_price":"42.50","currency":"EUR",
		"created_at":"2026-08-01T12:00:00Z",
		"customer":{"id":555,"email":"shopper@example.com","first_name":"Shop","last_name":"Per"}
	}}`, "k")
	require.NoError(t, te.proc.ProcessShopify(context.Background(), payload))

	matches, _ := te.supporters.GetByEmail("shopper@example.com")
	require.Len(t, matches, 1)
	assert.Equal(t, map[string]string{models.ProviderShopify: "555"}, matches[0].LinkedIDs())

	event, err := te.events.FindByExternalID(models.ProviderShopify, "shopify-order-9001")
	require.NoError(t, err)
	assert.Equal(t, models.EventTypeShopOrder, event.EventType)
	assert.Equal(t, 42.5, *event.Amount)
	assert.Equal(t, "EUR", event.Currency)
}

func TestShopifyUnknownTopicSkips(t *testing.T) {
	te := newTestEnv()
	payload := job(`{"topic":"products/create","payload":{"id":1}}`, "k")
	require.NoError(t, te.proc.ProcessShopify(context.Background(), payload))
	assert.Zero(t, te.events.upserts)
}

func TestMailchimpSubscribeIsIdentityOnly(t *testing.T) {
	te := newTestEnv()

	payload := job(`{"type":"subscribe","fired_at":"2026-08-01 10:00:00","data":{
		"id":"abc123","email":"list@example.com","merges":{"FNAME":"Lis","LNAME":"Tee"}
	}}`, "k")
	require.NoError(t, te.proc.ProcessMailchimp(context.Background(), payload))

	matches, _ := te.supporters.GetByEmail("list@example.com")
	require.Len(t, matches, 1)
	assert.Equal(t, "Lis Tee", matches[0].Name)
	assert.Zero(t, te.events.upserts)
}

func TestMailchimpCampaignRecordsEmailClick(t *testing.T) {
	te := newTestEnv()

	payload := job(`{"type":"campaign","fired_at":"2026-08-01 10:00:00","data":{
		"id":"camp42","list_id":"list1","email":"reader@example.com"
	}}`, "k")
	require.NoError(t, te.proc.ProcessMailchimp(context.Background(), payload))

	event, err := te.events.FindByExternalID(models.ProviderMailchimp, "mailchimp-campaign-camp42-reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.EventTypeEmailClick, event.EventType)
}
