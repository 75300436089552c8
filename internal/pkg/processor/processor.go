package processor

import (
	"context"

	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/ingest"
	"github.com/clubops/supporter360/internal/pkg/providers"
)

// GoCardlessAPI is the slice of the GoCardless client the processor needs.
type GoCardlessAPI interface {
	GetPayment(ctx context.Context, id string) (*providers.GCPayment, error)
	GetMandate(ctx context.Context, id string) (*providers.GCMandate, error)
	GetSubscription(ctx context.Context, id string) (*providers.GCSubscription, error)
	GetCustomer(ctx context.Context, id string) (*providers.GCCustomer, error)
}

// StripeAPI is the slice of the Stripe client the processor needs.
type StripeAPI interface {
	GetCustomer(ctx context.Context, id string) (*providers.StripeCustomer, error)
}

// ShopifyAPI is the slice of the Shopify client the processor needs.
type ShopifyAPI interface {
	GetCustomer(ctx context.Context, id int64) (*providers.ShopifyCustomer, error)
}

// Processor consumes queued webhook deliveries and turns them into
// supporter/event/membership writes. One instance serves all providers; the
// queue dispatches by job type into the per-provider Process* methods.
type Processor struct {
	ingest     *ingest.Service
	gocardless GoCardlessAPI
	stripe     StripeAPI
	shopify    ShopifyAPI
}

// New creates a processor over the ingest core and provider API clients.
func New(svc *ingest.Service, gc GoCardlessAPI, stripe StripeAPI, shopify ShopifyAPI) *Processor {
	return &Processor{
		ingest:     svc,
		gocardless: gc,
		stripe:     stripe,
		shopify:    shopify,
	}
}

// RegisterAll installs the per-provider handlers on the queue. Must run
// before the queue starts its workers.
func (p *Processor) RegisterAll(q *eventqueue.Queue) {
	q.Register(eventqueue.JobTypeShopifyWebhook, p.ProcessShopify)
	q.Register(eventqueue.JobTypeStripeWebhook, p.ProcessStripe)
	q.Register(eventqueue.JobTypeGoCardlessWebhook, p.ProcessGoCardless)
	q.Register(eventqueue.JobTypeMailchimpWebhook, p.ProcessMailchimp)
}
