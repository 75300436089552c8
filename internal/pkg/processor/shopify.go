package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/clubops/supporter360/app/models"
	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/ingest"
	"github.com/clubops/supporter360/internal/pkg/providers"
)

// shopifyEvent pairs the webhook topic (from the X-Shopify-Topic header) with
// the raw payload; Shopify does not envelope its payloads, so the receiver
// builds this wrapper before enqueueing.
type shopifyEvent struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// ProcessShopify dispatches one Shopify webhook delivery by topic.
func (p *Processor) ProcessShopify(ctx context.Context, payload *eventqueue.WebhookJobPayload) error {
	var event shopifyEvent
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return fmt.Errorf("malformed shopify event %s: %w", payload.CorrelationID, err)
	}

	switch event.Topic {
	case "orders/create", "orders/paid":
		return p.shopifyOrder(ctx, &event, payload)
	case "customers/create", "customers/update":
		return p.shopifyCustomer(ctx, &event)
	default:
		log.Warnf("[Processor] Unknown Shopify topic %q, skipping", event.Topic)
		return nil
	}
}

func (p *Processor) shopifyOrder(ctx context.Context, event *shopifyEvent, payload *eventqueue.WebhookJobPayload) error {
	var order providers.ShopifyOrder
	if err := json.Unmarshal(event.Payload, &order); err != nil {
		return fmt.Errorf("malformed shopify order payload: %w", err)
	}

	email := order.Email
	if email == "" {
		email = order.Customer.Email
	}
	if email == "" {
		log.Warnf("[Processor] Shopify order %d has no email, skipping", order.ID)
		return nil
	}

	customerID := strconv.FormatInt(order.Customer.ID, 10)
	if order.Customer.ID == 0 {
		customerID = strconv.FormatInt(order.ID, 10)
	}
	supporter, err := p.ingest.ResolveSupporter(ctx, email, ingest.Linkage{
		Provider:   models.ProviderShopify,
		CustomerID: customerID,
		Name:       order.Customer.Name(),
		Phone:      order.Customer.Phone,
	})
	if err != nil {
		return err
	}

	// Shopify prices arrive as decimal strings, not minor units.
	var amountPtr *float64
	if order.TotalPrice != "" {
		amount, perr := strconv.ParseFloat(order.TotalPrice, 64)
		if perr != nil {
			log.Warnf("[Processor] Shopify order %d has unparseable total_price %q", order.ID, order.TotalPrice)
		} else {
			amountPtr = &amount
		}
	}

	_, _, err = p.ingest.RecordEvent(ctx, ingest.EventInput{
		SupporterID:  supporter.ID,
		SourceSystem: models.ProviderShopify,
		EventType:    models.EventTypeShopOrder,
		EventTime:    shopifyEventTime(order.CreatedAt),
		ExternalID:   "shopify-order-" + strconv.FormatInt(order.ID, 10),
		Amount:       amountPtr,
		Currency:     order.Currency,
		Metadata: map[string]interface{}{
			"topic": event.Topic,
		},
		RawPayloadRef: payload.S3Key,
	})
	return err
}

// shopifyCustomer runs identity resolution only.
func (p *Processor) shopifyCustomer(ctx context.Context, event *shopifyEvent) error {
	var customer providers.ShopifyCustomer
	if err := json.Unmarshal(event.Payload, &customer); err != nil {
		return fmt.Errorf("malformed shopify customer payload: %w", err)
	}
	if customer.Email == "" {
		log.Warnf("[Processor] Shopify customer %d has no email, skipping", customer.ID)
		return nil
	}

	_, err := p.ingest.ResolveSupporter(ctx, customer.Email, ingest.Linkage{
		Provider:   models.ProviderShopify,
		CustomerID: strconv.FormatInt(customer.ID, 10),
		Name:       customer.Name(),
		Phone:      customer.Phone,
	})
	return err
}

func shopifyEventTime(createdAt string) time.Time {
	if createdAt != "" {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
