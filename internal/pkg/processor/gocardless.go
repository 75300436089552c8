package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/clubops/supporter360/app/models"
	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/ingest"
	"github.com/clubops/supporter360/internal/pkg/providers"
)

// gcEvent is one entry of a GoCardless webhook's events[] array. The receiver
// fans the array out, so each job carries exactly one of these.
type gcEvent struct {
	ID           string            `json:"id"`
	ResourceType string            `json:"resource_type"`
	Action       string            `json:"action"`
	CreatedAt    string            `json:"created_at"`
	Links        providers.GCLinks `json:"links"`
}

// ProcessGoCardless handles one GoCardless sub-event. Webhooks only carry
// resource links, so every path starts with REST lookups against the IDs in
// links. Missing links are data-quality gaps: logged and skipped, never
// failed, so the queue does not retry them.
func (p *Processor) ProcessGoCardless(ctx context.Context, payload *eventqueue.WebhookJobPayload) error {
	var event gcEvent
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return fmt.Errorf("malformed gocardless event %s: %w", payload.CorrelationID, err)
	}

	switch event.ResourceType {
	case "payments":
		return p.gcPayment(ctx, &event, payload)
	case "mandates":
		return p.gcMandate(ctx, &event)
	case "subscriptions":
		return p.gcSubscription(ctx, &event)
	default:
		log.Warnf("[Processor] Unknown GoCardless resource type %q (action %q), skipping", event.ResourceType, event.Action)
		return nil
	}
}

func (p *Processor) gcPayment(ctx context.Context, event *gcEvent, payload *eventqueue.WebhookJobPayload) error {
	if event.Links.Payment == "" {
		log.Warnf("[Processor] GoCardless %s event %s has no payment link, skipping", event.Action, event.ID)
		return nil
	}

	payment, err := p.gocardless.GetPayment(ctx, event.Links.Payment)
	if err != nil {
		return fmt.Errorf("gocardless payment lookup %s: %w", event.Links.Payment, err)
	}

	supporter, err := p.gcResolveCustomer(ctx, payment.Links.Customer)
	if err != nil || supporter == nil {
		return err
	}

	amount := float64(payment.Amount) / 100
	eventType := models.EventTypeMembershipEvent
	if event.Action == "failed" {
		eventType = models.EventTypePaymentEvent
	}

	created, _, err := p.ingest.RecordEvent(ctx, ingest.EventInput{
		SupporterID:  supporter.ID,
		SourceSystem: models.ProviderGoCardless,
		EventType:    eventType,
		EventTime:    gcEventTime(event, payment),
		ExternalID:   "gocardless-payment-" + payment.ID,
		Amount:       &amount,
		Currency:     payment.Currency,
		Metadata: map[string]interface{}{
			"action":  event.Action,
			"status":  payment.Status,
			"payment": payment.ID,
		},
		RawPayloadRef: payload.S3Key,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	switch event.Action {
	case "confirmed", "paid_out":
		at := gcEventTime(event, payment)
		return p.ingest.ApplyPaymentSucceeded(ctx, supporter.ID, ingest.MembershipChange{
			BillingMethod: models.ProviderGoCardless,
			PaymentAt:     &at,
		})
	case "failed":
		return p.ingest.ApplyPaymentFailed(ctx, supporter.ID)
	default:
		return nil
	}
}

func (p *Processor) gcMandate(ctx context.Context, event *gcEvent) error {
	if event.Links.Mandate == "" {
		log.Warnf("[Processor] GoCardless %s event %s has no mandate link, skipping", event.Action, event.ID)
		return nil
	}

	mandate, err := p.gocardless.GetMandate(ctx, event.Links.Mandate)
	if err != nil {
		return fmt.Errorf("gocardless mandate lookup %s: %w", event.Links.Mandate, err)
	}

	supporter, err := p.gcResolveCustomer(ctx, mandate.Links.Customer)
	if err != nil || supporter == nil {
		return err
	}

	switch event.Action {
	case "cancelled", "expired", "failed":
		return p.ingest.ApplyCancellation(ctx, supporter.ID, ingest.MembershipChange{
			BillingMethod: models.ProviderGoCardless,
		})
	case "created", "submitted", "active", "reinstated":
		return p.ingest.ApplySubscriptionActive(ctx, supporter.ID, ingest.MembershipChange{
			BillingMethod: models.ProviderGoCardless,
		})
	default:
		log.Warnf("[Processor] Unknown GoCardless mandate action %q, skipping", event.Action)
		return nil
	}
}

func (p *Processor) gcSubscription(ctx context.Context, event *gcEvent) error {
	if event.Links.Subscription == "" {
		log.Warnf("[Processor] GoCardless %s event %s has no subscription link, skipping", event.Action, event.ID)
		return nil
	}

	subscription, err := p.gocardless.GetSubscription(ctx, event.Links.Subscription)
	if err != nil {
		return fmt.Errorf("gocardless subscription lookup %s: %w", event.Links.Subscription, err)
	}

	// Subscriptions link to the customer through their mandate.
	if subscription.Links.Mandate == "" {
		log.Warnf("[Processor] GoCardless subscription %s has no mandate link, skipping", subscription.ID)
		return nil
	}
	mandate, err := p.gocardless.GetMandate(ctx, subscription.Links.Mandate)
	if err != nil {
		return fmt.Errorf("gocardless mandate lookup %s: %w", subscription.Links.Mandate, err)
	}

	supporter, err := p.gcResolveCustomer(ctx, mandate.Links.Customer)
	if err != nil || supporter == nil {
		return err
	}

	change := ingest.MembershipChange{
		Tier:          subscription.Name,
		Cadence:       ingest.CadenceFromInterval(subscription.IntervalUnit),
		BillingMethod: models.ProviderGoCardless,
	}

	switch event.Action {
	case "cancelled", "finished":
		return p.ingest.ApplyCancellation(ctx, supporter.ID, change)
	case "paused":
		return p.ingest.ApplyPaused(ctx, supporter.ID)
	case "created", "resumed", "amended", "customer_approval_granted":
		return p.ingest.ApplySubscriptionActive(ctx, supporter.ID, change)
	default:
		log.Warnf("[Processor] Unknown GoCardless subscription action %q, skipping", event.Action)
		return nil
	}
}

// gcResolveCustomer fetches the linked customer and resolves the supporter.
// Returns (nil, nil) on data-quality gaps (no customer link, no email) so
// callers can skip without failing the job.
func (p *Processor) gcResolveCustomer(ctx context.Context, customerID string) (*models.Supporter, error) {
	if customerID == "" {
		log.Warn("[Processor] GoCardless resource has no customer link, skipping")
		return nil, nil
	}

	customer, err := p.gocardless.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("gocardless customer lookup %s: %w", customerID, err)
	}
	if customer.Email == "" {
		log.Warnf("[Processor] GoCardless customer %s has no email, skipping", customerID)
		return nil, nil
	}

	return p.ingest.ResolveSupporter(ctx, customer.Email, ingest.Linkage{
		Provider:   models.ProviderGoCardless,
		CustomerID: customer.ID,
		Name:       customer.Name(),
		Phone:      customer.Phone,
	})
}

// gcEventTime prefers the payment charge date, falling back to the webhook
// event timestamp, then to now.
func gcEventTime(event *gcEvent, payment *providers.GCPayment) time.Time {
	if payment != nil && payment.ChargeDate != "" {
		if t, err := time.Parse("2006-01-02", payment.ChargeDate); err == nil {
			return t.UTC()
		}
	}
	if event.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, event.CreatedAt); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
