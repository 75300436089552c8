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
)

// stripeEvent is the envelope Stripe wraps every webhook delivery in.
type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripePaymentObject struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	AmountPaid     int64  `json:"amount_paid"`
	AmountDue      int64  `json:"amount_due"`
	Currency       string `json:"currency"`
	Customer       string `json:"customer"`
	ReceiptEmail   string `json:"receipt_email"`
	CustomerEmail  string `json:"customer_email"`
	BillingDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"billing_details"`
}

type stripeCustomerObject struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type stripeSubscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Plan     struct {
		Interval string `json:"interval"`
		Nickname string `json:"nickname"`
	} `json:"plan"`
}

// ProcessStripe dispatches one Stripe webhook delivery by event type.
func (p *Processor) ProcessStripe(ctx context.Context, payload *eventqueue.WebhookJobPayload) error {
	var event stripeEvent
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return fmt.Errorf("malformed stripe event %s: %w", payload.CorrelationID, err)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return p.stripePayment(ctx, &event, payload, "stripe-pi-")
	case "charge.succeeded":
		return p.stripePayment(ctx, &event, payload, "stripe-charge-")
	case "invoice.payment_succeeded":
		return p.stripeInvoice(ctx, &event, payload, false)
	case "invoice.payment_failed":
		return p.stripeInvoice(ctx, &event, payload, true)
	case "customer.created":
		return p.stripeCustomerCreated(ctx, &event)
	case "customer.subscription.created", "customer.subscription.updated",
		"customer.subscription.deleted", "customer.subscription.paused":
		return p.stripeSubscription(ctx, &event)
	default:
		log.Warnf("[Processor] Unknown Stripe event type %q, skipping", event.Type)
		return nil
	}
}

// stripePayment records a one-off payment (payment intent or charge) as a
// payment event with no membership side effects.
func (p *Processor) stripePayment(ctx context.Context, event *stripeEvent, payload *eventqueue.WebhookJobPayload, idPrefix string) error {
	var object stripePaymentObject
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return fmt.Errorf("malformed stripe %s object: %w", event.Type, err)
	}

	supporter, err := p.stripeResolve(ctx, &object)
	if err != nil || supporter == nil {
		return err
	}

	amount := float64(object.Amount) / 100
	_, _, err = p.ingest.RecordEvent(ctx, ingest.EventInput{
		SupporterID:  supporter.ID,
		SourceSystem: models.ProviderStripe,
		EventType:    models.EventTypePaymentEvent,
		EventTime:    stripeEventTime(event),
		ExternalID:   idPrefix + object.ID,
		Amount:       &amount,
		Currency:     object.Currency,
		Metadata: map[string]interface{}{
			"type": event.Type,
		},
		RawPayloadRef: payload.S3Key,
	})
	return err
}

// stripeInvoice records a recurring billing outcome and transitions the
// supporter's membership accordingly.
func (p *Processor) stripeInvoice(ctx context.Context, event *stripeEvent, payload *eventqueue.WebhookJobPayload, failed bool) error {
	var object stripePaymentObject
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return fmt.Errorf("malformed stripe %s object: %w", event.Type, err)
	}

	supporter, err := p.stripeResolve(ctx, &object)
	if err != nil || supporter == nil {
		return err
	}

	externalID := "stripe-invoice-" + object.ID
	status := "payment_succeeded"
	minor := object.AmountPaid
	if failed {
		externalID = "stripe-invoice-failed-" + object.ID
		status = "payment_failed"
		minor = object.AmountDue
	}
	amount := float64(minor) / 100

	created, _, err := p.ingest.RecordEvent(ctx, ingest.EventInput{
		SupporterID:  supporter.ID,
		SourceSystem: models.ProviderStripe,
		EventType:    models.EventTypeMembershipEvent,
		EventTime:    stripeEventTime(event),
		ExternalID:   externalID,
		Amount:       &amount,
		Currency:     object.Currency,
		Metadata: map[string]interface{}{
			"type":   event.Type,
			"status": status,
		},
		RawPayloadRef: payload.S3Key,
	})
	if err != nil || !created {
		return err
	}

	if failed {
		return p.ingest.ApplyPaymentFailed(ctx, supporter.ID)
	}
	at := stripeEventTime(event)
	return p.ingest.ApplyPaymentSucceeded(ctx, supporter.ID, ingest.MembershipChange{
		BillingMethod: models.ProviderStripe,
		PaymentAt:     &at,
	})
}

// stripeCustomerCreated runs identity resolution only; no event is recorded
// for customer-only webhooks.
func (p *Processor) stripeCustomerCreated(ctx context.Context, event *stripeEvent) error {
	var object stripeCustomerObject
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return fmt.Errorf("malformed stripe customer object: %w", err)
	}
	if object.Email == "" {
		log.Warnf("[Processor] Stripe customer %s has no email, skipping", object.ID)
		return nil
	}

	_, err := p.ingest.ResolveSupporter(ctx, object.Email, ingest.Linkage{
		Provider:   models.ProviderStripe,
		CustomerID: object.ID,
		Name:       object.Name,
		Phone:      object.Phone,
	})
	return err
}

func (p *Processor) stripeSubscription(ctx context.Context, event *stripeEvent) error {
	var object stripeSubscriptionObject
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return fmt.Errorf("malformed stripe subscription object: %w", err)
	}
	if object.Customer == "" {
		log.Warnf("[Processor] Stripe subscription %s has no customer, skipping", object.ID)
		return nil
	}

	customer, err := p.stripe.GetCustomer(ctx, object.Customer)
	if err != nil {
		return fmt.Errorf("stripe customer lookup %s: %w", object.Customer, err)
	}
	if customer.Email == "" {
		log.Warnf("[Processor] Stripe customer %s has no email, skipping", customer.ID)
		return nil
	}

	supporter, err := p.ingest.ResolveSupporter(ctx, customer.Email, ingest.Linkage{
		Provider:   models.ProviderStripe,
		CustomerID: customer.ID,
		Name:       customer.Name,
		Phone:      customer.Phone,
	})
	if err != nil {
		return err
	}

	change := ingest.MembershipChange{
		Tier:          object.Plan.Nickname,
		Cadence:       ingest.CadenceFromInterval(object.Plan.Interval),
		BillingMethod: models.ProviderStripe,
	}

	switch {
	case event.Type == "customer.subscription.deleted" || object.Status == "canceled":
		return p.ingest.ApplyCancellation(ctx, supporter.ID, change)
	case event.Type == "customer.subscription.paused" || object.Status == "paused":
		return p.ingest.ApplyPaused(ctx, supporter.ID)
	default:
		return p.ingest.ApplySubscriptionActive(ctx, supporter.ID, change)
	}
}

// stripeResolve finds the supporter for a payment-shaped object, trying the
// emails the payload itself carries before falling back to a customer lookup.
// Returns (nil, nil) when no email can be found anywhere.
func (p *Processor) stripeResolve(ctx context.Context, object *stripePaymentObject) (*models.Supporter, error) {
	email := object.ReceiptEmail
	if email == "" {
		email = object.CustomerEmail
	}
	if email == "" {
		email = object.BillingDetails.Email
	}
	name := object.BillingDetails.Name
	phone := ""
	customerID := object.Customer

	if email == "" && object.Customer != "" {
		customer, err := p.stripe.GetCustomer(ctx, object.Customer)
		if err != nil {
			return nil, fmt.Errorf("stripe customer lookup %s: %w", object.Customer, err)
		}
		email = customer.Email
		if name == "" {
			name = customer.Name
		}
		phone = customer.Phone
	}

	if email == "" {
		log.Warnf("[Processor] Stripe object %s has no resolvable email, skipping", object.ID)
		return nil, nil
	}
	if customerID == "" {
		// No customer attached (guest checkout). Key the linkage on the
		// payment object so the unique index still holds.
		customerID = object.ID
	}

	return p.ingest.ResolveSupporter(ctx, email, ingest.Linkage{
		Provider:   models.ProviderStripe,
		CustomerID: customerID,
		Name:       name,
		Phone:      phone,
	})
}

func stripeEventTime(event *stripeEvent) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}
