package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/clubops/supporter360/app/models"
	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/ingest"
	"github.com/clubops/supporter360/internal/pkg/webhooksig"
)

// ProcessMailchimp dispatches one Mailchimp webhook delivery by type tag.
// Subscribe/unsubscribe/profile events are identity-only; campaign activity
// becomes an email_click event.
func (p *Processor) ProcessMailchimp(ctx context.Context, payload *eventqueue.WebhookJobPayload) error {
	event, err := webhooksig.ParseMailchimp(payload.Event)
	if err != nil {
		return fmt.Errorf("malformed mailchimp event %s: %w", payload.CorrelationID, err)
	}

	switch event.Type {
	case "subscribe", "unsubscribe", "profile", "upemail":
		return p.mailchimpIdentity(ctx, event)
	case "campaign", "click":
		return p.mailchimpActivity(ctx, event, payload)
	default:
		log.Warnf("[Processor] Unknown Mailchimp type %q, skipping", event.Type)
		return nil
	}
}

func (p *Processor) mailchimpIdentity(ctx context.Context, event *webhooksig.MailchimpPayload) error {
	email := mcString(event.Data, "email")
	if email == "" {
		log.Warnf("[Processor] Mailchimp %s event has no email, skipping", event.Type)
		return nil
	}

	customerID := mcString(event.Data, "id")
	if customerID == "" {
		customerID = email
	}

	name := mcName(event.Data)
	_, err := p.ingest.ResolveSupporter(ctx, email, ingest.Linkage{
		Provider:   models.ProviderMailchimp,
		CustomerID: customerID,
		Name:       name,
	})
	return err
}

func (p *Processor) mailchimpActivity(ctx context.Context, event *webhooksig.MailchimpPayload, payload *eventqueue.WebhookJobPayload) error {
	email := mcString(event.Data, "email")
	if email == "" {
		log.Warnf("[Processor] Mailchimp %s event has no email, skipping", event.Type)
		return nil
	}

	campaignID := mcString(event.Data, "id")
	if campaignID == "" {
		log.Warnf("[Processor] Mailchimp %s event has no campaign id, skipping", event.Type)
		return nil
	}

	customerID := mcString(event.Data, "list_id")
	if customerID == "" {
		customerID = email
	}
	supporter, err := p.ingest.ResolveSupporter(ctx, email, ingest.Linkage{
		Provider:   models.ProviderMailchimp,
		CustomerID: customerID,
	})
	if err != nil {
		return err
	}

	_, _, err = p.ingest.RecordEvent(ctx, ingest.EventInput{
		SupporterID:  supporter.ID,
		SourceSystem: models.ProviderMailchimp,
		EventType:    models.EventTypeEmailClick,
		EventTime:    mailchimpEventTime(event.FiredAt),
		ExternalID:   fmt.Sprintf("mailchimp-%s-%s-%s", event.Type, campaignID, email),
		Metadata: map[string]interface{}{
			"type":     event.Type,
			"campaign": campaignID,
		},
		RawPayloadRef: payload.S3Key,
	})
	return err
}

func mcString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// mcName combines the FNAME/LNAME merge fields when present.
func mcName(data map[string]interface{}) string {
	merges, ok := data["merges"].(map[string]interface{})
	if !ok {
		return ""
	}
	first, _ := merges["FNAME"].(string)
	last, _ := merges["LNAME"].(string)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}

func mailchimpEventTime(firedAt string) time.Time {
	if firedAt != "" {
		// Mailchimp timestamps have no timezone designator.
		if t, err := time.Parse("2006-01-02 15:04:05", firedAt); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
