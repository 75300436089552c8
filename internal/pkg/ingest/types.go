package ingest

import "time"

// Linkage carries the provider-native identity seen on a webhook event.
type Linkage struct {
	Provider   string `validate:"required"`
	CustomerID string `validate:"required"`
	Name       string
	Phone      string
}

// EventInput is the normalized input for idempotent event persistence.
type EventInput struct {
	SupporterID   uint      `validate:"required"`
	SourceSystem  string    `validate:"required"`
	EventType     string    `validate:"required"`
	EventTime     time.Time `validate:"required"`
	ExternalID    string    `validate:"required"`
	Amount        *float64
	Currency      string
	Metadata      map[string]interface{}
	RawPayloadRef string
}
