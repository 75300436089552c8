package models

import "time"

// Event types recorded against supporters.
const (
	EventTypeTicketPurchase  = "ticket_purchase"
	EventTypeStadiumEntry    = "stadium_entry"
	EventTypeShopOrder       = "shop_order"
	EventTypeMembershipEvent = "membership_event"
	EventTypePaymentEvent    = "payment_event"
	EventTypeEmailClick      = "email_click"
)

// Event is an immutable fact tied to a supporter. (source_system, external_id)
// is the natural idempotency key: redelivery of the same provider event
// updates metadata/raw_payload_ref on the existing row instead of inserting.
type Event struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SupporterID   uint      `gorm:"not null;index" json:"supporter_id"`
	SourceSystem  string    `gorm:"type:varchar(20);not null;index:ux_events_source_external,unique,priority:1" json:"source_system"`
	EventType     string    `gorm:"type:varchar(32);not null;index" json:"event_type"`
	EventTime     time.Time `gorm:"not null;index" json:"event_time"`
	ExternalID    string    `gorm:"type:varchar(191);not null;index:ux_events_source_external,unique,priority:2" json:"external_id"`
	Amount        *float64  `gorm:"type:decimal(12,2)" json:"amount,omitempty"`
	Currency      string    `gorm:"type:varchar(3);default:''" json:"currency"`
	MetadataJSON  string    `gorm:"type:longtext" json:"metadata_json"`
	RawPayloadRef string    `gorm:"type:varchar(255);default:''" json:"raw_payload_ref"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
