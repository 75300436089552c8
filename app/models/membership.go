package models

import "time"

const (
	MembershipStatusActive    = "active"
	MembershipStatusPastDue   = "past_due"
	MembershipStatusCancelled = "cancelled"
	MembershipStatusUnknown   = "unknown"
)

const (
	MembershipCadenceMonthly = "monthly"
	MembershipCadenceAnnual  = "annual"
)

// Membership is the one-per-supporter recurring billing relationship. Status
// transitions are driven only by payment/mandate/subscription signals from the
// billing method of record.
type Membership struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SupporterID     uint       `gorm:"not null;uniqueIndex:ux_memberships_supporter" json:"supporter_id"`
	Tier            string     `gorm:"type:varchar(100);default:''" json:"tier"`
	Cadence         string     `gorm:"type:varchar(16);default:''" json:"cadence"`
	BillingMethod   string     `gorm:"type:varchar(20);default:''" json:"billing_method"`
	Status          string     `gorm:"type:varchar(32);not null;default:'unknown';index" json:"status"`
	LastPaymentDate *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_date,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
