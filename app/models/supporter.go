package models

import "time"

// Provider constants used across supporter-related models.
const (
	ProviderShopify         = "shopify"
	ProviderStripe          = "stripe"
	ProviderGoCardless      = "gocardless"
	ProviderFutureTicketing = "futureticketing"
	ProviderMailchimp       = "mailchimp"
)

// Supporter type classification. Classification heuristics live outside the
// ingestion pipeline; webhooks only ever create supporters as "unknown".
const (
	SupporterTypeUnknown = "unknown"
	SupporterTypeFan     = "fan"
	SupporterTypeMember  = "member"
	SupporterTypeDonor   = "donor"
)

const (
	SupporterTypeSourceAuto          = "auto"
	SupporterTypeSourceAdminOverride = "admin_override"
)

// Supporter is the deduplicated person/account record at the root of the data
// model. Created on the first webhook carrying a previously-unseen email,
// mutated when a provider links a new native ID or reveals a missing
// name/phone, never deleted.
type Supporter struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"type:varchar(200);default:''" json:"name"`
	PrimaryEmail        *string   `gorm:"type:varchar(200);index" json:"primary_email,omitempty"`
	Phone               string    `gorm:"type:varchar(50);default:''" json:"phone"`
	SupporterType       string    `gorm:"type:varchar(32);not null;default:'unknown';index" json:"supporter_type"`
	SupporterTypeSource string    `gorm:"type:varchar(32);not null;default:'auto'" json:"supporter_type_source"`
	SharedEmail         bool      `gorm:"default:false" json:"shared_email"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Links   []SupporterLink  `gorm:"foreignKey:SupporterID" json:"links,omitempty"`
	Aliases []SupporterAlias `gorm:"foreignKey:SupporterID" json:"aliases,omitempty"`
}

// SupporterLink stores a provider-native customer identifier against a
// supporter. The unique index on (provider, provider_customer_id) is what
// enforces the at-most-one-supporter-per-native-ID invariant.
type SupporterLink struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SupporterID        uint      `gorm:"not null;index:ux_supporter_links_supporter_provider,unique,priority:1" json:"supporter_id"`
	Provider           string    `gorm:"type:varchar(20);not null;index:ux_supporter_links_supporter_provider,unique,priority:2;index:ux_supporter_links_provider_customer,unique,priority:1" json:"provider"`
	ProviderCustomerID string    `gorm:"type:varchar(191);not null;index:ux_supporter_links_provider_customer,unique,priority:2" json:"provider_customer_id"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SupporterAlias records a non-primary email seen for a supporter.
type SupporterAlias struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SupporterID uint      `gorm:"not null;index:ux_supporter_aliases_supporter_email,unique,priority:1" json:"supporter_id"`
	Email       string    `gorm:"type:varchar(200);not null;index:ux_supporter_aliases_supporter_email,unique,priority:2;index" json:"email"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LinkedIDs materializes the provider -> native customer ID map from the
// preloaded link rows.
func (s *Supporter) LinkedIDs() map[string]string {
	out := make(map[string]string, len(s.Links))
	for _, l := range s.Links {
		out[l.Provider] = l.ProviderCustomerID
	}
	return out
}

// LinkedID returns the native customer ID for a provider, if linked.
func (s *Supporter) LinkedID(provider string) (string, bool) {
	for _, l := range s.Links {
		if l.Provider == provider {
			return l.ProviderCustomerID, true
		}
	}
	return "", false
}
