package repository

import (
	"time"

	"github.com/clubops/supporter360/app/models"
	"gorm.io/gorm"
)

// SupporterRepository defines the interface for supporter-related database operations
type SupporterRepository interface {
	Create(supporter *models.Supporter) error
	GetByID(id uint) (*models.Supporter, error)
	// GetByEmail returns all supporters whose primary email or alias matches
	// the (lower-cased) email, ordered oldest-first (created_at, then id) so
	// shared-email collisions resolve deterministically.
	GetByEmail(email string) ([]models.Supporter, error)
	GetByProviderCustomerID(provider, providerCustomerID string) (*models.Supporter, error)
	Update(supporter *models.Supporter) error
	// UpsertLink links a provider-native customer ID to a supporter. The
	// (provider, provider_customer_id) unique index makes concurrent link
	// attempts converge on a single owner.
	UpsertLink(link *models.SupporterLink) error
	AddEmailAlias(supporterID uint, email string) error
	MarkSharedEmail(ids []uint) error
	Search(query string, limit int) ([]models.Supporter, error)
}

// EventRepository defines the interface for event-related database operations
type EventRepository interface {
	// Upsert inserts the event or, when (source_system, external_id) already
	// exists, refreshes metadata_json/raw_payload_ref on the stored row.
	Upsert(event *models.Event) error
	FindByExternalID(sourceSystem, externalID string) (*models.Event, error)
	ListBySupporter(supporterID uint, offset, limit int) ([]models.Event, error)
	CountBySupporter(supporterID uint) (int64, error)
}

// MembershipRepository defines the interface for membership-related database operations
type MembershipRepository interface {
	FindBySupporterID(supporterID uint) (*models.Membership, error)
	// Upsert merges the given membership into the supporter's row. Empty
	// tier/cadence/billing_method values never overwrite stored ones.
	Upsert(membership *models.Membership) error
	UpdateLastPaymentDate(supporterID uint, paidAt time.Time) error
	MarkActive(supporterID uint, paidAt time.Time) error
	MarkPastDue(supporterID uint) error
	Cancel(supporterID uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Supporter  SupporterRepository
	Event      EventRepository
	Membership MembershipRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Supporter:  NewSupporterRepository(db),
		Event:      NewEventRepository(db),
		Membership: NewMembershipRepository(db),
	}
}
