package repository

import (
	"strings"

	"github.com/clubops/supporter360/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// supporterRepository implements the SupporterRepository interface
type supporterRepository struct {
	db *gorm.DB
}

// NewSupporterRepository creates a new supporter repository instance
func NewSupporterRepository(db *gorm.DB) SupporterRepository {
	return &supporterRepository{db: db}
}

// Create creates a new supporter in the database
func (r *supporterRepository) Create(supporter *models.Supporter) error {
	return r.db.Create(supporter).Error
}

// GetByID retrieves a supporter with links and membership preloaded
func (r *supporterRepository) GetByID(id uint) (*models.Supporter, error) {
	var supporter models.Supporter
	err := r.db.Preload("Links").Preload("Aliases").First(&supporter, id).Error
	if err != nil {
		return nil, err
	}
	return &supporter, nil
}

// GetByEmail retrieves all supporters matching the email via primary email or
// alias, oldest-first. The explicit ORDER BY keeps the shared-email pick
// deterministic.
func (r *supporterRepository) GetByEmail(email string) ([]models.Supporter, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, nil
	}

	var supporters []models.Supporter
	err := r.db.Preload("Links").
		Where("LOWER(primary_email) = ? OR id IN (SELECT supporter_id FROM supporter_aliases WHERE LOWER(email) = ?)", normalized, normalized).
		Order("created_at ASC, id ASC").
		Find(&supporters).Error
	return supporters, err
}

// GetByProviderCustomerID resolves a provider-native customer ID to its supporter
func (r *supporterRepository) GetByProviderCustomerID(provider, providerCustomerID string) (*models.Supporter, error) {
	var link models.SupporterLink
	err := r.db.Where("provider = ? AND provider_customer_id = ?", provider, providerCustomerID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(link.SupporterID)
}

// Update persists changed supporter fields
func (r *supporterRepository) Update(supporter *models.Supporter) error {
	return r.db.Save(supporter).Error
}

// UpsertLink links a provider customer ID to a supporter, converging on the
// first writer when two deliveries race on the same native ID.
func (r *supporterRepository) UpsertLink(link *models.SupporterLink) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_customer_id"},
		},
		DoNothing: true,
	}).Create(link).Error
}

// AddEmailAlias records a non-primary email for a supporter
func (r *supporterRepository) AddEmailAlias(supporterID uint, email string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil
	}
	alias := models.SupporterAlias{
		SupporterID: supporterID,
		Email:       normalized,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "supporter_id"},
			{Name: "email"},
		},
		DoNothing: true,
	}).Create(&alias).Error
}

// MarkSharedEmail flags supporters known to share an email address
func (r *supporterRepository) MarkSharedEmail(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.Supporter{}).
		Where("id IN ?", ids).
		Update("shared_email", true).Error
}

// Search finds supporters by name or email fragment
func (r *supporterRepository) Search(query string, limit int) ([]models.Supporter, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var supporters []models.Supporter
	err := r.db.Preload("Links").
		Where("LOWER(name) LIKE ? OR LOWER(primary_email) LIKE ?", pattern, pattern).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&supporters).Error
	return supporters, err
}
