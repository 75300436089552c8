package repository

import (
	"time"

	"github.com/clubops/supporter360/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// membershipRepository implements the MembershipRepository interface
type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository instance
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// FindBySupporterID retrieves the supporter's membership row
func (r *membershipRepository) FindBySupporterID(supporterID uint) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.Where("supporter_id = ?", supporterID).First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// Upsert merges membership state into the supporter's unique row. Incoming
// empty tier/cadence/billing_method values keep the stored ones (a known tier
// is never downgraded to empty by a signal that omits it).
func (r *membershipRepository) Upsert(membership *models.Membership) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "supporter_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"tier":              gorm.Expr("COALESCE(NULLIF(VALUES(tier), ''), tier)"),
			"cadence":           gorm.Expr("COALESCE(NULLIF(VALUES(cadence), ''), cadence)"),
			"billing_method":    gorm.Expr("COALESCE(NULLIF(VALUES(billing_method), ''), billing_method)"),
			"status":            gorm.Expr("VALUES(status)"),
			"last_payment_date": gorm.Expr("COALESCE(VALUES(last_payment_date), last_payment_date)"),
			"updated_at":        gorm.Expr("VALUES(updated_at)"),
		}),
	}).Create(membership).Error; err != nil {
		return err
	}

	// Ensure ID and merged fields are populated after upsert.
	return r.db.Where("supporter_id = ?", membership.SupporterID).First(membership).Error
}

// UpdateLastPaymentDate stamps the most recent successful payment
func (r *membershipRepository) UpdateLastPaymentDate(supporterID uint, paidAt time.Time) error {
	return r.db.Model(&models.Membership{}).
		Where("supporter_id = ?", supporterID).
		Update("last_payment_date", paidAt).Error
}

// MarkActive moves the membership to active and records the payment date
func (r *membershipRepository) MarkActive(supporterID uint, paidAt time.Time) error {
	return r.db.Model(&models.Membership{}).
		Where("supporter_id = ?", supporterID).
		Updates(map[string]interface{}{
			"status":            models.MembershipStatusActive,
			"last_payment_date": paidAt,
		}).Error
}

// MarkPastDue moves the membership to past_due
func (r *membershipRepository) MarkPastDue(supporterID uint) error {
	return r.db.Model(&models.Membership{}).
		Where("supporter_id = ?", supporterID).
		Update("status", models.MembershipStatusPastDue).Error
}

// Cancel moves the membership to cancelled from any prior state
func (r *membershipRepository) Cancel(supporterID uint) error {
	return r.db.Model(&models.Membership{}).
		Where("supporter_id = ?", supporterID).
		Update("status", models.MembershipStatusCancelled).Error
}
