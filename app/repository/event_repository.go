package repository

import (
	"github.com/clubops/supporter360/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Upsert inserts the event row. On a (source_system, external_id) conflict
// only metadata_json and raw_payload_ref are refreshed; the original fact is
// never rewritten. This is the database-level second line of defense behind
// the check-then-insert idempotency guard.
func (r *eventRepository) Upsert(event *models.Event) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source_system"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"metadata_json",
			"raw_payload_ref",
			"updated_at",
		}),
	}).Create(event).Error
}

// FindByExternalID looks up an event by its provider-scoped dedup key
func (r *eventRepository) FindByExternalID(sourceSystem, externalID string) (*models.Event, error) {
	var event models.Event
	err := r.db.Where("source_system = ? AND external_id = ?", sourceSystem, externalID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListBySupporter returns a supporter's events newest-first
func (r *eventRepository) ListBySupporter(supporterID uint, offset, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.Event
	err := r.db.Where("supporter_id = ?", supporterID).
		Order("event_time DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&events).Error
	return events, err
}

// CountBySupporter counts a supporter's events
func (r *eventRepository) CountBySupporter(supporterID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Event{}).Where("supporter_id = ?", supporterID).Count(&count).Error
	return count, err
}
