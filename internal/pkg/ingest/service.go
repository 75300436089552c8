package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/clubops/supporter360/app/models"
	"github.com/clubops/supporter360/app/repository"
)

var validate = validator.New()

// Service implements the shared webhook-processing core: identity resolution,
// the idempotency guard in front of event writes, and membership state
// updates. Provider processors call into it after dispatching on event type.
type Service struct {
	supporters  repository.SupporterRepository
	events      repository.EventRepository
	memberships repository.MembershipRepository
}

// NewService creates an ingest service from injected repositories.
func NewService(supporters repository.SupporterRepository, events repository.EventRepository, memberships repository.MembershipRepository) *Service {
	return &Service{
		supporters:  supporters,
		events:      events,
		memberships: memberships,
	}
}

// NewServiceFromDB creates an ingest service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	repos := repository.NewRepositories(db)
	return NewService(repos.Supporter, repos.Event, repos.Membership)
}

// ResolveSupporter finds or creates the supporter owning an email and merges
// the provider linkage in.
//
// Exactly one match: the linkage is backfilled if that provider wasn't linked
// yet. More than one match is a shared-email collision: the oldest supporter
// wins deterministically, all matches are flagged, and nothing is merged;
// a true merge is a privileged admin operation. Zero matches creates the
// supporter with the email as primary plus an alias record.
func (s *Service) ResolveSupporter(ctx context.Context, email string, linkage Linkage) (*models.Supporter, error) {
	_ = ctx
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, errors.New("email is required for identity resolution")
	}
	if err := validate.Struct(&linkage); err != nil {
		return nil, fmt.Errorf("invalid linkage: %w", err)
	}

	matches, err := s.supporters.GetByEmail(normalized)
	if err != nil {
		return nil, fmt.Errorf("supporter lookup failed for %s: %w", normalized, err)
	}

	switch len(matches) {
	case 0:
		return s.createSupporter(normalized, linkage)
	case 1:
		return s.adoptSupporter(&matches[0], linkage)
	default:
		// Shared-email collision: pick the oldest record, flag all of them.
		log.Warnf("[Ingest] %d supporters share email %s, picking supporter %d", len(matches), normalized, matches[0].ID)
		ids := make([]uint, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		if err := s.supporters.MarkSharedEmail(ids); err != nil {
			log.Errorf("[Ingest] Failed to flag shared email supporters: %v", err)
		}
		return s.adoptSupporter(&matches[0], linkage)
	}
}

// adoptSupporter links the provider identity to an existing supporter and
// backfills name/phone the provider reveals for the first time.
func (s *Service) adoptSupporter(supporter *models.Supporter, linkage Linkage) (*models.Supporter, error) {
	if _, linked := supporter.LinkedID(linkage.Provider); !linked {
		link := &models.SupporterLink{
			SupporterID:        supporter.ID,
			Provider:           linkage.Provider,
			ProviderCustomerID: linkage.CustomerID,
		}
		if err := s.supporters.UpsertLink(link); err != nil {
			return nil, fmt.Errorf("failed to link %s customer %s: %w", linkage.Provider, linkage.CustomerID, err)
		}
		supporter.Links = append(supporter.Links, *link)
	}

	changed := false
	if supporter.Name == "" && strings.TrimSpace(linkage.Name) != "" {
		supporter.Name = strings.TrimSpace(linkage.Name)
		changed = true
	}
	if supporter.Phone == "" && strings.TrimSpace(linkage.Phone) != "" {
		supporter.Phone = strings.TrimSpace(linkage.Phone)
		changed = true
	}
	if changed {
		if err := s.supporters.Update(supporter); err != nil {
			return nil, fmt.Errorf("failed to update supporter %d: %w", supporter.ID, err)
		}
	}
	return supporter, nil
}

// createSupporter creates a fresh supporter for a never-seen email.
func (s *Service) createSupporter(email string, linkage Linkage) (*models.Supporter, error) {
	supporter := &models.Supporter{
		Name:                strings.TrimSpace(linkage.Name),
		PrimaryEmail:        &email,
		Phone:               strings.TrimSpace(linkage.Phone),
		SupporterType:       models.SupporterTypeUnknown,
		SupporterTypeSource: models.SupporterTypeSourceAuto,
	}
	if err := s.supporters.Create(supporter); err != nil {
		return nil, fmt.Errorf("failed to create supporter for %s: %w", email, err)
	}

	link := &models.SupporterLink{
		SupporterID:        supporter.ID,
		Provider:           linkage.Provider,
		ProviderCustomerID: linkage.CustomerID,
	}
	if err := s.supporters.UpsertLink(link); err != nil {
		return nil, fmt.Errorf("failed to link %s customer %s: %w", linkage.Provider, linkage.CustomerID, err)
	}
	supporter.Links = append(supporter.Links, *link)

	if err := s.supporters.AddEmailAlias(supporter.ID, email); err != nil {
		log.Errorf("[Ingest] Failed to register email alias for supporter %d: %v", supporter.ID, err)
	}

	log.Infof("[Ingest] Created supporter %d for %s via %s", supporter.ID, email, linkage.Provider)
	return supporter, nil
}

// RecordEvent persists an event idempotently. The check against
// (source_system, external_id) makes redelivery a no-op at this level; the
// repository's ON CONFLICT upsert closes the race the check leaves open.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (bool, *models.Event, error) {
	_ = ctx
	if err := validate.Struct(&in); err != nil {
		return false, nil, fmt.Errorf("invalid event input: %w", err)
	}

	existing, err := s.events.FindByExternalID(in.SourceSystem, in.ExternalID)
	if err == nil {
		log.Infof("[Ingest] %s %s already processed", in.EventType, in.ExternalID)
		return false, existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, fmt.Errorf("event lookup failed for %s/%s: %w", in.SourceSystem, in.ExternalID, err)
	}

	metadataJSON := ""
	if in.Metadata != nil {
		data, merr := json.Marshal(in.Metadata)
		if merr != nil {
			return false, nil, fmt.Errorf("failed to marshal event metadata: %w", merr)
		}
		metadataJSON = string(data)
	}

	event := &models.Event{
		SupporterID:   in.SupporterID,
		SourceSystem:  in.SourceSystem,
		EventType:     in.EventType,
		EventTime:     in.EventTime.UTC(),
		ExternalID:    in.ExternalID,
		Amount:        in.Amount,
		Currency:      strings.ToUpper(strings.TrimSpace(in.Currency)),
		MetadataJSON:  metadataJSON,
		RawPayloadRef: in.RawPayloadRef,
	}
	if err := s.events.Upsert(event); err != nil {
		return false, nil, fmt.Errorf("failed to record event %s/%s: %w", in.SourceSystem, in.ExternalID, err)
	}
	return true, event, nil
}
