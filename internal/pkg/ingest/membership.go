package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/clubops/supporter360/app/models"
)

// MembershipChange carries the attributes a membership-affecting event may
// contribute. Empty strings mean "the event did not say", so existing values
// survive the merge.
type MembershipChange struct {
	Tier          string
	Cadence       string
	BillingMethod string
	PaymentAt     *time.Time
}

// ApplyPaymentSucceeded moves the supporter's membership to active and stamps
// the payment date. Creates the membership row if this is the first
// membership signal for the supporter.
func (s *Service) ApplyPaymentSucceeded(ctx context.Context, supporterID uint, change MembershipChange) error {
	_ = ctx
	membership := &models.Membership{
		SupporterID:   supporterID,
		Status:        models.MembershipStatusActive,
		Tier:          change.Tier,
		Cadence:       change.Cadence,
		BillingMethod: change.BillingMethod,
	}
	if change.PaymentAt != nil {
		at := change.PaymentAt.UTC()
		membership.LastPaymentDate = &at
	}
	if err := s.memberships.Upsert(membership); err != nil {
		return fmt.Errorf("failed to activate membership for supporter %d: %w", supporterID, err)
	}
	log.Infof("[Ingest] Membership active for supporter %d", supporterID)
	return nil
}

// ApplyPaymentFailed moves an existing membership to past_due. A failure for
// a supporter with no membership record is logged and skipped rather than
// conjuring a membership out of a failed charge.
func (s *Service) ApplyPaymentFailed(ctx context.Context, supporterID uint) error {
	_ = ctx
	_, err := s.memberships.FindBySupporterID(supporterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Ingest] Payment failed for supporter %d with no membership record, skipping", supporterID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("membership lookup failed for supporter %d: %w", supporterID, err)
	}
	if err := s.memberships.MarkPastDue(supporterID); err != nil {
		return fmt.Errorf("failed to mark membership past due for supporter %d: %w", supporterID, err)
	}
	log.Infof("[Ingest] Membership past due for supporter %d", supporterID)
	return nil
}

// ApplyCancellation moves the membership to cancelled. Upserts so that a
// cancellation arriving before any payment signal still leaves a record.
func (s *Service) ApplyCancellation(ctx context.Context, supporterID uint, change MembershipChange) error {
	_ = ctx
	membership := &models.Membership{
		SupporterID:   supporterID,
		Status:        models.MembershipStatusCancelled,
		Tier:          change.Tier,
		Cadence:       change.Cadence,
		BillingMethod: change.BillingMethod,
	}
	if err := s.memberships.Upsert(membership); err != nil {
		return fmt.Errorf("failed to cancel membership for supporter %d: %w", supporterID, err)
	}
	log.Infof("[Ingest] Membership cancelled for supporter %d", supporterID)
	return nil
}

// ApplySubscriptionActive records a subscription creation or reactivation.
func (s *Service) ApplySubscriptionActive(ctx context.Context, supporterID uint, change MembershipChange) error {
	_ = ctx
	membership := &models.Membership{
		SupporterID:   supporterID,
		Status:        models.MembershipStatusActive,
		Tier:          change.Tier,
		Cadence:       change.Cadence,
		BillingMethod: change.BillingMethod,
	}
	if err := s.memberships.Upsert(membership); err != nil {
		return fmt.Errorf("failed to activate subscription for supporter %d: %w", supporterID, err)
	}
	log.Infof("[Ingest] Subscription active for supporter %d", supporterID)
	return nil
}

// ApplyPaused treats a paused subscription like a missed payment: the
// membership lapses to past_due until payments resume.
func (s *Service) ApplyPaused(ctx context.Context, supporterID uint) error {
	return s.ApplyPaymentFailed(ctx, supporterID)
}

// CadenceFromInterval maps a provider billing interval onto a membership
// cadence. Month-granularity intervals are monthly, everything longer is
// treated as annual.
func CadenceFromInterval(interval string) string {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "month", "monthly", "weekly", "week":
		return models.MembershipCadenceMonthly
	case "":
		return ""
	default:
		return models.MembershipCadenceAnnual
	}
}
