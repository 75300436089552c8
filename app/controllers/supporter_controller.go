package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/clubops/supporter360/app/models"
	"github.com/clubops/supporter360/app/repository"
)

const (
	defaultSearchLimit   = 25
	defaultTimelineLimit = 50
	maxTimelineLimit     = 200
)

// SupporterController serves the read API over the supporter data model.
type SupporterController struct {
	repos *repository.Repositories
}

// NewSupporterController creates a supporter controller with repository dependencies.
func NewSupporterController(repos *repository.Repositories) *SupporterController {
	return &SupporterController{repos: repos}
}

// HandleSearch searches supporters by name or email fragment.
func (sc *SupporterController) HandleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return badRequest(c, "Missing query parameter q")
	}

	supporters, err := sc.repos.Supporter.Search(query, defaultSearchLimit)
	if err != nil {
		return internalError(c)
	}

	results := make([]fiber.Map, 0, len(supporters))
	for i := range supporters {
		results = append(results, supporterSummary(&supporters[i]))
	}
	return c.JSON(fiber.Map{"supporters": results, "count": len(results)})
}

// HandleProfile returns one supporter with linked IDs and membership.
func (sc *SupporterController) HandleProfile(c *fiber.Ctx) error {
	id, err := supporterID(c)
	if err != nil {
		return badRequest(c, "Invalid supporter id")
	}

	supporter, err := sc.repos.Supporter.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Supporter not found")
		}
		return internalError(c)
	}

	profile := supporterSummary(supporter)
	profile["supporter_type"] = supporter.SupporterType
	profile["supporter_type_source"] = supporter.SupporterTypeSource
	profile["phone"] = supporter.Phone

	aliases := make([]string, 0, len(supporter.Aliases))
	for _, a := range supporter.Aliases {
		aliases = append(aliases, a.Email)
	}
	profile["aliases"] = aliases

	membership, err := sc.repos.Membership.FindBySupporterID(supporter.ID)
	if err == nil {
		profile["membership"] = fiber.Map{
			"status":            membership.Status,
			"tier":              membership.Tier,
			"cadence":           membership.Cadence,
			"billing_method":    membership.BillingMethod,
			"last_payment_date": formatTimePtr(membership.LastPaymentDate),
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return internalError(c)
	}

	return c.JSON(profile)
}

// HandleTimeline returns a supporter's events newest first with paging.
func (sc *SupporterController) HandleTimeline(c *fiber.Ctx) error {
	id, err := supporterID(c)
	if err != nil {
		return badRequest(c, "Invalid supporter id")
	}

	if _, err := sc.repos.Supporter.GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Supporter not found")
		}
		return internalError(c)
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := c.QueryInt("limit", defaultTimelineLimit)
	if limit <= 0 || limit > maxTimelineLimit {
		limit = defaultTimelineLimit
	}

	events, err := sc.repos.Event.ListBySupporter(id, offset, limit)
	if err != nil {
		return internalError(c)
	}
	total, err := sc.repos.Event.CountBySupporter(id)
	if err != nil {
		return internalError(c)
	}

	items := make([]fiber.Map, 0, len(events))
	for _, e := range events {
		items = append(items, fiber.Map{
			"id":            e.ID,
			"source_system": e.SourceSystem,
			"event_type":    e.EventType,
			"event_time":    e.EventTime.UTC().Format(time.RFC3339),
			"external_id":   e.ExternalID,
			"amount":        e.Amount,
			"currency":      e.Currency,
		})
	}

	return c.JSON(fiber.Map{
		"events": items,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

func supporterID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func supporterSummary(s *models.Supporter) fiber.Map {
	var email interface{}
	if s.PrimaryEmail != nil {
		email = *s.PrimaryEmail
	}
	return fiber.Map{
		"id":            s.ID,
		"name":          s.Name,
		"primary_email": email,
		"shared_email":  s.SharedEmail,
		"linked_ids":    s.LinkedIDs(),
		"created_at":    s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": message})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
