package ingest

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clubops/supporter360/app/models"
)

// In-memory repository fakes mirroring the SQL implementations' contracts:
// GetByEmail orders oldest-first, UpsertLink converges on the first writer,
// event Upsert only refreshes metadata/raw ref on conflict.

type fakeSupporterRepo struct {
	nextID     uint
	supporters map[uint]*models.Supporter
	createdAt  map[uint]time.Time
	clock      time.Time
}

func newFakeSupporterRepo() *fakeSupporterRepo {
	return &fakeSupporterRepo{
		nextID:     1,
		supporters: make(map[uint]*models.Supporter),
		createdAt:  make(map[uint]time.Time),
		clock:      time.Unix(1700000000, 0),
	}
}

func (f *fakeSupporterRepo) Create(s *models.Supporter) error {
	s.ID = f.nextID
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	s.CreatedAt = f.clock
	f.supporters[s.ID] = s
	f.createdAt[s.ID] = s.CreatedAt
	return nil
}

func (f *fakeSupporterRepo) GetByID(id uint) (*models.Supporter, error) {
	s, ok := f.supporters[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (f *fakeSupporterRepo) GetByEmail(email string) ([]models.Supporter, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var out []models.Supporter
	for _, s := range f.supporters {
		if s.PrimaryEmail != nil && strings.ToLower(*s.PrimaryEmail) == normalized {
			out = append(out, *s)
			continue
		}
		for _, a := range s.Aliases {
			if strings.ToLower(a.Email) == normalized {
				out = append(out, *s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeSupporterRepo) GetByProviderCustomerID(provider, providerCustomerID string) (*models.Supporter, error) {
	for _, s := range f.supporters {
		for _, l := range s.Links {
			if l.Provider == provider && l.ProviderCustomerID == providerCustomerID {
				return s, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSupporterRepo) Update(s *models.Supporter) error {
	stored, ok := f.supporters[s.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	*stored = *s
	return nil
}

func (f *fakeSupporterRepo) UpsertLink(link *models.SupporterLink) error {
	for _, s := range f.supporters {
		for _, l := range s.Links {
			if l.Provider == link.Provider && l.ProviderCustomerID == link.ProviderCustomerID {
				return nil // first writer wins
			}
		}
	}
	owner, ok := f.supporters[link.SupporterID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	owner.Links = append(owner.Links, *link)
	return nil
}

func (f *fakeSupporterRepo) AddEmailAlias(supporterID uint, email string) error {
	owner, ok := f.supporters[supporterID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, a := range owner.Aliases {
		if a.Email == normalized {
			return nil
		}
	}
	owner.Aliases = append(owner.Aliases, models.SupporterAlias{SupporterID: supporterID, Email: normalized})
	return nil
}

func (f *fakeSupporterRepo) MarkSharedEmail(ids []uint) error {
	for _, id := range ids {
		if s, ok := f.supporters[id]; ok {
			s.SharedEmail = true
		}
	}
	return nil
}

func (f *fakeSupporterRepo) Search(query string, limit int) ([]models.Supporter, error) {
	var out []models.Supporter
	q := strings.ToLower(query)
	for _, s := range f.supporters {
		email := ""
		if s.PrimaryEmail != nil {
			email = strings.ToLower(*s.PrimaryEmail)
		}
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(email, q) {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	nextID  uint
	events  map[string]*models.Event
	upserts int
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{nextID: 1, events: make(map[string]*models.Event)}
}

func eventKey(sourceSystem, externalID string) string {
	return sourceSystem + "|" + externalID
}

func (f *fakeEventRepo) Upsert(event *models.Event) error {
	f.upserts++
	key := eventKey(event.SourceSystem, event.ExternalID)
	if existing, ok := f.events[key]; ok {
		existing.MetadataJSON = event.MetadataJSON
		existing.RawPayloadRef = event.RawPayloadRef
		*event = *existing
		return nil
	}
	event.ID = f.nextID
	f.nextID++
	stored := *event
	f.events[key] = &stored
	return nil
}

func (f *fakeEventRepo) FindByExternalID(sourceSystem, externalID string) (*models.Event, error) {
	if e, ok := f.events[eventKey(sourceSystem, externalID)]; ok {
		out := *e
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEventRepo) ListBySupporter(supporterID uint, offset, limit int) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.SupporterID == supporterID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.After(out[j].EventTime) })
	return out, nil
}

func (f *fakeEventRepo) CountBySupporter(supporterID uint) (int64, error) {
	events, _ := f.ListBySupporter(supporterID, 0, 0)
	return int64(len(events)), nil
}

type fakeMembershipRepo struct {
	nextID      uint
	memberships map[uint]*models.Membership
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{nextID: 1, memberships: make(map[uint]*models.Membership)}
}

func (f *fakeMembershipRepo) FindBySupporterID(supporterID uint) (*models.Membership, error) {
	if m, ok := f.memberships[supporterID]; ok {
		out := *m
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMembershipRepo) Upsert(membership *models.Membership) error {
	existing, ok := f.memberships[membership.SupporterID]
	if !ok {
		membership.ID = f.nextID
		f.nextID++
		stored := *membership
		f.memberships[membership.SupporterID] = &stored
		return nil
	}
	// COALESCE-style merge, matching the SQL upsert.
	if membership.Tier != "" {
		existing.Tier = membership.Tier
	}
	if membership.Cadence != "" {
		existing.Cadence = membership.Cadence
	}
	if membership.BillingMethod != "" {
		existing.BillingMethod = membership.BillingMethod
	}
	existing.Status = membership.Status
	if membership.LastPaymentDate != nil {
		existing.LastPaymentDate = membership.LastPaymentDate
	}
	*membership = *existing
	return nil
}

func (f *fakeMembershipRepo) UpdateLastPaymentDate(supporterID uint, paidAt time.Time) error {
	if m, ok := f.memberships[supporterID]; ok {
		m.LastPaymentDate = &paidAt
	}
	return nil
}

func (f *fakeMembershipRepo) MarkActive(supporterID uint, paidAt time.Time) error {
	if m, ok := f.memberships[supporterID]; ok {
		m.Status = models.MembershipStatusActive
		m.LastPaymentDate = &paidAt
	}
	return nil
}

func (f *fakeMembershipRepo) MarkPastDue(supporterID uint) error {
	if m, ok := f.memberships[supporterID]; ok {
		m.Status = models.MembershipStatusPastDue
	}
	return nil
}

func (f *fakeMembershipRepo) Cancel(supporterID uint) error {
	if m, ok := f.memberships[supporterID]; ok {
		m.Status = models.MembershipStatusCancelled
	}
	return nil
}
