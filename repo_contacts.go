package contacts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// ContactPage is one page of a contact listing.
type ContactPage struct {
	Items  []*Contact `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ContactFilter narrows List results. Zero values mean no restriction.
type ContactFilter struct {
	Query  string
	Limit  int
	Offset int
}

// Contacts is the address book repository. Every operation is scoped to the
// owning user; a contact is never visible outside its owner.
type Contacts interface {
	repository.Repository[*Contact]

	ListForOwner(ctx context.Context, ownerID uuid.UUID, filter ContactFilter) (*ContactPage, error)
	GetForOwner(ctx context.Context, ownerID, contactID uuid.UUID) (*Contact, error)
	CreateForOwner(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error)
	UpdateForOwner(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error)
	DeleteForOwner(ctx context.Context, ownerID, contactID uuid.UUID) error
	UpcomingBirthdays(ctx context.Context, ownerID uuid.UUID, within time.Duration) ([]*Contact, error)
	DuplicateExists(ctx context.Context, ownerID uuid.UUID, email, phone string, excludeID uuid.UUID) (bool, error)
}

type contactsRepo struct {
	repository.Repository[*Contact]
	db            *bun.DB
	defaultRegion string
	now           func() time.Time
}

var _ Contacts = (*contactsRepo)(nil)

type ContactsOption func(*contactsRepo)

// WithContactsRegion sets the region used to normalize national phone numbers.
func WithContactsRegion(region string) ContactsOption {
	return func(c *contactsRepo) {
		if region != "" {
			c.defaultRegion = region
		}
	}
}

// WithContactsClock injects a custom clock for birthday window tests.
func WithContactsClock(clock func() time.Time) ContactsOption {
	return func(c *contactsRepo) {
		if clock != nil {
			c.now = clock
		}
	}
}

func NewContactsRepository(db *bun.DB, opts ...ContactsOption) Contacts {
	repo := repository.NewRepository[*Contact](db, repository.ModelHandlers[*Contact]{
		NewRecord: func() *Contact { return &Contact{} },
		GetID: func(c *Contact) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Contact, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	cr := &contactsRepo{
		Repository:    repo,
		db:            db,
		defaultRegion: "US",
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cr)
		}
	}

	return cr
}

func (c *contactsRepo) ListForOwner(ctx context.Context, ownerID uuid.UUID, filter ContactFilter) (*ContactPage, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var items []*Contact
	q := c.db.NewSelect().
		Model(&items).
		Where("?TableAlias.user_id = ?", ownerID)

	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				WhereOr("LOWER(?TableAlias.first_name) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.last_name) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.email) LIKE ?", pattern)
		})
	}

	total, err := q.
		Order("last_name ASC", "first_name ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to list contacts")
	}

	return &ContactPage{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

func (c *contactsRepo) GetForOwner(ctx context.Context, ownerID, contactID uuid.UUID) (*Contact, error) {
	record := &Contact{}
	err := c.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", contactID).
		Where("?TableAlias.user_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": contactID.String(),
				})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to get contact")
	}
	return record, nil
}

func (c *contactsRepo) CreateForOwner(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error) {
	if record == nil {
		return nil, goerrors.New("contact is required", goerrors.CategoryBadInput)
	}

	record.UserID = ownerID
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if err := c.normalize(record); err != nil {
		return nil, err
	}

	taken, err := c.DuplicateExists(ctx, ownerID, record.Email, record.Phone, record.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrContactDuplicate
	}

	return c.Repository.Create(ctx, record)
}

func (c *contactsRepo) UpdateForOwner(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, goerrors.New("contact id is required", goerrors.CategoryBadInput)
	}

	// Ownership check before anything touches the row.
	existing, err := c.GetForOwner(ctx, ownerID, record.ID)
	if err != nil {
		return nil, err
	}

	record.UserID = existing.UserID
	if err := c.normalize(record); err != nil {
		return nil, err
	}

	taken, err := c.DuplicateExists(ctx, ownerID, record.Email, record.Phone, record.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrContactDuplicate
	}

	return c.Repository.Update(ctx, record, repository.UpdateByID(record.ID.String()))
}

func (c *contactsRepo) DeleteForOwner(ctx context.Context, ownerID, contactID uuid.UUID) error {
	existing, err := c.GetForOwner(ctx, ownerID, contactID)
	if err != nil {
		return err
	}
	return c.Repository.Delete(ctx, existing)
}

// UpcomingBirthdays returns the owner's contacts whose birthday falls within
// the window starting today, wrapping across year end.
func (c *contactsRepo) UpcomingBirthdays(ctx context.Context, ownerID uuid.UUID, within time.Duration) ([]*Contact, error) {
	if within <= 0 {
		within = 7 * 24 * time.Hour
	}

	var candidates []*Contact
	err := c.db.NewSelect().
		Model(&candidates).
		Where("?TableAlias.user_id = ?", ownerID).
		Where("?TableAlias.birth_date IS NOT NULL").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to list birthdays")
	}

	// The year-wrap comparison does not translate to portable SQL, filter
	// in memory. Address books stay small enough for this to be fine.
	today := c.now()
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(within)

	matches := make([]*Contact, 0, len(candidates))
	for _, contact := range candidates {
		if contact.BirthDate == nil {
			continue
		}
		next := nextBirthday(*contact.BirthDate, start)
		if !next.Before(start) && next.Before(end) {
			matches = append(matches, contact)
		}
	}

	return matches, nil
}

func (c *contactsRepo) DuplicateExists(ctx context.Context, ownerID uuid.UUID, email, phone string, excludeID uuid.UUID) (bool, error) {
	if email == "" && phone == "" {
		return false, nil
	}

	q := c.db.NewSelect().
		Model((*Contact)(nil)).
		Where("?TableAlias.user_id = ?", ownerID)

	q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
		if email != "" {
			sq = sq.WhereOr("?TableAlias.email = ?", email)
		}
		if phone != "" {
			sq = sq.WhereOr("?TableAlias.phone_number = ?", phone)
		}
		return sq
	})

	if excludeID != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", excludeID)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to check contact duplicates")
	}
	return exists, nil
}

// normalize canonicalizes the mutable contact fields before persistence.
// Phone numbers are stored in E.164 so duplicate checks compare like with like.
func (c *contactsRepo) normalize(record *Contact) error {
	record.FirstName = strings.TrimSpace(record.FirstName)
	record.LastName = strings.TrimSpace(record.LastName)
	record.Email = strings.TrimSpace(strings.ToLower(record.Email))

	phone := strings.TrimSpace(record.Phone)
	if phone == "" {
		record.Phone = ""
		return nil
	}

	parsed, err := phonenumbers.Parse(phone, c.defaultRegion)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithMetadata(map[string]any{"phone": phone})
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"phone": phone})
	}

	record.Phone = phonenumbers.Format(parsed, phonenumbers.E164)
	return nil
}

// nextBirthday projects a birth date onto its next occurrence at or after from.
func nextBirthday(birthDate, from time.Time) time.Time {
	month, day := birthDate.Month(), birthDate.Day()

	// Feb 29 celebrants get Mar 1 on common years.
	next := time.Date(from.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if month == time.February && day == 29 && next.Month() != time.February {
		next = time.Date(from.Year(), time.March, 1, 0, 0, 0, 0, time.UTC)
	}

	if next.Before(from) {
		next = time.Date(from.Year()+1, month, day, 0, 0, 0, 0, time.UTC)
		if month == time.February && day == 29 && next.Month() != time.February {
			next = time.Date(from.Year()+1, time.March, 1, 0, 0, 0, 0, time.UTC)
		}
	}

	return next
}
