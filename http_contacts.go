package contacts

import (
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterContactRoutes mounts the address book endpoints. The caller wires
// the guard middleware; every handler assumes validated access claims in the
// router context.
func RegisterContactRoutes[T any](app router.Router[T], controller *ContactsController, guard router.MiddlewareFunc) {
	app.Get("/contacts", controller.List, guard).SetName("contacts.list")
	app.Post("/contacts", controller.Create, guard).SetName("contacts.create")
	app.Get("/contacts/birthdays", controller.UpcomingBirthdays, guard).SetName("contacts.birthdays")
	app.Get("/contacts/:id", controller.Show, guard).SetName("contacts.show")
	app.Put("/contacts/:id", controller.Update, guard).SetName("contacts.update")
	app.Delete("/contacts/:id", controller.Delete, guard).SetName("contacts.delete")
	app.Get("/me", controller.Profile, guard).SetName("profile.show")
}

type ContactsController struct {
	Logger       Logger
	Repo         RepositoryManager
	ContextKey   string
	ErrorHandler router.ErrorHandler
}

func NewContactsController(repo RepositoryManager, contextKey string) *ContactsController {
	if contextKey == "" {
		contextKey = "claims"
	}
	return &ContactsController{
		Logger:       defLogger{},
		Repo:         repo,
		ContextKey:   contextKey,
		ErrorHandler: WriteError,
	}
}

func (c *ContactsController) WithLogger(logger Logger) *ContactsController {
	if logger != nil {
		c.Logger = logger
	}
	return c
}

// ContactPayload is the create/update body.
type ContactPayload struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Phone     string `form:"phone_number" json:"phone_number"`
	BirthDate string `form:"birth_date" json:"birth_date"`
	Notes     string `form:"notes" json:"notes"`
}

// Validate will validate the payload
func (r ContactPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.BirthDate, validation.Date("2006-01-02")),
		validation.Field(&r.Notes, validation.Length(0, 2000)),
	)
}

func (r ContactPayload) toModel() (*Contact, error) {
	record := &Contact{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Notes:     r.Notes,
	}

	if r.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", r.BirthDate)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid birth date")
		}
		record.BirthDate = &birthDate
	}

	return record, nil
}

func (c *ContactsController) List(ctx router.Context) error {
	ownerID, err := c.callerID(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	page, err := c.Repo.Contacts().ListForOwner(ctx.Context(), ownerID, ContactFilter{
		Query:  ctx.Query("q", ""),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.Logger.Error("contacts list error: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, page)
}

func (c *ContactsController) Show(ctx router.Context) error {
	ownerID, err := c.callerID(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	contactID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.ErrorHandler(ctx, goerrors.New("invalid contact id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	record, err := c.Repo.Contacts().GetForOwner(ctx.Context(), ownerID, contactID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return c.notFound(ctx, contactID)
		}
		c.Logger.Error("contact show error: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (c *ContactsController) Create(ctx router.Context) error {
	ownerID, err := c.callerID(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	payload := new(ContactPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.invalidPayload(ctx, err)
	}

	record, err := payload.toModel()
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	created, err := c.Repo.Contacts().CreateForOwner(ctx.Context(), ownerID, record)
	if err != nil {
		c.Logger.Error("contact create error: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, created)
}

func (c *ContactsController) Update(ctx router.Context) error {
	ownerID, err := c.callerID(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	contactID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.ErrorHandler(ctx, goerrors.New("invalid contact id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	payload := new(ContactPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.invalidPayload(ctx, err)
	}

	record, err := payload.toModel()
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	record.ID = contactID

	updated, err := c.Repo.Contacts().UpdateForOwner(ctx.Context(), ownerID, record)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return c.notFound(ctx, contactID)
		}
		c.Logger.Error("contact update error: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

func (c *ContactsController) Delete(ctx router.Context) error {
	ownerID, err := c.callerID(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	contactID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.ErrorHandler(ctx, goerrors.New("invalid contact id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	if err := c.Repo.Contacts().DeleteForOwner(ctx.Context(), ownerID, contactID); err != nil {
		if repository.IsRecordNotFound(err) {
			return c.notFound(ctx, contactID)
		}
		c.Logger.Error("contact delete error: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "contact deleted",
	})
}

func (c *ContactsController) UpcomingBirthdays(ctx router.Context) error {
	ownerID, err := c.callerID(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	days, _ := strconv.Atoi(ctx.Query("days", "7"))
	if days <= 0 || days > 366 {
		days = 7
	}

	matches, err := c.Repo.Contacts().UpcomingBirthdays(ctx.Context(), ownerID, time.Duration(days)*24*time.Hour)
	if err != nil {
		c.Logger.Error("contact birthdays error: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"items": matches,
		"days":  days,
	})
}

// Profile returns the authenticated account.
func (c *ContactsController) Profile(ctx router.Context) error {
	ownerID, err := c.callerID(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	user, err := c.Repo.Users().GetByIdentifier(ctx.Context(), ownerID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return c.ErrorHandler(ctx, ErrIdentityNotFound)
		}
		c.Logger.Error("profile error: %v", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"id":                user.ID.String(),
		"username":          user.Username,
		"email":             user.Email,
		"role":              user.Role,
		"status":            user.Status,
		"is_email_verified": user.EmailValidated,
		"avatar":            user.AvatarRef,
		"created_at":        user.CreatedAt,
	})
}

func (c *ContactsController) callerID(ctx router.Context) (uuid.UUID, error) {
	raw, ok := CallerID(ctx, c.ContextKey)
	if !ok {
		return uuid.Nil, ErrUnauthorized
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUnableToMapClaims
	}

	return id, nil
}

func (c *ContactsController) notFound(ctx router.Context, contactID uuid.UUID) error {
	return c.ErrorHandler(ctx, goerrors.New("contact not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"id": contactID.String()}))
}

func (c *ContactsController) badPayload(ctx router.Context, err error) error {
	c.Logger.Error("failed to parse payload: %v", err)
	return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest))
}

func (c *ContactsController) invalidPayload(ctx router.Context, err error) error {
	return c.ErrorHandler(ctx, goerrors.New("request validation failed", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"fields": FormatValidationErrorToMap(err),
		}))
}
