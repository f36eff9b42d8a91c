package contacts

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AvatarHandler serves profile picture upload and download. Multipart
// handling needs the underlying fiber context, so these routes mount on the
// fiber app directly and carry their own token check.
type AvatarHandler struct {
	Tokens      TokenService
	Revocations RevocationRegistry
	Users       Users
	Store       AvatarStore
	Logger      Logger

	liveness *userLiveness
}

func NewAvatarHandler(tokens TokenService, revocations RevocationRegistry, users Users, store AvatarStore) *AvatarHandler {
	h := &AvatarHandler{
		Tokens:      tokens,
		Revocations: revocations,
		Users:       users,
		Store:       store,
		Logger:      defLogger{},
	}
	if users != nil {
		h.liveness = newUserLiveness(users, livenessCacheTTL)
	}
	return h
}

func (h *AvatarHandler) WithLogger(logger Logger) *AvatarHandler {
	if logger != nil {
		h.Logger = logger
	}
	return h
}

// RegisterAvatarRoutes mounts the avatar endpoints on the fiber app.
func RegisterAvatarRoutes(app *fiber.App, h *AvatarHandler) {
	app.Post("/me/avatar", h.UploadPost)
	app.Get("/me/avatar", h.DownloadGet)
}

func (h *AvatarHandler) UploadPost(c *fiber.Ctx) error {
	userID, err := h.authorize(c)
	if err != nil {
		return h.renderError(c, err)
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return h.renderError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "missing avatar file").
			WithCode(goerrors.CodeBadRequest))
	}

	src, err := file.Open()
	if err != nil {
		return h.renderError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to read avatar file").
			WithCode(goerrors.CodeBadRequest))
	}
	defer src.Close()

	ref, err := h.Store.Upload(c.UserContext(), userID.String(), file.Filename, src, file.Size, file.Header.Get(fiber.HeaderContentType))
	if err != nil {
		h.Logger.Error("avatar upload error: %v", err)
		return h.renderError(c, err)
	}

	if err := h.Users.SetAvatar(c.UserContext(), userID, ref); err != nil {
		h.Logger.Error("avatar persist error: %v", err)
		return h.renderError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"avatar": ref,
	})
}

func (h *AvatarHandler) DownloadGet(c *fiber.Ctx) error {
	userID, err := h.authorize(c)
	if err != nil {
		return h.renderError(c, err)
	}

	user, err := h.Users.GetByIdentifier(c.UserContext(), userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return h.renderError(c, ErrIdentityNotFound)
		}
		return h.renderError(c, err)
	}

	if user.AvatarRef == "" {
		return h.renderError(c, goerrors.New("no avatar set", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound))
	}

	reader, err := h.Store.Download(c.UserContext(), user.AvatarRef)
	if err != nil {
		h.Logger.Error("avatar download error: %v", err)
		return h.renderError(c, err)
	}

	return c.SendStream(reader)
}

// authorize resolves the bearer token into the account ID the same way the
// guarded routes do: live access token, purpose checked, cutoff honored.
func (h *AvatarHandler) authorize(c *fiber.Ctx) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return uuid.Nil, ErrUnauthorized
	}

	claims, err := h.Tokens.Validate(strings.TrimSpace(parts[1]))
	if err != nil {
		return uuid.Nil, err
	}

	if claims.Purpose() != PurposeAccess {
		return uuid.Nil, ErrTokenWrongPurpose
	}

	revoked, err := h.Revocations.IsSubjectRevoked(c.UserContext(), claims.Subject(), claims.IssuedAt())
	if err != nil {
		return uuid.Nil, storeUnavailable(err)
	}
	if revoked {
		return uuid.Nil, ErrTokenRevoked
	}

	if h.liveness != nil {
		if err := h.liveness.Check(c.UserContext(), claims.Subject()); err != nil {
			return uuid.Nil, err
		}
	}

	id, err := uuid.Parse(claims.Subject())
	if err != nil {
		return uuid.Nil, ErrUnableToMapClaims
	}

	return id, nil
}

func (h *AvatarHandler) renderError(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	return c.Status(statusForError(richErr)).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}
