package contacts

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the credential lifecycle endpoints.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("auth.register")
	app.Post(controller.Routes.Verify, controller.VerifyPost).
		SetName("auth.verify")
	app.Post(controller.Routes.ResendVerification, controller.ResendVerificationPost).
		SetName("auth.verify.resend")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")
	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh")
	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout")
	app.Post(controller.Routes.PasswordResetRequest, controller.PasswordResetRequestPost).
		SetName("auth.pwd-reset.request")
	app.Post(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirmPost).
		SetName("auth.pwd-reset.confirm")
}

type AuthControllerRoutes struct {
	Register             string
	Verify               string
	ResendVerification   string
	Login                string
	Refresh              string
	Logout               string
	PasswordResetRequest string
	PasswordResetConfirm string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Auth         Authenticator
	Auther       *RouteAuthenticator
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerAuth(auth Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auth = auth
		return c
	}
}

func WithControllerAuther(auther *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: WriteError,
		Routes: &AuthControllerRoutes{
			Register:             "/auth/register",
			Verify:               "/auth/verify",
			ResendVerification:   "/auth/verify/resend",
			Login:                "/auth/login",
			Refresh:              "/auth/refresh",
			Logout:               "/auth/logout",
			PasswordResetRequest: "/auth/password-reset/request",
			PasswordResetConfirm: "/auth/password-reset/confirm",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// RegisterRequest payload
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	user, err := a.Auth.Register(ctx.Context(), RegisterInput{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		a.Logger.Error("register error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"id":       user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
		"status":   user.Status,
	})
}

// TokenRequest carries a single token, used by verify and logout.
type TokenRequest struct {
	Token string `form:"token" json:"token"`
}

func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) VerifyPost(ctx router.Context) error {
	payload := new(TokenRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Auth.VerifyEmail(ctx.Context(), payload.Token); err != nil {
		a.Logger.Error("verify email error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "email verified",
	})
}

// EmailRequest carries a bare email, used to resend verification and to
// initiate password resets.
type EmailRequest struct {
	Email string `form:"email" json:"email"`
}

func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendVerificationPost(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Auth.ResendVerification(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("resend verification error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusAccepted, map[string]any{
		"message": "verification email sent if the account exists",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	pair, err := a.Auth.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		a.Logger.Error("login error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.SetRefreshCookie(ctx, pair)

	return ctx.JSON(router.StatusOK, pair)
}

// RefreshRequest carries the refresh token. The body field is optional when
// the cookie is present.
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	token := a.Auther.RefreshTokenFromRequest(ctx, payload.RefreshToken)
	if token == "" {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	pair, err := a.Auth.Refresh(ctx.Context(), token)
	if err != nil {
		a.Logger.Error("refresh error: %v", err)
		a.Auther.ClearRefreshCookie(ctx)
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.SetRefreshCookie(ctx, pair)

	return ctx.JSON(router.StatusOK, pair)
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	token := a.Auther.RefreshTokenFromRequest(ctx, payload.RefreshToken)
	if token == "" {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	if err := a.Auth.Logout(ctx.Context(), token); err != nil {
		a.Logger.Error("logout error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.ClearRefreshCookie(ctx)

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "logged out",
	})
}

func (a *AuthController) PasswordResetRequestPost(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Auth.RequestPasswordReset(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("password reset request error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	// Same response whether or not the account exists.
	return ctx.JSON(router.StatusAccepted, map[string]any{
		"message": "reset email sent if the account exists",
	})
}

// PasswordResetConfirmPayload holds values for completing a password reset
type PasswordResetConfirmPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetConfirmPost(ctx router.Context) error {
	payload := new(PasswordResetConfirmPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Auth.CompletePasswordReset(ctx.Context(), payload.Token, payload.Password); err != nil {
		a.Logger.Error("password reset confirm error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "password updated",
	})
}

func (a *AuthController) badPayload(ctx router.Context, err error) error {
	a.Logger.Error("failed to parse payload: %v", err)
	return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest))
}

func (a *AuthController) invalidPayload(ctx router.Context, err error) error {
	return a.ErrorHandler(ctx, goerrors.New("request validation failed", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"fields": FormatValidationErrorToMap(err),
		}))
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
