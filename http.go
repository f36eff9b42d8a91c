package contacts

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/mvaldes/go-contacts/middleware/jwtware"
)

// RefreshCookieName is the cookie carrying the refresh token between
// rotations. The access token travels in the Authorization header only.
const RefreshCookieName = "refresh_token"

// RouteAuthenticator adapts the Authenticator to HTTP: it builds the guard
// middleware for protected routes and manages the refresh cookie.
type RouteAuthenticator struct {
	auth         Authenticator
	tokens       TokenService
	cfg          Config
	revocations  RevocationRegistry
	liveness     *userLiveness
	cookiePath   string
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, tokens TokenService, revocations RevocationRegistry, users Users, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:         cfg,
		auth:        auther,
		tokens:      tokens,
		revocations: revocations,
		cookiePath:  "/auth",
		Logger:      defLogger{},
	}

	if users != nil {
		a.liveness = newUserLiveness(users, livenessCacheTTL)
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// ProtectedRoute returns middleware that admits only live access tokens.
// Refresh and single-use tokens are rejected even though they carry a valid
// signature.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.guard(errorHandler, "")
}

// AdminRoute is ProtectedRoute plus a minimum role requirement.
func (a *RouteAuthenticator) AdminRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.guard(errorHandler, string(RoleAdmin))
}

func (a *RouteAuthenticator) guard(errorHandler func(router.Context, error) error, minimumRole string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler:   errorHandler,
			AuthScheme:     a.cfg.GetAuthScheme(),
			ContextKey:     a.cfg.GetContextKey(),
			TokenLookup:    "header:" + router.HeaderAuthorization,
			MinimumRole:    minimumRole,
			TokenValidator: tokenValidatorAdapter{tokens: a.tokens},
			ValidationListeners: []jwtware.ValidationListener{
				a.requireLiveAccessToken,
			},
			ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
				if authClaims, ok := claims.(AuthClaims); ok {
					return WithClaimsContext(ctx, authClaims)
				}
				return ctx
			},
		})(hf)
	}
}

// requireLiveAccessToken rejects tokens that are not access tokens, plus
// access tokens from subjects whose sessions were revoked wholesale.
func (a *RouteAuthenticator) requireLiveAccessToken(ctx router.Context, claims jwtware.AuthClaims) error {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return ErrUnableToMapClaims
	}

	if authClaims.Purpose() != PurposeAccess {
		return ErrTokenWrongPurpose
	}

	revoked, err := a.revocations.IsSubjectRevoked(ctx.Context(), authClaims.Subject(), authClaims.IssuedAt())
	if err != nil {
		return storeUnavailable(err)
	}
	if revoked {
		return ErrTokenRevoked
	}

	if a.liveness != nil {
		if err := a.liveness.Check(ctx.Context(), authClaims.Subject()); err != nil {
			return err
		}
	}

	return nil
}

// livenessCacheTTL bounds how long a deleted or deactivated account can keep
// using an already issued access token.
const livenessCacheTTL = 30 * time.Second

// userLiveness answers whether a subject may still authenticate, with a
// short cache in front of the users store so the guard does not hit the
// database on every request.
type userLiveness struct {
	users Users
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]livenessEntry
}

type livenessEntry struct {
	err     error
	expires time.Time
}

func newUserLiveness(users Users, ttl time.Duration) *userLiveness {
	return &userLiveness{
		users: users,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]livenessEntry),
	}
}

// Check returns nil when the subject exists and is active. Deleted subjects
// get the same unauthorized error as any other dead credential. Store
// failures are never cached.
func (l *userLiveness) Check(ctx context.Context, subject string) error {
	now := l.now()

	l.mu.Lock()
	if entry, ok := l.cache[subject]; ok && entry.expires.After(now) {
		l.mu.Unlock()
		return entry.err
	}
	l.mu.Unlock()

	user, err := l.users.GetByIdentifier(ctx, subject)
	if err != nil {
		if errors.IsNotFound(err) {
			l.store(subject, ErrUnauthorized, now)
			return ErrUnauthorized
		}
		return storeUnavailable(err)
	}

	user.EnsureStatus()
	result := statusAuthError(user.Status)
	l.store(subject, result, now)
	return result
}

func (l *userLiveness) store(subject string, result error, now time.Time) {
	l.mu.Lock()
	l.cache[subject] = livenessEntry{err: result, expires: now.Add(l.ttl)}
	l.mu.Unlock()
}

// SetRefreshCookie stores the refresh token in an HttpOnly cookie scoped to
// the auth endpoints.
func (a *RouteAuthenticator) SetRefreshCookie(c router.Context, pair *TokenPair) {
	c.Cookie(&router.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     a.cookiePath,
		Expires:  pair.RefreshExpiresAt,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearRefreshCookie expires the refresh cookie.
func (a *RouteAuthenticator) ClearRefreshCookie(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     a.cookiePath,
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// RefreshTokenFromRequest reads the refresh token from the request body
// field or the cookie, body taking precedence.
func (a *RouteAuthenticator) RefreshTokenFromRequest(c router.Context, bodyToken string) string {
	if bodyToken != "" {
		return bodyToken
	}
	return c.Cookies(RefreshCookieName)
}

// MakeClientRouteAuthErrorHandler normalizes guard failures into rich errors
// before rendering. With optional set the request proceeds unauthenticated.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsTokenRevokedError(err) {
			richErr = ErrTokenRevoked
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"request error category=%s text_code=%s details=%s",
		richErr.Category,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	return WriteError(c, richErr)
}

// WriteError renders an error as a JSON response with the status derived
// from the error category.
func WriteError(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	return c.JSON(statusForError(richErr), map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}

// statusForError maps error categories to HTTP status codes. Codes set
// explicitly on the error win.
func statusForError(err *errors.Error) int {
	if err.Code != 0 {
		return err.Code
	}

	switch err.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// tokenValidatorAdapter bridges the TokenService to the middleware's
// validator interface.
type tokenValidatorAdapter struct {
	tokens TokenService
}

func (t tokenValidatorAdapter) Validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := t.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
