package jwtware_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"

	"github.com/mvaldes/go-contacts/middleware/jwtware"
)

var roleRank = map[string]int{"guest": 0, "member": 1, "admin": 2, "owner": 3}

type stubClaims struct {
	subject string
	role    string
	tokenID string
}

func (c stubClaims) Subject() string { return c.subject }
func (c stubClaims) UserID() string  { return c.subject }
func (c stubClaims) Role() string    { return c.role }
func (c stubClaims) TokenID() string { return c.tokenID }
func (c stubClaims) HasRole(role string) bool {
	return c.role == role
}
func (c stubClaims) IsAtLeast(minRole string) bool {
	return roleRank[c.role] >= roleRank[minRole]
}

type stubValidator struct {
	claims jwtware.AuthClaims
	err    error
	seen   []string
}

func (v *stubValidator) Validate(token string) (jwtware.AuthClaims, error) {
	v.seen = append(v.seen, token)
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func runMiddleware(cfg jwtware.Config, ctx router.Context) error {
	handler := jwtware.New(cfg)(func(router.Context) error { return nil })
	return handler(ctx)
}

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "12345", role: "member"}}

	cfg := jwtware.Config{
		SuccessHandler: func(ctx router.Context) error {
			return ctx.Next()
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
		TokenValidator: validator,
		// it will look for Authorization: Bearer <token>
	}

	// Test with valid token
	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer valid-token"
	ctx.On("GetString", "Authorization", "").Return("Bearer valid-token")
	ctx.On("Locals", "claims", mock.Anything).Return(nil)

	err := runMiddleware(cfg, ctx)
	if err != nil {
		t.Fatalf("unexpected error for valid token: %v", err)
	}
	if !ctx.NextCalled {
		t.Errorf("expected NextCalled to be true, but got false")
	}
	if len(validator.seen) != 1 || validator.seen[0] != "valid-token" {
		t.Errorf("expected validator to receive the raw token, got %v", validator.seen)
	}

	// Test with missing token
	ctx = router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")
	err = runMiddleware(cfg, ctx)
	if err == nil {
		t.Fatal("expected error for missing token, got nil")
	}
	if !strings.Contains(err.Error(), jwtware.ErrJWTMissingOrMalformed.Error()) {
		t.Errorf("expected missing token error, got: %v", err)
	}

	// Test with rejected token
	rejecting := &stubValidator{err: errors.New("token is malformed")}
	cfg.TokenValidator = rejecting

	ctx = router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer bad-token"
	ctx.On("GetString", "Authorization", "").Return("Bearer bad-token")
	err = runMiddleware(cfg, ctx)
	if err == nil {
		t.Fatal("expected error for rejected token, got nil")
	}
	if !strings.Contains(err.Error(), "token is malformed") {
		t.Errorf("expected 'token is malformed' error, got: %v", err)
	}
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{subject: "12345", role: "member"}}

	cfg := jwtware.Config{
		TokenValidator: validator,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
		TokenLookup: "query:token,param:jwt,cookie:jwt_cookie",
	}

	// Test query parameter
	ctx := router.NewMockContext()
	ctx.QueriesM["token"] = "query-token"
	ctx.On("GetString", "token", "").Return("query-token").Maybe()
	ctx.On("Locals", "claims", mock.Anything).Return(nil)

	err := runMiddleware(cfg, ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ctx.NextCalled {
		t.Errorf("expected Next to be invoked for valid token")
	}

	// Test URL parameter
	ctx = router.NewMockContext()
	ctx.ParamsM["jwt"] = "param-token"
	ctx.On("GetString", "jwt", "").Return("param-token").Maybe()
	ctx.On("Locals", "claims", mock.Anything).Return(nil)
	err = runMiddleware(cfg, ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Test cookie
	ctx = router.NewMockContext()
	ctx.CookiesM["jwt_cookie"] = "cookie-token"
	ctx.On("GetString", "jwt_cookie", "").Return("cookie-token").Maybe()
	ctx.On("Locals", "claims", mock.Anything).Return(nil)
	err = runMiddleware(cfg, ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

// customPathMock overrides Path() from our base MockContext.
type customPathMock struct {
	*router.MockContext
	pathOverride string
}

func (m *customPathMock) Path() string {
	return m.pathOverride
}

func TestJWTWare_FilterFunction(t *testing.T) {
	cfg := jwtware.Config{
		TokenValidator: &stubValidator{claims: stubClaims{subject: "12345"}},
		Filter: func(ctx router.Context) bool {
			// skip the middleware on "/public"
			return ctx.Path() == "/public"
		},
	}

	ctx := &customPathMock{
		MockContext:  router.NewMockContext(),
		pathOverride: "/public",
	}

	// because Filter returns true for Path() == "/public",
	// the middleware should skip token checking and call ctx.Next()
	err := runMiddleware(cfg, ctx)
	if err != nil {
		t.Fatalf("expected no error because Filter should skip, got %v", err)
	}
	if !ctx.NextCalled {
		t.Errorf("expected Next() to be invoked due to Filter skip")
	}
}

func TestJWTWare_RoleChecks(t *testing.T) {
	errHandler := func(ctx router.Context, err error) error { return err }

	t.Run("required role matches", func(t *testing.T) {
		cfg := jwtware.Config{
			TokenValidator: &stubValidator{claims: stubClaims{subject: "1", role: "admin"}},
			ErrorHandler:   errHandler,
			RequiredRole:   "admin",
		}

		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer token"
		ctx.On("GetString", "Authorization", "").Return("Bearer token")
		ctx.On("Locals", "claims", mock.Anything).Return(nil)

		if err := runMiddleware(cfg, ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("required role mismatch", func(t *testing.T) {
		cfg := jwtware.Config{
			TokenValidator: &stubValidator{claims: stubClaims{subject: "1", role: "member"}},
			ErrorHandler:   errHandler,
			RequiredRole:   "admin",
		}

		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer token"
		ctx.On("GetString", "Authorization", "").Return("Bearer token")

		if err := runMiddleware(cfg, ctx); err == nil {
			t.Fatal("expected authorization error, got nil")
		}
	})

	t.Run("minimum role satisfied by higher role", func(t *testing.T) {
		cfg := jwtware.Config{
			TokenValidator: &stubValidator{claims: stubClaims{subject: "1", role: "owner"}},
			ErrorHandler:   errHandler,
			MinimumRole:    "member",
		}

		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer token"
		ctx.On("GetString", "Authorization", "").Return("Bearer token")
		ctx.On("Locals", "claims", mock.Anything).Return(nil)

		if err := runMiddleware(cfg, ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("minimum role not met", func(t *testing.T) {
		cfg := jwtware.Config{
			TokenValidator: &stubValidator{claims: stubClaims{subject: "1", role: "guest"}},
			ErrorHandler:   errHandler,
			MinimumRole:    "member",
		}

		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer token"
		ctx.On("GetString", "Authorization", "").Return("Bearer token")

		if err := runMiddleware(cfg, ctx); err == nil {
			t.Fatal("expected authorization error, got nil")
		}
	})
}

func TestJWTWare_ValidationListeners(t *testing.T) {
	rejection := errors.New("token purpose is not valid for this operation")

	cfg := jwtware.Config{
		TokenValidator: &stubValidator{claims: stubClaims{subject: "1", role: "member"}},
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
		ValidationListeners: []jwtware.ValidationListener{
			func(ctx router.Context, claims jwtware.AuthClaims) error {
				return rejection
			},
		},
	}

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer token"
	ctx.On("GetString", "Authorization", "").Return("Bearer token")

	err := runMiddleware(cfg, ctx)
	if !errors.Is(err, rejection) {
		t.Fatalf("expected listener rejection, got %v", err)
	}
}

func TestGetExtractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization,cookie:jwt,query:auth_token,param:token", "Bearer")
	if len(extractors) != 4 {
		t.Fatalf("expected 4 extractors, got %d", len(extractors))
	}

	// Unknown sources are skipped
	extractors = jwtware.GetExtractors("header:Authorization,carrier-pigeon:token", "Bearer")
	if len(extractors) != 1 {
		t.Fatalf("expected 1 extractor, got %d", len(extractors))
	}
}
