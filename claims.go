package contacts

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPurpose tags a token with the single operation class it is valid for.
type TokenPurpose string

const (
	// PurposeAccess authorizes individual API calls. Short lived, not
	// individually revocable.
	PurposeAccess TokenPurpose = "access"
	// PurposeRefresh mints new pairs. Long lived, single use per rotation.
	PurposeRefresh TokenPurpose = "refresh"
	// PurposeVerifyEmail activates an account. Single use.
	PurposeVerifyEmail TokenPurpose = "verify"
	// PurposeResetPassword completes a credential change. Single use.
	PurposeResetPassword TokenPurpose = "reset"
)

// IsValid reports whether p is a known purpose.
func (p TokenPurpose) IsValid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeVerifyEmail, PurposeResetPassword:
		return true
	default:
		return false
	}
}

// SingleUse reports whether tokens with this purpose are consumed on use.
func (p TokenPurpose) SingleUse() bool {
	switch p {
	case PurposeRefresh, PurposeVerifyEmail, PurposeResetPassword:
		return true
	default:
		return false
	}
}

// AuthClaims represents structured JWT claims with purpose awareness.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Purpose() TokenPurpose
	TokenID() string
	Expires() time.Time
	IssuedAt() time.Time
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	Prp      string `json:"prp,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Purpose returns the purpose tag. Tokens minted before purpose tagging
// default to access so they keep working on protected routes only.
func (c *JWTClaims) Purpose() TokenPurpose {
	if c.Prp == "" {
		return PurposeAccess
	}
	return TokenPurpose(c.Prp)
}

// TokenID returns the jti claim used for revocation of single-use tokens.
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return UserRole(c.UserRole).IsAtLeast(UserRole(minRole))
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID backfills a random jti when the claims carry none.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}

	claims.ID = newTokenID()
}

func newTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
