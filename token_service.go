package contacts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenPolicy fixes the validity window per purpose. Values come from
// deployment configuration, never from callers.
type TokenPolicy struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	ResetTTL   time.Duration
}

// DefaultTokenPolicy is used when configuration provides no overrides.
func DefaultTokenPolicy() TokenPolicy {
	return TokenPolicy{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		VerifyTTL:  24 * time.Hour,
		ResetTTL:   time.Hour,
	}
}

// TTL returns the window for a purpose.
func (p TokenPolicy) TTL(purpose TokenPurpose) time.Duration {
	switch purpose {
	case PurposeRefresh:
		return p.RefreshTTL
	case PurposeVerifyEmail:
		return p.VerifyTTL
	case PurposeResetPassword:
		return p.ResetTTL
	default:
		return p.AccessTTL
	}
}

// TokenPair is the access+refresh couple handed out on login and rotation.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}

// TokenService issues and validates purpose-tagged tokens.
type TokenService interface {
	Issue(identity Identity, purpose TokenPurpose) (string, *JWTClaims, error)
	IssuePair(identity Identity) (*TokenPair, *JWTClaims, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	policy     TokenPolicy
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, policy TokenPolicy, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		policy:     policy,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock injects a custom clock, useful for expiry boundary tests.
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Issue creates a signed token for the identity and purpose. Single-use
// purposes always carry a fresh jti so the revocation registry can key them.
func (ts *TokenServiceImpl) Issue(identity Identity, purpose TokenPurpose) (string, *JWTClaims, error) {
	if identity == nil {
		return "", nil, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}
	if !purpose.IsValid() {
		return "", nil, goerrors.New("unknown token purpose", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	now := ts.now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.policy.TTL(purpose))),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
		Prp:      string(purpose),
	}

	if purpose.SingleUse() {
		ensureTokenID(&claims.RegisteredClaims)
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// IssuePair mints one access and one refresh token for the identity. The
// returned claims are the refresh claims; callers need its jti and expiry
// for the rotation bookkeeping.
func (ts *TokenServiceImpl) IssuePair(identity Identity) (*TokenPair, *JWTClaims, error) {
	access, accessClaims, err := ts.Issue(identity, PurposeAccess)
	if err != nil {
		return nil, nil, err
	}

	refresh, refreshClaims, err := ts.Issue(identity, PurposeRefresh)
	if err != nil {
		return nil, nil, err
	}

	pair := &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.Expires(),
		RefreshExpiresAt: refreshClaims.Expires(),
		TokenType:        "bearer",
	}

	return pair, refreshClaims, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// Expired tokens and malformed/badly signed tokens surface as distinct
// errors internally; both map to a 401 at the boundary. A token whose expiry
// equals the current instant counts as expired.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service validate: unexpected signing method %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token service validate could not decode or validate claims")
		return nil, ErrUnableToDecodeSession
	}

	// jwt/v5 treats exp <= now as expired with zero leeway, but keep the
	// boundary explicit against library default drift.
	if !claims.Expires().After(ts.now()) {
		return nil, ErrTokenExpired
	}

	if !claims.Purpose().IsValid() {
		return nil, ErrTokenWrongPurpose
	}

	return claims, nil
}
