package contacts_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	contacts "github.com/mvaldes/go-contacts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *contacts.TokenServiceImpl {
	return contacts.NewTokenService(
		[]byte("test-signing-key"),
		contacts.DefaultTokenPolicy(),
		"test-issuer",
		jwt.ClaimStrings{"test:audience"},
		nil,
	)
}

func TestNewTokenService(t *testing.T) {
	t.Run("creates token service with logger", func(t *testing.T) {
		logger := &MockLogger{}
		service := contacts.NewTokenService([]byte("key"), contacts.DefaultTokenPolicy(), "iss", jwt.ClaimStrings{"aud"}, logger)
		assert.NotNil(t, service)
	})

	t.Run("creates token service with nil logger", func(t *testing.T) {
		service := contacts.NewTokenService([]byte("key"), contacts.DefaultTokenPolicy(), "iss", jwt.ClaimStrings{"aud"}, nil)
		assert.NotNil(t, service)
	})
}

func TestTokenService_Issue(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{
		id:       "user-123",
		username: "testuser",
		email:    "test@example.com",
		role:     "member",
	}

	t.Run("issues access token without jti", func(t *testing.T) {
		token, claims, err := service.Issue(identity, contacts.PurposeAccess)

		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "user-123", claims.Subject())
		assert.Equal(t, "member", claims.Role())
		assert.Equal(t, contacts.PurposeAccess, claims.Purpose())
		assert.Empty(t, claims.TokenID())
	})

	t.Run("issues refresh token with jti", func(t *testing.T) {
		token, claims, err := service.Issue(identity, contacts.PurposeRefresh)

		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, contacts.PurposeRefresh, claims.Purpose())
		assert.NotEmpty(t, claims.TokenID())
	})

	t.Run("verify and reset tokens carry jti", func(t *testing.T) {
		_, verifyClaims, err := service.Issue(identity, contacts.PurposeVerifyEmail)
		require.NoError(t, err)
		assert.NotEmpty(t, verifyClaims.TokenID())

		_, resetClaims, err := service.Issue(identity, contacts.PurposeResetPassword)
		require.NoError(t, err)
		assert.NotEmpty(t, resetClaims.TokenID())
	})

	t.Run("each purpose uses its policy TTL", func(t *testing.T) {
		policy := contacts.DefaultTokenPolicy()
		now := time.Now()

		cases := []struct {
			purpose contacts.TokenPurpose
			ttl     time.Duration
		}{
			{contacts.PurposeAccess, policy.AccessTTL},
			{contacts.PurposeRefresh, policy.RefreshTTL},
			{contacts.PurposeVerifyEmail, policy.VerifyTTL},
			{contacts.PurposeResetPassword, policy.ResetTTL},
		}

		for _, tc := range cases {
			_, claims, err := service.Issue(identity, tc.purpose)
			require.NoError(t, err)
			assert.WithinDuration(t, now.Add(tc.ttl), claims.Expires(), 5*time.Second, "purpose %s", tc.purpose)
		}
	})
}

func TestTokenService_IssuePair(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{id: "user-123", role: "member"}

	pair, refreshClaims, err := service.IssuePair(identity)

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))
	assert.Equal(t, contacts.PurposeRefresh, refreshClaims.Purpose())

	accessClaims, err := service.Validate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, contacts.PurposeAccess, accessClaims.Purpose())
}

func TestTokenService_Validate(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{id: "user-123", role: "admin"}

	t.Run("round trips valid token", func(t *testing.T) {
		token, _, err := service.Issue(identity, contacts.PurposeAccess)
		require.NoError(t, err)

		claims, err := service.Validate(token)

		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.Subject())
		assert.Equal(t, "admin", claims.Role())
	})

	t.Run("rejects token signed with a different key", func(t *testing.T) {
		other := contacts.NewTokenService([]byte("other-key"), contacts.DefaultTokenPolicy(), "test-issuer", jwt.ClaimStrings{"test:audience"}, nil)
		token, _, err := other.Issue(identity, contacts.PurposeAccess)
		require.NoError(t, err)

		_, err = service.Validate(token)

		assert.Error(t, err)
		assert.True(t, contacts.IsMalformedError(err))
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		_, err := service.Validate("not-a-jwt")

		assert.Error(t, err)
		assert.True(t, contacts.IsMalformedError(err))
	})

	t.Run("rejects expired token", func(t *testing.T) {
		base := time.Now()

		issuerSvc := newTestTokenService().WithClock(func() time.Time { return base.Add(-24 * time.Hour) })
		token, _, err := issuerSvc.Issue(identity, contacts.PurposeAccess)
		require.NoError(t, err)

		_, err = service.Validate(token)

		assert.Error(t, err)
		assert.True(t, contacts.IsTokenExpiredError(err))
	})

	t.Run("token expiring exactly now is expired", func(t *testing.T) {
		policy := contacts.DefaultTokenPolicy()
		base := time.Now()

		issuerSvc := newTestTokenService().WithClock(func() time.Time { return base })
		token, _, err := issuerSvc.Issue(identity, contacts.PurposeAccess)
		require.NoError(t, err)

		verifier := newTestTokenService().WithClock(func() time.Time { return base.Add(policy.AccessTTL) })
		_, err = verifier.Validate(token)

		assert.Error(t, err)
		assert.True(t, contacts.IsTokenExpiredError(err))
	})

	t.Run("rejects wrong issuer", func(t *testing.T) {
		other := contacts.NewTokenService([]byte("test-signing-key"), contacts.DefaultTokenPolicy(), "rogue-issuer", jwt.ClaimStrings{"test:audience"}, nil)
		token, _, err := other.Issue(identity, contacts.PurposeAccess)
		require.NoError(t, err)

		_, err = service.Validate(token)

		assert.Error(t, err)
	})
}
