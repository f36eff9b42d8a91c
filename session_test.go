package contacts_test

import (
	"testing"
	"time"

	contacts "github.com/mvaldes/go-contacts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObject(t *testing.T) {
	now := time.Now()

	session := &contacts.SessionObject{
		UserID:   "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Audience: []string{"test:audience"},
		Issuer:   "test-issuer",
		IssuedAt: &now,
		Data: map[string]any{
			"role": "admin",
		},
	}

	t.Run("accessors", func(t *testing.T) {
		assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", session.GetUserID())
		assert.Equal(t, []string{"test:audience"}, session.GetAudience())
		assert.Equal(t, "test-issuer", session.GetIssuer())
		assert.Equal(t, &now, session.GetIssuedAt())

		id, err := session.GetUserUUID()
		require.NoError(t, err)
		assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())
	})

	t.Run("role checks use session data", func(t *testing.T) {
		assert.True(t, session.HasRole("admin"))
		assert.False(t, session.HasRole("owner"))
		assert.True(t, session.IsAtLeast(contacts.RoleMember))
		assert.True(t, session.IsAtLeast(contacts.RoleAdmin))
		assert.False(t, session.IsAtLeast(contacts.RoleOwner))
	})

	t.Run("missing role falls back to guest", func(t *testing.T) {
		bare := &contacts.SessionObject{UserID: "user-1"}

		assert.True(t, bare.IsAtLeast(contacts.RoleGuest))
		assert.False(t, bare.IsAtLeast(contacts.RoleMember))
	})

	t.Run("string renders JSON", func(t *testing.T) {
		out := session.String()
		assert.Contains(t, out, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	})
}
