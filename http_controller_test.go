package contacts_test

import (
	"testing"

	contacts "github.com/mvaldes/go-contacts"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload contacts.RegisterRequest
		wantErr bool
	}{
		{
			name: "valid payload",
			payload: contacts.RegisterRequest{
				Username: "testuser",
				Email:    "test@example.com",
				Password: "password123",
			},
			wantErr: false,
		},
		{
			name: "valid without username",
			payload: contacts.RegisterRequest{
				Email:    "test@example.com",
				Password: "password123",
			},
			wantErr: false,
		},
		{
			name: "missing email",
			payload: contacts.RegisterRequest{
				Username: "testuser",
				Password: "password123",
			},
			wantErr: true,
		},
		{
			name: "invalid email",
			payload: contacts.RegisterRequest{
				Email:    "not-an-email",
				Password: "password123",
			},
			wantErr: true,
		},
		{
			name: "short password",
			payload: contacts.RegisterRequest{
				Email:    "test@example.com",
				Password: "short",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	assert.NoError(t, contacts.LoginRequest{Identifier: "user@example.com", Password: "secret"}.Validate())
	assert.Error(t, contacts.LoginRequest{Password: "secret"}.Validate())
	assert.Error(t, contacts.LoginRequest{Identifier: "user@example.com"}.Validate())
}

func TestPasswordResetConfirmPayload_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		payload := contacts.PasswordResetConfirmPayload{
			Token:           "reset-token",
			Password:        "newpassword1",
			ConfirmPassword: "newpassword1",
		}
		assert.NoError(t, payload.Validate())
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		payload := contacts.PasswordResetConfirmPayload{
			Token:           "reset-token",
			Password:        "newpassword1",
			ConfirmPassword: "different",
		}
		assert.Error(t, payload.Validate())
	})

	t.Run("missing token", func(t *testing.T) {
		payload := contacts.PasswordResetConfirmPayload{
			Password:        "newpassword1",
			ConfirmPassword: "newpassword1",
		}
		assert.Error(t, payload.Validate())
	})
}

func TestContactPayload_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		payload := contacts.ContactPayload{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			BirthDate: "1815-12-10",
		}
		assert.NoError(t, payload.Validate())
	})

	t.Run("missing first name", func(t *testing.T) {
		assert.Error(t, contacts.ContactPayload{LastName: "Lovelace"}.Validate())
	})

	t.Run("bad birth date format", func(t *testing.T) {
		payload := contacts.ContactPayload{
			FirstName: "Ada",
			BirthDate: "12/10/1815",
		}
		assert.Error(t, payload.Validate())
	})
}

func TestFormatValidationErrorToMap(t *testing.T) {
	err := contacts.RegisterRequest{Password: "short"}.Validate()

	fields := contacts.FormatValidationErrorToMap(err)

	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}
