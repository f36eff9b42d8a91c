package contacts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleGuest is a guest role (ie. view)
	RoleGuest UserRole = "guest"
	// RoleMember is a member (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
	// RoleOwner is an owner role (i.e. view, edit, create, delete)
	RoleOwner UserRole = "owner"
)

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	// UserStatusPending marks accounts awaiting email verification.
	UserStatusPending UserStatus = "pending"
	// UserStatusActive marks accounts that may authenticate.
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended marks temporarily blocked accounts.
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusDisabled marks administratively blocked accounts.
	UserStatusDisabled UserStatus = "disabled"
	// UserStatusArchived is the terminal state.
	UserStatusArchived UserStatus = "archived"
)

// User is the account model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Status         UserStatus `bun:"status,notnull" json:"status,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	EmailValidated bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	AvatarRef      string     `bun:"avatar_ref" json:"avatar_ref,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	SuspendedAt    *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus backfills the status column for records created before the
// lifecycle was introduced.
func (u *User) EnsureStatus() {
	if u == nil {
		return
	}
	if u.Status == "" {
		if u.EmailValidated {
			u.Status = UserStatusActive
		} else {
			u.Status = UserStatusPending
		}
	}
}

// IsActive reports whether the account may authenticate right now.
func (u *User) IsActive() bool {
	if u == nil {
		return false
	}
	u.EnsureStatus()
	return u.Status == UserStatusActive
}

// Contact is a user-owned contact record
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:cnt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Phone         string     `bun:"phone_number,notnull" json:"phone_number,omitempty"`
	BirthDate     *time.Time `bun:"birth_date" json:"birth_date,omitempty"`
	Notes         string     `bun:"notes" json:"notes,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RevokedToken is a revocation registry entry keyed by the token's jti.
// Rows become garbage once ExpiresAt passes; the registry reclaims them.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvk"`
	TokenID       string     `bun:"token_id,pk" json:"token_id,omitempty"`
	Subject       string     `bun:"subject,notnull" json:"subject,omitempty"`
	RevokedAt     time.Time  `bun:"revoked_at,notnull" json:"revoked_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// SubjectRevocation invalidates every refresh token issued to a subject at
// or before RevokedAt. Written on password resets.
type SubjectRevocation struct {
	bun.BaseModel `bun:"table:subject_revocations,alias:srv"`
	Subject       string    `bun:"subject,pk" json:"subject,omitempty"`
	RevokedAt     time.Time `bun:"revoked_at,notnull" json:"revoked_at,omitempty"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at,omitempty"`
}
