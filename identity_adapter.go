package contacts

// UserIdentity presents a stored User as the Identity the token service
// signs. Build it with NewIdentityFromUser; the wrapped user is never nil.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser wraps user, returning nil for a nil record.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

func (u UserIdentity) ID() string       { return u.user.ID.String() }
func (u UserIdentity) Username() string { return u.user.Username }
func (u UserIdentity) Email() string    { return u.user.Email }
func (u UserIdentity) Role() string     { return string(u.user.Role) }

// Status resolves the lifecycle status, folding legacy records that predate
// the status column onto the verified flag the same way User.EnsureStatus
// does.
func (u UserIdentity) Status() UserStatus {
	if u.user.Status != "" {
		return u.user.Status
	}
	if u.user.EmailValidated {
		return UserStatusActive
	}
	return UserStatusPending
}

var (
	_ Identity            = UserIdentity{}
	_ statusAwareIdentity = UserIdentity{}
)
