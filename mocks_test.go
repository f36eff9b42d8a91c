package contacts_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	contacts "github.com/mvaldes/go-contacts"
	"github.com/stretchr/testify/mock"
)

// TestIdentity is a simple implementation of Identity for testing
type TestIdentity struct {
	id       string
	username string
	email    string
	role     string
	status   contacts.UserStatus
}

func (t TestIdentity) ID() string       { return t.id }
func (t TestIdentity) Username() string { return t.username }
func (t TestIdentity) Email() string    { return t.email }
func (t TestIdentity) Role() string     { return t.role }
func (t TestIdentity) Status() contacts.UserStatus {
	if t.status == "" {
		return contacts.UserStatusActive
	}
	return t.status
}

// MockIdentityProvider implements contacts.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (contacts.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(contacts.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (contacts.Identity, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(contacts.Identity), args.Error(1)
}

// MockLogger implements contacts.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// testCfg implements contacts.Config with fixed values
type testCfg struct {
	signingKey string
	policy     contacts.TokenPolicy
}

func newTestCfg() testCfg {
	return testCfg{
		signingKey: "test-signing-key",
		policy:     contacts.DefaultTokenPolicy(),
	}
}

func (c testCfg) GetSigningKey() string  { return c.signingKey }
func (c testCfg) GetContextKey() string  { return "claims" }
func (c testCfg) GetTokenLookup() string { return "header:Authorization" }
func (c testCfg) GetAuthScheme() string  { return "Bearer" }
func (c testCfg) GetIssuer() string      { return "test-issuer" }
func (c testCfg) GetAudience() []string  { return []string{"test:audience"} }
func (c testCfg) GetTokenPolicy() contacts.TokenPolicy {
	return c.policy
}

// fakeUsers backs the authenticator flows with an in-memory map. The
// embedded interface covers the repository surface the tests never touch;
// calling an unimplemented method panics loudly.
type fakeUsers struct {
	contacts.Users

	mu      sync.Mutex
	records map[uuid.UUID]*contacts.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{records: map[uuid.UUID]*contacts.User{}}
}

func (f *fakeUsers) add(user *contacts.User) *contacts.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.EnsureStatus()
	f.records[user.ID] = user
	return user
}

// trackerFor narrows a Users fake to the UserTracker surface the provider
// takes, mirroring the adapter the app wiring uses.
type trackerAdapter struct {
	users contacts.Users
}

func trackerFor(users contacts.Users) contacts.UserTracker {
	return trackerAdapter{users: users}
}

func (a trackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*contacts.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a trackerAdapter) TrackAttemptedLogin(ctx context.Context, user *contacts.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a trackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *contacts.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}

func (f *fakeUsers) GetByIdentifier(_ context.Context, identifier string, _ ...repository.SelectCriteria) (*contacts.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, err := uuid.Parse(identifier); err == nil {
		if user, ok := f.records[id]; ok {
			return user, nil
		}
	}

	lowered := strings.ToLower(identifier)
	for _, user := range f.records {
		if strings.ToLower(user.Email) == lowered || user.Username == identifier {
			return user, nil
		}
	}

	return nil, contacts.ErrIdentityNotFound
}

func (f *fakeUsers) EmailTaken(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.records {
		if strings.EqualFold(user.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Register(_ context.Context, user *contacts.User) (*contacts.User, error) {
	return f.add(user), nil
}

func (f *fakeUsers) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.records[id]
	if !ok {
		return contacts.ErrIdentityNotFound
	}
	user.EmailValidated = true
	user.Status = contacts.UserStatusActive
	return nil
}

func (f *fakeUsers) ResetPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.records[id]
	if !ok {
		return contacts.ErrIdentityNotFound
	}
	user.PasswordHash = passwordHash
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	return nil
}

func (f *fakeUsers) TrackAttemptedLogin(_ context.Context, user *contacts.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.LoginAttempts++
	now := time.Now()
	user.LoginAttemptAt = &now
	return nil
}

func (f *fakeUsers) TrackSuccessfulLogin(_ context.Context, user *contacts.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	now := time.Now()
	user.LoggedInAt = &now
	return nil
}

func (f *fakeUsers) UpdateStatus(_ context.Context, id uuid.UUID, status contacts.UserStatus, opts ...contacts.StatusUpdateOption) (*contacts.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.records[id]
	if !ok {
		return nil, contacts.ErrIdentityNotFound
	}
	user.Status = status
	for _, opt := range opts {
		if opt != nil {
			opt(user)
		}
	}
	return user, nil
}

func (f *fakeUsers) SetAvatar(_ context.Context, id uuid.UUID, avatarRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.records[id]
	if !ok {
		return contacts.ErrIdentityNotFound
	}
	user.AvatarRef = avatarRef
	return nil
}

// fakeNotifier captures outbound tokens so tests can complete the flows.
type fakeNotifier struct {
	mu            sync.Mutex
	verifications map[string]string
	resets        map[string]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		verifications: map[string]string{},
		resets:        map[string]string{},
	}
}

func (n *fakeNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications[email] = token
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[email] = token
	return nil
}

func (n *fakeNotifier) verificationFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verifications[email]
}

func (n *fakeNotifier) resetFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets[email]
}

// collectSink records activity events for assertions.
type collectSink struct {
	mu     sync.Mutex
	events []contacts.ActivityEvent
}

func (s *collectSink) Record(_ context.Context, event contacts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *collectSink) types() []contacts.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contacts.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

var _ jwt.Claims = (*contacts.JWTClaims)(nil)
