package contacts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type livenessStore struct {
	Users

	mu      sync.Mutex
	records map[string]*User
	lookups int
}

func newLivenessStore(users ...*User) *livenessStore {
	s := &livenessStore{records: map[string]*User{}}
	for _, u := range users {
		s.records[u.ID.String()] = u
	}
	return s
}

func (s *livenessStore) GetByIdentifier(_ context.Context, identifier string, _ ...repository.SelectCriteria) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups++
	if user, ok := s.records[identifier]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, ErrIdentityNotFound
}

func (s *livenessStore) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *livenessStore) remove(id string) {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
}

func TestUserLiveness_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("active subject passes", func(t *testing.T) {
		user := &User{ID: uuid.New(), Status: UserStatusActive}
		l := newUserLiveness(newLivenessStore(user), time.Minute)

		require.NoError(t, l.Check(ctx, user.ID.String()))
	})

	t.Run("deleted subject is rejected", func(t *testing.T) {
		user := &User{ID: uuid.New(), Status: UserStatusActive}
		store := newLivenessStore(user)
		l := newUserLiveness(store, time.Minute)

		require.NoError(t, l.Check(ctx, user.ID.String()))

		store.remove(user.ID.String())
		l.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		assert.ErrorIs(t, l.Check(ctx, user.ID.String()), ErrUnauthorized)
	})

	t.Run("suspended subject is rejected", func(t *testing.T) {
		user := &User{ID: uuid.New(), Status: UserStatusSuspended}
		l := newUserLiveness(newLivenessStore(user), time.Minute)

		assert.ErrorIs(t, l.Check(ctx, user.ID.String()), ErrAccountInactive)
	})

	t.Run("pending subject is rejected", func(t *testing.T) {
		user := &User{ID: uuid.New(), Status: UserStatusPending}
		l := newUserLiveness(newLivenessStore(user), time.Minute)

		assert.ErrorIs(t, l.Check(ctx, user.ID.String()), ErrAccountNotVerified)
	})

	t.Run("results are cached inside the window", func(t *testing.T) {
		user := &User{ID: uuid.New(), Status: UserStatusActive}
		store := newLivenessStore(user)
		l := newUserLiveness(store, time.Minute)

		require.NoError(t, l.Check(ctx, user.ID.String()))
		require.NoError(t, l.Check(ctx, user.ID.String()))
		assert.Equal(t, 1, store.lookupCount())
	})

	t.Run("cache entries expire", func(t *testing.T) {
		user := &User{ID: uuid.New(), Status: UserStatusActive}
		store := newLivenessStore(user)
		l := newUserLiveness(store, time.Minute)

		require.NoError(t, l.Check(ctx, user.ID.String()))

		l.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		require.NoError(t, l.Check(ctx, user.ID.String()))
		assert.Equal(t, 2, store.lookupCount())
	})
}

type livenessTestCfg struct{}

func (livenessTestCfg) GetSigningKey() string       { return "liveness-signing-key" }
func (livenessTestCfg) GetContextKey() string       { return "claims" }
func (livenessTestCfg) GetTokenLookup() string      { return "header:Authorization" }
func (livenessTestCfg) GetAuthScheme() string       { return "Bearer" }
func (livenessTestCfg) GetIssuer() string           { return "liveness-test" }
func (livenessTestCfg) GetAudience() []string       { return []string{"test:audience"} }
func (livenessTestCfg) GetTokenPolicy() TokenPolicy { return DefaultTokenPolicy() }

func TestNewHTTPAuthenticator_GuardsUserLiveness(t *testing.T) {
	user := &User{ID: uuid.New(), Status: UserStatusActive}
	store := newLivenessStore(user)

	a, err := NewHTTPAuthenticator(nil, nil, NewMemoryRevocationRegistry(), store, livenessTestCfg{})
	require.NoError(t, err)
	require.NotNil(t, a.liveness)

	store.remove(user.ID.String())
	assert.ErrorIs(t, a.liveness.Check(context.Background(), user.ID.String()), ErrUnauthorized)
}
