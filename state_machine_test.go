package contacts_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	contacts "github.com/mvaldes/go-contacts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycleFixture() (*fakeUsers, contacts.UserStateMachine, *collectSink) {
	users := newFakeUsers()
	sink := &collectSink{}
	machine := contacts.NewUserStateMachine(users, contacts.WithStateMachineActivitySink(sink))
	return users, machine, sink
}

func seedUser(users *fakeUsers, status contacts.UserStatus) *contacts.User {
	return users.add(&contacts.User{
		ID:       uuid.New(),
		Username: "lifecycle",
		Email:    "lifecycle@example.com",
		Role:     contacts.RoleMember,
		Status:   status,
	})
}

func TestUserStateMachine_Transition(t *testing.T) {
	ctx := context.Background()
	actor := contacts.ActorRef{ID: "admin-1", Type: "user"}

	t.Run("pending to active", func(t *testing.T) {
		users, machine, sink := newLifecycleFixture()
		user := seedUser(users, contacts.UserStatusPending)

		updated, err := machine.Transition(ctx, actor, user, contacts.UserStatusActive)

		require.NoError(t, err)
		assert.Equal(t, contacts.UserStatusActive, updated.Status)
		assert.Contains(t, sink.types(), contacts.ActivityEventUserStatusChanged)
	})

	t.Run("active to suspended records timestamp", func(t *testing.T) {
		users, machine, _ := newLifecycleFixture()
		user := seedUser(users, contacts.UserStatusActive)

		suspendedAt := time.Now().Add(-time.Minute)
		updated, err := machine.Transition(ctx, actor, user, contacts.UserStatusSuspended,
			contacts.WithSuspensionTime(suspendedAt))

		require.NoError(t, err)
		assert.Equal(t, contacts.UserStatusSuspended, updated.Status)
		require.NotNil(t, updated.SuspendedAt)
		assert.WithinDuration(t, suspendedAt, *updated.SuspendedAt, time.Second)
	})

	t.Run("suspended back to active", func(t *testing.T) {
		users, machine, _ := newLifecycleFixture()
		user := seedUser(users, contacts.UserStatusSuspended)

		updated, err := machine.Transition(ctx, actor, user, contacts.UserStatusActive)

		require.NoError(t, err)
		assert.Equal(t, contacts.UserStatusActive, updated.Status)
	})

	t.Run("invalid transition rejected", func(t *testing.T) {
		users, machine, _ := newLifecycleFixture()
		user := seedUser(users, contacts.UserStatusPending)

		_, err := machine.Transition(ctx, actor, user, contacts.UserStatusSuspended)

		assert.Error(t, err)
	})

	t.Run("archived is terminal", func(t *testing.T) {
		users, machine, _ := newLifecycleFixture()
		user := seedUser(users, contacts.UserStatusArchived)

		_, err := machine.Transition(ctx, actor, user, contacts.UserStatusActive)

		assert.Error(t, err)
	})

	t.Run("force overrides the graph", func(t *testing.T) {
		users, machine, _ := newLifecycleFixture()
		user := seedUser(users, contacts.UserStatusArchived)

		updated, err := machine.Transition(ctx, actor, user, contacts.UserStatusActive,
			contacts.WithForceTransition())

		require.NoError(t, err)
		assert.Equal(t, contacts.UserStatusActive, updated.Status)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		users, machine, sink := newLifecycleFixture()
		user := seedUser(users, contacts.UserStatusActive)

		updated, err := machine.Transition(ctx, actor, user, contacts.UserStatusActive)

		require.NoError(t, err)
		assert.Equal(t, contacts.UserStatusActive, updated.Status)
		assert.Empty(t, sink.types())
	})

	t.Run("nil user rejected", func(t *testing.T) {
		_, machine, _ := newLifecycleFixture()

		_, err := machine.Transition(ctx, actor, nil, contacts.UserStatusActive)

		assert.Error(t, err)
	})
}

func TestUserStateMachine_CurrentStatus(t *testing.T) {
	_, machine, _ := newLifecycleFixture()

	assert.Equal(t, contacts.UserStatus(""), machine.CurrentStatus(nil))
	assert.Equal(t, contacts.UserStatusActive, machine.CurrentStatus(&contacts.User{Status: contacts.UserStatusActive}))

	// Legacy records without a status resolve from the verified flag
	assert.Equal(t, contacts.UserStatusPending, machine.CurrentStatus(&contacts.User{}))
	assert.Equal(t, contacts.UserStatusActive, machine.CurrentStatus(&contacts.User{EmailValidated: true}))
}

func TestUserStateMachine_SessionCutoff(t *testing.T) {
	ctx := context.Background()
	actor := contacts.ActorRef{ID: "admin-1", Type: "user"}

	t.Run("leaving active cuts outstanding sessions", func(t *testing.T) {
		users := newFakeUsers()
		registry := contacts.NewMemoryRevocationRegistry()
		machine := contacts.NewUserStateMachine(users,
			contacts.WithStateMachineRevocations(registry, time.Hour))
		user := seedUser(users, contacts.UserStatusActive)

		issuedBefore := time.Now().Add(-time.Minute)
		_, err := machine.Transition(ctx, actor, user, contacts.UserStatusSuspended)
		require.NoError(t, err)

		revoked, err := registry.IsSubjectRevoked(ctx, user.ID.String(), issuedBefore)
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = registry.IsSubjectRevoked(ctx, user.ID.String(), time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("activating a pending user leaves sessions alone", func(t *testing.T) {
		users := newFakeUsers()
		registry := contacts.NewMemoryRevocationRegistry()
		machine := contacts.NewUserStateMachine(users,
			contacts.WithStateMachineRevocations(registry, time.Hour))
		user := seedUser(users, contacts.UserStatusPending)

		_, err := machine.Transition(ctx, actor, user, contacts.UserStatusActive)
		require.NoError(t, err)

		revoked, err := registry.IsSubjectRevoked(ctx, user.ID.String(), time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}
