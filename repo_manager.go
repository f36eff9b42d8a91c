package contacts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Contacts() Contacts
	Revocations() RevocationRegistry
}

type mngr struct {
	db          *bun.DB
	users       Users
	contacts    Contacts
	revocations RevocationRegistry
}

type ManagerOption func(*mngr)

// WithManagerContactsOptions forwards options to the contacts repository.
func WithManagerContactsOptions(opts ...ContactsOption) ManagerOption {
	return func(m *mngr) {
		m.contacts = NewContactsRepository(m.db, opts...)
	}
}

// WithManagerUsersOptions forwards options to the users repository.
func WithManagerUsersOptions(opts ...UsersOption) ManagerOption {
	return func(m *mngr) {
		m.users = NewUsersRepository(m.db, opts...)
	}
}

// WithManagerRevocations overrides the revocation registry, e.g. with the
// in-memory one for single-node deployments.
func WithManagerRevocations(registry RevocationRegistry) ManagerOption {
	return func(m *mngr) {
		if registry != nil {
			m.revocations = registry
		}
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db:          db,
		users:       NewUsersRepository(db),
		contacts:    NewContactsRepository(db),
		revocations: NewBunRevocationRegistry(db),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.contacts == nil {
		return errors.New("repository contacts should be initialized")
	}

	if m.revocations == nil {
		return errors.New("revocation registry should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Contacts() Contacts {
	return m.contacts
}

func (m mngr) Revocations() RevocationRegistry {
	return m.revocations
}
