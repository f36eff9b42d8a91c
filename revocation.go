package contacts

import (
	"context"
	"sync"
	"time"
)

// RevocationRegistry tracks dead tokens by jti plus subject-wide cutoffs.
// Consume is the rotation commit point: exactly one caller wins for a given
// token id, every later caller loses.
type RevocationRegistry interface {
	// IsRevoked reports whether the token id has been revoked or consumed.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// Revoke marks the token id dead. Revoking an already revoked id is a no-op.
	Revoke(ctx context.Context, tokenID, subject string, expiresAt time.Time) error
	// Consume atomically marks the token id dead and reports whether this
	// call was the one that did it.
	Consume(ctx context.Context, tokenID, subject string, expiresAt time.Time) (bool, error)
	// RevokeAllForSubject invalidates every refresh token issued to the
	// subject at or before horizon. The cutoff record survives until
	// expiresAt, which should be horizon plus the longest refresh TTL.
	RevokeAllForSubject(ctx context.Context, subject string, horizon, expiresAt time.Time) error
	// IsSubjectRevoked reports whether a token issued to the subject at
	// issuedAt falls under a subject-wide cutoff.
	IsSubjectRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error)
	// PurgeExpired drops entries whose natural expiry has passed. Returns
	// the number of entries removed.
	PurgeExpired(ctx context.Context) (int, error)
}

// MemoryRevocationRegistry is a process-local RevocationRegistry. Suitable
// for single-node deployments and tests; multi-node setups should use the
// database-backed registry.
type MemoryRevocationRegistry struct {
	mu       sync.Mutex
	revoked  map[string]time.Time
	subjects map[string]subjectCutoff
	now      func() time.Time
}

type subjectCutoff struct {
	revokedAt time.Time
	expiresAt time.Time
}

func NewMemoryRevocationRegistry() *MemoryRevocationRegistry {
	return &MemoryRevocationRegistry{
		revoked:  map[string]time.Time{},
		subjects: map[string]subjectCutoff{},
		now:      time.Now,
	}
}

// WithClock injects a custom clock for expiry tests.
func (r *MemoryRevocationRegistry) WithClock(clock func() time.Time) *MemoryRevocationRegistry {
	if clock != nil {
		r.now = clock
	}
	return r
}

func (r *MemoryRevocationRegistry) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !expiresAt.IsZero() && !expiresAt.After(r.now()) {
		// Token is dead on its own terms, the tombstone no longer matters.
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

func (r *MemoryRevocationRegistry) Revoke(_ context.Context, tokenID, _ string, expiresAt time.Time) error {
	if tokenID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.revoked[tokenID]; !ok {
		r.revoked[tokenID] = expiresAt
	}
	return nil
}

func (r *MemoryRevocationRegistry) Consume(_ context.Context, tokenID, _ string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.revoked[tokenID]; ok {
		return false, nil
	}
	r.revoked[tokenID] = expiresAt
	return true, nil
}

func (r *MemoryRevocationRegistry) RevokeAllForSubject(_ context.Context, subject string, horizon, expiresAt time.Time) error {
	if subject == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.subjects[subject]
	if horizon.After(cutoff.revokedAt) {
		cutoff.revokedAt = horizon
	}
	if expiresAt.After(cutoff.expiresAt) {
		cutoff.expiresAt = expiresAt
	}
	r.subjects[subject] = cutoff
	return nil
}

func (r *MemoryRevocationRegistry) IsSubjectRevoked(_ context.Context, subject string, issuedAt time.Time) (bool, error) {
	if subject == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff, ok := r.subjects[subject]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(cutoff.revokedAt), nil
}

func (r *MemoryRevocationRegistry) PurgeExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, expiresAt := range r.revoked {
		if !expiresAt.IsZero() && !expiresAt.After(now) {
			delete(r.revoked, id)
			removed++
		}
	}
	for subject, cutoff := range r.subjects {
		if !cutoff.expiresAt.IsZero() && !cutoff.expiresAt.After(now) {
			delete(r.subjects, subject)
			removed++
		}
	}
	return removed, nil
}
