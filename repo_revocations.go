package contacts

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// BunRevocationRegistry persists revocations in SQL so every node sees the
// same tombstones. The CONFLICT DO NOTHING insert makes Consume atomic
// without explicit locking.
type BunRevocationRegistry struct {
	db  bun.IDB
	now func() time.Time
}

// TxScopedRevocations is implemented by registries whose writes can join an
// open transaction.
type TxScopedRevocations interface {
	WithTx(tx bun.IDB) RevocationRegistry
}

// WithTx returns a registry whose statements run on tx.
func (r *BunRevocationRegistry) WithTx(tx bun.IDB) RevocationRegistry {
	return &BunRevocationRegistry{db: tx, now: r.now}
}

func NewBunRevocationRegistry(db bun.IDB) *BunRevocationRegistry {
	return &BunRevocationRegistry{
		db:  db,
		now: time.Now,
	}
}

func (r *BunRevocationRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	exists, err := r.db.NewSelect().
		Model((*RevokedToken)(nil)).
		Where("token_id = ?", tokenID).
		Where("expires_at > ?", r.now()).
		Exists(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to check token revocation")
	}
	return exists, nil
}

func (r *BunRevocationRegistry) Revoke(ctx context.Context, tokenID, subject string, expiresAt time.Time) error {
	if tokenID == "" {
		return nil
	}

	_, err := r.insertTombstone(ctx, tokenID, subject, expiresAt)
	return err
}

func (r *BunRevocationRegistry) Consume(ctx context.Context, tokenID, subject string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	return r.insertTombstone(ctx, tokenID, subject, expiresAt)
}

// insertTombstone inserts the revocation row if absent and reports whether
// this call created it.
func (r *BunRevocationRegistry) insertTombstone(ctx context.Context, tokenID, subject string, expiresAt time.Time) (bool, error) {
	record := &RevokedToken{
		TokenID:   tokenID,
		Subject:   subject,
		RevokedAt: r.now(),
		ExpiresAt: expiresAt,
	}

	res, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (token_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to record token revocation")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read revocation result")
	}
	return affected == 1, nil
}

func (r *BunRevocationRegistry) RevokeAllForSubject(ctx context.Context, subject string, horizon, expiresAt time.Time) error {
	if subject == "" {
		return nil
	}

	record := &SubjectRevocation{
		Subject:   subject,
		RevokedAt: horizon,
		ExpiresAt: expiresAt,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (subject) DO UPDATE").
		Set("revoked_at = CASE WHEN EXCLUDED.revoked_at > subject_revocations.revoked_at THEN EXCLUDED.revoked_at ELSE subject_revocations.revoked_at END").
		Set("expires_at = CASE WHEN EXCLUDED.expires_at > subject_revocations.expires_at THEN EXCLUDED.expires_at ELSE subject_revocations.expires_at END").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to record subject revocation")
	}
	return nil
}

func (r *BunRevocationRegistry) IsSubjectRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error) {
	if subject == "" {
		return false, nil
	}

	cutoff := new(SubjectRevocation)
	err := r.db.NewSelect().
		Model(cutoff).
		Where("subject = ?", subject).
		Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to check subject revocation")
	}

	return !issuedAt.After(cutoff.RevokedAt), nil
}

func (r *BunRevocationRegistry) PurgeExpired(ctx context.Context) (int, error) {
	now := r.now()

	res, err := r.db.NewDelete().
		Model((*RevokedToken)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to purge revoked tokens")
	}
	tokens, _ := res.RowsAffected()

	res, err = r.db.NewDelete().
		Model((*SubjectRevocation)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return int(tokens), goerrors.Wrap(err, goerrors.CategoryOperation, "failed to purge subject revocations")
	}
	subjects, _ := res.RowsAffected()

	return int(tokens + subjects), nil
}
