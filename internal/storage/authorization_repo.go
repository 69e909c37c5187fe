package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// AuthorizationRepository is the Postgres-backed unique-ID ledger. A row's
// existence means the ID is consumed; used-by-execution and revoked rows are
// identical on purpose, so reads cannot tell the two apart.
type AuthorizationRepository struct {
	store *Store
}

// NewAuthorizationRepository creates a new repository
func NewAuthorizationRepository(store *Store) *AuthorizationRepository {
	return &AuthorizationRepository{store: store}
}

// IsConsumed reports whether the unique ID has been consumed.
func (r *AuthorizationRepository) IsConsumed(ctx context.Context, id types.UniqueID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM authorization_ids WHERE unique_id = $1)`

	var consumed bool
	if err := r.store.pool.QueryRow(ctx, query, id[:]).Scan(&consumed); err != nil {
		return false, fmt.Errorf("failed to read authorization id: %w", err)
	}
	return consumed, nil
}

// Consume marks the unique ID consumed. The insert-or-conflict makes the
// check-and-mark atomic: under concurrent attempts exactly one caller gets
// the row, every other caller sees ErrNoRows and fails with IdAlreadyConsumed.
func (r *AuthorizationRepository) Consume(ctx context.Context, id types.UniqueID) error {
	query := `
        INSERT INTO authorization_ids (unique_id)
        VALUES ($1)
        ON CONFLICT (unique_id) DO NOTHING
        RETURNING unique_id
    `

	var inserted []byte
	err := r.store.pool.QueryRow(ctx, query, id[:]).Scan(&inserted)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.WithDetail(apperrors.ErrIDAlreadyConsumed, id.Hex())
		}
		return fmt.Errorf("failed to consume authorization id: %w", err)
	}
	return nil
}

// Revoke marks the unique ID consumed pre-emptively. Revoking an ID that is
// already consumed is a no-op; the caller's goal already holds.
func (r *AuthorizationRepository) Revoke(ctx context.Context, id types.UniqueID) error {
	query := `
        INSERT INTO authorization_ids (unique_id)
        VALUES ($1)
        ON CONFLICT (unique_id) DO NOTHING
    `

	if _, err := r.store.pool.Exec(ctx, query, id[:]); err != nil {
		return fmt.Errorf("failed to revoke authorization id: %w", err)
	}
	return nil
}
