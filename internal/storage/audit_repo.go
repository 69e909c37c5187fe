package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quorumgate/quorumgate/pkg/types"
)

// Audit outcome values.
const (
	AuditOutcomeApproved = "approved"
	AuditOutcomeRejected = "rejected"
	AuditOutcomeRevoked  = "revoked"
)

// AuditRecord is one append-only row describing an authorization or
// revocation attempt.
type AuditRecord struct {
	ID          uuid.UUID
	UniqueID    types.UniqueID
	Action      string // authorize or revoke
	Outcome     string
	ErrorCode   string
	Batched     bool
	RequestedAt time.Time
}

// AuditRepository appends authorization attempts to the audit log.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates a new repository
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// Record appends one audit row. Audit failures are reported to the caller but
// never block the authorization path; the caller decides whether to log-and-go.
func (r *AuditRepository) Record(ctx context.Context, rec *AuditRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.RequestedAt.IsZero() {
		rec.RequestedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO authorization_audit (id, unique_id, action, outcome, error_code, batched, requested_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := r.store.pool.Exec(ctx, query,
		rec.ID, rec.UniqueID[:], rec.Action, rec.Outcome, rec.ErrorCode, rec.Batched, rec.RequestedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit row: %w", err)
	}
	return nil
}

// ListByUniqueID returns the audit trail of one unique ID, oldest first.
func (r *AuditRepository) ListByUniqueID(ctx context.Context, id types.UniqueID) ([]*AuditRecord, error) {
	query := `
        SELECT id, unique_id, action, outcome, error_code, batched, requested_at
        FROM authorization_audit
        WHERE unique_id = $1
        ORDER BY requested_at ASC
    `

	rows, err := r.store.pool.Query(ctx, query, id[:])
	if err != nil {
		return nil, fmt.Errorf("failed to list audit rows: %w", err)
	}
	defer rows.Close()

	var records []*AuditRecord
	for rows.Next() {
		var (
			rec AuditRecord
			uid []byte
		)
		if err := rows.Scan(&rec.ID, &uid, &rec.Action, &rec.Outcome, &rec.ErrorCode, &rec.Batched, &rec.RequestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		copy(rec.UniqueID[:], uid)
		records = append(records, &rec)
	}
	return records, rows.Err()
}
