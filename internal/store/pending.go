package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-checkout/internal/models"
)

type pendingRow struct {
	Reference    string    `db:"reference"`
	SessionID    string    `db:"session_id"`
	Payload      []byte    `db:"payload"`
	GuardClaimed bool      `db:"guard_claimed"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// SavePending stores a new pending settlement. Only an expired record with the
// same reference is replaced.
func (s *Store) SavePending(ctx context.Context, p *models.PendingSettlement) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pending settlement: %w", err)
	}

	query := `
		INSERT INTO pending_settlements (reference, session_id, payload, guard_claimed, created_at, expires_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		ON CONFLICT (reference) DO UPDATE
		SET session_id = EXCLUDED.session_id,
			payload = EXCLUDED.payload,
			guard_claimed = FALSE,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE pending_settlements.expires_at <= NOW()`

	res, err := s.db.ExecContext(ctx, query,
		p.Reference, p.SessionID, payload, p.CreatedAt, p.CreatedAt.Add(s.ttl))
	if err != nil {
		return fmt.Errorf("failed to save pending settlement: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("pending settlement %s: %w", p.Reference, models.ErrAlreadyExists)
	}
	return nil
}

// LoadPending retrieves an unexpired pending settlement by reference
func (s *Store) LoadPending(ctx context.Context, reference string) (*models.PendingSettlement, error) {
	var row pendingRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM pending_settlements WHERE reference = $1 AND expires_at > NOW()", reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending settlement: %w", err)
	}

	var p models.PendingSettlement
	if err := json.Unmarshal(row.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending settlement: %w", err)
	}
	return &p, nil
}

// ClaimGuard atomically claims the finalize guard for a reference.
// Returns false if another finalize already holds it.
func (s *Store) ClaimGuard(ctx context.Context, reference string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_settlements SET guard_claimed = TRUE
		WHERE reference = $1 AND NOT guard_claimed AND expires_at > NOW()`, reference)
	if err != nil {
		return false, fmt.Errorf("failed to claim guard: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	err = s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM pending_settlements WHERE reference = $1 AND expires_at > NOW())", reference)
	if err != nil {
		return false, fmt.Errorf("failed to check pending settlement: %w", err)
	}
	if !exists {
		return false, models.ErrNotFound
	}
	return false, nil
}

// DeletePending removes the pending settlement and its guard
func (s *Store) DeletePending(ctx context.Context, reference string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_settlements WHERE reference = $1", reference)
	if err != nil {
		return fmt.Errorf("failed to delete pending settlement: %w", err)
	}
	return nil
}

// PurgeExpired deletes pending settlements past their expiry
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pending_settlements WHERE expires_at <= NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to purge pending settlements: %w", err)
	}
	return res.RowsAffected()
}
