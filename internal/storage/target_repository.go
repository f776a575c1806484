package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bookswap/backend/internal/storage/models"
)

// TargetRepository provides data access for target edges between swaps.
type TargetRepository struct {
	BaseRepository
}

// NewTargetRepository creates a new target repository.
func NewTargetRepository(db *DB) *TargetRepository {
	return &TargetRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const targetColumns = `id, source_swap_id, target_swap_id, proposal_id, status,
       acceptance_strategy, reason, created_at, updated_at`

// Create inserts a new active target. The partial unique index on
// (source_swap_id) WHERE status='active' rejects a second active outgoing
// target; callers translate that constraint failure to DuplicateTarget.
func (r *TargetRepository) Create(ctx context.Context, q Queryable, t *models.Target) error {
	if t.ID == "" {
		t.ID = GenerateID()
	}
	t.Status = models.TargetStatusActive
	t.CreatedAt = r.Now()
	t.UpdatedAt = t.CreatedAt

	_, err := q.ExecContext(ctx, `
		INSERT INTO targets (
			id, source_swap_id, target_swap_id, proposal_id, status,
			acceptance_strategy, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.SourceSwapID, t.TargetSwapID, t.ProposalID, t.Status,
		t.AcceptanceStrategy, t.Reason, t.CreatedAt, t.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting target: %w", err)
	}

	return nil
}

// IsUniqueViolation reports whether the error came from the active-outgoing
// unique index.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a target by its ID. Returns nil when not found.
func (r *TargetRepository) GetByID(ctx context.Context, id string) (*models.Target, error) {
	return r.getOne(ctx, r.DB(), `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
}

// GetByIDIn is GetByID scoped to a transaction.
func (r *TargetRepository) GetByIDIn(ctx context.Context, q Queryable, id string) (*models.Target, error) {
	return r.getOne(ctx, q, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
}

// GetActiveBySource returns the swap's active outgoing target, or nil.
func (r *TargetRepository) GetActiveBySource(ctx context.Context, q Queryable, sourceSwapID string) (*models.Target, error) {
	return r.getOne(ctx, q, `
		SELECT `+targetColumns+` FROM targets WHERE source_swap_id = ? AND status = ?
	`, sourceSwapID, models.TargetStatusActive)
}

func (r *TargetRepository) getOne(ctx context.Context, q Queryable, query string, args ...any) (*models.Target, error) {
	t := &models.Target{}

	err := q.QueryRowContext(ctx, query, args...).Scan(
		&t.ID, &t.SourceSwapID, &t.TargetSwapID, &t.ProposalID, &t.Status,
		&t.AcceptanceStrategy, &t.Reason, &t.CreatedAt, &t.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying target: %w", err)
	}

	return t, nil
}

// ListActiveByTargetSwap returns all active targets incoming to a swap,
// oldest first.
func (r *TargetRepository) ListActiveByTargetSwap(ctx context.Context, q Queryable, targetSwapID string) ([]models.Target, error) {
	return r.listBy(ctx, q, `
		SELECT `+targetColumns+` FROM targets
		WHERE target_swap_id = ? AND status = ?
		ORDER BY created_at ASC
	`, targetSwapID, models.TargetStatusActive)
}

// ListBySwap returns every target touching a swap, incoming or outgoing.
func (r *TargetRepository) ListBySwap(ctx context.Context, swapID string) ([]models.Target, error) {
	return r.listBy(ctx, r.DB(), `
		SELECT `+targetColumns+` FROM targets
		WHERE source_swap_id = ? OR target_swap_id = ?
		ORDER BY created_at ASC
	`, swapID, swapID)
}

func (r *TargetRepository) listBy(ctx context.Context, q Queryable, query string, args ...any) ([]models.Target, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying targets: %w", err)
	}
	defer rows.Close()

	var targets []models.Target
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(
			&t.ID, &t.SourceSwapID, &t.TargetSwapID, &t.ProposalID, &t.Status,
			&t.AcceptanceStrategy, &t.Reason, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning target: %w", err)
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// CountActiveByTargetSwap returns the number of active incoming targets.
func (r *TargetRepository) CountActiveByTargetSwap(ctx context.Context, targetSwapID string) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM targets WHERE target_swap_id = ? AND status = ?
	`, targetSwapID, models.TargetStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting targets: %w", err)
	}
	return count, nil
}

// Resolve transitions an active target to a terminal status. Terminal
// targets are immutable history: the guard clause refuses to touch them.
func (r *TargetRepository) Resolve(ctx context.Context, q Queryable, id, status string, reason *string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE targets SET status = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, reason, r.Now(), id, models.TargetStatusActive)
	if err != nil {
		return fmt.Errorf("resolving target: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("target %s is not active", id)
	}

	return nil
}

// SetProposalID links a materialized proposal to its target.
func (r *TargetRepository) SetProposalID(ctx context.Context, q Queryable, id, proposalID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE targets SET proposal_id = ?, updated_at = ? WHERE id = ?
	`, proposalID, r.Now(), id)
	if err != nil {
		return fmt.Errorf("linking proposal to target: %w", err)
	}
	return nil
}
