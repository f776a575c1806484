package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bookswap/backend/internal/storage/models"
)

// ProposalRepository provides data access for proposals.
type ProposalRepository struct {
	BaseRepository
}

// NewProposalRepository creates a new proposal repository.
func NewProposalRepository(db *DB) *ProposalRepository {
	return &ProposalRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const proposalColumns = `id, target_swap_id, proposer_id, target_id, offered_booking_id,
       cash_amount, cash_currency, payment_method_id, additional_payment,
       conditions, message, status, reason, created_at, updated_at`

// Create inserts a new pending proposal.
func (r *ProposalRepository) Create(ctx context.Context, q Queryable, p *models.Proposal) error {
	if p.ID == "" {
		p.ID = GenerateID()
	}
	p.Status = models.ProposalStatusPending
	p.CreatedAt = r.Now()
	p.UpdatedAt = p.CreatedAt

	var conditions *string
	if len(p.Conditions) > 0 {
		encoded, err := json.Marshal(p.Conditions)
		if err != nil {
			return fmt.Errorf("encoding conditions: %w", err)
		}
		str := string(encoded)
		conditions = &str
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO proposals (
			id, target_swap_id, proposer_id, target_id, offered_booking_id,
			cash_amount, cash_currency, payment_method_id, additional_payment,
			conditions, message, status, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.TargetSwapID, p.ProposerID, p.TargetID, p.OfferedBookingID,
		p.CashAmount, p.CashCurrency, p.PaymentMethodID, p.AdditionalPayment,
		conditions, p.Message, p.Status, p.Reason, p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting proposal: %w", err)
	}

	return nil
}

// GetByID retrieves a proposal by its ID. Returns nil when not found.
func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	return r.getOne(ctx, r.DB(), `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
}

// GetByIDIn is GetByID scoped to a transaction.
func (r *ProposalRepository) GetByIDIn(ctx context.Context, q Queryable, id string) (*models.Proposal, error) {
	return r.getOne(ctx, q, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
}

func (r *ProposalRepository) getOne(ctx context.Context, q Queryable, query string, args ...any) (*models.Proposal, error) {
	p := &models.Proposal{}
	var conditions sql.NullString

	err := q.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.TargetSwapID, &p.ProposerID, &p.TargetID, &p.OfferedBookingID,
		&p.CashAmount, &p.CashCurrency, &p.PaymentMethodID, &p.AdditionalPayment,
		&conditions, &p.Message, &p.Status, &p.Reason, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying proposal: %w", err)
	}

	if conditions.Valid && conditions.String != "" {
		if err := json.Unmarshal([]byte(conditions.String), &p.Conditions); err != nil {
			return nil, fmt.Errorf("decoding conditions: %w", err)
		}
	}

	return p, nil
}

// ListByTargetSwap returns proposals received by a swap, newest first.
func (r *ProposalRepository) ListByTargetSwap(ctx context.Context, targetSwapID string) ([]models.Proposal, error) {
	return r.listBy(ctx, r.DB(), `
		SELECT `+proposalColumns+` FROM proposals
		WHERE target_swap_id = ? ORDER BY created_at DESC
	`, targetSwapID)
}

// ListPendingByTargetSwap returns pending proposals on a swap, scoped to a
// transaction for the fan-out rejection path.
func (r *ProposalRepository) ListPendingByTargetSwap(ctx context.Context, q Queryable, targetSwapID string) ([]models.Proposal, error) {
	return r.listBy(ctx, q, `
		SELECT `+proposalColumns+` FROM proposals
		WHERE target_swap_id = ? AND status = ? ORDER BY created_at ASC
	`, targetSwapID, models.ProposalStatusPending)
}

func (r *ProposalRepository) listBy(ctx context.Context, q Queryable, query string, args ...any) ([]models.Proposal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying proposals: %w", err)
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		var p models.Proposal
		var conditions sql.NullString
		if err := rows.Scan(
			&p.ID, &p.TargetSwapID, &p.ProposerID, &p.TargetID, &p.OfferedBookingID,
			&p.CashAmount, &p.CashCurrency, &p.PaymentMethodID, &p.AdditionalPayment,
			&conditions, &p.Message, &p.Status, &p.Reason, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning proposal: %w", err)
		}
		if conditions.Valid && conditions.String != "" {
			if err := json.Unmarshal([]byte(conditions.String), &p.Conditions); err != nil {
				return nil, fmt.Errorf("decoding conditions: %w", err)
			}
		}
		proposals = append(proposals, p)
	}

	return proposals, rows.Err()
}

// CountPendingByTargetSwap returns the number of pending proposals on a swap.
func (r *ProposalRepository) CountPendingByTargetSwap(ctx context.Context, targetSwapID string) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM proposals WHERE target_swap_id = ? AND status = ?
	`, targetSwapID, models.ProposalStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting proposals: %w", err)
	}
	return count, nil
}

// Resolve transitions a pending proposal to accepted or rejected.
func (r *ProposalRepository) Resolve(ctx context.Context, q Queryable, id, status string, reason *string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE proposals SET status = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, reason, r.Now(), id, models.ProposalStatusPending)
	if err != nil {
		return fmt.Errorf("resolving proposal: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("proposal %s is not pending", id)
	}

	return nil
}

// ResolveByTarget mirrors a target resolution onto its linked proposal, if
// one is pending.
func (r *ProposalRepository) ResolveByTarget(ctx context.Context, q Queryable, targetID, status string, reason *string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE proposals SET status = ?, reason = ?, updated_at = ?
		WHERE target_id = ? AND status = ?
	`, status, reason, r.Now(), targetID, models.ProposalStatusPending)
	if err != nil {
		return fmt.Errorf("mirroring target resolution to proposal: %w", err)
	}
	return nil
}
