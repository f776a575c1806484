package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookswap/backend/internal/storage/models"
)

// SwapRepository provides data access for swap listings.
type SwapRepository struct {
	BaseRepository
}

// NewSwapRepository creates a new swap repository.
func NewSwapRepository(db *DB) *SwapRepository {
	return &SwapRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const swapColumns = `id, owner_id, booking_id, status, acceptance_strategy,
       cash_min_amount, cash_max_amount, cash_preferred_amount, cash_currency,
       cash_payment_methods, cash_escrow_required, version, created_at, expires_at, updated_at`

// Create inserts a new swap in pending status with version 1.
func (r *SwapRepository) Create(ctx context.Context, q Queryable, s *models.Swap) error {
	if s.ID == "" {
		s.ID = GenerateID()
	}
	s.Status = models.SwapStatusPending
	s.Version = 1
	s.CreatedAt = r.Now()
	s.UpdatedAt = s.CreatedAt

	if !s.ExpiresAt.After(s.CreatedAt) {
		return fmt.Errorf("swap expiry %v is not after creation %v", s.ExpiresAt, s.CreatedAt)
	}

	var (
		minAmount, maxAmount, preferred *float64
		currency, methods               *string
		escrow                          bool
	)
	if s.Cash != nil {
		minAmount = &s.Cash.MinAmount
		maxAmount = &s.Cash.MaxAmount
		preferred = &s.Cash.PreferredAmount
		currency = &s.Cash.Currency
		escrow = s.Cash.EscrowRequired
		if len(s.Cash.PaymentMethods) > 0 {
			encoded, err := json.Marshal(s.Cash.PaymentMethods)
			if err != nil {
				return fmt.Errorf("encoding payment methods: %w", err)
			}
			str := string(encoded)
			methods = &str
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO swaps (
			id, owner_id, booking_id, status, acceptance_strategy,
			cash_min_amount, cash_max_amount, cash_preferred_amount, cash_currency,
			cash_payment_methods, cash_escrow_required, version, created_at, expires_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.OwnerID, s.BookingID, s.Status, s.AcceptanceStrategy,
		minAmount, maxAmount, preferred, currency, methods, escrow,
		s.Version, s.CreatedAt, s.ExpiresAt, s.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting swap: %w", err)
	}

	return nil
}

// GetByID retrieves a swap by its ID. Returns nil when not found.
func (r *SwapRepository) GetByID(ctx context.Context, id string) (*models.Swap, error) {
	return r.getByID(ctx, r.DB(), id)
}

// GetByIDIn is GetByID scoped to a transaction.
func (r *SwapRepository) GetByIDIn(ctx context.Context, q Queryable, id string) (*models.Swap, error) {
	return r.getByID(ctx, q, id)
}

func (r *SwapRepository) getByID(ctx context.Context, q Queryable, id string) (*models.Swap, error) {
	row := q.QueryRowContext(ctx, `SELECT `+swapColumns+` FROM swaps WHERE id = ?`, id)

	s, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying swap: %w", err)
	}

	return s, nil
}

// List returns swaps, optionally filtered by status and owner.
func (r *SwapRepository) List(ctx context.Context, status, ownerID string) ([]models.Swap, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE 1=1`
	var args []any

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	query += " ORDER BY created_at DESC"

	return r.list(ctx, query, args...)
}

// ListPendingExpired returns pending swaps whose expiry has passed.
func (r *SwapRepository) ListPendingExpired(ctx context.Context, now time.Time) ([]models.Swap, error) {
	return r.list(ctx, `
		SELECT `+swapColumns+` FROM swaps WHERE status = ? AND expires_at <= ?
	`, models.SwapStatusPending, now)
}

func (r *SwapRepository) list(ctx context.Context, query string, args ...any) ([]models.Swap, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying swaps: %w", err)
	}
	defer rows.Close()

	var swaps []models.Swap
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning swap: %w", err)
		}
		swaps = append(swaps, *s)
	}

	return swaps, rows.Err()
}

// UpdateStatus transitions a swap to the given status, bumping its version.
// Returns the new version.
func (r *SwapRepository) UpdateStatus(ctx context.Context, q Queryable, id, status string) (int64, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE swaps SET status = ?, version = version + 1, updated_at = ? WHERE id = ?
	`, status, r.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("updating swap status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("swap %s not found", id)
	}

	var version int64
	if err := q.QueryRowContext(ctx, `SELECT version FROM swaps WHERE id = ?`, id).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading swap version: %w", err)
	}

	return version, nil
}

// scanner abstracts *sql.Row and *sql.Rows for swap row scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanSwap(row scanner) (*models.Swap, error) {
	var (
		s                               models.Swap
		minAmount, maxAmount, preferred sql.NullFloat64
		currency, methods               sql.NullString
		escrow                          bool
	)

	err := row.Scan(
		&s.ID, &s.OwnerID, &s.BookingID, &s.Status, &s.AcceptanceStrategy,
		&minAmount, &maxAmount, &preferred, &currency, &methods, &escrow,
		&s.Version, &s.CreatedAt, &s.ExpiresAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if minAmount.Valid && maxAmount.Valid {
		cash := &models.CashDetails{
			MinAmount:       minAmount.Float64,
			MaxAmount:       maxAmount.Float64,
			Currency:        currency.String,
			EscrowRequired:  escrow,
			PreferredAmount: preferred.Float64,
		}
		if methods.Valid && methods.String != "" {
			if err := json.Unmarshal([]byte(methods.String), &cash.PaymentMethods); err != nil {
				return nil, fmt.Errorf("decoding payment methods: %w", err)
			}
		}
		s.Cash = cash
	}

	return &s, nil
}
