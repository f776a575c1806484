package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bookswap/backend/internal/storage/models"
)

// BookingRepository provides data access for catalog booking snapshots.
// Bookings are written on catalog import and never mutated by the swap
// engine except for the availability lock that accompanies listing.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const bookingColumns = `id, owner_id, type, title, description, city, country,
       check_in, check_out, original_price, swap_value, verification, availability,
       created_at, updated_at`

// Create inserts a booking snapshot.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = GenerateID()
	}
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO bookings (
			id, owner_id, type, title, description, city, country,
			check_in, check_out, original_price, swap_value, verification, availability,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.OwnerID, b.Type, b.Title, b.Description, b.City, b.Country,
		b.CheckIn, b.CheckOut, b.OriginalPrice, b.SwapValue, b.Verification,
		b.Availability, b.CreatedAt, b.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by its ID. Returns nil when not found.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return r.getByID(ctx, r.DB(), id)
}

// GetByIDIn is GetByID scoped to a transaction.
func (r *BookingRepository) GetByIDIn(ctx context.Context, q Queryable, id string) (*models.Booking, error) {
	return r.getByID(ctx, q, id)
}

func (r *BookingRepository) getByID(ctx context.Context, q Queryable, id string) (*models.Booking, error) {
	b := &models.Booking{}

	err := q.QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = ?
	`, id).Scan(
		&b.ID, &b.OwnerID, &b.Type, &b.Title, &b.Description, &b.City, &b.Country,
		&b.CheckIn, &b.CheckOut, &b.OriginalPrice, &b.SwapValue, &b.Verification,
		&b.Availability, &b.CreatedAt, &b.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}

	return b, nil
}

// ListByOwner returns all bookings owned by the given user.
func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Booking, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE owner_id = ? ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ID, &b.OwnerID, &b.Type, &b.Title, &b.Description, &b.City, &b.Country,
			&b.CheckIn, &b.CheckOut, &b.OriginalPrice, &b.SwapValue, &b.Verification,
			&b.Availability, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// SetAvailability updates a booking's availability status. Listing a booking
// for exchange locks it; cancelling the swap releases it.
func (r *BookingRepository) SetAvailability(ctx context.Context, q Queryable, id, availability string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE bookings SET availability = ?, updated_at = ? WHERE id = ?
	`, availability, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating booking availability: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("booking %s not found", id)
	}

	return nil
}
