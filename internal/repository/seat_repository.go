package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sentinel comparisons
	"time"         // time for the allocation timestamp

	"github.com/streamvault/market/internal/model"
)

// seatColumns is the column list shared by every seat SELECT so scans
// stay in one shape.
const seatColumns = `id, account_id, label, credential_ref, is_active,
	order_line_id, user_id, allocated_at, created_at, updated_at`

// SeatRepo provides methods to work with seats in the database.  The
// allocation triple (order_line_id, user_id, allocated_at) is only ever
// written by Reserve and Release, each as a single UPDATE, so a seat
// can never be observed partially assigned.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

func scanSeat(row interface{ Scan(...any) error }) (*model.Seat, error) {
	var s model.Seat
	var orderLineID, userID sql.NullInt64
	var allocatedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.AccountID, &s.Label, &s.CredentialRef, &s.IsActive,
		&orderLineID, &userID, &allocatedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderLineID.Valid {
		v := uint64(orderLineID.Int64)
		s.OrderLineID = &v
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		s.UserID = &v
	}
	if allocatedAt.Valid {
		t := allocatedAt.Time
		s.AllocatedAt = &t
	}
	return &s, nil
}

// Create inserts a single seat record. On success the seat's ID is populated.
func (r *SeatRepo) Create(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (account_id, label, credential_ref, is_active)
	           VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.AccountID, s.Label, s.CredentialRef, s.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// CreateBulk inserts multiple seats in a single statement.  Used when an
// admin registers a fresh credential with all its profiles at once.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (account_id, label, credential_ref, is_active) VALUES `
	args := make([]interface{}, 0, len(seats)*4)
	for i, seat := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, seat.AccountID, seat.Label, seat.CredentialRef, seat.IsActive)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// GetByID retrieves a seat by its id.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE id = ?`
	s, err := scanSeat(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetByOrderLine retrieves the seat currently assigned to an order line,
// or ErrSeatNotFound when the line holds no seat.  Because of the unique
// index on seats.order_line_id at most one row can match.
func (r *SeatRepo) GetByOrderLine(ctx context.Context, orderLineID uint64) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE order_line_id = ?`
	s, err := scanSeat(r.db.QueryRowContext(ctx, q, orderLineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListByAccount retrieves all seats of an account ordered by id,
// regardless of allocation state.  Used by admin listings.
func (r *SeatRepo) ListByAccount(ctx context.Context, accountID uint64) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE account_id = ? ORDER BY id`
	return r.querySeats(ctx, q, accountID)
}

// FindFreeByAccount returns seats of one account with an empty
// allocation triple and is_active on, ordered by id for deterministic
// candidate order.
func (r *SeatRepo) FindFreeByAccount(ctx context.Context, accountID uint64) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + `
	           FROM seats
	           WHERE account_id = ? AND is_active = 1
	             AND order_line_id IS NULL AND user_id IS NULL AND allocated_at IS NULL
	           ORDER BY id`
	return r.querySeats(ctx, q, accountID)
}

// FindFreeByShape returns free seats across every active account of the
// given product shape.  Rows come back ordered by account creation time
// then seat id, which fixes the sibling-fallback search order without
// making it contractual.
func (r *SeatRepo) FindFreeByShape(ctx context.Context, shape model.ProductShape) ([]model.Seat, error) {
	const q = `SELECT s.id, s.account_id, s.label, s.credential_ref, s.is_active,
	                  s.order_line_id, s.user_id, s.allocated_at, s.created_at, s.updated_at
	           FROM seats s
	           JOIN accounts a ON a.id = s.account_id
	           WHERE a.account_type = ? AND a.duration_months = ? AND a.is_active = 1
	             AND s.is_active = 1
	             AND s.order_line_id IS NULL AND s.user_id IS NULL AND s.allocated_at IS NULL
	           ORDER BY a.created_at, a.id, s.id`
	return r.querySeats(ctx, q, shape.AccountType, shape.DurationMonths)
}

// Reserve atomically transitions a seat from free to allocated.  The
// UPDATE is predicated on the allocation triple still being empty and
// the seat being active, so two concurrent reservations of the same
// seat cannot both succeed: the loser sees zero affected rows and gets
// ErrSeatAllocated with no side effects.  The unique index on
// order_line_id additionally rejects a second seat for the same line.
func (r *SeatRepo) Reserve(ctx context.Context, seatID, orderLineID, userID uint64) (*model.Seat, error) {
	const q = `UPDATE seats
	           SET order_line_id = ?, user_id = ?, allocated_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND is_active = 1
	             AND order_line_id IS NULL AND user_id IS NULL AND allocated_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, orderLineID, userID, time.Now().UTC(), seatID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish a lost race from a missing/inactive seat so the
		// allocator can skip dead candidates instead of retrying them.
		seat, getErr := r.GetByID(ctx, seatID)
		if getErr != nil {
			return nil, getErr
		}
		if !seat.IsActive {
			return nil, ErrSeatInactive
		}
		return nil, ErrSeatAllocated
	}
	return r.GetByID(ctx, seatID)
}

// Release clears the allocation triple, returning the seat to the free
// pool.  The seat row is never deleted on release.  Releasing a seat
// that is already free is a no-op.
func (r *SeatRepo) Release(ctx context.Context, seatID uint64) (*model.Seat, error) {
	const q = `UPDATE seats
	           SET order_line_id = NULL, user_id = NULL, allocated_at = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, seatID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero affected rows both for a missing seat and
		// for an unchanged one; resolve via lookup.
		if _, getErr := r.GetByID(ctx, seatID); getErr != nil {
			return nil, getErr
		}
	}
	return r.GetByID(ctx, seatID)
}

// CountFree returns the authoritative number of free active seats for
// one account.  This is the value the stock service persists onto
// accounts.stock.
func (r *SeatRepo) CountFree(ctx context.Context, accountID uint64) (int, error) {
	const q = `SELECT COUNT(*)
	           FROM seats
	           WHERE account_id = ? AND is_active = 1
	             AND order_line_id IS NULL AND user_id IS NULL AND allocated_at IS NULL`
	var n int
	if err := r.db.QueryRowContext(ctx, q, accountID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateByID updates label, credential_ref and is_active.  Allocation
// state is deliberately untouchable through this path.
func (r *SeatRepo) UpdateByID(ctx context.Context, id uint64, label, credentialRef string, isActive bool) error {
	const q = `UPDATE seats
	           SET label = ?, credential_ref = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, label, credentialRef, isActive, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// DeleteByID removes an unallocated seat.  Deleting a seat that is
// currently assigned to an order line returns ErrConflict; release it
// first.
func (r *SeatRepo) DeleteByID(ctx context.Context, id uint64) error {
	const q = `DELETE FROM seats
	           WHERE id = ? AND order_line_id IS NULL AND user_id IS NULL AND allocated_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	return nil
}

func (r *SeatRepo) querySeats(ctx context.Context, q string, args ...interface{}) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
