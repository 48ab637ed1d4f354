package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/streamvault/market/internal/model"
)

// OrderRepo provides CRUD operations for orders and their lines.  An
// order groups the lines of a single checkout; each line references the
// account it was priced against and, after allocation, at most one
// seat.  All timestamp fields are stored in UTC.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning orders and their lines.
func (r *OrderRepo) DB() *sql.DB { return r.db }

// OrderLineInput describes one line of a checkout before insertion.
type OrderLineInput struct {
	AccountID      uint64
	AccountType    string
	DurationMonths uint32
	PriceCents     uint32
}

// CreateTx inserts an order plus its lines within the scope of an
// existing transaction.  It populates the generated order ID and
// returns the IDs of the created lines in input order.  The caller must
// commit or rollback the transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order, lines []OrderLineInput) ([]uint64, error) {
	const q = `INSERT INTO orders (user_id, status, total_cents) VALUES (?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, o.UserID, o.Status, o.TotalCents)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	o.ID = uint64(id)

	lineIDs := make([]uint64, 0, len(lines))
	const lq = `INSERT INTO order_lines (order_id, account_id, account_type, duration_months, price_cents)
	            VALUES (?, ?, ?, ?, ?)`
	for _, ln := range lines {
		res, err := tx.ExecContext(ctx, lq, o.ID, ln.AccountID, ln.AccountType, ln.DurationMonths, ln.PriceCents)
		if err != nil {
			return nil, err
		}
		lid, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		lineIDs = append(lineIDs, uint64(lid))
	}
	return lineIDs, nil
}

// GetByID retrieves an order by its id.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	const q = `SELECT id, user_id, status, total_cents, created_at, updated_at
	           FROM orders WHERE id = ?`
	var o model.Order
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// UpdateStatus transitions an order between lifecycle states.  Allowed
// transitions are enforced by the callers; the repository only rejects
// unknown orders.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
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

// LineWithStatus pairs an order line with its parent order's status and
// owner so the allocator can validate preconditions in one read.
type LineWithStatus struct {
	Line        model.OrderLine
	OrderStatus string
	OrderUserID uint64
}

const lineColumns = `l.id, l.order_id, l.account_id, l.account_type, l.duration_months,
	l.price_cents, l.seat_id, l.created_at, l.updated_at`

func scanLine(row interface{ Scan(...any) error }, withStatus bool) (*LineWithStatus, error) {
	var ls LineWithStatus
	var seatID sql.NullInt64
	dest := []any{
		&ls.Line.ID, &ls.Line.OrderID, &ls.Line.AccountID, &ls.Line.AccountType,
		&ls.Line.DurationMonths, &ls.Line.PriceCents, &seatID,
		&ls.Line.CreatedAt, &ls.Line.UpdatedAt,
	}
	if withStatus {
		dest = append(dest, &ls.OrderStatus, &ls.OrderUserID)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if seatID.Valid {
		v := uint64(seatID.Int64)
		ls.Line.SeatID = &v
	}
	return &ls, nil
}

// GetLineByID retrieves an order line together with its parent order's
// status and user.
func (r *OrderRepo) GetLineByID(ctx context.Context, lineID uint64) (*LineWithStatus, error) {
	const q = `SELECT ` + lineColumns + `, o.status, o.user_id
	           FROM order_lines l
	           JOIN orders o ON o.id = l.order_id
	           WHERE l.id = ?`
	ls, err := scanLine(r.db.QueryRowContext(ctx, q, lineID), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderLineNotFound
		}
		return nil, err
	}
	return ls, nil
}

// ListLinesByOrder returns all lines of one order ordered by id.
func (r *OrderRepo) ListLinesByOrder(ctx context.Context, orderID uint64) ([]model.OrderLine, error) {
	const q = `SELECT ` + lineColumns + `
	           FROM order_lines l
	           WHERE l.order_id = ?
	           ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.OrderLine
	for rows.Next() {
		ls, err := scanLine(rows, false)
		if err != nil {
			return nil, err
		}
		result = append(result, ls.Line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListPaidUnallocated returns lines of the given product type whose
// parent order is PAID or COMPLETED and that have no seat assigned.
// This is the worklist of the reconciliation sweep.  Ordered by line id
// so repeated sweeps walk the backlog in a stable order.
func (r *OrderRepo) ListPaidUnallocated(ctx context.Context, accountType string) ([]LineWithStatus, error) {
	const q = `SELECT ` + lineColumns + `, o.status, o.user_id
	           FROM order_lines l
	           JOIN orders o ON o.id = l.order_id
	           WHERE l.account_type = ? AND l.seat_id IS NULL
	             AND o.status IN ('PAID', 'COMPLETED')
	           ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, q, accountType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []LineWithStatus
	for rows.Next() {
		ls, err := scanLine(rows, true)
		if err != nil {
			return nil, err
		}
		result = append(result, *ls)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetLineSeat writes the seat reference onto an order line, optionally
// rebinding the line to the seat's owning account when the allocator
// fell back to a sibling.  The purchased type/duration/price columns
// are never touched; only the backing inventory record changes.
func (r *OrderRepo) SetLineSeat(ctx context.Context, lineID, seatID, accountID uint64) error {
	const q = `UPDATE order_lines
	           SET seat_id = ?, account_id = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, seatID, accountID, lineID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetLineByID(ctx, lineID); getErr != nil {
			return getErr
		}
	}
	return nil
}

// ClearLineSeat removes the seat reference from an order line.  Used on
// refund/cancellation together with SeatRepo.Release.
func (r *OrderRepo) ClearLineSeat(ctx context.Context, lineID uint64) error {
	const q = `UPDATE order_lines
	           SET seat_id = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, lineID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetLineByID(ctx, lineID); getErr != nil {
			return getErr
		}
	}
	return nil
}

// OrderDetail is an order plus its lines as returned to customers.
type OrderDetail struct {
	ID         uint64            `json:"id"`
	Status     string            `json:"status"`
	TotalCents uint32            `json:"total_cents"`
	Lines      []OrderLineDetail `json:"lines"`
}

// OrderLineDetail is one line of an order with its allocation state.
type OrderLineDetail struct {
	ID             uint64  `json:"id"`
	AccountType    string  `json:"account_type"`
	DurationMonths uint32  `json:"duration_months"`
	PriceCents     uint32  `json:"price_cents"`
	SeatID         *uint64 `json:"seat_id,omitempty"`
	SeatLabel      *string `json:"seat_label,omitempty"`
}

// ListByUser returns all orders of the given user with their lines and,
// where allocated, seat labels.  Orders come back newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]OrderDetail, error) {
	const q = `SELECT id, status, total_cents
	           FROM orders
	           WHERE user_id = ?
	           ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]OrderDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d OrderDetail
		if err := rows.Scan(&d.ID, &d.Status, &d.TotalCents); err != nil {
			return nil, err
		}
		d.Lines = []OrderLineDetail{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	// Populate lines for all orders in a single query.
	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	lineQuery := `SELECT l.order_id, l.id, l.account_type, l.duration_months, l.price_cents,
	                     l.seat_id, s.label
	              FROM order_lines l
	              LEFT JOIN seats s ON s.id = l.seat_id
	              WHERE l.order_id IN (` + strings.Join(placeholders, ",") + `)
	              ORDER BY l.order_id, l.id`
	lrows, err := r.db.QueryContext(ctx, lineQuery, ids...)
	if err != nil {
		return nil, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var orderID uint64
		var ld OrderLineDetail
		var seatID sql.NullInt64
		var seatLabel sql.NullString
		if err := lrows.Scan(&orderID, &ld.ID, &ld.AccountType, &ld.DurationMonths, &ld.PriceCents, &seatID, &seatLabel); err != nil {
			return nil, err
		}
		if seatID.Valid {
			v := uint64(seatID.Int64)
			ld.SeatID = &v
		}
		if seatLabel.Valid {
			lbl := seatLabel.String
			ld.SeatLabel = &lbl
		}
		idx, ok := index[orderID]
		if !ok {
			continue
		}
		details[idx].Lines = append(details[idx].Lines, ld)
	}
	if err := lrows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
