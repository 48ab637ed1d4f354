package model

import "time"

// Order statuses.  Only PAID and COMPLETED orders are eligible inputs
// to the allocator.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// OrderPayable reports whether an order in the given status may have
// seats allocated to its lines.
func OrderPayable(status string) bool {
	return status == OrderStatusPaid || status == OrderStatusCompleted
}

// Order aggregates the lines of a single checkout.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – user who placed the order.
//  Status     – PENDING, PAID, COMPLETED or CANCELLED.
//  TotalCents – total price of all lines in cents.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Order struct {
	ID         uint64    // orders.id
	UserID     uint64    // orders.user_id
	Status     string    // orders.status
	TotalCents uint32    // orders.total_cents
	CreatedAt  time.Time // orders.created_at
	UpdatedAt  time.Time // orders.updated_at
}

// OrderLine is one purchased seat-to-be.  It is created at checkout
// referencing the account it was priced against and gains a seat
// reference only after the parent order is paid and allocation
// succeeds.  AccountType and DurationMonths are denormalized from the
// account at purchase time; they define the contract that sibling
// fallback must preserve when the line is rebound to another account.
//
// Fields:
//  ID             – primary key identifier.
//  OrderID        – parent order.
//  AccountID      – account currently backing the line.
//  AccountType    – product type purchased.
//  DurationMonths – duration bucket purchased.
//  PriceCents     – price paid for this line.
//  SeatID         – allocated seat, nil until allocation succeeds.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type OrderLine struct {
	ID             uint64    // order_lines.id
	OrderID        uint64    // order_lines.order_id
	AccountID      uint64    // order_lines.account_id
	AccountType    string    // order_lines.account_type
	DurationMonths uint32    // order_lines.duration_months
	PriceCents     uint32    // order_lines.price_cents
	SeatID         *uint64   // order_lines.seat_id (nullable)
	CreatedAt      time.Time // order_lines.created_at
	UpdatedAt      time.Time // order_lines.updated_at
}
