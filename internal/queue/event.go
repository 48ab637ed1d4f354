// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns paid orders into seat allocations.
package queue

// OrderPaidLine carries the per-line details of a paid order.
type OrderPaidLine struct {
	OrderLineID    uint64 `json:"order_line_id"`
	AccountID      uint64 `json:"account_id"`
	AccountType    string `json:"account_type"`
	DurationMonths uint32 `json:"duration_months"`
}

// OrderPaidEvent is published when an order transitions to PAID.  The
// consumer allocates one seat per line; delivery is at-least-once and
// allocation is idempotent per line, so redeliveries are harmless.
type OrderPaidEvent struct {
	EventID    string          `json:"event_id"`
	OrderID    uint64          `json:"order_id"`
	UserID     uint64          `json:"user_id"`
	Lines      []OrderPaidLine `json:"lines"`
	TotalCents uint32          `json:"total_cents"`
	PaidAt     string          `json:"paid_at"`
}

// SeatAllocatedEvent is published after a seat is successfully reserved
// for an order line.  It contains enough information for the
// notification side to email the buyer their access details without
// querying the primary database.
type SeatAllocatedEvent struct {
	EventID        string `json:"event_id"`
	OrderLineID    uint64 `json:"order_line_id"`
	OrderID        uint64 `json:"order_id"`
	UserID         uint64 `json:"user_id"`
	AccountID      uint64 `json:"account_id"`
	AccountType    string `json:"account_type"`
	DurationMonths uint32 `json:"duration_months"`
	SeatID         uint64 `json:"seat_id"`
	SeatLabel      string `json:"seat_label"`
	CredentialRef  string `json:"credential_ref"`
	Rebound        bool   `json:"rebound"`
	AllocatedAt    string `json:"allocated_at"`
}
