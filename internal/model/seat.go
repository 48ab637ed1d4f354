package model

import "time"

// Seat is an individually allocatable unit of access inside a shared
// streaming account: a Netflix profile or a Spotify family slot.  The
// allocation triple (OrderLineID, UserID, AllocatedAt) is either fully
// empty or fully populated; a seat is free iff the triple is empty and
// the seat is active.
//
// Fields:
//  ID            – primary key identifier.
//  AccountID     – account to which this seat belongs.
//  Label         – display name of the profile/slot.
//  CredentialRef – reference handed to the notification side on allocation.
//  IsActive      – soft availability flag (not allocation state).
//  OrderLineID   – order line holding this seat, nil when free.
//  UserID        – user holding this seat, nil when free.
//  AllocatedAt   – when the seat was reserved, nil when free.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Seat struct {
	ID            uint64     // seats.id
	AccountID     uint64     // seats.account_id
	Label         string     // seats.label
	CredentialRef string     // seats.credential_ref
	IsActive      bool       // seats.is_active
	OrderLineID   *uint64    // seats.order_line_id (nullable, unique)
	UserID        *uint64    // seats.user_id (nullable)
	AllocatedAt   *time.Time // seats.allocated_at (nullable)
	CreatedAt     time.Time  // seats.created_at
	UpdatedAt     time.Time  // seats.updated_at
}

// Free reports whether the seat can be handed out: active with an
// empty allocation triple.
func (s *Seat) Free() bool {
	return s.IsActive && s.OrderLineID == nil && s.UserID == nil && s.AllocatedAt == nil
}
