package model

import "time"

// User roles. Admins manage inventory and orders; customers buy seats.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// User is a marketplace account holder.  Allocated seats reference the
// user via seats.user_id; the relation is an assignment back-reference,
// not ownership.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email (unique)
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role (ADMIN | CUSTOMER)
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
