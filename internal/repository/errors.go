// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between failure scenarios. For
// example, ErrSeatAllocated signals a lost race on the conditional
// reserve and is retried locally by the allocator, while ErrConflict
// signals that an operation cannot proceed due to dependent records
// (e.g. deleting a seat that is currently allocated).
package repository

import "errors"

// ErrAccountNotFound is returned when an account lookup yields no rows.
var ErrAccountNotFound = errors.New("account not found")

// ErrSeatNotFound is returned when a seat lookup yields no rows.
var ErrSeatNotFound = errors.New("seat not found")

// ErrOrderNotFound is returned when an order lookup yields no rows.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderLineNotFound is returned when an order line lookup yields no rows.
var ErrOrderLineNotFound = errors.New("order line not found")

// ErrSeatAllocated is returned by the conditional reserve when the seat
// was no longer free at write time. Callers retry the next candidate;
// this error must never surface outside the allocation loop.
var ErrSeatAllocated = errors.New("seat already allocated")

// ErrSeatInactive is returned when an operation targets a seat whose
// is_active flag is off.
var ErrSeatInactive = errors.New("seat inactive")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a seat that is still
// allocated to an order line. Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
