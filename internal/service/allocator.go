// Package service implements the allocation core: handing out exactly
// one free seat per paid order line, keeping the derived stock counters
// consistent, and sweeping for missed allocations.  Services depend on
// narrow store interfaces so they can be exercised against in-memory
// fakes in tests; the MySQL repositories satisfy them in production.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/streamvault/market/internal/model"
	"github.com/streamvault/market/internal/repository"
)

// SeatStore is the slice of the seat repository the allocator needs.
// Reserve must be a single atomic conditional write: it succeeds only
// if the seat's allocation triple was still empty at write time and
// returns repository.ErrSeatAllocated otherwise, with no side effects.
type SeatStore interface {
	FindFreeByAccount(ctx context.Context, accountID uint64) ([]model.Seat, error)
	FindFreeByShape(ctx context.Context, shape model.ProductShape) ([]model.Seat, error)
	Reserve(ctx context.Context, seatID, orderLineID, userID uint64) (*model.Seat, error)
	Release(ctx context.Context, seatID uint64) (*model.Seat, error)
	GetByID(ctx context.Context, id uint64) (*model.Seat, error)
	GetByOrderLine(ctx context.Context, orderLineID uint64) (*model.Seat, error)
	CountFree(ctx context.Context, accountID uint64) (int, error)
}

// AccountStore is the slice of the account repository used by the
// allocation and stock services.
type AccountStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Account, error)
	ListActiveByType(ctx context.Context, accountType string) ([]model.Account, error)
	UpdateStock(ctx context.Context, id uint64, stock uint32) error
}

// OrderLineStore is the slice of the order repository used by the
// allocator and the reconciler.
type OrderLineStore interface {
	GetLineByID(ctx context.Context, lineID uint64) (*repository.LineWithStatus, error)
	SetLineSeat(ctx context.Context, lineID, seatID, accountID uint64) error
	ClearLineSeat(ctx context.Context, lineID uint64) error
	ListPaidUnallocated(ctx context.Context, accountType string) ([]repository.LineWithStatus, error)
}

// ErrNoSeatsAvailable means no free seat could be reserved on the
// line's account or any active sibling of the same product shape.  The
// call leaves no partial state behind; the order must not be treated as
// fulfilled.
var ErrNoSeatsAvailable = errors.New("no seats available")

// ErrOrderNotPayable means the line's parent order is not PAID or
// COMPLETED.  No seat search is attempted.
var ErrOrderNotPayable = errors.New("order not in a payable state")

// ErrProductMismatch means the line's account no longer matches the
// purchased product shape.  This indicates inventory was edited out
// from under an open order and needs admin attention.
var ErrProductMismatch = errors.New("order line does not match its account's product shape")

// ErrUserMismatch means the caller-supplied user is not the buyer of
// the order the line belongs to.
var ErrUserMismatch = errors.New("user does not own the order line")

// AllocationResult reports the outcome of a successful allocation.
// CredentialRef is the handle the notification side uses to deliver
// account details to the buyer.
type AllocationResult struct {
	OrderLineID      uint64
	UserID           uint64
	AccountID        uint64 // account owning the seat, after any rebinding
	SeatID           uint64
	SeatLabel        string
	CredentialRef    string
	Rebound          bool // seat came from a sibling account
	AlreadyAllocated bool // idempotent retry; no new reservation was made
}

// Allocator implements the allocation protocol over the seat, account
// and order stores.  All exclusivity is enforced by SeatStore.Reserve;
// the allocator only sequences candidates and retries lost races.
type Allocator struct {
	seats    SeatStore
	accounts AccountStore
	lines    OrderLineStore
	stock    *StockService // best-effort refresh, may be nil in tests
}

// NewAllocator constructs an Allocator. The stock service is optional;
// when nil, no refresh is attempted after reservations.
func NewAllocator(seats SeatStore, accounts AccountStore, lines OrderLineStore, stock *StockService) *Allocator {
	if seats == nil || accounts == nil || lines == nil {
		panic("nil store passed to NewAllocator")
	}
	return &Allocator{seats: seats, accounts: accounts, lines: lines, stock: stock}
}

// Allocate reserves one free seat for a paid order line.  The call is
// idempotent: a line that already holds a seat returns that same seat
// with AlreadyAllocated set and performs no writes, so at-least-once
// event delivery is safe.  When the line's own account has no free
// seat, active sibling accounts of the same product shape are searched
// and the line is rebound to the account that actually supplied the
// seat.  On ErrNoSeatsAvailable no state has been mutated.
func (a *Allocator) Allocate(ctx context.Context, orderLineID, userID uint64) (*AllocationResult, error) {
	ls, err := a.lines.GetLineByID(ctx, orderLineID)
	if err != nil {
		return nil, err
	}
	line := ls.Line

	// Idempotent retry: the line already references a seat.
	if line.SeatID != nil {
		seat, err := a.seats.GetByID(ctx, *line.SeatID)
		if err != nil {
			return nil, err
		}
		return a.result(&line, seat, false, true), nil
	}

	// Heal path: a seat already points at this line but the line's
	// reference was never written (crash between the two updates).
	// Adopt the reservation instead of searching for another seat; the
	// unique index on seats.order_line_id guarantees there is at most
	// one such seat.
	if seat, err := a.seats.GetByOrderLine(ctx, orderLineID); err == nil {
		if err := a.lines.SetLineSeat(ctx, line.ID, seat.ID, seat.AccountID); err != nil {
			return nil, err
		}
		a.refreshStock(ctx, seat.AccountID)
		return a.result(&line, seat, seat.AccountID != line.AccountID, true), nil
	} else if !errors.Is(err, repository.ErrSeatNotFound) {
		return nil, err
	}

	if !model.OrderPayable(ls.OrderStatus) {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotPayable, line.OrderID, ls.OrderStatus)
	}
	if userID != ls.OrderUserID {
		return nil, fmt.Errorf("%w: line %d belongs to user %d", ErrUserMismatch, line.ID, ls.OrderUserID)
	}
	account, err := a.accounts.GetByID(ctx, line.AccountID)
	if err != nil {
		return nil, err
	}
	if account.AccountType != line.AccountType || account.DurationMonths != line.DurationMonths {
		return nil, fmt.Errorf("%w: line %d bought %s/%dm, account %d is %s/%dm",
			ErrProductMismatch, line.ID, line.AccountType, line.DurationMonths,
			account.ID, account.AccountType, account.DurationMonths)
	}

	// Try the purchased account first.
	candidates, err := a.seats.FindFreeByAccount(ctx, line.AccountID)
	if err != nil {
		return nil, err
	}
	seat, err := a.reserveFirst(ctx, candidates, line.ID, userID)
	if err != nil {
		return nil, err
	}

	// Sibling fallback: same product shape, any active account.  The
	// original account's seats are skipped; they were just exhausted
	// and a retry there is covered by the race-retry loop anyway.
	if seat == nil {
		shape := model.ProductShape{AccountType: line.AccountType, DurationMonths: line.DurationMonths}
		pool, err := a.seats.FindFreeByShape(ctx, shape)
		if err != nil {
			return nil, err
		}
		siblings := make([]model.Seat, 0, len(pool))
		for _, s := range pool {
			if s.AccountID != line.AccountID {
				siblings = append(siblings, s)
			}
		}
		seat, err = a.reserveFirst(ctx, siblings, line.ID, userID)
		if err != nil {
			return nil, err
		}
	}
	if seat == nil {
		return nil, ErrNoSeatsAvailable
	}

	// Write the line's seat reference, rebinding the account when the
	// seat came from a sibling.  If this write fails the reservation
	// stands and the next Allocate call adopts it via the heal path.
	if err := a.lines.SetLineSeat(ctx, line.ID, seat.ID, seat.AccountID); err != nil {
		return nil, fmt.Errorf("seat %d reserved but line %d not updated: %w", seat.ID, line.ID, err)
	}

	a.refreshStock(ctx, line.AccountID)
	if seat.AccountID != line.AccountID {
		a.refreshStock(ctx, seat.AccountID)
	}
	return a.result(&line, seat, seat.AccountID != line.AccountID, false), nil
}

// reserveFirst walks the candidate list attempting the conditional
// reserve on each.  Lost races, freshly deactivated seats and seats
// deleted mid-flight are skipped; any other error aborts.  A nil seat
// with nil error means the candidates are exhausted.
func (a *Allocator) reserveFirst(ctx context.Context, candidates []model.Seat, lineID, userID uint64) (*model.Seat, error) {
	for _, c := range candidates {
		seat, err := a.seats.Reserve(ctx, c.ID, lineID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrSeatAllocated) ||
				errors.Is(err, repository.ErrSeatInactive) ||
				errors.Is(err, repository.ErrSeatNotFound) {
				continue
			}
			return nil, err
		}
		return seat, nil
	}
	return nil, nil
}

// refreshStock recomputes the account's stock counter.  Stock is a
// cache; a failed refresh is logged and never fails the allocation.
func (a *Allocator) refreshStock(ctx context.Context, accountID uint64) {
	if a.stock == nil {
		return
	}
	if err := a.stock.Refresh(ctx, accountID); err != nil {
		log.Printf("allocator: stock refresh for account %d failed: %v", accountID, err)
	}
}

func (a *Allocator) result(line *model.OrderLine, seat *model.Seat, rebound, already bool) *AllocationResult {
	userID := uint64(0)
	if seat.UserID != nil {
		userID = *seat.UserID
	}
	return &AllocationResult{
		OrderLineID:      line.ID,
		UserID:           userID,
		AccountID:        seat.AccountID,
		SeatID:           seat.ID,
		SeatLabel:        seat.Label,
		CredentialRef:    seat.CredentialRef,
		Rebound:          rebound,
		AlreadyAllocated: already,
	}
}
