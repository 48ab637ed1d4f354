package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// SeatAllocator is satisfied by *Allocator; the indirection lets the
// reconciler be tested against a scripted allocator.
type SeatAllocator interface {
	Allocate(ctx context.Context, orderLineID, userID uint64) (*AllocationResult, error)
}

// Sweep outcomes per order line.
const (
	SweepOutcomeAllocated        = "ALLOCATED"
	SweepOutcomeAlreadyAllocated = "ALREADY_ALLOCATED"
	SweepOutcomeOutOfStock       = "OUT_OF_STOCK"
	SweepOutcomeFailed           = "FAILED"
)

// SweepItem is the outcome for one order line visited by a sweep.
type SweepItem struct {
	OrderLineID uint64 `json:"order_line_id"`
	SeatID      uint64 `json:"seat_id,omitempty"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

// SweepReport aggregates a full reconciliation pass.
type SweepReport struct {
	AccountType string      `json:"account_type"`
	Scanned     int         `json:"scanned"`
	Allocated   int         `json:"allocated"`
	OutOfStock  int         `json:"out_of_stock"`
	Failed      int         `json:"failed"`
	Items       []SweepItem `json:"items"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}

// Reconciler heals gaps between paid orders and seat assignments: any
// paid/completed order line without a seat gets one more allocation
// attempt.  Because Allocate is idempotent the sweep is safe to re-run
// at any time, including concurrently with live event-driven
// allocations.
type Reconciler struct {
	lines OrderLineStore
	alloc SeatAllocator
	stock *StockService // optional trailing refresh, may be nil
}

// NewReconciler constructs a Reconciler.
func NewReconciler(lines OrderLineStore, alloc SeatAllocator, stock *StockService) *Reconciler {
	if lines == nil || alloc == nil {
		panic("nil dependency passed to NewReconciler")
	}
	return &Reconciler{lines: lines, alloc: alloc, stock: stock}
}

// ReconcileAll sweeps all unallocated paid lines of one product type,
// invoking the allocator for each.  Individual failures are recorded in
// the report and never abort the sweep.  The pass ends with a
// best-effort stock refresh of every active account of the type.
func (r *Reconciler) ReconcileAll(ctx context.Context, accountType string) (*SweepReport, error) {
	report := &SweepReport{
		AccountType: accountType,
		Items:       []SweepItem{},
		StartedAt:   time.Now().UTC(),
	}
	lines, err := r.lines.ListPaidUnallocated(ctx, accountType)
	if err != nil {
		return nil, fmt.Errorf("list unallocated %s lines: %w", accountType, err)
	}
	report.Scanned = len(lines)

	for _, ls := range lines {
		item := SweepItem{OrderLineID: ls.Line.ID}
		res, err := r.alloc.Allocate(ctx, ls.Line.ID, ls.OrderUserID)
		switch {
		case err == nil && res.AlreadyAllocated:
			// Another allocation landed between the scan and this call.
			item.Outcome = SweepOutcomeAlreadyAllocated
			item.SeatID = res.SeatID
			report.Allocated++
		case err == nil:
			item.Outcome = SweepOutcomeAllocated
			item.SeatID = res.SeatID
			report.Allocated++
		case errors.Is(err, ErrNoSeatsAvailable):
			item.Outcome = SweepOutcomeOutOfStock
			item.Error = err.Error()
			report.OutOfStock++
		default:
			item.Outcome = SweepOutcomeFailed
			item.Error = err.Error()
			report.Failed++
		}
		report.Items = append(report.Items, item)
	}

	if r.stock != nil {
		if err := r.stock.RefreshAll(ctx, accountType); err != nil {
			log.Printf("reconciler: trailing stock refresh failed: %v", err)
		}
	}
	report.FinishedAt = time.Now().UTC()
	return report, nil
}
