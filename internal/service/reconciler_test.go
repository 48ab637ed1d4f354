package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/market/internal/model"
)

// scriptedAllocator returns canned outcomes per order line.
type scriptedAllocator struct {
	outcomes map[uint64]func() (*AllocationResult, error)
	calls    []uint64
}

func (s *scriptedAllocator) Allocate(_ context.Context, orderLineID, _ uint64) (*AllocationResult, error) {
	s.calls = append(s.calls, orderLineID)
	if fn, ok := s.outcomes[orderLineID]; ok {
		return fn()
	}
	return nil, errors.New("unexpected line")
}

func TestReconcileAllAggregatesOutcomes(t *testing.T) {
	f := newFakeStore()
	f.addLine(101, 1, 1, 7, model.AccountTypeNetflix, 1, model.OrderStatusPaid)
	f.addLine(102, 2, 1, 8, model.AccountTypeNetflix, 1, model.OrderStatusPaid)
	f.addLine(103, 3, 1, 9, model.AccountTypeNetflix, 1, model.OrderStatusCompleted)
	f.addLine(104, 4, 1, 10, model.AccountTypeNetflix, 1, model.OrderStatusPaid)
	// Wrong type and already-cancelled lines stay out of the worklist.
	f.addLine(201, 5, 2, 11, model.AccountTypeSpotify, 1, model.OrderStatusPaid)
	f.addLine(202, 6, 1, 12, model.AccountTypeNetflix, 1, model.OrderStatusCancelled)

	alloc := &scriptedAllocator{outcomes: map[uint64]func() (*AllocationResult, error){
		101: func() (*AllocationResult, error) {
			return &AllocationResult{OrderLineID: 101, SeatID: 11}, nil
		},
		102: func() (*AllocationResult, error) { return nil, ErrNoSeatsAvailable },
		103: func() (*AllocationResult, error) {
			return &AllocationResult{OrderLineID: 103, SeatID: 13, AlreadyAllocated: true}, nil
		},
		104: func() (*AllocationResult, error) { return nil, errors.New("db down") },
	}}

	report, err := NewReconciler(f, alloc, nil).ReconcileAll(context.Background(), model.AccountTypeNetflix)
	require.NoError(t, err)

	assert.Equal(t, model.AccountTypeNetflix, report.AccountType)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Allocated) // fresh + already-allocated
	assert.Equal(t, 1, report.OutOfStock)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Items, 4)
	assert.Equal(t, []uint64{101, 102, 103, 104}, alloc.calls, "sweep walks lines in id order")

	byLine := map[uint64]SweepItem{}
	for _, item := range report.Items {
		byLine[item.OrderLineID] = item
	}
	assert.Equal(t, SweepOutcomeAllocated, byLine[101].Outcome)
	assert.Equal(t, SweepOutcomeOutOfStock, byLine[102].Outcome)
	assert.Equal(t, SweepOutcomeAlreadyAllocated, byLine[103].Outcome)
	assert.Equal(t, SweepOutcomeFailed, byLine[104].Outcome)
	assert.NotEmpty(t, byLine[104].Error)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestReconcileAllEmptyBacklog(t *testing.T) {
	f := newFakeStore()
	alloc := &scriptedAllocator{outcomes: map[uint64]func() (*AllocationResult, error){}}

	report, err := NewReconciler(f, alloc, nil).ReconcileAll(context.Background(), model.AccountTypeSpotify)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Empty(t, report.Items)
	assert.Empty(t, alloc.calls)
}
