package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/market/internal/service"
)

type stubAllocator struct {
	results map[uint64]func() (*service.AllocationResult, error)
	calls   []uint64
}

func (s *stubAllocator) Allocate(_ context.Context, orderLineID, _ uint64) (*service.AllocationResult, error) {
	s.calls = append(s.calls, orderLineID)
	return s.results[orderLineID]()
}

func marshalEvent(t *testing.T, ev OrderPaidEvent) []byte {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func TestHandleMessageAllocatesEveryLine(t *testing.T) {
	alloc := &stubAllocator{results: map[uint64]func() (*service.AllocationResult, error){
		101: func() (*service.AllocationResult, error) {
			return &service.AllocationResult{OrderLineID: 101, SeatID: 11, UserID: 7}, nil
		},
		102: func() (*service.AllocationResult, error) {
			return &service.AllocationResult{OrderLineID: 102, SeatID: 12, UserID: 7}, nil
		},
	}}
	var published []SeatAllocatedEvent
	publish := func(_ context.Context, ev SeatAllocatedEvent) error {
		published = append(published, ev)
		return nil
	}

	body := marshalEvent(t, OrderPaidEvent{
		OrderID: 1, UserID: 7,
		Lines: []OrderPaidLine{
			{OrderLineID: 101, AccountID: 1, AccountType: "NETFLIX", DurationMonths: 3},
			{OrderLineID: 102, AccountID: 1, AccountType: "NETFLIX", DurationMonths: 3},
		},
	})
	require.NoError(t, handleMessage(body, alloc, publish))
	assert.Equal(t, []uint64{101, 102}, alloc.calls)
	require.Len(t, published, 2)
	assert.Equal(t, uint64(11), published[0].SeatID)
	assert.Equal(t, uint64(1), published[0].OrderID)
	assert.Equal(t, "NETFLIX", published[0].AccountType)
}

func TestHandleMessageSkipsRepublishOnRedelivery(t *testing.T) {
	alloc := &stubAllocator{results: map[uint64]func() (*service.AllocationResult, error){
		101: func() (*service.AllocationResult, error) {
			return &service.AllocationResult{OrderLineID: 101, SeatID: 11, AlreadyAllocated: true}, nil
		},
	}}
	var published []SeatAllocatedEvent
	publish := func(_ context.Context, ev SeatAllocatedEvent) error {
		published = append(published, ev)
		return nil
	}

	body := marshalEvent(t, OrderPaidEvent{
		OrderID: 1, UserID: 7,
		Lines:   []OrderPaidLine{{OrderLineID: 101}},
	})
	require.NoError(t, handleMessage(body, alloc, publish))
	assert.Empty(t, published, "redelivered lines must not notify twice")
}

func TestHandleMessageOutOfStockIsTerminal(t *testing.T) {
	alloc := &stubAllocator{results: map[uint64]func() (*service.AllocationResult, error){
		101: func() (*service.AllocationResult, error) { return nil, service.ErrNoSeatsAvailable },
		102: func() (*service.AllocationResult, error) {
			return &service.AllocationResult{OrderLineID: 102, SeatID: 12}, nil
		},
	}}
	var published []SeatAllocatedEvent
	publish := func(_ context.Context, ev SeatAllocatedEvent) error {
		published = append(published, ev)
		return nil
	}

	body := marshalEvent(t, OrderPaidEvent{
		OrderID: 1, UserID: 7,
		Lines:   []OrderPaidLine{{OrderLineID: 101}, {OrderLineID: 102}},
	})
	// Out of stock is not a message failure; remaining lines still run.
	require.NoError(t, handleMessage(body, alloc, publish))
	assert.Equal(t, []uint64{101, 102}, alloc.calls)
	require.Len(t, published, 1)
	assert.Equal(t, uint64(102), published[0].OrderLineID)
}

func TestHandleMessageReportsTransientFailure(t *testing.T) {
	boom := errors.New("db down")
	alloc := &stubAllocator{results: map[uint64]func() (*service.AllocationResult, error){
		101: func() (*service.AllocationResult, error) { return nil, boom },
	}}
	body := marshalEvent(t, OrderPaidEvent{
		OrderID: 1, UserID: 7,
		Lines:   []OrderPaidLine{{OrderLineID: 101}},
	})
	assert.ErrorIs(t, handleMessage(body, alloc, nil), boom)
}

func TestHandleMessageRejectsMalformedBody(t *testing.T) {
	assert.Error(t, handleMessage([]byte("{not json"), &stubAllocator{}, nil))
}
