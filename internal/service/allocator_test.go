package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/market/internal/model"
	"github.com/streamvault/market/internal/repository"
)

// fakeStore is an in-memory implementation of SeatStore, AccountStore
// and OrderLineStore.  Reserve is a compare-and-set under one mutex, so
// it has the same winner-takes-all behavior as the SQL conditional
// update.
type fakeStore struct {
	mu       sync.Mutex
	seats    map[uint64]*model.Seat
	accounts map[uint64]*model.Account
	lines    map[uint64]*repository.LineWithStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		seats:    map[uint64]*model.Seat{},
		accounts: map[uint64]*model.Account{},
		lines:    map[uint64]*repository.LineWithStatus{},
	}
}

func (f *fakeStore) addAccount(id uint64, accountType string, months uint32, active bool) {
	f.accounts[id] = &model.Account{
		ID:             id,
		AccountType:    accountType,
		DurationMonths: months,
		IsActive:       active,
		// Creation order follows IDs so sibling fallback order is fixed.
		CreatedAt: time.Unix(int64(1700000000+id), 0).UTC(),
	}
}

func (f *fakeStore) addSeat(id, accountID uint64, active bool) {
	f.seats[id] = &model.Seat{ID: id, AccountID: accountID, Label: "seat", IsActive: active}
}

func (f *fakeStore) addLine(id, orderID, accountID, userID uint64, accountType string, months uint32, orderStatus string) {
	f.lines[id] = &repository.LineWithStatus{
		Line: model.OrderLine{
			ID: id, OrderID: orderID, AccountID: accountID,
			AccountType: accountType, DurationMonths: months,
		},
		OrderStatus: orderStatus,
		OrderUserID: userID,
	}
}

func copySeat(s *model.Seat) *model.Seat {
	c := *s
	return &c
}

// --- SeatStore ---

func (f *fakeStore) FindFreeByAccount(_ context.Context, accountID uint64) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, s := range f.seats {
		if s.AccountID == accountID && s.Free() {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) FindFreeByShape(_ context.Context, shape model.ProductShape) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, s := range f.seats {
		a, ok := f.accounts[s.AccountID]
		if !ok || !a.IsActive || a.AccountType != shape.AccountType || a.DurationMonths != shape.DurationMonths {
			continue
		}
		if s.Free() {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := f.accounts[out[i].AccountID], f.accounts[out[j].AccountID]
		if !ai.CreatedAt.Equal(aj.CreatedAt) {
			return ai.CreatedAt.Before(aj.CreatedAt)
		}
		if ai.ID != aj.ID {
			return ai.ID < aj.ID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) Reserve(_ context.Context, seatID, orderLineID, userID uint64) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[seatID]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	if !s.IsActive {
		return nil, repository.ErrSeatInactive
	}
	if s.OrderLineID != nil || s.UserID != nil || s.AllocatedAt != nil {
		return nil, repository.ErrSeatAllocated
	}
	now := time.Now().UTC()
	s.OrderLineID, s.UserID, s.AllocatedAt = &orderLineID, &userID, &now
	return copySeat(s), nil
}

func (f *fakeStore) Release(_ context.Context, seatID uint64) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[seatID]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	s.OrderLineID, s.UserID, s.AllocatedAt = nil, nil, nil
	return copySeat(s), nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[id]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	return copySeat(s), nil
}

func (f *fakeStore) GetByOrderLine(_ context.Context, orderLineID uint64) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.seats {
		if s.OrderLineID != nil && *s.OrderLineID == orderLineID {
			return copySeat(s), nil
		}
	}
	return nil, repository.ErrSeatNotFound
}

func (f *fakeStore) CountFree(_ context.Context, accountID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.seats {
		if s.AccountID == accountID && s.Free() {
			n++
		}
	}
	return n, nil
}

// --- AccountStore ---

func (f *fakeStore) GetByAccountID(ctx context.Context, id uint64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeStore) ListActiveByType(_ context.Context, accountType string) ([]model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Account
	for _, a := range f.accounts {
		if a.IsActive && a.AccountType == accountType {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateStock(_ context.Context, id uint64, stock uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Stock = stock
	return nil
}

// --- OrderLineStore ---

func (f *fakeStore) GetLineByID(_ context.Context, lineID uint64) (*repository.LineWithStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ls, ok := f.lines[lineID]
	if !ok {
		return nil, repository.ErrOrderLineNotFound
	}
	c := *ls
	if ls.Line.SeatID != nil {
		v := *ls.Line.SeatID
		c.Line.SeatID = &v
	}
	return &c, nil
}

func (f *fakeStore) SetLineSeat(_ context.Context, lineID, seatID, accountID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ls, ok := f.lines[lineID]
	if !ok {
		return repository.ErrOrderLineNotFound
	}
	ls.Line.SeatID = &seatID
	ls.Line.AccountID = accountID
	return nil
}

func (f *fakeStore) ClearLineSeat(_ context.Context, lineID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ls, ok := f.lines[lineID]
	if !ok {
		return repository.ErrOrderLineNotFound
	}
	ls.Line.SeatID = nil
	return nil
}

func (f *fakeStore) ListPaidUnallocated(_ context.Context, accountType string) ([]repository.LineWithStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.LineWithStatus
	for _, ls := range f.lines {
		if ls.Line.AccountType == accountType && ls.Line.SeatID == nil && model.OrderPayable(ls.OrderStatus) {
			out = append(out, *ls)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line.ID < out[j].Line.ID })
	return out, nil
}

// accountStoreAdapter renames GetByAccountID to the interface's GetByID
// without colliding with the seat GetByID on the same fake.
type accountStoreAdapter struct{ *fakeStore }

func (a accountStoreAdapter) GetByID(ctx context.Context, id uint64) (*model.Account, error) {
	return a.GetByAccountID(ctx, id)
}

func newTestAllocator(f *fakeStore) *Allocator {
	return NewAllocator(f, accountStoreAdapter{f}, f, nil)
}

func TestAllocateAssignsFreeSeat(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 3, true)
	f.addSeat(10, 1, true)
	f.addSeat(11, 1, true)
	f.addLine(100, 1000, 1, 7, model.AccountTypeNetflix, 3, model.OrderStatusPaid)

	res, err := newTestAllocator(f).Allocate(context.Background(), 100, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.SeatID) // lowest seat id first
	assert.Equal(t, uint64(1), res.AccountID)
	assert.False(t, res.Rebound)
	assert.False(t, res.AlreadyAllocated)

	seat := f.seats[10]
	require.NotNil(t, seat.OrderLineID)
	assert.Equal(t, uint64(100), *seat.OrderLineID)
	require.NotNil(t, seat.UserID)
	assert.Equal(t, uint64(7), *seat.UserID)
	assert.NotNil(t, seat.AllocatedAt)
	require.NotNil(t, f.lines[100].Line.SeatID)
	assert.Equal(t, uint64(10), *f.lines[100].Line.SeatID)
}

func TestAllocateIsIdempotent(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeSpotify, 1, true)
	f.addSeat(10, 1, true)
	f.addSeat(11, 1, true)
	f.addLine(100, 1000, 1, 7, model.AccountTypeSpotify, 1, model.OrderStatusPaid)
	alloc := newTestAllocator(f)

	first, err := alloc.Allocate(context.Background(), 100, 7)
	require.NoError(t, err)

	second, err := alloc.Allocate(context.Background(), 100, 7)
	require.NoError(t, err)
	assert.True(t, second.AlreadyAllocated)
	assert.Equal(t, first.SeatID, second.SeatID)

	free, _ := f.CountFree(context.Background(), 1)
	assert.Equal(t, 1, free, "retry must not consume a second seat")
}

func TestAllocateAdoptsOrphanReservation(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 6, true)
	f.addSeat(10, 1, true)
	f.addLine(100, 1000, 1, 7, model.AccountTypeNetflix, 6, model.OrderStatusPaid)

	// Simulate a crash after the seat write but before the line write.
	_, err := f.Reserve(context.Background(), 10, 100, 7)
	require.NoError(t, err)
	require.Nil(t, f.lines[100].Line.SeatID)

	res, err := newTestAllocator(f).Allocate(context.Background(), 100, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.SeatID)
	assert.True(t, res.AlreadyAllocated)
	require.NotNil(t, f.lines[100].Line.SeatID)
	assert.Equal(t, uint64(10), *f.lines[100].Line.SeatID)
}

func TestAllocateRejectsUnpaidOrder(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	f.addSeat(10, 1, true)

	for _, status := range []string{model.OrderStatusPending, model.OrderStatusCancelled} {
		f.addLine(100, 1000, 1, 7, model.AccountTypeNetflix, 1, status)
		_, err := newTestAllocator(f).Allocate(context.Background(), 100, 7)
		assert.ErrorIs(t, err, ErrOrderNotPayable, status)
		assert.True(t, f.seats[10].Free(), "no seat may be taken for a %s order", status)
	}
}

func TestAllocateRejectsWrongUser(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	f.addSeat(10, 1, true)
	f.addLine(100, 1000, 1, 7, model.AccountTypeNetflix, 1, model.OrderStatusPaid)

	_, err := newTestAllocator(f).Allocate(context.Background(), 100, 8)
	assert.ErrorIs(t, err, ErrUserMismatch)
	assert.True(t, f.seats[10].Free())
}

func TestAllocateRejectsProductMismatch(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	f.addSeat(10, 1, true)
	// The line says 3 months but the account was edited down to 1.
	f.addLine(100, 1000, 1, 7, model.AccountTypeNetflix, 3, model.OrderStatusPaid)

	_, err := newTestAllocator(f).Allocate(context.Background(), 100, 7)
	assert.ErrorIs(t, err, ErrProductMismatch)
	assert.True(t, f.seats[10].Free())
}

func TestAllocateFallsBackToSiblingAndRebinds(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeSpotify, 2, true)
	f.addAccount(2, model.AccountTypeSpotify, 2, true)
	f.addAccount(3, model.AccountTypeSpotify, 6, true)    // wrong duration
	f.addAccount(4, model.AccountTypeSpotify, 2, false)   // inactive
	f.addSeat(30, 3, true)
	f.addSeat(40, 4, true)
	f.addSeat(20, 2, true)
	f.addLine(100, 1000, 1, 7, model.AccountTypeSpotify, 2, model.OrderStatusPaid)

	res, err := newTestAllocator(f).Allocate(context.Background(), 100, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.SeatID)
	assert.Equal(t, uint64(2), res.AccountID)
	assert.True(t, res.Rebound)
	assert.Equal(t, uint64(2), f.lines[100].Line.AccountID, "line must rebind to the supplying account")
	assert.True(t, f.seats[30].Free(), "wrong-duration sibling must not be used")
	assert.True(t, f.seats[40].Free(), "inactive sibling must not be used")
}

func TestAllocateOutOfStockLeavesNoState(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	f.addSeat(10, 1, false) // inactive, not allocatable
	f.addLine(100, 1000, 1, 7, model.AccountTypeNetflix, 1, model.OrderStatusPaid)

	_, err := newTestAllocator(f).Allocate(context.Background(), 100, 7)
	assert.ErrorIs(t, err, ErrNoSeatsAvailable)
	assert.Nil(t, f.lines[100].Line.SeatID)
	assert.Nil(t, f.seats[10].OrderLineID)
}

func TestAllocateConcurrentNeverOversells(t *testing.T) {
	const seatCount = 7
	const lineCount = 10

	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	for i := 1; i <= seatCount; i++ {
		f.addSeat(uint64(i), 1, true)
	}
	for i := 1; i <= lineCount; i++ {
		f.addLine(uint64(100+i), uint64(1000+i), 1, uint64(i), model.AccountTypeNetflix, 1, model.OrderStatusPaid)
	}
	alloc := newTestAllocator(f)

	var wg sync.WaitGroup
	errs := make([]error, lineCount)
	for i := 1; i <= lineCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i-1] = alloc.Allocate(context.Background(), uint64(100+i), uint64(i))
		}(i)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, ErrNoSeatsAvailable)
			lost++
		}
	}
	assert.Equal(t, seatCount, won)
	assert.Equal(t, lineCount-seatCount, lost)

	// Every seat ended up with exactly one distinct line.
	seen := map[uint64]bool{}
	for _, s := range f.seats {
		require.NotNil(t, s.OrderLineID)
		assert.False(t, seen[*s.OrderLineID], "line %d holds two seats", *s.OrderLineID)
		seen[*s.OrderLineID] = true
	}
	free, _ := f.CountFree(context.Background(), 1)
	assert.Zero(t, free)
}
