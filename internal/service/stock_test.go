package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/market/internal/model"
)

func newTestStock(f *fakeStore) *StockService {
	return NewStockService(f, accountStoreAdapter{f}, nil, 0)
}

func TestStockRefreshRecountsFromSeats(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	f.addSeat(10, 1, true)
	f.addSeat(11, 1, true)
	f.addSeat(12, 1, true)
	f.addSeat(13, 1, false) // inactive seats never count
	stock := newTestStock(f)
	ctx := context.Background()

	require.NoError(t, stock.Refresh(ctx, 1))
	assert.Equal(t, uint32(3), f.accounts[1].Stock)

	_, err := f.Reserve(ctx, 10, 100, 7)
	require.NoError(t, err)
	require.NoError(t, stock.Refresh(ctx, 1))
	assert.Equal(t, uint32(2), f.accounts[1].Stock)

	// Refresh is a full recount; repeating it must not drift.
	require.NoError(t, stock.Refresh(ctx, 1))
	assert.Equal(t, uint32(2), f.accounts[1].Stock)
}

func TestStockReleaseRestoresExactlyOne(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeSpotify, 3, true)
	f.addSeat(10, 1, true)
	f.addSeat(11, 1, true)
	stock := newTestStock(f)
	ctx := context.Background()

	_, err := f.Reserve(ctx, 10, 100, 7)
	require.NoError(t, err)
	_, err = f.Reserve(ctx, 11, 101, 8)
	require.NoError(t, err)
	require.NoError(t, stock.Refresh(ctx, 1))
	require.Equal(t, uint32(0), f.accounts[1].Stock)

	_, err = f.Release(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, stock.Refresh(ctx, 1))
	assert.Equal(t, uint32(1), f.accounts[1].Stock)
}

func TestStockRefreshAllCoversEveryActiveAccount(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	f.addAccount(2, model.AccountTypeNetflix, 3, true)
	f.addAccount(3, model.AccountTypeSpotify, 1, true) // other type, untouched
	f.addSeat(10, 1, true)
	f.addSeat(20, 2, true)
	f.addSeat(21, 2, true)
	f.addSeat(30, 3, true)
	stock := newTestStock(f)

	require.NoError(t, stock.RefreshAll(context.Background(), model.AccountTypeNetflix))
	assert.Equal(t, uint32(1), f.accounts[1].Stock)
	assert.Equal(t, uint32(2), f.accounts[2].Stock)
	assert.Equal(t, uint32(0), f.accounts[3].Stock)
}

func TestStockCountFreeIsAuthoritative(t *testing.T) {
	f := newFakeStore()
	f.addAccount(1, model.AccountTypeNetflix, 1, true)
	f.addSeat(10, 1, true)
	// Stale column value must not leak through CountFree.
	f.accounts[1].Stock = 99
	stock := newTestStock(f)

	n, err := stock.CountFree(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
