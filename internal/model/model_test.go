package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidAccountType(t *testing.T) {
	assert.True(t, ValidAccountType(AccountTypeNetflix))
	assert.True(t, ValidAccountType(AccountTypeSpotify))
	assert.False(t, ValidAccountType("HULU"))
	assert.False(t, ValidAccountType("netflix"))
}

func TestValidDuration(t *testing.T) {
	for _, months := range []uint32{1, 2, 3, 6} {
		assert.True(t, ValidDuration(months))
	}
	for _, months := range []uint32{0, 4, 5, 12} {
		assert.False(t, ValidDuration(months))
	}
}

func TestOrderPayable(t *testing.T) {
	assert.True(t, OrderPayable(OrderStatusPaid))
	assert.True(t, OrderPayable(OrderStatusCompleted))
	assert.False(t, OrderPayable(OrderStatusPending))
	assert.False(t, OrderPayable(OrderStatusCancelled))
}

func TestSeatFree(t *testing.T) {
	now := time.Now().UTC()
	line, user := uint64(1), uint64(2)

	free := Seat{IsActive: true}
	assert.True(t, free.Free())

	inactive := Seat{IsActive: false}
	assert.False(t, inactive.Free())

	held := Seat{IsActive: true, OrderLineID: &line, UserID: &user, AllocatedAt: &now}
	assert.False(t, held.Free())

	// A partially written triple still counts as held.
	partial := Seat{IsActive: true, OrderLineID: &line}
	assert.False(t, partial.Free())
}

func TestAccountShape(t *testing.T) {
	a := Account{AccountType: AccountTypeSpotify, DurationMonths: 3}
	assert.Equal(t, ProductShape{AccountType: AccountTypeSpotify, DurationMonths: 3}, a.Shape())
}
