package model

import "time"

// Account types sold on the marketplace. Each account is a real
// streaming credential that contains one or more allocatable seats.
const (
	AccountTypeNetflix = "NETFLIX"
	AccountTypeSpotify = "SPOTIFY"
)

// ValidAccountType reports whether t is a known product type.
func ValidAccountType(t string) bool {
	return t == AccountTypeNetflix || t == AccountTypeSpotify
}

// ValidDuration reports whether months is a sellable duration bucket.
func ValidDuration(months uint32) bool {
	switch months {
	case 1, 2, 3, 6:
		return true
	}
	return false
}

// Account is one purchasable streaming-credential record.  Stock is a
// denormalized count of its free active seats; it is refreshed by the
// stock service and is never the allocation source of truth.
//
// Fields:
//  ID              – primary key identifier.
//  AccountType     – product type (NETFLIX, SPOTIFY).
//  DurationMonths  – subscription duration bucket (1, 2, 3 or 6).
//  PriceCents      – price per seat in cents.
//  CredentialLabel – admin-facing label for the underlying credential.
//  IsActive        – whether seats of this account may be sold.
//  Stock           – cached count of free active seats.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Account struct {
	ID              uint64    // accounts.id
	AccountType     string    // accounts.account_type
	DurationMonths  uint32    // accounts.duration_months
	PriceCents      uint32    // accounts.price_cents
	CredentialLabel string    // accounts.credential_label
	IsActive        bool      // accounts.is_active
	Stock           uint32    // accounts.stock
	CreatedAt       time.Time // accounts.created_at
	UpdatedAt       time.Time // accounts.updated_at
}

// ProductShape is the (type, duration) pair that makes two accounts
// interchangeable backing inventory for the same purchase.  The
// allocator falls back to sibling accounts of the same shape when the
// originally targeted account has no free seat.
type ProductShape struct {
	AccountType    string
	DurationMonths uint32
}

// Shape returns the account's product shape.
func (a *Account) Shape() ProductShape {
	return ProductShape{AccountType: a.AccountType, DurationMonths: a.DurationMonths}
}
