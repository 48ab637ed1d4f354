package repository // repository defines data access for accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/streamvault/market/internal/model"
)

const accountColumns = `id, account_type, duration_months, price_cents,
	credential_label, is_active, stock, created_at, updated_at`

// AccountRepo provides methods to work with product accounts in the
// database.  The stock column is only ever written by UpdateStock; all
// allocation exclusivity lives on the seats table.
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo constructs an AccountRepo with the given DB handle.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID, &a.AccountType, &a.DurationMonths, &a.PriceCents,
		&a.CredentialLabel, &a.IsActive, &a.Stock, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account. On success the ID is populated.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `INSERT INTO accounts (account_type, duration_months, price_cents, credential_label, is_active)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, a.AccountType, a.DurationMonths, a.PriceCents, a.CredentialLabel, a.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByID retrieves an account by its id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns every account regardless of activation state.  Admin
// inventory view.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	const q = `SELECT ` + accountColumns + `
	           FROM accounts
	           ORDER BY account_type, duration_months, created_at, id`
	return r.queryAccounts(ctx, q)
}

// ListActive returns all active accounts ordered by type, duration and
// creation time.  Used by the storefront catalog.
func (r *AccountRepo) ListActive(ctx context.Context) ([]model.Account, error) {
	const q = `SELECT ` + accountColumns + `
	           FROM accounts
	           WHERE is_active = 1
	           ORDER BY account_type, duration_months, created_at, id`
	return r.queryAccounts(ctx, q)
}

// ListActiveByType returns all active accounts of one product type.
// The stock service sweeps this set on RefreshAll.
func (r *AccountRepo) ListActiveByType(ctx context.Context, accountType string) ([]model.Account, error) {
	const q = `SELECT ` + accountColumns + `
	           FROM accounts
	           WHERE account_type = ? AND is_active = 1
	           ORDER BY created_at, id`
	return r.queryAccounts(ctx, q, accountType)
}

// ListActiveByShape returns active accounts matching a product shape,
// ordered by creation time then id.  This is the sibling index the
// allocator falls back on when the purchased account is sold out.
func (r *AccountRepo) ListActiveByShape(ctx context.Context, shape model.ProductShape) ([]model.Account, error) {
	const q = `SELECT ` + accountColumns + `
	           FROM accounts
	           WHERE account_type = ? AND duration_months = ? AND is_active = 1
	           ORDER BY created_at, id`
	return r.queryAccounts(ctx, q, shape.AccountType, shape.DurationMonths)
}

// UpdateStock sets the denormalized stock counter.  The value is always
// a full recomputation from the seat set, never an increment.
func (r *AccountRepo) UpdateStock(ctx context.Context, id uint64, stock uint32) error {
	const q = `UPDATE accounts SET stock = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, stock, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// UpdateByID updates the sellable attributes of an account.  Seats and
// their allocation state are unaffected; deactivating an account only
// stops new sales.
func (r *AccountRepo) UpdateByID(ctx context.Context, id uint64, priceCents uint32, credentialLabel string, isActive bool) error {
	const q = `UPDATE accounts
	           SET price_cents = ?, credential_label = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, priceCents, credentialLabel, isActive, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (r *AccountRepo) queryAccounts(ctx context.Context, q string, args ...interface{}) ([]model.Account, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
