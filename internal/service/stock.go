package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockService keeps accounts.stock an accurate, cheap-to-read snapshot
// of seat availability.  Stock is a read optimization only: all
// exclusivity is enforced at the seat store's reserve boundary, so a
// stale count can never cause overselling, only a momentarily
// misleading display.
//
// When a Redis client is supplied the refreshed value is also mirrored
// under stock:<accountID> with a short TTL so storefront reads avoid
// the database entirely.  The mirror is best effort; Redis being down
// never fails a refresh.
type StockService struct {
	seats    SeatStore
	accounts AccountStore
	rdb      *redis.Client // optional mirror, may be nil
	ttl      time.Duration
}

// NewStockService constructs a StockService.  rdb may be nil to
// disable the Redis mirror.
func NewStockService(seats SeatStore, accounts AccountStore, rdb *redis.Client, ttl time.Duration) *StockService {
	if seats == nil || accounts == nil {
		panic("nil store passed to NewStockService")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StockService{seats: seats, accounts: accounts, rdb: rdb, ttl: ttl}
}

// CountFree returns the authoritative count of free active seats for
// one account, straight from the seat set.
func (s *StockService) CountFree(ctx context.Context, accountID uint64) (int, error) {
	return s.seats.CountFree(ctx, accountID)
}

// Refresh recomputes and persists the account's stock counter.  The
// value is always a full recount of the free seat set, never an
// increment, so redundant or interleaved calls converge on the same
// answer.  Idempotent and safe to call after every mutation.
func (s *StockService) Refresh(ctx context.Context, accountID uint64) error {
	n, err := s.seats.CountFree(ctx, accountID)
	if err != nil {
		return fmt.Errorf("count free seats for account %d: %w", accountID, err)
	}
	if err := s.accounts.UpdateStock(ctx, accountID, uint32(n)); err != nil {
		return fmt.Errorf("persist stock for account %d: %w", accountID, err)
	}
	s.mirror(ctx, accountID, n)
	return nil
}

// RefreshAll refreshes every active account of a product type.  Used
// after bulk seat mutations and at the end of a reconciliation sweep.
// Individual failures are logged and counted but do not stop the loop.
func (s *StockService) RefreshAll(ctx context.Context, accountType string) error {
	accounts, err := s.accounts.ListActiveByType(ctx, accountType)
	if err != nil {
		return fmt.Errorf("list active %s accounts: %w", accountType, err)
	}
	failed := 0
	for _, a := range accounts {
		if err := s.Refresh(ctx, a.ID); err != nil {
			log.Printf("stock: refresh account %d failed: %v", a.ID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("refreshed %d of %d %s accounts", len(accounts)-failed, len(accounts), accountType)
	}
	return nil
}

// CachedStock returns the mirrored stock value when present.  The
// second return is false when no Redis client is configured or the key
// is missing/expired; callers then fall back to the database column.
func (s *StockService) CachedStock(ctx context.Context, accountID uint64) (int, bool) {
	if s.rdb == nil {
		return 0, false
	}
	v, err := s.rdb.Get(ctx, stockKey(accountID)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *StockService) mirror(ctx context.Context, accountID uint64, n int) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, stockKey(accountID), strconv.Itoa(n), s.ttl).Err(); err != nil {
		log.Printf("stock: redis mirror for account %d failed: %v", accountID, err)
	}
}

func stockKey(accountID uint64) string {
	return "stock:" + strconv.FormatUint(accountID, 10)
}
