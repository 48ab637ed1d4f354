package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/market/internal/repository"
	"github.com/streamvault/market/internal/service"
)

// CatalogHandler serves the public storefront: the list of purchasable
// accounts and per-account stock reads.
type CatalogHandler struct {
	Accounts *repository.AccountRepo
	Stock    *service.StockService
}

func NewCatalogHandler(accounts *repository.AccountRepo, stock *service.StockService) *CatalogHandler {
	return &CatalogHandler{Accounts: accounts, Stock: stock}
}

type catalogItem struct {
	AccountID      uint64 `json:"account_id"`
	AccountType    string `json:"account_type"`
	DurationMonths uint32 `json:"duration_months"`
	PriceCents     uint32 `json:"price_cents"`
	Stock          uint32 `json:"stock"`
}

// List handles GET /v1/catalog.  Stock values come from the cached
// accounts.stock column; the display may lag a recent allocation but
// can never oversell, checkout does not depend on it.
func (h *CatalogHandler) List(c echo.Context) error {
	accounts, err := h.Accounts.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list accounts failed"})
	}
	items := make([]catalogItem, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, catalogItem{
			AccountID:      a.ID,
			AccountType:    a.AccountType,
			DurationMonths: a.DurationMonths,
			PriceCents:     a.PriceCents,
			Stock:          a.Stock,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// StockByID handles GET /v1/accounts/:id/stock.  The Redis mirror is
// tried first; on a miss the database column is returned.
func (h *CatalogHandler) StockByID(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}
	ctx := c.Request().Context()

	if n, ok := h.Stock.CachedStock(ctx, id); ok {
		return c.JSON(http.StatusOK, echo.Map{"account_id": id, "stock": n, "source": "cache"})
	}
	a, err := h.Accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"account_id": id, "stock": a.Stock, "source": "db"})
}
