package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/market/internal/model"
	"github.com/streamvault/market/internal/repository"
	"github.com/streamvault/market/internal/service"
)

// AdminAccountHandler exposes inventory management over accounts.
type AdminAccountHandler struct {
	Accounts *repository.AccountRepo
	Stock    *service.StockService
}

func NewAdminAccountHandler(accounts *repository.AccountRepo, stock *service.StockService) *AdminAccountHandler {
	return &AdminAccountHandler{Accounts: accounts, Stock: stock}
}

type createAccountReq struct {
	AccountType     string `json:"account_type"`
	DurationMonths  uint32 `json:"duration_months"`
	PriceCents      uint32 `json:"price_cents"`
	CredentialLabel string `json:"credential_label"`
}

type updateAccountReq struct {
	PriceCents      uint32 `json:"price_cents"`
	CredentialLabel string `json:"credential_label"`
	IsActive        bool   `json:"is_active"`
}

// Create handles POST /v1/admin/accounts.  New accounts start active
// with zero stock; seats are registered separately.
func (h *AdminAccountHandler) Create(c echo.Context) error {
	var req createAccountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !model.ValidAccountType(req.AccountType) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown account_type"})
	}
	if !model.ValidDuration(req.DurationMonths) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_months must be 1, 2, 3 or 6"})
	}
	if req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents required"})
	}

	a := model.Account{
		AccountType:     req.AccountType,
		DurationMonths:  req.DurationMonths,
		PriceCents:      req.PriceCents,
		CredentialLabel: req.CredentialLabel,
		IsActive:        true,
	}
	if err := h.Accounts.Create(c.Request().Context(), &a); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": a.ID})
}

type adminAccountView struct {
	ID              uint64 `json:"id"`
	AccountType     string `json:"account_type"`
	DurationMonths  uint32 `json:"duration_months"`
	PriceCents      uint32 `json:"price_cents"`
	CredentialLabel string `json:"credential_label"`
	IsActive        bool   `json:"is_active"`
	Stock           uint32 `json:"stock"`
}

// List handles GET /v1/admin/accounts: every account, active or not.
func (h *AdminAccountHandler) List(c echo.Context) error {
	accounts, err := h.Accounts.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list accounts failed"})
	}
	views := make([]adminAccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, adminAccountView{
			ID:              a.ID,
			AccountType:     a.AccountType,
			DurationMonths:  a.DurationMonths,
			PriceCents:      a.PriceCents,
			CredentialLabel: a.CredentialLabel,
			IsActive:        a.IsActive,
			Stock:           a.Stock,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"accounts": views})
}

// Get handles GET /v1/admin/accounts/:id.
func (h *AdminAccountHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}
	a, err := h.Accounts.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":               a.ID,
		"account_type":     a.AccountType,
		"duration_months":  a.DurationMonths,
		"price_cents":      a.PriceCents,
		"credential_label": a.CredentialLabel,
		"is_active":        a.IsActive,
		"stock":            a.Stock,
		"created_at":       a.CreatedAt,
		"updated_at":       a.UpdatedAt,
	})
}

// Update handles PUT /v1/admin/accounts/:id.  Deactivating an account
// stops new sales only; seats already allocated stay allocated.
func (h *AdminAccountHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}
	var req updateAccountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents required"})
	}
	err = h.Accounts.UpdateByID(c.Request().Context(), id, req.PriceCents, req.CredentialLabel, req.IsActive)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update account failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// RefreshStock handles POST /v1/admin/accounts/:id/stock/refresh: a
// manual full recount for operators who suspect a stale counter.
func (h *AdminAccountHandler) RefreshStock(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}
	ctx := c.Request().Context()
	if err := h.Stock.Refresh(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	n, err := h.Stock.CountFree(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"account_id": id, "stock": n})
}

// RefreshStockAll handles POST /v1/admin/stock/refresh?type=NETFLIX:
// recounts every active account of a type, or of all types when the
// parameter is omitted.
func (h *AdminAccountHandler) RefreshStockAll(c echo.Context) error {
	ctx := c.Request().Context()

	types := []string{model.AccountTypeNetflix, model.AccountTypeSpotify}
	if t := strings.ToUpper(strings.TrimSpace(c.QueryParam("type"))); t != "" {
		if !model.ValidAccountType(t) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown account type"})
		}
		types = []string{t}
	}
	for _, t := range types {
		if err := h.Stock.RefreshAll(ctx, t); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"refreshed": types})
}
