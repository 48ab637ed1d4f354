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

// AdminSeatHandler manages the seat inventory of an account: listing,
// registering new profiles, editing and releasing.
type AdminSeatHandler struct {
	Seats    *repository.SeatRepo
	Accounts *repository.AccountRepo
	Stock    *service.StockService
}

func NewAdminSeatHandler(seats *repository.SeatRepo, accounts *repository.AccountRepo, stock *service.StockService) *AdminSeatHandler {
	return &AdminSeatHandler{Seats: seats, Accounts: accounts, Stock: stock}
}

type createSeatsReq struct {
	// Labels carries one entry per profile to register, e.g.
	// ["profile-1", "profile-2"].
	Labels        []string `json:"labels"`
	CredentialRef string   `json:"credential_ref"`
}

type updateSeatReq struct {
	Label         string `json:"label"`
	CredentialRef string `json:"credential_ref"`
	IsActive      bool   `json:"is_active"`
}

type seatView struct {
	ID          uint64  `json:"id"`
	AccountID   uint64  `json:"account_id"`
	Label       string  `json:"label"`
	IsActive    bool    `json:"is_active"`
	OrderLineID *uint64 `json:"order_line_id,omitempty"`
	UserID      *uint64 `json:"user_id,omitempty"`
	Free        bool    `json:"free"`
}

func toSeatView(s model.Seat) seatView {
	return seatView{
		ID:          s.ID,
		AccountID:   s.AccountID,
		Label:       s.Label,
		IsActive:    s.IsActive,
		OrderLineID: s.OrderLineID,
		UserID:      s.UserID,
		Free:        s.Free(),
	}
}

// List handles GET /v1/admin/accounts/:id/seats.
func (h *AdminSeatHandler) List(c echo.Context) error {
	accountID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}
	seats, err := h.Seats.ListByAccount(c.Request().Context(), accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list seats failed"})
	}
	views := make([]seatView, 0, len(seats))
	for _, s := range seats {
		views = append(views, toSeatView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"account_id": accountID, "seats": views})
}

// Create handles POST /v1/admin/accounts/:id/seats: registers one or
// more seats for an account in a single bulk insert, then refreshes the
// account's stock counter.
func (h *AdminSeatHandler) Create(c echo.Context) error {
	accountID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}
	var req createSeatsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Labels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "labels required"})
	}
	ctx := c.Request().Context()

	if _, err := h.Accounts.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}

	seats := make([]model.Seat, 0, len(req.Labels))
	for _, label := range req.Labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty seat label"})
		}
		seats = append(seats, model.Seat{
			AccountID:     accountID,
			Label:         label,
			CredentialRef: req.CredentialRef,
			IsActive:      true,
		})
	}
	if err := h.Seats.CreateBulk(ctx, seats); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create seats failed"})
	}
	_ = h.Stock.Refresh(ctx, accountID)
	return c.JSON(http.StatusCreated, echo.Map{"account_id": accountID, "created": len(seats)})
}

// Update handles PUT /v1/admin/seats/:id.  Allocation state cannot be
// edited here; use Release.
func (h *AdminSeatHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	var req updateSeatReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Label) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "label required"})
	}
	ctx := c.Request().Context()
	if err := h.Seats.UpdateByID(ctx, id, req.Label, req.CredentialRef, req.IsActive); err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update seat failed"})
	}
	// Toggling is_active changes the free pool.
	if seat, err := h.Seats.GetByID(ctx, id); err == nil {
		_ = h.Stock.Refresh(ctx, seat.AccountID)
	}
	return c.NoContent(http.StatusNoContent)
}

// Release handles POST /v1/admin/seats/:id/release: returns an
// allocated seat to the free pool without touching the order line.
// Meant for support flows where the line is being reworked; order
// cancellation releases through the order endpoint instead.
func (h *AdminSeatHandler) Release(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	ctx := c.Request().Context()
	seat, err := h.Seats.Release(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release failed"})
	}
	_ = h.Stock.Refresh(ctx, seat.AccountID)
	return c.JSON(http.StatusOK, toSeatView(*seat))
}

// Delete handles DELETE /v1/admin/seats/:id.  Allocated seats cannot be
// deleted; release them first.
func (h *AdminSeatHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	ctx := c.Request().Context()
	seat, err := h.Seats.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load seat failed"})
	}
	if err := h.Seats.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "seat is allocated; release it first"})
		}
		if errors.Is(err, repository.ErrSeatNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete seat failed"})
	}
	_ = h.Stock.Refresh(ctx, seat.AccountID)
	return c.NoContent(http.StatusNoContent)
}
