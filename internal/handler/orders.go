package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/market/internal/model"
	"github.com/streamvault/market/internal/queue"
	"github.com/streamvault/market/internal/repository"
	"github.com/streamvault/market/internal/service"
)

// PaidPublisher emits the order.paid event.  Injected so tests can
// capture events instead of dialing a broker.
type PaidPublisher func(ctx context.Context, event queue.OrderPaidEvent) error

// OrderHandler covers checkout, the customer's order history and the
// admin payment/cancellation transitions.
type OrderHandler struct {
	Orders   *repository.OrderRepo
	Accounts *repository.AccountRepo
	Seats    *repository.SeatRepo
	Stock    *service.StockService
	Publish  PaidPublisher
}

func NewOrderHandler(orders *repository.OrderRepo, accounts *repository.AccountRepo, seats *repository.SeatRepo, stock *service.StockService, publish PaidPublisher) *OrderHandler {
	return &OrderHandler{Orders: orders, Accounts: accounts, Seats: seats, Stock: stock, Publish: publish}
}

type checkoutItem struct {
	AccountID uint64 `json:"account_id"`
	Quantity  int    `json:"quantity"`
}
type checkoutReq struct {
	Items []checkoutItem `json:"items"`
}

const maxSeatsPerOrder = 20

// Checkout handles POST /v1/orders.  It creates a PENDING order with
// one line per requested seat, priced from the current account record.
// No seats are reserved at checkout; allocation happens after payment.
func (h *OrderHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil || len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items required"})
	}

	ctx := c.Request().Context()
	var lines []repository.OrderLineInput
	var total uint32
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
		}
		a, err := h.Accounts.GetByID(ctx, item.AccountID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
		}
		if !a.IsActive {
			return c.JSON(http.StatusConflict, echo.Map{"error": "account is not for sale"})
		}
		for i := 0; i < item.Quantity; i++ {
			lines = append(lines, repository.OrderLineInput{
				AccountID:      a.ID,
				AccountType:    a.AccountType,
				DurationMonths: a.DurationMonths,
				PriceCents:     a.PriceCents,
			})
			total += a.PriceCents
		}
	}
	if len(lines) > maxSeatsPerOrder {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many seats in one order"})
	}

	order := model.Order{UserID: userID, Status: model.OrderStatusPending, TotalCents: total}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lineIDs, err := h.Orders.CreateTx(ctx, tx, &order, lines)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create order failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":    order.ID,
		"status":      order.Status,
		"total_cents": order.TotalCents,
		"line_ids":    lineIDs,
	})
}

// MyOrders handles GET /v1/my-orders: the caller's orders with line
// allocation state, newest first.
func (h *OrderHandler) MyOrders(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Orders.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list orders failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": details})
}

// MarkPaid handles POST /v1/admin/orders/:id/mark-paid.  It transitions
// a PENDING order to PAID and emits the order.paid event that drives
// allocation.  A publish failure is logged, not surfaced: the
// reconciliation sweep picks up lines the event never reached.
func (h *OrderHandler) MarkPaid(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()

	order, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load order failed"})
	}
	if order.Status != model.OrderStatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is " + order.Status})
	}
	if err := h.Orders.UpdateStatus(ctx, id, model.OrderStatusPaid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
	}

	lines, err := h.Orders.ListLinesByOrder(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list lines failed"})
	}
	event := queue.OrderPaidEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalCents: order.TotalCents,
		PaidAt:     time.Now().UTC().Format(time.RFC3339),
	}
	for _, ln := range lines {
		event.Lines = append(event.Lines, queue.OrderPaidLine{
			OrderLineID:    ln.ID,
			AccountID:      ln.AccountID,
			AccountType:    ln.AccountType,
			DurationMonths: ln.DurationMonths,
		})
	}
	if h.Publish != nil {
		if err := h.Publish(ctx, event); err != nil {
			log.Printf("orders: publish order.paid for order %d failed: %v", order.ID, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": order.ID, "status": model.OrderStatusPaid})
}

// Cancel handles POST /v1/admin/orders/:id/cancel.  Any seats held by
// the order's lines return to the free pool and the affected accounts
// get a stock refresh.  COMPLETED orders cannot be cancelled here.
func (h *OrderHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()

	order, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load order failed"})
	}
	switch order.Status {
	case model.OrderStatusCancelled:
		return c.JSON(http.StatusOK, echo.Map{"order_id": order.ID, "status": order.Status})
	case model.OrderStatusCompleted:
		return c.JSON(http.StatusConflict, echo.Map{"error": "completed orders cannot be cancelled"})
	}

	lines, err := h.Orders.ListLinesByOrder(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list lines failed"})
	}
	released := 0
	touched := map[uint64]struct{}{}
	for _, ln := range lines {
		if ln.SeatID == nil {
			continue
		}
		seat, err := h.Seats.Release(ctx, *ln.SeatID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release seat failed"})
		}
		if err := h.Orders.ClearLineSeat(ctx, ln.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear line failed"})
		}
		released++
		touched[seat.AccountID] = struct{}{}
	}
	if err := h.Orders.UpdateStatus(ctx, id, model.OrderStatusCancelled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
	}
	for accountID := range touched {
		if err := h.Stock.Refresh(ctx, accountID); err != nil {
			log.Printf("orders: stock refresh for account %d failed: %v", accountID, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order_id":       order.ID,
		"status":         model.OrderStatusCancelled,
		"seats_released": released,
	})
}
