package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/market/internal/queue"
	"github.com/streamvault/market/internal/repository"
	"github.com/streamvault/market/internal/service"
)

// AllocationHandler exposes manual allocation for operators.  The
// normal path is event-driven; this endpoint covers support cases where
// a single line needs an immediate retry.
type AllocationHandler struct {
	Alloc   service.SeatAllocator
	Orders  *repository.OrderRepo
	Publish queue.AllocatedPublisher
}

func NewAllocationHandler(alloc service.SeatAllocator, orders *repository.OrderRepo, publish queue.AllocatedPublisher) *AllocationHandler {
	return &AllocationHandler{Alloc: alloc, Orders: orders, Publish: publish}
}

// Allocate handles POST /v1/admin/order-lines/:id/allocate.  The seat
// is allocated on behalf of the order's buyer; the call is idempotent
// and a line that already holds a seat returns it with 200.
func (h *AllocationHandler) Allocate(c echo.Context) error {
	lineID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order line id"})
	}
	ctx := c.Request().Context()

	ls, err := h.Orders.GetLineByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderLineNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order line not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load order line failed"})
	}

	res, err := h.Alloc.Allocate(ctx, lineID, ls.OrderUserID)
	switch {
	case errors.Is(err, service.ErrNoSeatsAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no seats available"})
	case errors.Is(err, service.ErrOrderNotPayable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is not paid"})
	case errors.Is(err, service.ErrProductMismatch):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "allocation failed"})
	}

	if !res.AlreadyAllocated && h.Publish != nil {
		event := queue.SeatAllocatedEvent{
			OrderLineID:    res.OrderLineID,
			OrderID:        ls.Line.OrderID,
			UserID:         res.UserID,
			AccountID:      res.AccountID,
			AccountType:    ls.Line.AccountType,
			DurationMonths: ls.Line.DurationMonths,
			SeatID:         res.SeatID,
			SeatLabel:      res.SeatLabel,
			CredentialRef:  res.CredentialRef,
			Rebound:        res.Rebound,
			AllocatedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := h.Publish(ctx, event); err != nil {
			log.Printf("allocation: publish seat.allocated for line %d failed: %v", res.OrderLineID, err)
		}
	}

	status := http.StatusCreated
	if res.AlreadyAllocated {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{
		"order_line_id":     res.OrderLineID,
		"account_id":        res.AccountID,
		"seat_id":           res.SeatID,
		"seat_label":        res.SeatLabel,
		"rebound":           res.Rebound,
		"already_allocated": res.AlreadyAllocated,
	})
}
