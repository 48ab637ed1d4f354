package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/market/internal/model"
	"github.com/streamvault/market/internal/service"
)

// ReconcileHandler triggers reconciliation sweeps on demand.  The same
// code path is meant to run from a scheduler; exposing it over HTTP
// lets operators heal a backlog immediately after an incident.
type ReconcileHandler struct {
	Rec *service.Reconciler
}

func NewReconcileHandler(rec *service.Reconciler) *ReconcileHandler {
	return &ReconcileHandler{Rec: rec}
}

// Run handles POST /v1/admin/reconcile?type=NETFLIX.  Without the type
// parameter every product type is swept.
func (h *ReconcileHandler) Run(c echo.Context) error {
	ctx := c.Request().Context()

	types := []string{model.AccountTypeNetflix, model.AccountTypeSpotify}
	if t := strings.ToUpper(strings.TrimSpace(c.QueryParam("type"))); t != "" {
		if !model.ValidAccountType(t) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown account type"})
		}
		types = []string{t}
	}

	reports := make([]*service.SweepReport, 0, len(types))
	for _, t := range types {
		report, err := h.Rec.ReconcileAll(ctx, t)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed: " + err.Error()})
		}
		reports = append(reports, report)
	}
	return c.JSON(http.StatusOK, echo.Map{"reports": reports})
}
