package handler

import (
	"net/http"
	"strconv"
	"time"

	"pos-service/internal/service"
	"pos-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StatsHandler serves the dashboard and reporting endpoints
type StatsHandler struct {
	stats  *service.StatsService
	ledger *service.LedgerService
}

func NewStatsHandler(stats *service.StatsService, ledger *service.LedgerService) *StatsHandler {
	return &StatsHandler{stats: stats, ledger: ledger}
}

// Stats handles retrieving the dashboard snapshot
func (h *StatsHandler) Stats(c echo.Context) error {
	log := logger.FromContext(c)

	stats, err := h.stats.Stats(c.Request().Context())
	if err != nil {
		log.Error("Failed to compute stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to compute stats",
		})
	}
	return c.JSON(http.StatusOK, stats)
}

// Daily handles retrieving the per-day sales report, newest day first
func (h *StatsHandler) Daily(c echo.Context) error {
	log := logger.FromContext(c)

	report, err := h.stats.DailyReport(c.Request().Context())
	if err != nil {
		log.Error("Failed to compute daily report", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to compute daily report",
		})
	}
	return c.JSON(http.StatusOK, report)
}

// Export streams the movement ledger as a CSV attachment
func (h *StatsHandler) Export(c echo.Context) error {
	log := logger.FromContext(c)

	csv, err := h.ledger.ExportCSV(c.Request().Context(), service.MovementFilter{})
	if err != nil {
		log.Error("Failed to export movements", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Error exporting CSV",
		})
	}

	log.Info("Movement export generated", zap.Int("bytes", len(csv)))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="movements_report.csv"`)
	return c.Blob(http.StatusOK, "text/csv", csv)
}

// Movements handles retrieving the raw movement ledger, oldest first.
// Supports optional product_id, from and to (RFC 3339) query filters.
func (h *StatsHandler) Movements(c echo.Context) error {
	log := logger.FromContext(c)

	var filter service.MovementFilter
	if raw := c.QueryParam("product_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid product ID",
			})
		}
		filter.ProductID = uint(id)
	}
	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid from timestamp",
			})
		}
		filter.From = from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid to timestamp",
			})
		}
		filter.To = to
	}

	movements, err := h.ledger.Movements(c.Request().Context(), filter)
	if err != nil {
		log.Error("Failed to list movements", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve movements",
		})
	}
	return c.JSON(http.StatusOK, movements)
}
