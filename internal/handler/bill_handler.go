package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pos-service/internal/middleware"
	"pos-service/internal/model"
	"pos-service/internal/service"
	"pos-service/pkg/logger"
	"pos-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckoutRequest defines the structure for checkout requests
type CheckoutRequest struct {
	CustomerName string             `json:"customer_name"`
	PaymentMode  string             `json:"payment_mode"`
	Items        []service.CartLine `json:"items" validate:"required"`
}

// BillHandler serves checkout and bill listing
type BillHandler struct {
	db       *gorm.DB
	checkout *service.CheckoutService
}

func NewBillHandler(db *gorm.DB, checkout *service.CheckoutService) *BillHandler {
	return &BillHandler{db: db, checkout: checkout}
}

// Checkout turns a cart into a committed bill, or rejects it with the
// specific offending line. A rejected checkout leaves no stock or ledger
// changes behind.
func (h *BillHandler) Checkout(c echo.Context) error {
	log := logger.FromContext(c)

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}

	actor := middleware.ActorFromContext(c)
	bill, retries, err := h.checkout.Checkout(c.Request().Context(), service.CheckoutInput{
		CustomerName: req.CustomerName,
		PaymentMode:  req.PaymentMode,
		Actor:        actor,
		Lines:        req.Items,
	})
	if retries > 0 {
		prometheus.CheckoutRetriesCounter.Add(float64(retries))
	}
	if err != nil {
		return h.rejectCheckout(c, err)
	}

	log.Info("Checkout committed",
		zap.Uint("bill_id", bill.ID),
		zap.Float64("total_amount", bill.TotalAmount),
		zap.Int("lines", len(bill.Lines)),
		zap.String("payment_mode", bill.PaymentMode),
		zap.String("sold_by", actor))
	prometheus.CheckoutsCommittedCounter.Inc()
	h.updateInventoryGauges(bill)
	return c.JSON(http.StatusCreated, bill)
}

// List handles retrieving all bills, newest first
func (h *BillHandler) List(c echo.Context) error {
	log := logger.FromContext(c)

	var bills []model.Bill
	defer prometheus.TrackDBOperation("query")(time.Now())
	result := h.db.Preload("Lines").Order("created_at DESC, id DESC").Find(&bills)
	if result.Error != nil {
		log.Error("Failed to list bills", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve bills",
		})
	}

	log.Info("Bills retrieved successfully", zap.Int("count", len(bills)))
	return c.JSON(http.StatusOK, bills)
}

// rejectCheckout maps engine errors to specific HTTP responses, never a
// blanket failure.
func (h *BillHandler) rejectCheckout(c echo.Context, err error) error {
	log := logger.FromContext(c)

	var insufficient *service.InsufficientStockError
	var notFound *service.ProductNotFoundError
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		prometheus.RecordCheckoutRejected("empty_cart")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "No items in bill",
		})
	case errors.Is(err, service.ErrInvalidQuantity):
		prometheus.RecordCheckoutRejected("invalid_quantity")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "quantity must be at least 1",
		})
	case errors.Is(err, service.ErrInvalidPaymentMode):
		prometheus.RecordCheckoutRejected("invalid_payment_mode")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "unknown payment mode",
		})
	case errors.As(err, &notFound):
		prometheus.RecordCheckoutRejected("product_not_found")
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":      "Product not found",
			"product_id": notFound.ProductID,
		})
	case errors.As(err, &insufficient):
		log.Warn("Checkout rejected for insufficient stock",
			zap.Uint("product_id", insufficient.ProductID),
			zap.Int("requested", insufficient.Requested),
			zap.Int("available", insufficient.Available))
		prometheus.RecordCheckoutRejected("insufficient_stock")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":      insufficient.Error(),
			"product_id": insufficient.ProductID,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		})
	case errors.Is(err, service.ErrCheckoutConflict):
		prometheus.RecordCheckoutRejected("conflict")
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "checkout conflicted with concurrent sales, please retry",
		})
	default:
		log.Error("Checkout failed", zap.Error(err))
		prometheus.RecordCheckoutRejected("storage")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Billing failed",
		})
	}
}

func (h *BillHandler) updateInventoryGauges(bill *model.Bill) {
	ids := make([]uint, 0, len(bill.Lines))
	for _, line := range bill.Lines {
		ids = append(ids, line.ProductID)
	}
	var products []model.Product
	if err := h.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return
	}
	for _, p := range products {
		prometheus.UpdateProductInventory(strconv.FormatUint(uint64(p.ID), 10),
			p.Name, p.Category, float64(p.Quantity))
	}
}
