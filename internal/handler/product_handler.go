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

// ProductRequest defines the structure for product creation/update requests.
// Quantity is only honored on creation; afterwards stock changes go through
// checkout and restock so every change lands in the ledger.
type ProductRequest struct {
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity"`
	Supplier string  `json:"supplier"`
}

// RestockRequest defines the structure for restock requests
type RestockRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Remark   string `json:"remark"`
}

// ProductHandler serves the product catalog endpoints
type ProductHandler struct {
	db      *gorm.DB
	restock *service.RestockService
}

func NewProductHandler(db *gorm.DB, restock *service.RestockService) *ProductHandler {
	return &ProductHandler{db: db, restock: restock}
}

// List handles retrieving all products with optional category filtering
func (h *ProductHandler) List(c echo.Context) error {
	log := logger.FromContext(c)

	query := h.db
	category := c.QueryParam("category")
	if category != "" {
		query = query.Where("category = ?", category)
		log.Info("Filtering products by category", zap.String("category", category))
	}

	var products []model.Product
	defer prometheus.TrackDBOperation("query")(time.Now())
	result := query.Order("id ASC").Find(&products)
	if result.Error != nil {
		log.Error("Failed to list products", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve products",
		})
	}

	log.Info("Products retrieved successfully", zap.Int("count", len(products)))
	return c.JSON(http.StatusOK, products)
}

// Get handles retrieving a single product by ID
func (h *ProductHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var product model.Product
	result := h.db.First(&product, "id = ?", id)
	if result.Error != nil {
		log.Warn("Product not found", zap.String("product_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Product not found",
		})
	}

	return c.JSON(http.StatusOK, product)
}

// Create handles creating a new product
func (h *ProductHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}
	if req.Name == "" || req.Category == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "name and category are required",
		})
	}
	if req.Price < 0 || req.Quantity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "price and quantity must not be negative",
		})
	}

	product := model.Product{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Quantity: req.Quantity,
		Supplier: req.Supplier,
	}
	if result := h.db.Create(&product); result.Error != nil {
		log.Error("Failed to create product",
			zap.String("name", req.Name),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to create product",
		})
	}

	log.Info("Product created successfully",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("category", product.Category))
	prometheus.UpdateProductInventory(strconv.FormatUint(uint64(product.ID), 10),
		product.Name, product.Category, float64(product.Quantity))
	return c.JSON(http.StatusCreated, product)
}

// Update handles updating product master data. Stock quantity is not
// updatable here: decrements come from checkout and increments from
// restock, so the ledger stays complete.
func (h *ProductHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.String("product_id", id), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}
	if req.Price < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "price must not be negative",
		})
	}

	var product model.Product
	if result := h.db.First(&product, "id = ?", id); result.Error != nil {
		log.Warn("Product not found for update", zap.String("product_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Product not found",
		})
	}

	oldPrice := product.Price
	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Category != "" {
		product.Category = req.Category
	}
	if req.Supplier != "" {
		product.Supplier = req.Supplier
	}
	// A zero price means the field was omitted, same as the empty strings
	// above. Checkouts snapshot the catalog price, so a wiped price would
	// poison every later bill and ledger entry.
	if req.Price > 0 {
		product.Price = req.Price
	}

	if result := h.db.Model(&product).Select("name", "category", "supplier", "price").Updates(&product); result.Error != nil {
		log.Error("Failed to update product", zap.String("product_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to update product",
		})
	}

	log.Info("Product updated successfully",
		zap.Uint("product_id", product.ID),
		zap.Float64("old_price", oldPrice),
		zap.Float64("new_price", product.Price))
	return c.JSON(http.StatusOK, product)
}

// Delete handles deleting a product (soft delete). The ledger keeps the
// product's movement history; aggregation still resolves its name.
func (h *ProductHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	result := h.db.Delete(&model.Product{}, "id = ?", id)
	if result.Error != nil {
		log.Error("Failed to delete product", zap.String("product_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to delete product",
		})
	}
	if result.RowsAffected == 0 {
		log.Warn("Product not found for deletion", zap.String("product_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Product not found",
		})
	}

	log.Info("Product deleted successfully", zap.String("product_id", id))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Product deleted successfully",
	})
}

// Restock handles increasing a product's stock with a matching IN ledger entry
func (h *ProductHandler) Restock(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid product ID",
		})
	}

	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}

	actor := middleware.ActorFromContext(c)
	product, err := h.restock.Restock(c.Request().Context(), uint(id), req.Quantity, actor, req.Remark)
	if err != nil {
		var notFound *service.ProductNotFoundError
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "quantity must be at least 1",
			})
		case errors.As(err, &notFound):
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "Product not found",
			})
		default:
			log.Error("Restock failed", zap.Uint64("product_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "Restock failed",
			})
		}
	}

	log.Info("Product restocked",
		zap.Uint("product_id", product.ID),
		zap.Int("quantity", req.Quantity),
		zap.Int("new_quantity", product.Quantity),
		zap.String("actor", actor))
	prometheus.RestocksCounter.Inc()
	prometheus.UpdateProductInventory(strconv.FormatUint(uint64(product.ID), 10),
		product.Name, product.Category, float64(product.Quantity))
	return c.JSON(http.StatusOK, product)
}
