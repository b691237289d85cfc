package main

import (
	"net/http"

	"pos-service/internal/handler"
	mid "pos-service/internal/middleware"
	"pos-service/internal/service"
	"pos-service/pkg/config"
	"pos-service/pkg/database"
	"pos-service/pkg/jwtutil"
	"pos-service/pkg/logger"
	"pos-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration (.env handled inside config.Load)
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting pos-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	db := database.GetDB()

	// Core services
	checkoutService := service.NewCheckoutService(db, appConfig.Checkout.MaxRetries)
	restockService := service.NewRestockService(db)
	ledgerService := service.NewLedgerService(db)
	statsService := service.NewStatsService(db,
		appConfig.Stats.LowStockThreshold, appConfig.Stats.TopSellersLimit)

	productHandler := handler.NewProductHandler(db, restockService)
	billHandler := handler.NewBillHandler(db, checkoutService)
	statsHandler := handler.NewStatsHandler(statsService, ledgerService)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Product API routes - staff can browse, admins manage the catalog
	productAPI := e.Group("/api/products", mid.AuthMiddleware)
	productAPI.GET("", productHandler.List)
	productAPI.GET("/:id", productHandler.Get)
	productAPI.POST("", productHandler.Create, mid.AdminOnly)
	productAPI.PUT("/:id", productHandler.Update, mid.AdminOnly)
	productAPI.DELETE("/:id", productHandler.Delete, mid.AdminOnly)
	productAPI.POST("/:id/restock", productHandler.Restock, mid.AdminOnly)

	// Bill API routes - checkout and receipt history
	billAPI := e.Group("/api/bills", mid.AuthMiddleware)
	billAPI.POST("", billHandler.Checkout)
	billAPI.GET("", billHandler.List)

	// Sales API routes - dashboards and reports derived from the ledger
	salesAPI := e.Group("/api/sales", mid.AuthMiddleware)
	salesAPI.GET("/stats", statsHandler.Stats)
	salesAPI.GET("/movements", statsHandler.Movements)
	salesAPI.GET("/daily", statsHandler.Daily, mid.AdminOnly)
	salesAPI.GET("/export", statsHandler.Export, mid.AdminOnly)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
