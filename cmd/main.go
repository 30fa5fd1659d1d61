package main

import (
	"net/http"

	"storeadmin/internal/handler"
	mid "storeadmin/internal/middleware"
	"storeadmin/internal/tenant"
	"storeadmin/pkg/config"
	"storeadmin/pkg/database"
	"storeadmin/pkg/jwtutil"
	"storeadmin/pkg/logger"
	"storeadmin/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting storeadmin",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize database (installs the scoping policy plugin and migrates)
	if err := database.Initialize(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Store resolver with its per-process lookup cache
	resolver := tenant.NewResolverWithTTL(
		database.GetDB(),
		appConfig.StoreCache.TTL,
		appConfig.StoreCache.CleanupInterval,
	)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Health check endpoint
	e.GET("/health", handler.Health)

	api := e.Group("/api")

	// Authentication routes
	api.POST("/auth/register", handler.Register)
	api.POST("/auth/login", handler.Login)

	// Store routes - authenticated principal required
	storeHandler := handler.NewStoreHandler(resolver)
	stores := api.Group("/stores", mid.AuthMiddleware)
	stores.POST("", storeHandler.CreateStore)
	stores.GET("", storeHandler.ListStores)

	// Store-scoped routes - every request below resolves a tenant context
	// and goes through the scoped accessor
	scoped := stores.Group("/:store", mid.TenantContext(resolver))
	scoped.GET("", storeHandler.GetStore)
	scoped.DELETE("", storeHandler.DeleteStore)

	scoped.GET("/products", handler.ListProducts)
	scoped.GET("/products/:id", handler.GetProduct)
	scoped.POST("/products", handler.CreateProduct)
	scoped.PUT("/products/:id", handler.UpdateProduct)
	scoped.DELETE("/products/:id", handler.DeleteProduct)

	scoped.GET("/orders", handler.ListOrders)
	scoped.GET("/orders/:id", handler.GetOrder)
	scoped.POST("/orders", handler.CreateOrder)
	scoped.DELETE("/orders/:id", handler.DeleteOrder)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != http.ErrServerClosed && err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
