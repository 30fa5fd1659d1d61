package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storeadmin/internal/middleware"
	"storeadmin/internal/model"
	"storeadmin/internal/scope"
	"storeadmin/pkg/logger"
	"storeadmin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ProductRequest defines the structure for product creation/update requests.
// Any store reference a caller smuggles into the body is ignored; the store
// always comes from the resolved tenant context.
type ProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SKU         string  `json:"sku"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	IsActive    bool    `json:"is_active"`
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}

// ListProducts handles retrieving all products of the bound store
func ListProducts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("list")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	filter := map[string]interface{}{}

	// Filter by active status if specified
	if isActive := c.QueryParam("is_active"); isActive != "" {
		active, err := strconv.ParseBool(isActive)
		if err == nil {
			filter["is_active"] = active
			log.Info("Filtering products by active status", zap.Bool("is_active", active))
		} else {
			log.Warn("Invalid is_active parameter", zap.String("value", isActive), zap.Error(err))
		}
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var products []model.Product
	var err error
	if len(filter) > 0 {
		err = accessor.List(&products, filter)
	} else {
		err = accessor.List(&products)
	}
	if err != nil {
		log.Error("Failed to list products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve products"})
	}

	log.Info("Products retrieved successfully", zap.Int("count", len(products)))
	return c.JSON(http.StatusOK, products)
}

// GetProduct handles retrieving a single product by ID. Products of foreign
// stores are indistinguishable from missing ones.
func GetProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("get")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	id, err := parseID(c)
	if err != nil {
		log.Warn("Invalid product ID", zap.String("id", c.Param("id")))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var product model.Product
	if err := accessor.Get(&product, id); err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			log.Warn("Product not found", zap.Uint("product_id", id))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		log.Error("Failed to get product", zap.Uint("product_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve product"})
	}

	log.Info("Product retrieved successfully",
		zap.Uint("product_id", product.ID),
		zap.String("product_sku", product.SKU))
	return c.JSON(http.StatusOK, product)
}

// CreateProduct handles creating a new product in the bound store
func CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("create")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.Name == "" || req.SKU == "" || req.Price <= 0 {
		log.Warn("Incomplete product data",
			zap.String("name", req.Name),
			zap.String("sku", req.SKU),
			zap.Float64("price", req.Price))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, sku and a positive price are required"})
	}

	// Check if a product with this SKU already exists in the store
	count, err := accessor.Count(&model.Product{}, "sku = ?", req.SKU)
	if err != nil {
		log.Error("Failed to check SKU uniqueness", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}
	if count > 0 {
		log.Warn("Product with this SKU already exists", zap.String("sku", req.SKU))
		return c.JSON(http.StatusConflict, echo.Map{"error": "product with this SKU already exists"})
	}

	product := model.Product{
		Name:        req.Name,
		Description: req.Description,
		SKU:         req.SKU,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := accessor.Create(&product); err != nil {
		// The pre-insert count is only advisory; a concurrent insert of
		// the same SKU lands here via the unique index.
		if errors.Is(err, scope.ErrConflict) {
			log.Warn("Product with this SKU already exists", zap.String("sku", req.SKU))
			return c.JSON(http.StatusConflict, echo.Map{"error": "product with this SKU already exists"})
		}
		log.Error("Failed to create product",
			zap.String("sku", req.SKU),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}

	log.Info("Product created successfully",
		zap.Uint("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Uint("store_id", product.StoreID))
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles updating an existing product
func UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("update")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	id, err := parseID(c)
	if err != nil {
		log.Warn("Invalid product ID", zap.String("id", c.Param("id")))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product ID"})
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Uint("product_id", id), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.Name == "" || req.SKU == "" || req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, sku and a positive price are required"})
	}

	// Check if the new SKU collides with another product in the store
	count, err := accessor.Count(&model.Product{}, "sku = ? AND id != ?", req.SKU, id)
	if err != nil {
		log.Error("Failed to check SKU uniqueness", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update product"})
	}
	if count > 0 {
		log.Warn("Product with this SKU already exists", zap.String("sku", req.SKU))
		return c.JSON(http.StatusConflict, echo.Map{"error": "product with this SKU already exists"})
	}

	fields := map[string]interface{}{
		"name":        req.Name,
		"description": req.Description,
		"sku":         req.SKU,
		"price":       req.Price,
		"stock":       req.Stock,
		"is_active":   req.IsActive,
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	var product model.Product
	if err := accessor.Update(&product, id, fields); err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			log.Warn("Product not found for update", zap.Uint("product_id", id))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		if errors.Is(err, scope.ErrConflict) {
			log.Warn("Product with this SKU already exists", zap.String("sku", req.SKU))
			return c.JSON(http.StatusConflict, echo.Map{"error": "product with this SKU already exists"})
		}
		log.Error("Failed to update product", zap.Uint("product_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update product"})
	}

	log.Info("Product updated successfully",
		zap.Uint("product_id", product.ID),
		zap.String("sku", product.SKU))
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct handles deleting a product (soft delete)
func DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("delete")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	id, err := parseID(c)
	if err != nil {
		log.Warn("Invalid product ID", zap.String("id", c.Param("id")))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product ID"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := accessor.Delete(&model.Product{}, id); err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			log.Warn("Product not found for deletion", zap.Uint("product_id", id))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		log.Error("Failed to delete product", zap.Uint("product_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete product"})
	}

	log.Info("Product deleted successfully", zap.Uint("product_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}
