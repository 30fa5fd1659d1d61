package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"storeadmin/internal/middleware"
	"storeadmin/internal/model"
	"storeadmin/internal/scope"
	"storeadmin/pkg/logger"
	"storeadmin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var errInsufficientStock = errors.New("insufficient stock")

// OrderItemRequest defines one requested order line
type OrderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// OrderRequest defines the structure for order creation requests
type OrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Items         []OrderItemRequest `json:"items"`
}

// ListOrders handles retrieving all orders of the bound store
func ListOrders(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrderOperation("list")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var orders []model.Order
	var err error
	if status := c.QueryParam("status"); status != "" {
		err = accessor.List(&orders, "status = ?", status)
	} else {
		err = accessor.List(&orders)
	}
	if err != nil {
		log.Error("Failed to list orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve orders"})
	}

	log.Info("Orders retrieved successfully", zap.Int("count", len(orders)))
	return c.JSON(http.StatusOK, orders)
}

// GetOrder handles retrieving a single order with its line items
func GetOrder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrderOperation("get")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	id, err := parseID(c)
	if err != nil {
		log.Warn("Invalid order ID", zap.String("id", c.Param("id")))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var order model.Order
	if err := accessor.Get(&order, id); err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			log.Warn("Order not found", zap.Uint("order_id", id))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		log.Error("Failed to get order", zap.Uint("order_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve order"})
	}

	// Line items are loaded through the same scoped path as the order
	if err := accessor.List(&order.Items, "order_id = ?", order.ID); err != nil {
		log.Error("Failed to load order items", zap.Uint("order_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve order"})
	}

	log.Info("Order retrieved successfully",
		zap.Uint("order_id", order.ID),
		zap.Int("items", len(order.Items)))
	return c.JSON(http.StatusOK, order)
}

// CreateOrder handles creating an order with its line items. The order, its
// items and the stock decrements are committed in one transaction, so a
// failure mid-way leaves no orphaned records.
func CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrderOperation("create")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	var req OrderRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.CustomerName == "" || req.CustomerEmail == "" || len(req.Items) == 0 {
		log.Warn("Incomplete order data", zap.String("customer", req.CustomerName))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer name, email and at least one item are required"})
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item quantity must be positive"})
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	var order model.Order
	err := accessor.Transaction(func(tx *scope.Accessor) error {
		var total float64
		items := make([]model.OrderItem, 0, len(req.Items))

		for _, item := range req.Items {
			// Products of foreign stores resolve to ErrNotFound here, so
			// an order can only ever reference this store's catalog
			var product model.Product
			if err := tx.Get(&product, item.ProductID); err != nil {
				return err
			}
			if product.Stock < item.Quantity {
				return fmt.Errorf("%w: product %d", errInsufficientStock, product.ID)
			}
			if err := tx.Update(&product, product.ID, map[string]interface{}{
				"stock": product.Stock - item.Quantity,
			}); err != nil {
				return err
			}

			items = append(items, model.OrderItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			})
			total += product.Price * float64(item.Quantity)
		}

		order = model.Order{
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			Status:        model.OrderStatusPending,
			Total:         total,
		}
		if err := tx.Create(&order); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Create(&items[i]); err != nil {
				return err
			}
		}
		order.Items = items
		return nil
	})
	if err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			log.Warn("Order references unknown product", zap.Error(err))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		if errors.Is(err, errInsufficientStock) {
			log.Warn("Order rejected for insufficient stock", zap.Error(err))
			return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient stock"})
		}
		log.Error("Failed to create order", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}

	log.Info("Order created successfully",
		zap.Uint("order_id", order.ID),
		zap.Float64("total", order.Total),
		zap.Int("items", len(order.Items)))
	return c.JSON(http.StatusCreated, order)
}

// DeleteOrder handles deleting an order and its line items
func DeleteOrder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrderOperation("delete")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	id, err := parseID(c)
	if err != nil {
		log.Warn("Invalid order ID", zap.String("id", c.Param("id")))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = accessor.Transaction(func(tx *scope.Accessor) error {
		var order model.Order
		if err := tx.Get(&order, id); err != nil {
			return err
		}
		var items []model.OrderItem
		if err := tx.List(&items, "order_id = ?", order.ID); err != nil {
			return err
		}
		for i := range items {
			if err := tx.Delete(&items[i], items[i].ID); err != nil {
				return err
			}
		}
		return tx.Delete(&order, order.ID)
	})
	if err != nil {
		if errors.Is(err, scope.ErrNotFound) {
			log.Warn("Order not found for deletion", zap.Uint("order_id", id))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		log.Error("Failed to delete order", zap.Uint("order_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete order"})
	}

	log.Info("Order deleted successfully", zap.Uint("order_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Order deleted successfully"})
}
