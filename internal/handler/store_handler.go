package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"storeadmin/internal/middleware"
	"storeadmin/internal/model"
	"storeadmin/internal/policy"
	"storeadmin/internal/scope"
	"storeadmin/internal/tenant"
	"storeadmin/pkg/database"
	"storeadmin/pkg/logger"
	"storeadmin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// StoreHandler handles store lifecycle operations
type StoreHandler struct {
	resolver *tenant.Resolver
}

// NewStoreHandler creates a store handler backed by the given resolver
func NewStoreHandler(resolver *tenant.Resolver) *StoreHandler {
	return &StoreHandler{resolver: resolver}
}

// CreateStore handles store creation. The creating principal becomes the
// owner and receives a membership row in the same transaction.
func (h *StoreHandler) CreateStore(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordStoreOperation("create")

	userID, ok := middleware.PrincipalFromContext(c)
	if !ok {
		log.Error("Failed to get user ID from context")
		prometheus.RecordStoreError("unauthorized_store_creation")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse store creation request", zap.Error(err))
		prometheus.RecordStoreError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || req.Slug == "" {
		log.Warn("Incomplete store data", zap.String("name", req.Name), zap.String("slug", req.Slug))
		prometheus.RecordStoreError("incomplete_store_creation")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and slug are required"})
	}
	if !slugPattern.MatchString(req.Slug) {
		log.Warn("Invalid store slug", zap.String("slug", req.Slug))
		prometheus.RecordStoreError("invalid_slug")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug may only contain lowercase letters, digits and dashes"})
	}

	// Check if the slug is already taken
	var count int64
	database.GetDB().Model(&model.Store{}).Where("slug = ?", req.Slug).Count(&count)
	if count > 0 {
		log.Warn("Store slug already taken", zap.String("slug", req.Slug))
		prometheus.RecordStoreError("duplicate_slug")
		return c.JSON(http.StatusConflict, echo.Map{"error": "store with this slug already exists"})
	}

	store := model.Store{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		OwnerID:     userID,
		Active:      true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&store).Error; err != nil {
			return err
		}
		member := model.StoreMember{
			UserID:  userID,
			StoreID: store.ID,
			Role:    model.RoleOwner,
			Active:  true,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		// A concurrent creation of the same slug slips past the count
		// check and lands here via the unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Warn("Store slug already taken", zap.String("slug", req.Slug))
			prometheus.RecordStoreError("duplicate_slug")
			return c.JSON(http.StatusConflict, echo.Map{"error": "store with this slug already exists"})
		}
		log.Error("Failed to create store", zap.Error(err))
		prometheus.RecordStoreError("store_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store creation failed"})
	}

	log.Info("Store created",
		zap.Uint("store_id", store.ID),
		zap.String("slug", store.Slug),
		zap.Uint("owner_id", store.OwnerID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Store created successfully",
		"store":   store,
	})
}

// ListStores retrieves all stores the principal owns or is a member of
func (h *StoreHandler) ListStores(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordStoreOperation("list")

	userID, ok := middleware.PrincipalFromContext(c)
	if !ok {
		log.Error("Failed to get user ID from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	memberOf := database.GetDB().Model(&model.StoreMember{}).
		Select("store_id").
		Where("user_id = ? AND active = ?", userID, true)

	var stores []model.Store
	result := database.GetDB().
		Where("owner_id = ?", userID).
		Or("id IN (?)", memberOf).
		Find(&stores)
	if result.Error != nil {
		log.Error("Failed to list stores", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve stores"})
	}

	return c.JSON(http.StatusOK, stores)
}

// GetStore returns the store the request is bound to
func (h *StoreHandler) GetStore(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordStoreOperation("get")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var store model.Store
	if result := database.GetDB().First(&store, accessor.StoreID()); result.Error != nil {
		log.Error("Store not found after resolution", zap.Uint("store_id", accessor.StoreID()), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
	}

	return c.JSON(http.StatusOK, store)
}

// DeleteStore destroys a store and cascades all of its scoped records in
// one transaction. Only the owner may do this.
func (h *StoreHandler) DeleteStore(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordStoreOperation("delete")

	accessor, ok := middleware.AccessorFromContext(c)
	if !ok {
		log.Error("Missing accessor in request context")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	tc := accessor.Context()
	if tc.Role != model.RoleOwner {
		log.Warn("Non-owner attempted store deletion",
			zap.Uint("store_id", tc.StoreID),
			zap.Uint("user_id", tc.PrincipalID))
		prometheus.RecordStoreError("delete_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the store owner may delete it"})
	}

	var store model.Store
	if result := database.GetDB().First(&store, tc.StoreID); result.Error != nil {
		log.Error("Store not found after resolution", zap.Uint("store_id", tc.StoreID), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		cascade := scope.NewAccessor(policy.WithStore(tx, tc.StoreID), tc)
		for _, rec := range []scope.Record{&model.OrderItem{}, &model.Order{}, &model.Product{}} {
			if err := cascade.Purge(rec); err != nil {
				return err
			}
		}
		if err := tx.Where("store_id = ?", tc.StoreID).Delete(&model.StoreMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Store{}, tc.StoreID).Error
	})
	if err != nil {
		log.Error("Failed to delete store", zap.Uint("store_id", tc.StoreID), zap.Error(err))
		prometheus.RecordStoreError("store_deletion_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store deletion failed"})
	}

	// Drop the store from the resolver cache so the TTL cannot resurrect it
	h.resolver.Forget(&store)

	log.Info("Store deleted",
		zap.Uint("store_id", store.ID),
		zap.String("slug", store.Slug))

	return c.JSON(http.StatusOK, echo.Map{"message": "Store deleted successfully"})
}
