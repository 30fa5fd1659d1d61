package middleware

import (
	"errors"
	"net/http"

	"storeadmin/internal/policy"
	"storeadmin/internal/scope"
	"storeadmin/internal/tenant"
	"storeadmin/pkg/database"
	"storeadmin/pkg/logger"
	"storeadmin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantContext resolves the store referenced by the :store path parameter
// against the authenticated principal and binds a scoped accessor into the
// request context. A missing store and an unauthorized one produce the same
// response, so existence of foreign stores does not leak.
func TenantContext(resolver *tenant.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			principalID, ok := PrincipalFromContext(c)
			if !ok {
				log.Error("Tenant resolution without authenticated principal")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			ref := c.Param("store")
			tc, err := resolver.Resolve(principalID, ref)
			if err != nil {
				if errors.Is(err, scope.ErrNotFound) || errors.Is(err, scope.ErrUnauthorized) {
					log.Warn("Store resolution denied",
						zap.String("store_ref", ref),
						zap.Uint("user_id", principalID))
					prometheus.ResolveDeniedCounter.Inc()
					return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
				}
				log.Error("Store resolution failed", zap.String("store_ref", ref), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			// Stamp the session once for the policy layer, then bind the
			// accessor. These are the two independent halves of the scoping
			// check.
			db := policy.WithStore(database.GetDB().WithContext(c.Request().Context()), tc.StoreID)
			c.Set("accessor", scope.NewAccessor(db, *tc))
			c.Set("store_id", tc.StoreID)
			c.Set("store_role", tc.Role)

			log.Debug("Request bound to store",
				zap.Uint("store_id", tc.StoreID),
				zap.String("role", tc.Role))

			return next(c)
		}
	}
}

// AccessorFromContext retrieves the scoped accessor bound by TenantContext.
func AccessorFromContext(c echo.Context) (*scope.Accessor, bool) {
	accessor, ok := c.Get("accessor").(*scope.Accessor)
	return accessor, ok
}
