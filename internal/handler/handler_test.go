package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storeadmin/internal/handler"
	mid "storeadmin/internal/middleware"
	"storeadmin/internal/model"
	"storeadmin/internal/policy"
	"storeadmin/internal/tenant"
	"storeadmin/pkg/config"
	"storeadmin/pkg/database"
	"storeadmin/pkg/jwtutil"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestServer wires the full route table against an in-memory database,
// mirroring the wiring in cmd/main.go.
func newTestServer(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Use(policy.New()))
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Store{},
		&model.StoreMember{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
	))

	database.DB = db
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	resolver := tenant.NewResolver(db)

	e := echo.New()
	e.Use(mid.RequestIDMiddleware)

	e.GET("/health", handler.Health)

	api := e.Group("/api")
	api.POST("/auth/register", handler.Register)
	api.POST("/auth/login", handler.Login)

	storeHandler := handler.NewStoreHandler(resolver)
	stores := api.Group("/stores", mid.AuthMiddleware)
	stores.POST("", storeHandler.CreateStore)
	stores.GET("", storeHandler.ListStores)

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

	return e, db
}

func doRequest(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, e *echo.Echo, email string) string {
	t.Helper()

	rec := doRequest(t, e, http.MethodPost, "/api/auth/register", "", echo.Map{
		"email":    email,
		"password": "secret123",
		"name":     "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/auth/login", "", echo.Map{
		"email":    email,
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func createStore(t *testing.T, e *echo.Echo, token, name, slug string) model.Store {
	t.Helper()

	rec := doRequest(t, e, http.MethodPost, "/api/stores", token, echo.Map{
		"name": name,
		"slug": slug,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Store model.Store `json:"store"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.Store.ID)
	return resp.Store
}

func createProduct(t *testing.T, e *echo.Echo, token, storeRef string, body echo.Map) model.Product {
	t.Helper()

	rec := doRequest(t, e, http.MethodPost, "/api/stores/"+storeRef+"/products", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var product model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))
	require.NotZero(t, product.ID)
	return product
}
