package scope_test

import (
	"errors"
	"fmt"
	"testing"

	"storeadmin/internal/model"
	"storeadmin/internal/policy"
	"storeadmin/internal/scope"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
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
	return db
}

func seedStore(t *testing.T, db *gorm.DB, slug string, ownerID uint) *model.Store {
	t.Helper()

	store := &model.Store{Name: slug, Slug: slug, OwnerID: ownerID, Active: true}
	require.NoError(t, db.Create(store).Error)
	return store
}

func accessorFor(db *gorm.DB, store *model.Store) *scope.Accessor {
	sc := scope.Context{PrincipalID: store.OwnerID, StoreID: store.ID, Role: model.RoleOwner}
	return scope.NewAccessor(policy.WithStore(db, store.ID), sc)
}

func TestCreateForcesBoundStore(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)
	acc := accessorFor(db, one)

	// The caller-supplied store id must be overwritten, not trusted.
	product := model.Product{Name: "Widget", SKU: "W-1", Price: 9.99, Stock: 5, StoreID: two.ID}
	require.NoError(t, acc.Create(&product))
	assert.Equal(t, one.ID, product.StoreID)

	var loaded model.Product
	require.NoError(t, acc.Get(&loaded, product.ID))
	assert.Equal(t, "Widget", loaded.Name)
	assert.Equal(t, "W-1", loaded.SKU)
	assert.Equal(t, one.ID, loaded.StoreID)
}

func TestCreateDuplicateSKUReportsConflict(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	acc := accessorFor(db, one)

	require.NoError(t, acc.Create(&model.Product{Name: "Widget", SKU: "W-1", Price: 1}))

	// Straight to the unique index, no advisory count in front of it.
	err := acc.Create(&model.Product{Name: "Widget Again", SKU: "W-1", Price: 2})
	assert.ErrorIs(t, err, scope.ErrConflict)
}

func TestDeletedRecordFreesItsSKU(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	acc := accessorFor(db, one)

	product := model.Product{Name: "Widget", SKU: "W-1", Price: 1}
	require.NoError(t, acc.Create(&product))
	require.NoError(t, acc.Delete(&model.Product{}, product.ID))

	// The unique index only covers live rows, so the SKU is reusable.
	require.NoError(t, acc.Create(&model.Product{Name: "Widget Reborn", SKU: "W-1", Price: 2}))
}

func TestGetForeignStoreReportsNotFound(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)

	product := model.Product{Name: "Widget", SKU: "W-1", Price: 9.99}
	require.NoError(t, accessorFor(db, two).Create(&product))

	var loaded model.Product
	err := accessorFor(db, one).Get(&loaded, product.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, scope.ErrNotFound)
	// Foreign records must never surface as an authorization failure,
	// that would confirm the record exists.
	assert.NotErrorIs(t, err, scope.ErrUnauthorized)
}

func TestListCannotEscapeScope(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)
	accOne := accessorFor(db, one)
	accTwo := accessorFor(db, two)

	require.NoError(t, accOne.Create(&model.Product{Name: "Mine", SKU: "M-1", Price: 1}))
	require.NoError(t, accTwo.Create(&model.Product{Name: "Theirs", SKU: "T-1", Price: 1}))

	var products []model.Product
	require.NoError(t, accOne.List(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "Mine", products[0].Name)

	// A caller-supplied store filter is ANDed onto the scope predicate,
	// it cannot widen it to a foreign store.
	products = nil
	require.NoError(t, accOne.List(&products, "store_id = ?", two.ID))
	assert.Empty(t, products)
}

func TestCountIsScoped(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)

	require.NoError(t, accessorFor(db, one).Create(&model.Product{Name: "A", SKU: "A-1", Price: 1}))
	require.NoError(t, accessorFor(db, two).Create(&model.Product{Name: "B", SKU: "B-1", Price: 1}))
	require.NoError(t, accessorFor(db, two).Create(&model.Product{Name: "C", SKU: "C-1", Price: 1}))

	count, err := accessorFor(db, one).Count(&model.Product{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = accessorFor(db, two).Count(&model.Product{}, "sku = ?", "B-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestUpdateForeignStoreReportsNotFound(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)
	accTwo := accessorFor(db, two)

	product := model.Product{Name: "Theirs", SKU: "T-1", Price: 5}
	require.NoError(t, accTwo.Create(&product))

	var scratch model.Product
	err := accessorFor(db, one).Update(&scratch, product.ID, map[string]interface{}{"name": "Hijacked"})
	assert.ErrorIs(t, err, scope.ErrNotFound)

	var reloaded model.Product
	require.NoError(t, accTwo.Get(&reloaded, product.ID))
	assert.Equal(t, "Theirs", reloaded.Name)
}

func TestUpdateCannotMoveRecordBetweenStores(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)
	acc := accessorFor(db, one)

	product := model.Product{Name: "Widget", SKU: "W-1", Price: 9.99}
	require.NoError(t, acc.Create(&product))

	var updated model.Product
	require.NoError(t, acc.Update(&updated, product.ID, map[string]interface{}{
		"name":     "Renamed",
		"store_id": two.ID,
	}))

	var reloaded model.Product
	require.NoError(t, acc.Get(&reloaded, product.ID))
	assert.Equal(t, "Renamed", reloaded.Name)
	assert.Equal(t, one.ID, reloaded.StoreID)
}

func TestDeleteForeignStoreReportsNotFound(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)
	accTwo := accessorFor(db, two)

	product := model.Product{Name: "Theirs", SKU: "T-1", Price: 5}
	require.NoError(t, accTwo.Create(&product))

	err := accessorFor(db, one).Delete(&model.Product{}, product.ID)
	assert.ErrorIs(t, err, scope.ErrNotFound)

	var reloaded model.Product
	require.NoError(t, accTwo.Get(&reloaded, product.ID))
}

func TestDeleteOwnRecord(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	acc := accessorFor(db, one)

	product := model.Product{Name: "Widget", SKU: "W-1", Price: 9.99}
	require.NoError(t, acc.Create(&product))

	require.NoError(t, acc.Delete(&model.Product{}, product.ID))

	var gone model.Product
	assert.ErrorIs(t, acc.Get(&gone, product.ID), scope.ErrNotFound)
}

func TestPurgeOnlyTouchesBoundStore(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)

	require.NoError(t, accessorFor(db, one).Create(&model.Product{Name: "A", SKU: "A-1", Price: 1}))
	require.NoError(t, accessorFor(db, two).Create(&model.Product{Name: "B", SKU: "B-1", Price: 1}))

	require.NoError(t, accessorFor(db, one).Purge(&model.Product{}))

	count, err := accessorFor(db, one).Count(&model.Product{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	count, err = accessorFor(db, two).Count(&model.Product{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestTransactionRollbackLeavesNoOrphans(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	acc := accessorFor(db, one)

	boom := errors.New("boom")
	err := acc.Transaction(func(tx *scope.Accessor) error {
		order := model.Order{CustomerName: "Jo", CustomerEmail: "jo@example.com", Status: model.OrderStatusPending, Total: 10}
		if err := tx.Create(&order); err != nil {
			return err
		}
		item := model.OrderItem{OrderID: order.ID, ProductID: 1, Quantity: 1, UnitPrice: 10}
		if err := tx.Create(&item); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	orders, err := acc.Count(&model.Order{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, orders)

	items, err := acc.Count(&model.OrderItem{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, items)
}

func TestUpdateRollsBackWithEnclosingTransaction(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	acc := accessorFor(db, one)

	product := model.Product{Name: "Widget", SKU: "W-1", Price: 9.99}
	require.NoError(t, acc.Create(&product))

	boom := errors.New("boom")
	err := acc.Transaction(func(tx *scope.Accessor) error {
		var scratch model.Product
		if err := tx.Update(&scratch, product.ID, map[string]interface{}{"name": "Changed"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var reloaded model.Product
	require.NoError(t, acc.Get(&reloaded, product.ID))
	assert.Equal(t, "Widget", reloaded.Name)
}

func TestTransactionAccessorStaysScoped(t *testing.T) {
	db := setupDB(t)
	one := seedStore(t, db, "store-one", 1)
	two := seedStore(t, db, "store-two", 2)

	product := model.Product{Name: "Theirs", SKU: "T-1", Price: 5}
	require.NoError(t, accessorFor(db, two).Create(&product))

	err := accessorFor(db, one).Transaction(func(tx *scope.Accessor) error {
		var loaded model.Product
		return tx.Get(&loaded, product.ID)
	})
	assert.ErrorIs(t, err, scope.ErrNotFound)
}
