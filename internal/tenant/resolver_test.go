package tenant_test

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"storeadmin/internal/model"
	"storeadmin/internal/policy"
	"storeadmin/internal/scope"
	"storeadmin/internal/tenant"

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

type fixture struct {
	db       *gorm.DB
	resolver *tenant.Resolver
	owner    model.User
	member   model.User
	stranger model.User
	store    model.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{db: setupDB(t)}
	f.resolver = tenant.NewResolver(f.db)

	f.owner = model.User{Email: "owner@example.com", Name: "Owner"}
	f.member = model.User{Email: "member@example.com", Name: "Member"}
	f.stranger = model.User{Email: "stranger@example.com", Name: "Stranger"}
	require.NoError(t, f.db.Create(&f.owner).Error)
	require.NoError(t, f.db.Create(&f.member).Error)
	require.NoError(t, f.db.Create(&f.stranger).Error)

	f.store = model.Store{Name: "Acme", Slug: "acme", OwnerID: f.owner.ID, Active: true}
	require.NoError(t, f.db.Create(&f.store).Error)

	grant := model.StoreMember{UserID: f.member.ID, StoreID: f.store.ID, Role: model.RoleMember, Active: true}
	require.NoError(t, f.db.Create(&grant).Error)

	return f
}

func TestResolveOwnerBySlugAndID(t *testing.T) {
	f := newFixture(t)

	bySlug, err := f.resolver.Resolve(f.owner.ID, "acme")
	require.NoError(t, err)
	assert.Equal(t, f.store.ID, bySlug.StoreID)
	assert.Equal(t, f.owner.ID, bySlug.PrincipalID)
	assert.Equal(t, model.RoleOwner, bySlug.Role)

	byID, err := f.resolver.Resolve(f.owner.ID, strconv.FormatUint(uint64(f.store.ID), 10))
	require.NoError(t, err)
	assert.Equal(t, bySlug, byID)
}

func TestResolveMemberGetsGrantedRole(t *testing.T) {
	f := newFixture(t)

	tc, err := f.resolver.Resolve(f.member.ID, "acme")
	require.NoError(t, err)
	assert.Equal(t, f.store.ID, tc.StoreID)
	assert.Equal(t, model.RoleMember, tc.Role)
}

func TestResolveStrangerUnauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Resolve(f.stranger.ID, "acme")
	assert.ErrorIs(t, err, scope.ErrUnauthorized)
}

func TestResolveMissingStoreNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Resolve(f.owner.ID, "no-such-store")
	assert.ErrorIs(t, err, scope.ErrNotFound)

	_, err = f.resolver.Resolve(f.owner.ID, "99999")
	assert.ErrorIs(t, err, scope.ErrNotFound)
}

func TestResolveInactiveStoreNotFound(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Model(&model.Store{}).Where("id = ?", f.store.ID).Update("active", false).Error)

	_, err := f.resolver.Resolve(f.owner.ID, "acme")
	assert.ErrorIs(t, err, scope.ErrNotFound)
}

func TestResolveInactiveGrantUnauthorized(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Model(&model.StoreMember{}).
		Where("user_id = ? AND store_id = ?", f.member.ID, f.store.ID).
		Update("active", false).Error)

	_, err := f.resolver.Resolve(f.member.ID, "acme")
	assert.ErrorIs(t, err, scope.ErrUnauthorized)
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.resolver.Resolve(f.member.ID, "acme")
	require.NoError(t, err)
	second, err := f.resolver.Resolve(f.member.ID, "acme")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRevokedGrantTakesEffectDespiteStoreCache(t *testing.T) {
	f := newFixture(t)

	// Warm the store cache.
	_, err := f.resolver.Resolve(f.member.ID, "acme")
	require.NoError(t, err)

	// The membership check goes to the database on every request, so the
	// cached store row cannot keep a revoked grant alive.
	require.NoError(t, f.db.Model(&model.StoreMember{}).
		Where("user_id = ? AND store_id = ?", f.member.ID, f.store.ID).
		Update("active", false).Error)

	_, err = f.resolver.Resolve(f.member.ID, "acme")
	assert.ErrorIs(t, err, scope.ErrUnauthorized)
}

func TestForgetDropsCachedStore(t *testing.T) {
	db := setupDB(t)
	// Long TTL so only Forget can evict within the test.
	resolver := tenant.NewResolverWithTTL(db, time.Hour, time.Hour)

	owner := model.User{Email: "owner@example.com"}
	require.NoError(t, db.Create(&owner).Error)
	store := model.Store{Name: "Acme", Slug: "acme", OwnerID: owner.ID, Active: true}
	require.NoError(t, db.Create(&store).Error)

	_, err := resolver.Resolve(owner.ID, "acme")
	require.NoError(t, err)

	require.NoError(t, db.Delete(&model.Store{}, store.ID).Error)

	// Still cached: the row is gone but the TTL has not expired.
	_, err = resolver.Resolve(owner.ID, "acme")
	require.NoError(t, err)

	resolver.Forget(&store)
	_, err = resolver.Resolve(owner.ID, "acme")
	assert.ErrorIs(t, err, scope.ErrNotFound)
}
