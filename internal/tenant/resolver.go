// Package tenant resolves which store a request is permitted to act on.
// Resolution is recomputed per request and never cached beyond the store
// row itself; the membership check always goes to the database so a revoked
// grant cannot outlive a cache entry.
package tenant

import (
	"errors"
	"strconv"
	"time"

	"storeadmin/internal/model"
	"storeadmin/internal/scope"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// Resolver produces validated tenant contexts from a principal and a
// requested store reference (numeric id or slug).
type Resolver struct {
	db    *gorm.DB
	cache *gocache.Cache
}

// NewResolver creates a resolver with the default 30s store lookup cache.
func NewResolver(db *gorm.DB) *Resolver {
	return NewResolverWithTTL(db, 30*time.Second, time.Minute)
}

// NewResolverWithTTL creates a resolver with an explicit store cache TTL.
func NewResolverWithTTL(db *gorm.DB, ttl, cleanup time.Duration) *Resolver {
	return &Resolver{
		db:    db,
		cache: gocache.New(ttl, cleanup),
	}
}

// Resolve validates that the principal may act on the referenced store and
// returns the tenant context binding the two. It fails with
// scope.ErrNotFound when no store matches and scope.ErrUnauthorized when
// the store exists but the principal holds no grant; callers at the network
// boundary must answer both identically.
func (r *Resolver) Resolve(principalID uint, ref string) (*scope.Context, error) {
	store, err := r.lookupStore(ref)
	if err != nil {
		return nil, err
	}

	if store.OwnerID == principalID {
		return &scope.Context{
			PrincipalID: principalID,
			StoreID:     store.ID,
			Role:        model.RoleOwner,
		}, nil
	}

	// Membership is checked against the database on every request so a
	// revoked grant takes effect immediately.
	var member model.StoreMember
	err = r.db.Where("user_id = ? AND store_id = ? AND active = ?", principalID, store.ID, true).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, scope.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	return &scope.Context{
		PrincipalID: principalID,
		StoreID:     store.ID,
		Role:        member.Role,
	}, nil
}

// Forget drops a store from the lookup cache. Called after a store is
// deleted so the cache cannot resurrect it within the TTL.
func (r *Resolver) Forget(store *model.Store) {
	r.cache.Delete(strconv.FormatUint(uint64(store.ID), 10))
	r.cache.Delete(store.Slug)
}

// lookupStore finds an active store by numeric id or slug. Store rows are
// read-mostly, so found stores are cached for a short TTL; misses are not
// cached. The cache holds values, each caller gets its own copy so no two
// requests ever share a store row.
func (r *Resolver) lookupStore(ref string) (*model.Store, error) {
	if cached, ok := r.cache.Get(ref); ok {
		store := cached.(model.Store)
		return &store, nil
	}

	query := r.db
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		query = query.Where("id = ?", uint(id))
	} else {
		query = query.Where("slug = ?", ref)
	}

	var store model.Store
	err := query.Where("active = ?", true).First(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, scope.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.cache.SetDefault(ref, store)
	return &store, nil
}
