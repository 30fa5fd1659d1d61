package scope

import (
	"errors"

	"gorm.io/gorm"
)

// Accessor is the only permitted path for reading and writing store-scoped
// records. Every query it issues carries the bound store in its predicate;
// the predicate is appended unconditionally and caller-supplied filters
// cannot override it.
type Accessor struct {
	db *gorm.DB
	sc Context
}

// NewAccessor binds a database handle to one tenant context. The handle is
// expected to already carry the policy stamp for the same store (see
// policy.WithStore); the accessor itself never reads the stamp.
func NewAccessor(db *gorm.DB, sc Context) *Accessor {
	// Session() so each accessor call starts from a clean statement and
	// conditions never accumulate across calls; the stamp survives the
	// statement clone.
	return &Accessor{db: db.Session(&gorm.Session{}), sc: sc}
}

// Context returns the tenant context the accessor is bound to.
func (a *Accessor) Context() Context {
	return a.sc
}

// StoreID returns the store the accessor is bound to.
func (a *Accessor) StoreID() uint {
	return a.sc.StoreID
}

func (a *Accessor) scoped() *gorm.DB {
	return a.db.Where("store_id = ?", a.sc.StoreID)
}

// List retrieves all records of the destination type visible in the bound
// store. Optional conditions are ANDed onto the store predicate.
func (a *Accessor) List(dest interface{}, conds ...interface{}) error {
	query := a.scoped()
	if len(conds) > 0 {
		query = query.Where(conds[0], conds[1:]...)
	}
	return query.Find(dest).Error
}

// Count counts records of the model type visible in the bound store.
func (a *Accessor) Count(model Record, conds ...interface{}) (int64, error) {
	var count int64
	query := a.scoped().Model(model)
	if len(conds) > 0 {
		query = query.Where(conds[0], conds[1:]...)
	}
	return count, query.Count(&count).Error
}

// Get loads the record with the given id. A record that exists but belongs
// to a foreign store is reported as ErrNotFound, never as unauthorized.
func (a *Accessor) Get(rec Record, id uint) error {
	err := a.scoped().First(rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Create inserts the record into the bound store. Any store id the caller
// placed on the record is overwritten with the context's before the insert.
// A unique index collision is reported as ErrConflict.
func (a *Accessor) Create(rec Record) error {
	rec.SetStoreID(a.sc.StoreID)
	err := a.db.Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// Update re-fetches the record under the store predicate and applies the
// fields inside the same transaction, so ownership cannot change between
// the check and the write. Fails with ErrNotFound on a store mismatch.
func (a *Accessor) Update(rec Record, id uint, fields map[string]interface{}) error {
	return a.Transaction(func(tx *Accessor) error {
		if err := tx.Get(rec, id); err != nil {
			return err
		}
		// The store reference is immutable after creation.
		delete(fields, "store_id")
		if len(fields) == 0 {
			return nil
		}
		err := tx.scoped().Model(rec).Updates(fields).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return err
	})
}

// Delete re-checks ownership and removes the record within one transaction,
// mirroring Update's check-and-use discipline.
func (a *Accessor) Delete(rec Record, id uint) error {
	return a.Transaction(func(tx *Accessor) error {
		if err := tx.Get(rec, id); err != nil {
			return err
		}
		return tx.scoped().Delete(rec).Error
	})
}

// Purge removes every record of the model type in the bound store. Used by
// the cascading store delete.
func (a *Accessor) Purge(rec Record) error {
	return a.scoped().Delete(rec).Error
}

// Transaction runs fn against an accessor bound to the same context inside
// one storage transaction. Multi-record operations (an order plus its line
// items) go through here so a mid-way failure leaves no orphans.
func (a *Accessor) Transaction(fn func(tx *Accessor) error) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		// Re-stamp the transaction handle: gorm session settings do not
		// reliably survive Begin, and the policy layer refuses unstamped
		// statements.
		return fn(NewAccessor(tx.Set(StampKey, a.sc.StoreID), a.sc))
	})
}
