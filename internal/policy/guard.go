// Package policy is the storage-level half of the dual scoping check. The
// accessor puts the store predicate on every statement; this plugin
// re-derives that predicate from the statement clauses and compares it to a
// stamp the request layer set on the session. A statement touching a
// store-scoped table with a missing or disagreeing predicate is aborted
// before it reaches the driver. There is no permissive mode.
package policy

import (
	"fmt"
	"reflect"
	"strings"

	"storeadmin/internal/scope"
	"storeadmin/pkg/logger"
	"storeadmin/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithStore stamps a database handle with the store a request is bound to.
// Called once per request by the tenant context middleware; the stamp is
// immutable for the rest of the request.
func WithStore(db *gorm.DB, storeID uint) *gorm.DB {
	return db.Set(scope.StampKey, storeID)
}

// StoreFrom reads the stamp off a database handle.
func StoreFrom(db *gorm.DB) (uint, bool) {
	value, ok := db.Get(scope.StampKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

// Guard is a gorm plugin enforcing store scoping at the statement boundary.
type Guard struct{}

// New creates the policy guard plugin.
func New() *Guard {
	return &Guard{}
}

// Name implements gorm.Plugin.
func (g *Guard) Name() string {
	return "storeadmin:policy"
}

// Initialize registers the scoping checks in front of every statement kind
// that can touch rows.
func (g *Guard) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("storeadmin:policy_query", g.verifyPredicate); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("storeadmin:policy_row", g.verifyPredicate); err != nil {
		return err
	}
	if err := db.Callback().Create().Before("gorm:create").Register("storeadmin:policy_create", g.verifyCreate); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("storeadmin:policy_update", g.verifyPredicate); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("storeadmin:policy_delete", g.verifyPredicate)
}

// verifyPredicate checks read, update and delete statements: the store
// predicate must be present and must equal the session stamp.
func (g *Guard) verifyPredicate(db *gorm.DB) {
	if !guarded(db.Statement) {
		return
	}

	stamp, ok := StoreFrom(db)
	if !ok {
		g.reject(db, "statement on store-scoped table without a bound store")
		return
	}

	predicate, ok := predicateStore(db.Statement)
	if !ok {
		g.reject(db, "statement on store-scoped table lacks a store predicate")
		return
	}

	if predicate != stamp {
		g.reject(db, fmt.Sprintf("store predicate %d disagrees with bound store %d", predicate, stamp))
	}
}

// verifyCreate checks inserts: every inserted record must carry the stamped
// store id.
func (g *Guard) verifyCreate(db *gorm.DB) {
	if !guarded(db.Statement) {
		return
	}

	stamp, ok := StoreFrom(db)
	if !ok {
		g.reject(db, "insert into store-scoped table without a bound store")
		return
	}

	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !createMatches(rv.Index(i), stamp) {
				g.reject(db, fmt.Sprintf("insert carries a foreign store id, bound store is %d", stamp))
				return
			}
		}
	case reflect.Struct:
		if !createMatches(rv, stamp) {
			g.reject(db, fmt.Sprintf("insert carries a foreign store id, bound store is %d", stamp))
		}
	}
}

func (g *Guard) reject(db *gorm.DB, reason string) {
	table := db.Statement.Table
	if table == "" && db.Statement.Schema != nil {
		table = db.Statement.Schema.Table
	}
	logger.GetLogger().Error("store scoping policy violation",
		zap.String("table", table),
		zap.String("reason", reason))
	prometheus.RecordPolicyViolation(table)
	db.AddError(fmt.Errorf("%w: %s", scope.ErrPolicyViolation, reason))
}

// guarded reports whether the statement touches a store-scoped model.
// Control-plane models (users, stores, memberships) do not implement
// scope.Record and stay outside the guard's jurisdiction.
func guarded(stmt *gorm.Statement) bool {
	return isRecord(stmt.Model) || isRecord(stmt.Dest)
}

func isRecord(value interface{}) bool {
	if value == nil {
		return false
	}
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	_, ok := reflect.New(t).Interface().(scope.Record)
	return ok
}

func createMatches(rv reflect.Value, stamp uint) bool {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return true
	}

	var rec scope.Record
	var ok bool
	if rv.CanAddr() {
		rec, ok = rv.Addr().Interface().(scope.Record)
	} else {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rec, ok = ptr.Interface().(scope.Record)
	}
	if !ok {
		return true
	}
	return rec.GetStoreID() == stamp
}

// predicateStore extracts the store id from the statement's WHERE clause.
// Only top-level and AND-nested equality conditions count; a predicate
// buried in an OR branch does not guarantee scoping.
func predicateStore(stmt *gorm.Statement) (uint, bool) {
	c, ok := stmt.Clauses["WHERE"]
	if !ok {
		return 0, false
	}
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return 0, false
	}
	return findStoreEq(where.Exprs)
}

func findStoreEq(exprs []clause.Expression) (uint, bool) {
	// gorm joins an OrConditions member to its siblings with OR, so a list
	// containing one is a disjunction and no member of it can guarantee
	// scoping on its own.
	for _, e := range exprs {
		if _, ok := e.(clause.OrConditions); ok {
			return 0, false
		}
	}
	for _, e := range exprs {
		switch cond := e.(type) {
		case clause.Eq:
			if columnName(cond.Column) == "store_id" {
				if id, ok := asUint(cond.Value); ok {
					return id, true
				}
			}
		case clause.Expr:
			if id, ok := exprStoreEq(cond); ok {
				return id, true
			}
		case clause.AndConditions:
			if id, ok := findStoreEq(cond.Exprs); ok {
				return id, true
			}
		case clause.Where:
			if id, ok := findStoreEq(cond.Exprs); ok {
				return id, true
			}
		}
	}
	return 0, false
}

func exprStoreEq(e clause.Expr) (uint, bool) {
	sql := strings.TrimSpace(strings.ToLower(e.SQL))
	switch sql {
	case "store_id = ?", "`store_id` = ?", `"store_id" = ?`:
		if len(e.Vars) == 1 {
			return asUint(e.Vars[0])
		}
	}
	return 0, false
}

func columnName(column interface{}) string {
	switch c := column.(type) {
	case string:
		return c
	case clause.Column:
		return c.Name
	}
	return ""
}

func asUint(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case uint:
		return v, true
	case uint32:
		return uint(v), true
	case uint64:
		return uint(v), true
	case int:
		if v >= 0 {
			return uint(v), true
		}
	case int32:
		if v >= 0 {
			return uint(v), true
		}
	case int64:
		if v >= 0 {
			return uint(v), true
		}
	}
	return 0, false
}
