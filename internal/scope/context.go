package scope

// StampKey is the gorm session setting carrying the store a request is bound
// to. The request layer stamps it once after resolving the tenant context and
// it is immutable for the rest of the request; the policy layer compares it
// against the predicate of every statement touching a store-scoped table.
const StampKey = "storeadmin:store_id"

// Context is the validated, request-scoped binding of a principal to a store.
// It is recomputed on every request by the resolver and never persisted.
type Context struct {
	PrincipalID uint
	StoreID     uint
	Role        string
}

// Record is implemented by every model that must never cross store
// boundaries. The accessor and the policy layer both key on it.
type Record interface {
	GetStoreID() uint
	SetStoreID(id uint)
}
