package cache

// ResourceKind names a cached collection
type ResourceKind string

const (
	KindClubs  ResourceKind = "clubs"
	KindEvents ResourceKind = "events"
	// KindUsers is never cached; invalidating it is a no-op
	KindUsers ResourceKind = "users"
)

// AllKinds lists every resource kind
var AllKinds = []ResourceKind{KindClubs, KindEvents, KindUsers}

// Key returns the fixed logical key of the collection entry
func (k ResourceKind) Key() string {
	return string(k) + ".all"
}

// Cacheable reports whether the kind has a collection cache
func (k ResourceKind) Cacheable() bool {
	return k == KindClubs || k == KindEvents
}

func (k ResourceKind) String() string {
	return string(k)
}
