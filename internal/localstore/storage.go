// Package localstore holds the per-profile and per-tab key/value storage
// a console keeps on the local machine.
package localstore

// Event describes a change made through another view of the same storage.
type Event struct {
	Key     string
	Value   string
	Removed bool
}

type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Clear() error
	Keys() []string
	// Watch calls fn for changes made through other views of the same
	// storage, never for this view's own writes.
	Watch(fn func(Event)) (cancel func())
}
