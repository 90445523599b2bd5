package localstore

import (
	"sort"

	"github.com/Xhofe/go-cache"
	mapset "github.com/deckarep/golang-set/v2"
)

// Tab is storage that lives and dies with one tab. No other view exists,
// so Watch never fires.
type Tab struct {
	c    cache.ICache[string]
	keys mapset.Set[string]
}

func NewTab() *Tab {
	return &Tab{
		c:    cache.NewMemCache(cache.WithShards[string](4)),
		keys: mapset.NewSet[string](),
	}
}

func (t *Tab) Get(key string) (string, bool) {
	return t.c.Get(key)
}

func (t *Tab) Set(key, value string) error {
	t.c.Set(key, value)
	t.keys.Add(key)
	return nil
}

func (t *Tab) Remove(key string) error {
	t.c.Del(key)
	t.keys.Remove(key)
	return nil
}

func (t *Tab) Clear() error {
	t.c.Clear()
	t.keys.Clear()
	return nil
}

func (t *Tab) Keys() []string {
	keys := t.keys.ToSlice()
	sort.Strings(keys)
	return keys
}

func (t *Tab) Watch(fn func(Event)) func() {
	return func() {}
}

var _ Storage = (*Tab)(nil)
