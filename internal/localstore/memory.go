package localstore

import (
	"sort"
	"sync"

	"github.com/smsdesk-org/smsdesk/pkg/generic"
)

// Profile is an in-process persistent storage shared by every tab of one
// profile. Each tab talks to it through its own View.
type Profile struct {
	mu       sync.Mutex
	data     map[string]string
	nextID   uint64
	watchers map[uint64]*watcher
}

type watcher struct {
	origin uint64
	out    *generic.Dispatcher[Event]
}

func NewProfile() *Profile {
	return &Profile{data: map[string]string{}, watchers: map[uint64]*watcher{}}
}

func (p *Profile) View() *View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return &View{p: p, id: p.nextID}
}

// WatcherCount is the number of open watches on all views.
func (p *Profile) WatcherCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

func (p *Profile) emitLocked(origin uint64, ev Event) {
	for _, w := range p.watchers {
		if w.origin != origin {
			w.out.Push(ev)
		}
	}
}

type View struct {
	p  *Profile
	id uint64
}

func (v *View) Get(key string) (string, bool) {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	val, ok := v.p.data[key]
	return val, ok
}

func (v *View) Set(key, value string) error {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	v.p.data[key] = value
	v.p.emitLocked(v.id, Event{Key: key, Value: value})
	return nil
}

func (v *View) Remove(key string) error {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	if _, ok := v.p.data[key]; !ok {
		return nil
	}
	delete(v.p.data, key)
	v.p.emitLocked(v.id, Event{Key: key, Removed: true})
	return nil
}

func (v *View) Clear() error {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	for _, k := range v.keysLocked() {
		delete(v.p.data, k)
		v.p.emitLocked(v.id, Event{Key: k, Removed: true})
	}
	return nil
}

func (v *View) Keys() []string {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	return v.keysLocked()
}

func (v *View) keysLocked() []string {
	keys := make([]string, 0, len(v.p.data))
	for k := range v.p.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v *View) Watch(fn func(Event)) func() {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	v.p.nextID++
	id := v.p.nextID
	w := &watcher{origin: v.id, out: generic.NewDispatcher(fn)}
	v.p.watchers[id] = w
	var once sync.Once
	return func() {
		once.Do(func() {
			v.p.mu.Lock()
			delete(v.p.watchers, id)
			v.p.mu.Unlock()
			w.out.Close()
		})
	}
}

var _ Storage = (*View)(nil)
