package memory

import (
	"reflect"
	"sync"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/pkg/generic"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

var (
	serversMu sync.Mutex
	servers   = map[string]*Server{}
)

// Shared returns the process wide server with the given name.
func Shared(name string) *Server {
	serversMu.Lock()
	defer serversMu.Unlock()
	s, ok := servers[name]
	if !ok {
		s = NewServer()
		servers[name] = s
	}
	return s
}

// Server holds one JSON tree and fans changes out to subscribers.
type Server struct {
	mu     sync.Mutex
	root   map[string]any
	subs   map[uint64]*subscription
	nextID uint64
}

type subscription struct {
	id   uint64
	path string
	last any
	sent bool
	out  *generic.Dispatcher[*driver.Snapshot]
}

func NewServer() *Server {
	return &Server{root: map[string]any{}, subs: map[uint64]*subscription{}}
}

// Connect opens a connection that is ready to use without Init.
func (s *Server) Connect() *Memory {
	m := &Memory{}
	m.attach(s)
	return m
}

// SubscriberCount is the number of open subscriptions on all connections.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) get(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return driver.DeepCopy(driver.Lookup(s.root, path))
}

type write struct {
	path  string
	value any
}

// apply runs the writes as one atomic change and notifies once.
func (s *Server) apply(writes ...write) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		s.setLocked(w.path, w.value)
	}
	for _, sub := range s.subs {
		for _, w := range writes {
			if utils.PathRelated(sub.path, w.path) {
				s.notifyLocked(sub)
				break
			}
		}
	}
}

func (s *Server) setLocked(path string, value any) {
	segs := utils.SplitPath(path)
	if len(segs) == 0 {
		if m, ok := value.(map[string]any); ok {
			s.root = m
		} else {
			s.root = map[string]any{}
		}
		return
	}
	if value == nil {
		s.removeLocked(s.root, segs)
		return
	}
	cur := s.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// removeLocked deletes the leaf and prunes parents left empty.
func (s *Server) removeLocked(node map[string]any, segs []string) bool {
	if len(segs) == 1 {
		delete(node, segs[0])
		return len(node) == 0
	}
	child, ok := node[segs[0]].(map[string]any)
	if !ok {
		return false
	}
	if s.removeLocked(child, segs[1:]) {
		delete(node, segs[0])
	}
	return len(node) == 0
}

func (s *Server) notifyLocked(sub *subscription) {
	v := driver.DeepCopy(driver.Lookup(s.root, sub.path))
	if sub.sent && reflect.DeepEqual(v, sub.last) {
		return
	}
	sub.last, sub.sent = v, true
	sub.out.Push(driver.NewSnapshot(sub.path, driver.DeepCopy(v)))
}

func (s *Server) subscribe(path string, fn func(*driver.Snapshot)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &subscription{id: s.nextID, path: utils.JoinPath(path), out: generic.NewDispatcher(fn)}
	s.subs[sub.id] = sub
	s.notifyLocked(sub)
	return sub.id
}

func (s *Server) unsubscribe(id uint64) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		sub.out.Close()
	}
}
