package localstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/smsdesk-org/smsdesk/internal/db"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
)

// Persistent is a view of a profile kept in a database file, so consoles
// in separate processes can share it. Changes from other views are found
// by polling.
type Persistent struct {
	p        *db.Profile
	origin   string
	clock    clock.Clock
	interval time.Duration
}

func NewPersistent(p *db.Profile, c clock.Clock, poll time.Duration) *Persistent {
	return &Persistent{p: p, origin: uuid.NewString(), clock: c, interval: poll}
}

func (s *Persistent) Get(key string) (string, bool) {
	it, err := s.p.GetItem(key)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("failed read profile key %s: %+v", key, err)
		}
		return "", false
	}
	return it.Value, true
}

func (s *Persistent) Set(key, value string) error {
	return s.p.PutItem(key, value, s.origin)
}

func (s *Persistent) Remove(key string) error {
	return s.p.DeleteItem(key, s.origin)
}

func (s *Persistent) Clear() error {
	return s.p.ClearItems(s.origin)
}

func (s *Persistent) Keys() []string {
	items, err := s.p.ListItems()
	if err != nil {
		log.Warnf("failed list profile keys: %+v", err)
		return nil
	}
	keys := make([]string, len(items))
	for i := range items {
		keys[i] = items[i].Key
	}
	return keys
}

func (s *Persistent) Watch(fn func(Event)) func() {
	rev, err := s.p.MaxRev()
	if err != nil {
		log.Warnf("failed read profile revision: %+v", err)
	}
	stop := make(chan struct{})
	go func() {
		t := s.clock.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
			}
			evs, err := s.p.EventsAfter(rev)
			if err != nil {
				log.Warnf("failed poll profile changes: %+v", err)
				continue
			}
			for _, ev := range evs {
				rev = ev.Rev
				if ev.Origin == s.origin {
					continue
				}
				fn(Event{Key: ev.Key, Value: ev.Value, Removed: ev.Deleted})
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}

// Compact drops change events older than retention. Retention must be
// well above the poll interval of every view sharing the profile.
func (s *Persistent) Compact(retention time.Duration) error {
	n, err := s.p.PruneEvents(s.clock.Now().Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debugf("pruned %d profile events", n)
	}
	return nil
}

var _ Storage = (*Persistent)(nil)
