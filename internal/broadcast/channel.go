// Package broadcast carries typed messages between tabs of one profile
// over their shared local storage.
package broadcast

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Message[T any] struct {
	Key   string
	Value T
}

// Channel owns every storage key for which match returns true. A
// published message stays in storage until cleared, so a tab opened
// later can find it with Pending.
type Channel[T any] struct {
	s     localstore.Storage
	match func(key string) bool
}

func New[T any](s localstore.Storage, match func(key string) bool) *Channel[T] {
	return &Channel[T]{s: s, match: match}
}

// Prefix matches keys starting with p or equal to any of the extra keys.
func Prefix(p string, extra ...string) func(string) bool {
	return func(key string) bool {
		if strings.HasPrefix(key, p) {
			return true
		}
		for _, e := range extra {
			if key == e {
				return true
			}
		}
		return false
	}
}

func (c *Channel[T]) Publish(key string, v T) error {
	if !c.match(key) {
		return errors.Errorf("key %s does not belong to this channel", key)
	}
	s, err := utils.Json.MarshalToString(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.s.Set(key, s))
}

func (c *Channel[T]) Pending(key string) (T, bool) {
	var v T
	raw, ok := c.s.Get(key)
	if !ok {
		return v, false
	}
	if err := utils.Json.UnmarshalFromString(raw, &v); err != nil {
		log.Warnf("broadcast: dropping undecodable %s: %v", key, err)
		return v, false
	}
	return v, true
}

func (c *Channel[T]) Clear(key string) error {
	return errors.WithStack(c.s.Remove(key))
}

// Subscribe receives messages published by other tabs. Removals and
// values that do not decode are skipped.
func (c *Channel[T]) Subscribe(fn func(Message[T])) func() {
	return c.s.Watch(func(ev localstore.Event) {
		if ev.Removed || !c.match(ev.Key) {
			return
		}
		var v T
		if err := utils.Json.UnmarshalFromString(ev.Value, &v); err != nil {
			log.Warnf("broadcast: dropping undecodable %s: %v", ev.Key, err)
			return
		}
		fn(Message[T]{Key: ev.Key, Value: v})
	})
}
