// Package invalidate ends sessions: it carries invalidation signals
// between tabs and owns the one routine that tears a session down.
package invalidate

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/broadcast"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
)

func SignalKey(uid string) string {
	return conf.ForceLogoutPrefix + uid
}

// Bus publishes signals into the profile storage. Other tabs of the
// profile receive them, the publishing tab does not.
type Bus struct {
	ch        *broadcast.Channel[model.InvalidationSignal]
	clock     clock.Clock
	freshness time.Duration
}

func NewBus(s localstore.Storage, c clock.Clock, freshness time.Duration) *Bus {
	if freshness <= 0 {
		freshness = 5 * time.Minute
	}
	return &Bus{
		ch:        broadcast.New[model.InvalidationSignal](s, broadcast.Prefix(conf.ForceLogoutPrefix, conf.AuthRevokedKey)),
		clock:     c,
		freshness: freshness,
	}
}

// Broadcast tells every tab of uid, or only the tab holding token when
// it is not empty, to tear down.
func (b *Bus) Broadcast(uid, reason, token string) error {
	if uid == "" {
		return errors.New("broadcast without user")
	}
	sig := model.InvalidationSignal{Reason: reason, Timestamp: clock.UnixMilli(b.clock), Token: token}
	log.WithFields(log.Fields{"user": uid, "reason": reason, "token": token}).Debug("broadcast invalidation")
	return b.ch.Publish(SignalKey(uid), sig)
}

// Revoke signals every tab of the profile, whoever is signed in there.
func (b *Bus) Revoke(reason string) error {
	return b.ch.Publish(conf.AuthRevokedKey, model.InvalidationSignal{Reason: reason, Timestamp: clock.UnixMilli(b.clock)})
}

func (b *Bus) fresh(sig *model.InvalidationSignal) bool {
	return clock.UnixMilli(b.clock)-sig.Timestamp <= b.freshness.Milliseconds()
}

// Observe calls fn for signals aimed at the tab of uid holding token.
// Signals not newer than since belong to an earlier session and are
// skipped.
// Stale signals are cleared from storage, including the ones already
// there when observing starts.
func (b *Bus) Observe(uid, token string, since int64, fn func(model.InvalidationSignal)) func() {
	keys := []string{SignalKey(uid), conf.AuthRevokedKey}
	handle := func(key string, sig model.InvalidationSignal) {
		if !b.fresh(&sig) {
			log.Debugf("clearing stale signal %s from %d", key, sig.Timestamp)
			if err := b.ch.Clear(key); err != nil {
				log.Warnf("failed clear stale signal %s: %+v", key, err)
			}
			return
		}
		if sig.Timestamp <= since || !sig.Targets(token) {
			return
		}
		fn(sig)
	}
	cancel := b.ch.Subscribe(func(m broadcast.Message[model.InvalidationSignal]) {
		for _, k := range keys {
			if m.Key == k {
				handle(m.Key, m.Value)
				return
			}
		}
	})
	for _, k := range keys {
		if sig, ok := b.ch.Pending(k); ok {
			handle(k, sig)
		}
	}
	return cancel
}
