package invalidate

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/identity"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
)

// Watchdog polls the blocklist for one user. A read error counts as not
// blocked; sign in is where blocking fails closed.
type Watchdog struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func StartWatchdog(store driver.Store, c clock.Clock, interval time.Duration, uid string, onBlocked func()) *Watchdog {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watchdog{cancel: cancel, done: make(chan struct{})}
	t := c.NewTicker(interval)
	go func() {
		defer close(w.done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			blocked, err := identity.IsBlocked(ctx, store, uid)
			if err != nil {
				log.Debugf("block check of %s failed: %v", uid, err)
				continue
			}
			if blocked {
				log.Infof("user %s is blocked", uid)
				onBlocked()
				return
			}
		}
	}()
	return w
}

// Stop is safe to call from onBlocked.
func (w *Watchdog) Stop() {
	w.cancel()
}

// Done is closed once the polling goroutine has exited.
func (w *Watchdog) Done() <-chan struct{} {
	return w.done
}
