package identity

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// Gate wraps a Provider for the rest of the console: it reports identity
// transitions exactly once and hides why a sign in failed.
type Gate struct {
	p     Provider
	store driver.Store

	// notify is held while a transition is applied and delivered, so
	// listeners see transitions in the order they happened.
	notify    sync.Mutex
	mu        sync.Mutex
	current   *model.Identity
	nextID    uint64
	listeners map[uint64]func(*model.Identity)
	cancel    func()
}

func NewGate(p Provider, store driver.Store) *Gate {
	g := &Gate{p: p, store: store, current: p.CurrentUser(), listeners: map[uint64]func(*model.Identity){}}
	g.cancel = p.OnAuthStateChange(g.transition)
	return g
}

func (g *Gate) Close() {
	g.cancel()
}

func (g *Gate) CurrentIdentity() *model.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// OnIdentityChange calls fn with the current identity, then on every
// real change. Repeated reports of the same user are swallowed. fn must
// not sign in or out before returning.
func (g *Gate) OnIdentityChange(fn func(*model.Identity)) func() {
	g.notify.Lock()
	defer g.notify.Unlock()
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.listeners[id] = fn
	cur := g.current
	g.mu.Unlock()
	fn(cur)
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

func sameUser(a, b *model.Identity) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return a.UserID == b.UserID
}

func (g *Gate) transition(id *model.Identity) {
	g.notify.Lock()
	defer g.notify.Unlock()
	g.mu.Lock()
	if sameUser(g.current, id) {
		g.current = id
		g.mu.Unlock()
		return
	}
	g.current = id
	fns := make([]func(*model.Identity), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// SignIn reports every provider failure as errs.InvalidCredentials.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	id, err := g.p.SignIn(ctx, email, password)
	if err != nil {
		log.Debugf("sign in of %s failed: %+v", email, err)
		return nil, errors.WithStack(errs.InvalidCredentials)
	}
	return id, nil
}

func (g *Gate) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	return g.p.SignUp(ctx, email, password)
}

func (g *Gate) SignOut(ctx context.Context) error {
	return g.p.SignOut(ctx)
}

func (g *Gate) UpdatePassword(ctx context.Context, password string) error {
	return g.p.UpdatePassword(ctx, password)
}

// IsBlocked reads blocklist/<uid>. Errors are returned so the caller can
// pick its own failure policy.
func (g *Gate) IsBlocked(ctx context.Context, uid string) (bool, error) {
	return IsBlocked(ctx, g.store, uid)
}

func IsBlocked(ctx context.Context, store driver.Store, uid string) (bool, error) {
	snap, err := store.Get(ctx, utils.JoinPath(conf.BlocklistRoot, uid))
	if err != nil {
		return false, errors.WithMessage(err, "failed read blocklist")
	}
	switch v := snap.Value.(type) {
	case bool:
		return v, nil
	case map[string]any:
		var e model.BlockEntry
		if err := snap.Decode(&e); err != nil {
			return false, errors.Wrap(err, "failed decode blocklist entry")
		}
		return e.Blocked, nil
	default:
		return false, nil
	}
}

func Block(ctx context.Context, store driver.Store, uid, reason string, at int64) error {
	return store.Set(ctx, utils.JoinPath(conf.BlocklistRoot, uid), model.BlockEntry{Blocked: true, Reason: reason, At: at})
}

func Unblock(ctx context.Context, store driver.Store, uid string) error {
	return store.Remove(ctx, utils.JoinPath(conf.BlocklistRoot, uid))
}
