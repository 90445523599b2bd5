package invalidate

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/model"
)

type Stopper interface {
	Stop(ctx context.Context) error
}

type SignOuter interface {
	SignOut(ctx context.Context) error
}

type WorkspaceCache interface {
	Forget(uid string) error
}

type TokenStore interface {
	Forget(scope string) error
}

type EnforcerOptions struct {
	Session   Stopper
	Identity  SignOuter
	Workspace WorkspaceCache
	Tokens    TokenStore
	Scope     string
}

// Enforcer runs the teardown of the session it was armed with, once.
type Enforcer struct {
	opts EnforcerOptions

	mu        sync.Mutex
	armed     *model.Identity
	last      *model.Notice
	inflight  chan struct{}
	listeners []func(model.Notice)
}

func NewEnforcer(opts EnforcerOptions) *Enforcer {
	return &Enforcer{opts: opts}
}

// Arm hands the signed in identity to the enforcer. The next Teardown
// acts on it.
func (e *Enforcer) Arm(id model.Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armed = &id
	e.last = nil
}

// Disarm drops the armed identity without tearing anything down.
func (e *Enforcer) Disarm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armed = nil
}

func (e *Enforcer) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed != nil
}

// OnSignedOut registers fn for the notice of every teardown.
func (e *Enforcer) OnSignedOut(fn func(model.Notice)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// LastNotice is the notice of the latest teardown since the last Arm.
func (e *Enforcer) LastNotice() (model.Notice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return model.Notice{}, false
	}
	return *e.last, true
}

// Teardown stops the presence record, signs out, forgets the workspace
// binding and the session token, then publishes the notice. Steps that
// fail are logged and the rest still run. Calls after the first wait for
// it and return its notice.
func (e *Enforcer) Teardown(ctx context.Context, reason string) model.Notice {
	e.mu.Lock()
	id := e.armed
	e.armed = nil
	if id == nil {
		wait := e.inflight
		e.mu.Unlock()
		if wait != nil {
			select {
			case <-wait:
			case <-ctx.Done():
			}
		}
		if n, ok := e.LastNotice(); ok {
			return n
		}
		return model.NoticeFor(reason)
	}
	done := make(chan struct{})
	e.inflight = done
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		if e.inflight == done {
			e.inflight = nil
		}
		e.mu.Unlock()
		close(done)
	}()

	l := log.WithFields(log.Fields{"user": id.Email, "reason": reason})
	if e.opts.Session != nil {
		if err := e.opts.Session.Stop(ctx); err != nil {
			l.Warnf("teardown: %+v", err)
		}
	}
	if e.opts.Identity != nil {
		if err := e.opts.Identity.SignOut(ctx); err != nil {
			l.Warnf("teardown: failed sign out: %+v", err)
		}
	}
	if e.opts.Workspace != nil {
		if err := e.opts.Workspace.Forget(id.UserID); err != nil {
			l.Warnf("teardown: failed forget workspace: %+v", err)
		}
	}
	if e.opts.Tokens != nil {
		if err := e.opts.Tokens.Forget(e.opts.Scope); err != nil {
			l.Warnf("teardown: failed forget session token: %+v", err)
		}
	}

	n := model.NoticeFor(reason)
	e.mu.Lock()
	e.last = &n
	fns := append([]func(model.Notice){}, e.listeners...)
	e.mu.Unlock()
	l.Info("session torn down")
	for _, fn := range fns {
		fn(n)
	}
	return n
}
