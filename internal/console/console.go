// Package console drives one admin tab: sign in, presence, the session
// directory, and every path that ends the session.
package console

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/command"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/device"
	"github.com/smsdesk-org/smsdesk/internal/directory"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/identity"
	"github.com/smsdesk-org/smsdesk/internal/invalidate"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/internal/session"
	"github.com/smsdesk-org/smsdesk/internal/tabid"
	"github.com/smsdesk-org/smsdesk/internal/workspace"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Options struct {
	Config *conf.Config
	Store  driver.Store
	Clock  clock.Clock
	// Profile is shared by every tab of the profile, Tab by this tab only.
	Profile   localstore.Storage
	Tab       localstore.Storage
	UserAgent string
	IP        string
}

type State struct {
	Identity  *model.Identity `json:"identity"`
	Workspace string          `json:"workspace,omitempty"`
	Token     string          `json:"token,omitempty"`
	Active    bool            `json:"active"`
	Degraded  bool            `json:"degraded"`
	Notice    *model.Notice   `json:"notice,omitempty"`
}

// active is everything that lives exactly as long as one signed in
// session.
type active struct {
	id        model.Identity
	workspace string
	token     string
	dir       *directory.View
	commands  *command.Commands
	watchdog  *invalidate.Watchdog
	cleanups  []func()
}

type Console struct {
	cfg      *conf.Config
	opts     Options
	provider *identity.LocalProvider
	gate     *identity.Gate
	tokens   *tabid.Allocator
	resolver *workspace.Resolver
	sup      *session.Supervisor
	bus      *invalidate.Bus
	enforcer *invalidate.Enforcer
	catalog  *device.Catalog

	// life serializes activation and Close
	life    sync.Mutex
	local   atomic.Bool
	unwatch func()

	mu     sync.Mutex
	closed bool
	cur    *active
	notice *model.Notice
}

func New(opts Options) *Console {
	cfg := opts.Config
	authStorage := opts.Profile
	if cfg.Presence.TokenScope == conf.ScopeTab {
		authStorage = opts.Tab
	}
	c := &Console{cfg: cfg, opts: opts}
	c.provider = identity.NewLocalProvider(identity.LocalOptions{
		Store:          opts.Store,
		Tokens:         authStorage,
		Clock:          opts.Clock,
		Secret:         []byte(cfg.Security.JwtSecret),
		TokenExpiresIn: cfg.Security.TokenExpiresIn,
		MinPassword:    cfg.Security.MinPasswordLength,
	})
	c.gate = identity.NewGate(c.provider, opts.Store)
	c.tokens = tabid.New(opts.Clock, opts.Profile, opts.Tab)
	c.resolver = workspace.NewResolver(opts.Store, opts.Profile)
	c.sup = session.NewSupervisor(session.Options{
		Store:            opts.Store,
		Clock:            opts.Clock,
		Interval:         cfg.Presence.HeartbeatInterval,
		FailureThreshold: cfg.Presence.FailureThreshold,
		OnDegraded: func(err error) {
			log.Warnf("presence degraded, sessions list may show this tab offline: %v", err)
		},
	})
	c.bus = invalidate.NewBus(opts.Profile, opts.Clock, cfg.Security.SignalFreshness)
	c.enforcer = invalidate.NewEnforcer(invalidate.EnforcerOptions{
		Session:   c.sup,
		Identity:  c.gate,
		Workspace: c.resolver,
		Tokens:    c.tokens,
		Scope:     cfg.Presence.TokenScope,
	})
	c.enforcer.OnSignedOut(c.onSignedOut)
	c.catalog = device.NewCatalog(opts.Store)
	c.unwatch = c.gate.OnIdentityChange(c.onIdentity)
	return c
}

// onIdentity follows sign in and sign out done by other tabs sharing the
// auth token.
func (c *Console) onIdentity(id *model.Identity) {
	if c.local.Load() {
		return
	}
	if id.IsZero() {
		if c.enforcer.Armed() {
			go c.teardown(model.ReasonLogout)
		}
		return
	}
	c.mu.Lock()
	closed, cur := c.closed, c.cur
	c.mu.Unlock()
	if closed {
		return
	}
	if cur != nil {
		if cur.id.UserID != id.UserID {
			// another account signed in on this profile
			go c.teardown(model.ReasonLogout)
		}
		return
	}
	go func(id model.Identity) {
		if _, err := c.activate(context.Background(), id, true); err != nil {
			log.Warnf("failed follow sign in of %s: %+v", id.Email, err)
		}
	}(*id)
}

func (c *Console) teardown(reason string) model.Notice {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.enforcer.Teardown(ctx, reason)
}

// Restore resumes the session left by an earlier run of this tab.
func (c *Console) Restore(ctx context.Context) (State, error) {
	c.local.Store(true)
	id := c.provider.Restore(ctx)
	c.local.Store(false)
	if id.IsZero() {
		return c.State(), nil
	}
	return c.activate(ctx, *id, false)
}

// Login signs in and starts the session. Sign in is refused for blocked
// accounts, and when the blocklist cannot be read.
func (c *Console) Login(ctx context.Context, email, password string) (State, error) {
	if _, err := c.current(); err == nil {
		return c.State(), errors.WithStack(errs.SessionActive)
	}
	c.local.Store(true)
	id, err := c.gate.SignIn(ctx, email, password)
	c.local.Store(false)
	if err != nil {
		return c.State(), err
	}
	return c.activate(ctx, *id, false)
}

// Register creates the account, binds it to dbPath when one is given,
// and starts the session.
func (c *Console) Register(ctx context.Context, email, password, confirm, dbPath string) (State, error) {
	if _, err := c.current(); err == nil {
		return c.State(), errors.WithStack(errs.SessionActive)
	}
	if password != confirm {
		return c.State(), errors.WithStack(errs.PasswordMismatch)
	}
	c.local.Store(true)
	id, err := c.gate.SignUp(ctx, email, password)
	c.local.Store(false)
	if err != nil {
		return c.State(), err
	}
	if dbPath != "" {
		if err := c.resolver.Bind(ctx, id.UserID, id.Email, dbPath, clock.UnixMilli(c.opts.Clock)); err != nil {
			c.signOut(ctx)
			return c.State(), err
		}
	}
	return c.activate(ctx, *id, false)
}

func (c *Console) signOut(ctx context.Context) {
	c.local.Store(true)
	defer c.local.Store(false)
	if err := c.gate.SignOut(ctx); err != nil {
		log.Warnf("failed sign out: %+v", err)
	}
}

// activate starts the session of a signed in identity. A follower is a
// tab picking up a sign in done by another tab of the profile; it does
// not sign the profile out when it fails.
func (c *Console) activate(ctx context.Context, id model.Identity, follower bool) (st State, err error) {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return State{}, errors.New("console is closed")
	}
	if c.cur != nil {
		same := c.cur.id.UserID == id.UserID
		c.mu.Unlock()
		if same {
			return c.State(), nil
		}
		return c.State(), errors.WithStack(errs.SessionActive)
	}
	c.mu.Unlock()

	a := &active{id: id}
	defer func() {
		if err == nil {
			return
		}
		for _, fn := range a.cleanups {
			fn()
		}
		if a.dir != nil {
			a.dir.Close()
		}
		if a.watchdog != nil {
			a.watchdog.Stop()
		}
		c.enforcer.Disarm()
		_ = c.sup.Stop(ctx)
		if !follower {
			c.signOut(ctx)
		}
		st = c.State()
	}()

	blocked, err := c.gate.IsBlocked(ctx, id.UserID)
	if err != nil {
		return State{}, errors.WithMessage(err, "failed check blocklist")
	}
	if blocked {
		return State{}, errors.WithStack(errs.AccountBlocked)
	}
	if a.workspace, err = c.resolver.Resolve(ctx, id.UserID); err != nil {
		return State{}, err
	}
	if follower && c.cfg.Presence.TokenScope == conf.ScopeProfile {
		// the tab that signed in is about to create the shared token
		_ = retry.Do(func() error {
			if _, ok := c.tokens.Peek(conf.ScopeProfile); !ok {
				return errs.ObjectNotFound
			}
			return nil
		}, retry.Context(ctx), retry.Attempts(5), retry.Delay(50*time.Millisecond), retry.DelayType(retry.FixedDelay))
	}
	if a.token, err = c.tokens.GetOrCreate(c.cfg.Presence.TokenScope); err != nil {
		return State{}, err
	}
	user, _, err := c.resolver.User(ctx, id.UserID)
	if err != nil {
		return State{}, err
	}
	since := clock.UnixMilli(c.opts.Clock)

	err = c.sup.Start(ctx, session.Registration{
		UserID:    id.UserID,
		Email:     id.Email,
		Workspace: a.workspace,
		Token:     a.token,
		UserAgent: c.opts.UserAgent,
		IP:        c.opts.IP,
	})
	if err != nil {
		return State{}, err
	}
	c.enforcer.Arm(id)

	a.cleanups = append(a.cleanups, c.bus.Observe(id.UserID, a.token, since, func(sig model.InvalidationSignal) {
		log.Infof("invalidation signal %s received", sig.Reason)
		go c.teardown(sig.Reason)
	}))

	unsub, err := c.opts.Store.Subscribe(ctx, session.RevocationPath(a.workspace, a.token), func(snap *driver.Snapshot) {
		var rev model.Revocation
		if !snap.Exists() || snap.Decode(&rev) != nil || rev.Timestamp < since {
			return
		}
		log.Infof("session revoked by %s", rev.By)
		go c.teardown(model.ReasonRevoked)
	})
	if err != nil {
		return State{}, errors.WithMessage(err, "failed watch revocation")
	}
	a.cleanups = append(a.cleanups, unsub)

	baseline := user.SessionVersion
	unsub, err = c.opts.Store.Subscribe(ctx, utils.JoinPath(conf.UsersRoot, id.UserID, "sessionVersion"), func(snap *driver.Snapshot) {
		var v int64
		if !snap.Exists() || snap.Decode(&v) != nil || v <= baseline {
			return
		}
		log.Infof("session version of %s moved to %d", id.Email, v)
		go c.teardown(model.ReasonPasswordChanged)
	})
	if err != nil {
		return State{}, errors.WithMessage(err, "failed watch session version")
	}
	a.cleanups = append(a.cleanups, unsub)

	a.watchdog = invalidate.StartWatchdog(c.opts.Store, c.opts.Clock, c.cfg.Security.BlockCheckInterval, id.UserID, func() {
		if err := c.bus.Broadcast(id.UserID, model.ReasonBlocked, ""); err != nil {
			log.Warnf("failed broadcast block: %+v", err)
		}
		go c.teardown(model.ReasonBlocked)
	})

	a.dir, err = directory.Open(ctx, directory.Options{
		Store:     c.opts.Store,
		Clock:     c.opts.Clock,
		Workspace: a.workspace,
		Window:    c.cfg.Presence.LiveWindow,
		Tick:      c.cfg.Presence.DirectoryTick,
		Self:      a.token,
		Actor:     id.UserID,
		Bus:       c.bus,
		Teardown:  c.enforcer.Teardown,
		Members:   c.resolver,
	})
	if err != nil {
		return State{}, err
	}
	if a.commands, err = command.New(c.opts.Store, c.opts.Clock, a.workspace, c.cfg.Command); err != nil {
		return State{}, err
	}

	c.mu.Lock()
	if !c.enforcer.Armed() {
		// torn down by a signal while starting
		c.mu.Unlock()
		return State{}, errors.WithStack(errs.SessionRevoked)
	}
	c.cur = a
	c.notice = nil
	c.mu.Unlock()
	log.WithFields(log.Fields{"user": id.Email, "workspace": a.workspace}).Info("signed in")
	return c.State(), nil
}

// onSignedOut releases what the ended session held. The enforcer has
// already stopped presence and signed out.
func (c *Console) onSignedOut(n model.Notice) {
	c.mu.Lock()
	a := c.cur
	c.cur = nil
	c.notice = &n
	c.mu.Unlock()
	if a == nil {
		return
	}
	for _, fn := range a.cleanups {
		fn()
	}
	a.watchdog.Stop()
	a.dir.Close()
}

// Logout ends this tab's session only.
func (c *Console) Logout(ctx context.Context) (model.Notice, error) {
	if !c.enforcer.Armed() {
		return model.Notice{}, errors.WithStack(errs.NotSignedIn)
	}
	return c.enforcer.Teardown(ctx, model.ReasonLogout), nil
}

// ChangePassword updates the password and logs the user out everywhere,
// this tab included.
func (c *Console) ChangePassword(ctx context.Context, password, confirm string) (model.Notice, error) {
	c.mu.Lock()
	a := c.cur
	c.mu.Unlock()
	if a == nil {
		return model.Notice{}, errors.WithStack(errs.NotSignedIn)
	}
	if password != confirm {
		return model.Notice{}, errors.WithStack(errs.PasswordMismatch)
	}
	if err := c.gate.UpdatePassword(ctx, password); err != nil {
		return model.Notice{}, err
	}
	if _, err := c.resolver.BumpSessionVersion(ctx, a.id.UserID); err != nil {
		log.Warnf("failed bump session version: %+v", err)
	}
	if err := c.bus.Broadcast(a.id.UserID, model.ReasonPasswordChanged, ""); err != nil {
		log.Warnf("failed broadcast password change: %+v", err)
	}
	return c.enforcer.Teardown(ctx, model.ReasonPasswordChanged), nil
}

func (c *Console) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Notice: c.notice}
	if c.cur != nil {
		id := c.cur.id
		st.Identity = &id
		st.Workspace = c.cur.workspace
		st.Token = c.cur.token
		st.Active = c.sup.Active()
		st.Degraded = c.sup.Degraded()
	}
	return st
}

func (c *Console) current() (*active, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return nil, errors.WithStack(errs.NotSignedIn)
	}
	return c.cur, nil
}

func (c *Console) Directory() (*directory.View, error) {
	a, err := c.current()
	if err != nil {
		return nil, err
	}
	return a.dir, nil
}

func (c *Console) Commands() (*command.Commands, error) {
	a, err := c.current()
	if err != nil {
		return nil, err
	}
	return a.commands, nil
}

// Devices returns the catalog and the workspace it should be read in.
func (c *Console) Devices() (*device.Catalog, string, error) {
	a, err := c.current()
	if err != nil {
		return nil, "", err
	}
	return c.catalog, a.workspace, nil
}

func (c *Console) Config() *conf.Config {
	return c.cfg
}

func (c *Console) Now() time.Time {
	return c.opts.Clock.Now()
}

// Touch refreshes presence outside the heartbeat, for request paths.
func (c *Console) Touch(ctx context.Context) {
	c.sup.Touch(ctx)
}

// Close shuts the tab without signing out: the auth token survives for
// Restore, and presence is removed.
func (c *Console) Close(ctx context.Context) {
	c.life.Lock()
	defer c.life.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	a := c.cur
	c.cur = nil
	c.mu.Unlock()

	c.unwatch()
	if a != nil {
		for _, fn := range a.cleanups {
			fn()
		}
		a.watchdog.Stop()
		a.dir.Close()
	}
	if err := c.sup.Stop(ctx); err != nil {
		log.Warnf("failed remove presence on close, store cleanup will: %+v", err)
	}
	c.gate.Close()
	c.provider.Close()
}
