// Package directory shows every session of a workspace, live or not, and
// lets an admin end them.
package directory

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/internal/op"
	"github.com/smsdesk-org/smsdesk/internal/session"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Entry struct {
	Token        string `json:"token"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	Descriptor   string `json:"deviceDescriptor"`
	DeviceClass  string `json:"deviceClass"`
	DeviceLabel  string `json:"deviceLabel"`
	IP           string `json:"ip,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	LastActiveAt int64  `json:"lastActiveAt"`
	LastSeen     string `json:"lastSeen"`
	Live         bool   `json:"live"`
	Current      bool   `json:"current"`
}

type Snapshot struct {
	Ready     bool    `json:"ready"`
	Entries   []Entry `json:"entries"`
	LiveCount int     `json:"liveCount"`
	Total     int     `json:"total"`
}

type Broadcaster interface {
	Broadcast(uid, reason, token string) error
}

type MemberSource interface {
	Users(ctx context.Context, dbPath string) ([]model.Member, error)
}

type Options struct {
	Store     driver.Store
	Clock     clock.Clock
	Workspace string
	Window    time.Duration
	Tick      time.Duration
	// Self is the token of the viewing tab, Actor its user id.
	Self  string
	Actor string
	Bus   Broadcaster
	// Teardown ends the viewing tab's own session.
	Teardown func(ctx context.Context, reason string) model.Notice
	Members  MemberSource
}

// View never writes to a presence record. It only removes one inside
// ForceLogout.
type View struct {
	opts  Options
	unsub driver.Unsubscribe

	mu        sync.Mutex
	closed    bool
	ready     bool
	records   map[string]model.PresenceRecord
	live      mapset.Set[string]
	snap      Snapshot
	nextID    uint64
	listeners map[uint64]func(Snapshot)

	cancel context.CancelFunc
	done   chan struct{}
}

func Open(ctx context.Context, opts Options) (*View, error) {
	if opts.Window <= 0 {
		opts.Window = 3 * time.Second
	}
	if opts.Tick <= 0 {
		opts.Tick = 500 * time.Millisecond
	}
	v := &View{
		opts:      opts,
		records:   map[string]model.PresenceRecord{},
		live:      mapset.NewSet[string](),
		listeners: map[uint64]func(Snapshot){},
		done:      make(chan struct{}),
	}
	unsub, err := opts.Store.Subscribe(ctx, utils.JoinPath(conf.PresenceRoot, opts.Workspace), v.onPresence)
	if err != nil {
		return nil, errors.WithMessage(err, "failed subscribe presence")
	}
	v.unsub = unsub

	bg, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	t := opts.Clock.NewTicker(opts.Tick)
	go func() {
		defer close(v.done)
		defer t.Stop()
		for {
			select {
			case <-bg.Done():
				return
			case <-t.C:
				v.recompute()
			}
		}
	}()
	return v, nil
}

func (v *View) onPresence(snap *driver.Snapshot) {
	records := op.DecodeChildren[model.PresenceRecord](snap)
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.records = records
	v.ready = true
	v.mu.Unlock()
	v.recompute()
}

func (v *View) recompute() {
	now := v.opts.Clock.Now()
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	snap := Snapshot{Ready: v.ready, Entries: make([]Entry, 0, len(v.records))}
	live := mapset.NewSet[string]()
	for token, r := range v.records {
		e := Entry{
			Token:        token,
			UserID:       r.UserID,
			Email:        r.Email,
			Descriptor:   r.Descriptor,
			DeviceClass:  r.DeviceClass,
			IP:           r.IP,
			CreatedAt:    r.CreatedAt,
			LastActiveAt: r.LastActiveAt,
			LastSeen:     utils.TimeAgo(r.LastActiveAt, now),
			Live:         session.IsLive(&r, now, v.opts.Window),
			Current:      token == v.opts.Self,
		}
		if e.DeviceClass == "" {
			e.DeviceClass = utils.DeviceClass(r.Descriptor)
		}
		e.DeviceLabel = utils.DeviceLabel(e.DeviceClass)
		if e.Live {
			live.Add(token)
		}
		snap.Entries = append(snap.Entries, e)
	}
	sort.Slice(snap.Entries, func(i, j int) bool {
		a, b := snap.Entries[i], snap.Entries[j]
		if a.LastActiveAt != b.LastActiveAt {
			return a.LastActiveAt > b.LastActiveAt
		}
		return a.Token < b.Token
	})
	snap.LiveCount = live.Cardinality()
	snap.Total = len(snap.Entries)

	for token := range live.Difference(v.live).Iter() {
		log.Debugf("session %s is live", token)
	}
	for token := range v.live.Difference(live).Iter() {
		log.Debugf("session %s went offline", token)
	}
	v.live = live
	changed := !reflect.DeepEqual(snap, v.snap)
	v.snap = snap
	var fns []func(Snapshot)
	if changed {
		for _, fn := range v.listeners {
			fns = append(fns, fn)
		}
	}
	v.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// OnChange calls fn with every recomputed snapshot that differs from the
// previous one. It returns the unregister func.
func (v *View) OnChange(fn func(Snapshot)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextID++
	id := v.nextID
	v.listeners[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

// ForceLogout ends the session holding token. The record is removed
// after the revocation is written, so a late heartbeat of the target
// does not bring it back.
func (v *View) ForceLogout(ctx context.Context, token string) error {
	if token == v.opts.Self {
		if v.opts.Teardown != nil {
			v.opts.Teardown(ctx, model.ReasonForceLogout)
		}
		return nil
	}
	path := session.PresencePath(v.opts.Workspace, token)
	rec, ok, err := op.Get[model.PresenceRecord](ctx, v.opts.Store, path)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithStack(errs.ObjectNotFound)
	}
	return v.evict(ctx, token, rec.UserID)
}

func (v *View) evict(ctx context.Context, token, uid string) error {
	rev := model.Revocation{
		Reason:    model.ReasonForceLogout,
		Timestamp: clock.UnixMilli(v.opts.Clock),
		By:        v.opts.Actor,
	}
	if err := v.opts.Store.Set(ctx, session.RevocationPath(v.opts.Workspace, token), rev); err != nil {
		return errors.WithMessage(err, "failed write revocation")
	}
	if err := v.opts.Store.Remove(ctx, session.PresencePath(v.opts.Workspace, token)); err != nil {
		return errors.WithMessage(err, "failed remove presence")
	}
	if v.opts.Bus != nil && uid != "" {
		if err := v.opts.Bus.Broadcast(uid, model.ReasonForceLogout, token); err != nil {
			log.Warnf("failed broadcast force logout of %s: %+v", token, err)
		}
	}
	log.WithFields(log.Fields{"token": token, "user": uid, "by": v.opts.Actor}).Info("session forced out")
	return nil
}

// ForceLogoutUser ends every session of uid in the workspace and returns
// how many were ended. The viewer's own session goes last.
func (v *View) ForceLogoutUser(ctx context.Context, uid string) (int, error) {
	all, err := op.List[model.PresenceRecord](ctx, v.opts.Store, utils.JoinPath(conf.PresenceRoot, v.opts.Workspace))
	if err != nil {
		return 0, err
	}
	n, self := 0, false
	for token, r := range all {
		if r.UserID != uid {
			continue
		}
		if token == v.opts.Self {
			self = true
			continue
		}
		if err := v.evict(ctx, token, uid); err != nil {
			return n, err
		}
		n++
	}
	if v.opts.Bus != nil && uid != v.opts.Actor {
		if err := v.opts.Bus.Broadcast(uid, model.ReasonForceLogout, ""); err != nil {
			log.Warnf("failed broadcast logout of %s: %+v", uid, err)
		}
	}
	if self {
		n++
		if v.opts.Teardown != nil {
			v.opts.Teardown(ctx, model.ReasonForceLogout)
		}
	}
	return n, nil
}

// Members lists the workspace users with their session counts.
func (v *View) Members(ctx context.Context) ([]model.Member, error) {
	if v.opts.Members == nil {
		return nil, nil
	}
	members, err := v.opts.Members.Users(ctx, v.opts.Workspace)
	if err != nil {
		return nil, err
	}
	snap := v.Snapshot()
	for i := range members {
		for _, e := range snap.Entries {
			if e.UserID != members[i].UserID {
				continue
			}
			members[i].Sessions++
			if e.Live {
				members[i].LiveSessions++
			}
		}
	}
	return members, nil
}

// Done is closed once the view has been closed.
func (v *View) Done() <-chan struct{} {
	return v.done
}

func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.listeners = map[uint64]func(Snapshot){}
	v.mu.Unlock()
	v.unsub()
	v.cancel()
	<-v.done
}
