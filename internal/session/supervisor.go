// Package session publishes this tab's presence record and keeps it fresh.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// Registration names the record a supervisor owns.
type Registration struct {
	UserID    string
	Email     string
	Workspace string
	Token     string
	UserAgent string
	IP        string
}

func (r *Registration) sameKey(o *Registration) bool {
	return r.UserID == o.UserID && r.Workspace == o.Workspace && r.Token == o.Token
}

func PresencePath(workspace, token string) string {
	return utils.JoinPath(conf.PresenceRoot, workspace, token)
}

func RevocationPath(workspace, token string) string {
	return utils.JoinPath(conf.RevocationsRoot, workspace, token)
}

type Options struct {
	Store            driver.Store
	Clock            clock.Clock
	Interval         time.Duration
	FailureThreshold int
	// OnDegraded is called once when consecutive heartbeat failures reach
	// FailureThreshold. The session stays up.
	OnDegraded func(err error)
}

// Supervisor owns at most one presence record at a time. Start and Stop
// are the only ways to change what it owns.
type Supervisor struct {
	opts Options

	life   sync.Mutex
	beatMu sync.Mutex

	mu       sync.Mutex
	reg      *Registration
	lastBeat int64
	failures int
	degraded bool
	cancel   context.CancelFunc
	done     chan struct{}
	warn     rate.Sometimes
}

func NewSupervisor(opts Options) *Supervisor {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	return &Supervisor{
		opts: opts,
		warn: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Start publishes the record and starts heartbeating. Starting the key
// that is already active does nothing. Starting another key while one is
// active fails with errs.SessionActive.
func (s *Supervisor) Start(ctx context.Context, reg Registration) error {
	s.life.Lock()
	defer s.life.Unlock()

	s.mu.Lock()
	if s.reg != nil {
		same := s.reg.sameKey(&reg)
		s.mu.Unlock()
		if same {
			return nil
		}
		return errors.WithStack(errs.SessionActive)
	}
	s.mu.Unlock()

	s.beatMu.Lock()
	now, err := s.publish(ctx, &reg, true)
	s.beatMu.Unlock()
	if err != nil {
		return err
	}

	bg, cancel := context.WithCancel(context.Background())
	ticker := s.opts.Clock.NewTicker(s.opts.Interval)
	done := make(chan struct{})

	s.mu.Lock()
	r := reg
	s.reg = &r
	s.lastBeat = now
	s.failures = 0
	s.degraded = false
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.loop(bg, ticker, done)
	log.WithFields(log.Fields{"user": reg.Email, "workspace": reg.Workspace, "token": reg.Token}).
		Info("session registered")
	return nil
}

// publish writes the full record, keeping createdAt when the record
// already exists.
func (s *Supervisor) publish(ctx context.Context, reg *Registration, register bool) (int64, error) {
	path := PresencePath(reg.Workspace, reg.Token)
	now := clock.UnixMilli(s.opts.Clock)
	rec := model.PresenceRecord{
		UserID:       reg.UserID,
		Email:        reg.Email,
		SessionToken: reg.Token,
		Descriptor:   utils.TrimUA(reg.UserAgent),
		DeviceClass:  utils.DeviceClass(reg.UserAgent),
		IP:           utils.MaskIP(reg.IP),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	snap, err := s.opts.Store.Get(ctx, path)
	if err != nil {
		return 0, errors.WithMessage(err, "failed read presence")
	}
	var existing model.PresenceRecord
	if snap.Exists() && snap.Decode(&existing) == nil && existing.UserID == reg.UserID && existing.CreatedAt > 0 {
		rec.CreatedAt = existing.CreatedAt
		if existing.LastActiveAt > rec.LastActiveAt {
			rec.LastActiveAt = existing.LastActiveAt
		}
	}
	if err := s.opts.Store.Set(ctx, path, rec); err != nil {
		return 0, errors.WithMessage(err, "failed write presence")
	}
	if register {
		if err := s.opts.Store.OnDisconnectRemove(ctx, path); err != nil {
			if !errors.Is(err, errs.NotSupport) {
				return 0, errors.WithMessage(err, "failed register disconnect cleanup")
			}
			log.Debugf("store has no disconnect cleanup, %s relies on the live window", path)
		}
	}
	return rec.LastActiveAt, nil
}

func (s *Supervisor) loop(ctx context.Context, t *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := s.Heartbeat(ctx)
		if ctx.Err() != nil {
			return
		}
		s.record(err)
	}
}

func (s *Supervisor) record(err error) {
	s.mu.Lock()
	if err == nil {
		if s.degraded {
			log.Info("heartbeat recovered")
		}
		s.failures = 0
		s.degraded = false
		s.mu.Unlock()
		return
	}
	s.failures++
	failures := s.failures
	trip := !s.degraded && failures >= s.opts.FailureThreshold
	if trip {
		s.degraded = true
	}
	s.mu.Unlock()

	s.warn.Do(func() {
		log.Warnf("heartbeat failed (%d in a row): %+v", failures, err)
	})
	if trip {
		log.Errorf("heartbeat degraded after %d failures: %v", failures, err)
		if s.opts.OnDegraded != nil {
			s.opts.OnDegraded(err)
		}
	}
}

// Heartbeat refreshes lastActiveAt of the owned record. It does nothing
// when no record is owned.
func (s *Supervisor) Heartbeat(ctx context.Context) error {
	s.beatMu.Lock()
	defer s.beatMu.Unlock()

	s.mu.Lock()
	if s.reg == nil {
		s.mu.Unlock()
		return nil
	}
	reg := *s.reg
	last := s.lastBeat
	s.mu.Unlock()

	path := PresencePath(reg.Workspace, reg.Token)
	snap, err := s.opts.Store.Get(ctx, path)
	if err != nil {
		return errors.WithMessage(err, "failed read presence")
	}
	var now int64
	if !snap.Exists() {
		// gone without Stop: revoked, or removed by the disconnect
		// cleanup of another tab sharing the token
		revoked, err := s.opts.Store.Get(ctx, RevocationPath(reg.Workspace, reg.Token))
		if err != nil {
			return errors.WithMessage(err, "failed read revocation")
		}
		if revoked.Exists() {
			log.Debugf("presence %s revoked, not recreating", path)
			return nil
		}
		if now, err = s.publish(ctx, &reg, true); err != nil {
			return err
		}
	} else {
		var existing model.PresenceRecord
		_ = snap.Decode(&existing)
		now = clock.UnixMilli(s.opts.Clock)
		if now < last {
			now = last
		}
		if now < existing.LastActiveAt {
			now = existing.LastActiveAt
		}
		if err := s.opts.Store.Update(ctx, path, map[string]any{"lastActiveAt": now}); err != nil {
			return errors.WithMessage(err, "failed update presence")
		}
	}
	s.mu.Lock()
	if s.reg != nil && s.reg.sameKey(&reg) {
		s.lastBeat = now
	}
	s.mu.Unlock()
	return nil
}

// Touch is a best effort heartbeat for request paths that must not fail.
func (s *Supervisor) Touch(ctx context.Context) {
	if err := s.Heartbeat(ctx); err != nil {
		log.Debugf("touch failed: %v", err)
	}
}

// Stop halts the heartbeat and deletes the owned record. The disconnect
// cleanup stays registered if the delete keeps failing.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.life.Lock()
	defer s.life.Unlock()

	s.mu.Lock()
	reg, cancel, done := s.reg, s.cancel, s.done
	s.reg, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()
	if reg == nil {
		return nil
	}
	cancel()
	<-done

	s.beatMu.Lock()
	defer s.beatMu.Unlock()
	path := PresencePath(reg.Workspace, reg.Token)
	err := retry.Do(func() error {
		return s.opts.Store.Remove(ctx, path)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Warnf("failed remove presence %s, leaving it to disconnect cleanup: %+v", path, err)
		return errors.WithMessage(err, "failed remove presence")
	}
	if err := s.opts.Store.CancelOnDisconnect(ctx, path); err != nil {
		log.Debugf("failed cancel disconnect cleanup of %s: %v", path, err)
	}
	log.WithFields(log.Fields{"user": reg.Email, "token": reg.Token}).Info("session unregistered")
	return nil
}

func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg != nil
}

// Current returns the owned registration, if any.
func (s *Supervisor) Current() (Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg == nil {
		return Registration{}, false
	}
	return *s.reg, true
}

func (s *Supervisor) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}
