// Package tabid hands out the session token that names this tab (or this
// whole profile) in the presence registry.
package tabid

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Allocator struct {
	mu      sync.Mutex
	clock   clock.Clock
	storage map[string]localstore.Storage
}

// New takes the profile storage and the tab's own storage.
func New(c clock.Clock, profile, tab localstore.Storage) *Allocator {
	return &Allocator{
		clock: c,
		storage: map[string]localstore.Storage{
			conf.ScopeProfile: profile,
			conf.ScopeTab:     tab,
		},
	}
}

func (a *Allocator) scope(scope string) (localstore.Storage, error) {
	s, ok := a.storage[scope]
	if !ok {
		return nil, errors.Errorf("unknown token scope %q", scope)
	}
	return s, nil
}

// GetOrCreate returns the token stored for scope, creating it on first use.
func (a *Allocator) GetOrCreate(scope string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.scope(scope)
	if err != nil {
		return "", err
	}
	if tok, ok := s.Get(conf.SessionIDKey); ok && tok != "" {
		return tok, nil
	}
	tok := utils.NewSessionToken(a.clock.Now())
	if err := s.Set(conf.SessionIDKey, tok); err != nil {
		return "", errors.WithMessage(err, "failed store session token")
	}
	return tok, nil
}

// Peek returns the stored token without creating one.
func (a *Allocator) Peek(scope string) (string, bool) {
	s, err := a.scope(scope)
	if err != nil {
		return "", false
	}
	tok, ok := s.Get(conf.SessionIDKey)
	return tok, ok && tok != ""
}

func (a *Allocator) Forget(scope string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.scope(scope)
	if err != nil {
		return err
	}
	return s.Remove(conf.SessionIDKey)
}
