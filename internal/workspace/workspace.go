// Package workspace maps a user to the store path holding their devices.
package workspace

import (
	"context"
	"sort"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/internal/op"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Resolver struct {
	store driver.Store
	local localstore.Storage
}

func NewResolver(store driver.Store, local localstore.Storage) *Resolver {
	return &Resolver{store: store, local: local}
}

func userPath(uid string) string {
	return utils.JoinPath(conf.UsersRoot, uid)
}

func cacheKey(uid string) string {
	return conf.WorkspacePrefix + uid
}

// Resolve reads the binding fresh from the store and caches it locally.
func (r *Resolver) Resolve(ctx context.Context, uid string) (string, error) {
	var u model.User
	var bound bool
	err := retry.Do(func() error {
		var err error
		u, bound, err = op.Get[model.User](ctx, r.store, userPath(uid))
		return err
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	if !bound || u.DBPath == "" {
		return "", errors.WithStack(errs.WorkspaceNotBound)
	}
	if err := r.local.Set(cacheKey(uid), u.DBPath); err != nil {
		return "", errors.WithMessage(err, "failed cache workspace")
	}
	return u.DBPath, nil
}

func (r *Resolver) Cached(uid string) (string, bool) {
	ws, ok := r.local.Get(cacheKey(uid))
	return ws, ok && ws != ""
}

func (r *Resolver) Forget(uid string) error {
	return r.local.Remove(cacheKey(uid))
}

// Bind records the workspace of a newly registered user.
func (r *Resolver) Bind(ctx context.Context, uid, email, dbPath string, now int64) error {
	return r.store.Set(ctx, userPath(uid), model.User{Email: email, DBPath: dbPath, CreatedAt: now})
}

func (r *Resolver) User(ctx context.Context, uid string) (model.User, bool, error) {
	return op.Get[model.User](ctx, r.store, userPath(uid))
}

// BumpSessionVersion increments users/<uid>/sessionVersion, which every
// signed-in tab of the user watches.
func (r *Resolver) BumpSessionVersion(ctx context.Context, uid string) (int64, error) {
	p := utils.JoinPath(userPath(uid), "sessionVersion")
	v, _, err := op.Get[int64](ctx, r.store, p)
	if err != nil {
		return 0, err
	}
	v++
	return v, r.store.Set(ctx, p, v)
}

// Users lists the users bound to dbPath, oldest first.
func (r *Resolver) Users(ctx context.Context, dbPath string) ([]model.Member, error) {
	all, err := op.List[model.User](ctx, r.store, conf.UsersRoot)
	if err != nil {
		return nil, err
	}
	var out []model.Member
	for uid, u := range all {
		if u.DBPath != dbPath {
			continue
		}
		out = append(out, model.Member{UserID: uid, Email: u.Email, CreatedAt: u.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
