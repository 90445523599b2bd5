package console

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/drivers/memory"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/identity"
	"github.com/smsdesk-org/smsdesk/internal/invalidate"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/internal/op"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

const (
	email    = "admin@x.io"
	password = "secret1"
	ua       = "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type env struct {
	srv *memory.Server
	clk *clock.FakeClock
	cfg *conf.Config
}

func newEnv(t *testing.T, scope string) *env {
	cfg := conf.DefaultConfig(t.TempDir())
	cfg.Security.JwtSecret = "test-secret"
	cfg.Presence.TokenScope = scope
	return &env{srv: memory.NewServer(), clk: clock.Fake(t0), cfg: cfg}
}

type tab struct {
	*Console
	store   *memory.Memory
	profile localstore.Storage
	local   localstore.Storage
}

func (e *env) tab(t *testing.T, profile *localstore.Profile) *tab {
	store := e.srv.Connect()
	tb := &tab{store: store, profile: profile.View(), local: localstore.NewTab()}
	tb.Console = New(Options{
		Config: e.cfg, Store: store, Clock: e.clk,
		Profile: tb.profile, Tab: tb.local, UserAgent: ua, IP: "10.0.0.1",
	})
	t.Cleanup(func() { tb.Close(context.Background()) })
	return tb
}

func (e *env) presence(t *testing.T) map[string]model.PresenceRecord {
	all, err := op.List[model.PresenceRecord](context.Background(), e.srv.Connect(), "presence/ws1")
	require.NoError(t, err)
	return all
}

func signedOut(tb *tab) func() bool {
	return func() bool {
		st := tb.State()
		return st.Identity == nil && st.Notice != nil
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeTab)
	a := e.tab(t, localstore.NewProfile())

	_, err := a.Register(ctx, email, password, "other", "ws1")
	assert.ErrorIs(t, err, errs.PasswordMismatch)

	st, err := a.Register(ctx, email, password, password, "ws1")
	require.NoError(t, err)
	require.NotNil(t, st.Identity)
	assert.True(t, st.Active)
	assert.Equal(t, "ws1", st.Workspace)
	assert.Contains(t, e.presence(t), st.Token)

	_, err = a.Login(ctx, email, password)
	assert.ErrorIs(t, err, errs.SessionActive)

	n, err := a.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonLogout, n.Reason)
	assert.Empty(t, e.presence(t))
	after := a.State()
	assert.Nil(t, after.Identity)
	require.NotNil(t, after.Notice)
	_, ok := a.profile.Get(conf.WorkspacePrefix + st.Identity.UserID)
	assert.False(t, ok, "workspace binding cleared")
	_, ok = a.local.Get(conf.SessionIDKey)
	assert.False(t, ok, "session token cleared")
	_, ok = a.local.Get(conf.AuthTokenKey)
	assert.False(t, ok, "auth token cleared")

	_, err = a.Login(ctx, email, "wrong-password")
	assert.ErrorIs(t, err, errs.InvalidCredentials)
	st, err = a.Login(ctx, email, password)
	require.NoError(t, err)
	assert.True(t, st.Active)

	_, err = a.Directory()
	assert.NoError(t, err)
	_, err = a.Commands()
	assert.NoError(t, err)
	_, ws, err := a.Devices()
	require.NoError(t, err)
	assert.Equal(t, "ws1", ws)
}

func TestUnboundAccountCannotStart(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeTab)
	a := e.tab(t, localstore.NewProfile())
	_, err := a.Register(ctx, email, password, password, "")
	assert.ErrorIs(t, err, errs.WorkspaceNotBound)
	assert.Nil(t, a.State().Identity)
	_, ok := a.local.Get(conf.AuthTokenKey)
	assert.False(t, ok)
}

func TestBlockedAccount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeTab)
	a := e.tab(t, localstore.NewProfile())
	st, err := a.Register(ctx, email, password, password, "ws1")
	require.NoError(t, err)
	uid := st.Identity.UserID

	require.NoError(t, identity.Block(ctx, a.store, uid, "abuse", 1))
	e.clk.Advance(e.cfg.Security.BlockCheckInterval)
	require.Eventually(t, signedOut(a), time.Second, 5*time.Millisecond)
	assert.True(t, a.State().Notice.Blocking)
	assert.Empty(t, e.presence(t))

	_, err = a.Login(ctx, email, password)
	assert.ErrorIs(t, err, errs.AccountBlocked)
	assert.Nil(t, a.State().Identity)

	require.NoError(t, identity.Unblock(ctx, a.store, uid))
	_, err = a.Login(ctx, email, password)
	assert.NoError(t, err)
}

func TestPasswordChangeLogsOutEverywhere(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeTab)
	profile := localstore.NewProfile()
	a := e.tab(t, profile)
	b := e.tab(t, profile)

	_, err := a.Register(ctx, email, password, password, "ws1")
	require.NoError(t, err)
	e.clk.Advance(time.Second)
	_, err = b.Login(ctx, email, password)
	require.NoError(t, err)
	require.Len(t, e.presence(t), 2)

	_, err = a.ChangePassword(ctx, "newpass1", "other")
	assert.ErrorIs(t, err, errs.PasswordMismatch)
	_, err = a.ChangePassword(ctx, "123", "123")
	assert.ErrorIs(t, err, errs.PasswordTooShort)

	e.clk.Advance(time.Second)
	n, err := a.ChangePassword(ctx, "newpass1", "newpass1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonPasswordChanged, n.Reason)
	assert.True(t, signedOut(a)())

	require.Eventually(t, signedOut(b), time.Second, 5*time.Millisecond)
	assert.Equal(t, model.ReasonPasswordChanged, b.State().Notice.Reason)
	require.Eventually(t, func() bool { return len(e.presence(t)) == 0 }, time.Second, 5*time.Millisecond)

	_, err = b.Login(ctx, email, password)
	assert.ErrorIs(t, err, errs.InvalidCredentials)
	_, err = b.Login(ctx, email, "newpass1")
	assert.NoError(t, err)
}

func TestForceLogoutConverges(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeTab)
	profile := localstore.NewProfile()
	a := e.tab(t, profile)
	b := e.tab(t, profile)
	remote := e.tab(t, localstore.NewProfile())

	st, err := a.Register(ctx, email, password, password, "ws1")
	require.NoError(t, err)
	e.clk.Advance(time.Second)
	stB, err := b.Login(ctx, email, password)
	require.NoError(t, err)
	e.clk.Advance(time.Second)
	stR, err := remote.Login(ctx, email, password)
	require.NoError(t, err)
	require.Len(t, e.presence(t), 3)

	dir, err := a.Directory()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return dir.Snapshot().Total == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, dir.ForceLogout(ctx, stR.Token))
	require.Eventually(t, signedOut(remote), time.Second, 5*time.Millisecond)
	assert.Equal(t, model.ReasonRevoked, remote.State().Notice.Reason)
	assert.NotContains(t, e.presence(t), stR.Token)
	assert.True(t, b.State().Active, "other sessions keep running")

	n, err := dir.ForceLogoutUser(ctx, st.Identity.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Eventually(t, signedOut(b), time.Second, 5*time.Millisecond)
	assert.True(t, signedOut(a)())
	assert.NotContains(t, e.presence(t), stB.Token)
	assert.Empty(t, e.presence(t))
}

func TestStaleSignalDoesNotEndNewSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeTab)
	profile := localstore.NewProfile()
	a := e.tab(t, profile)
	st, err := a.Register(ctx, email, password, password, "ws1")
	require.NoError(t, err)
	uid := st.Identity.UserID
	_, err = a.Logout(ctx)
	require.NoError(t, err)

	old := model.InvalidationSignal{Reason: model.ReasonForceLogout, Timestamp: e.clk.Now().UnixMilli()}
	raw, err := utils.Json.MarshalToString(old)
	require.NoError(t, err)
	require.NoError(t, profile.View().Set(invalidate.SignalKey(uid), raw))

	e.clk.Advance(10 * time.Minute)
	b := e.tab(t, profile)
	_, err = b.Login(ctx, email, password)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.State().Active)
	_, ok := b.profile.Get(invalidate.SignalKey(uid))
	assert.False(t, ok, "stale signal cleared")
}

func TestProfileScopeSharesSignIn(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeProfile)
	profile := localstore.NewProfile()
	a := e.tab(t, profile)
	b := e.tab(t, profile)

	st, err := a.Register(ctx, email, password, password, "ws1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.State().Active }, time.Second, 5*time.Millisecond)
	assert.Equal(t, st.Token, b.State().Token, "tabs of a profile share the session token")
	assert.Len(t, e.presence(t), 1)

	_, err = a.Logout(ctx)
	require.NoError(t, err)
	require.Eventually(t, signedOut(b), time.Second, 5*time.Millisecond)
	assert.Empty(t, e.presence(t))
}

func TestRestoreAfterClose(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, conf.ScopeProfile)
	profile := localstore.NewProfile()
	a := e.tab(t, profile)
	st, err := a.Register(ctx, email, password, password, "ws1")
	require.NoError(t, err)
	a.Close(ctx)
	assert.Empty(t, e.presence(t))

	b := e.tab(t, profile)
	got, err := b.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, st.Token, got.Token)
	assert.Equal(t, st.Identity.UserID, got.Identity.UserID)
	assert.Len(t, e.presence(t), 1)

	fresh := e.tab(t, localstore.NewProfile())
	none, err := fresh.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, none.Identity)
}
