package invalidate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/drivers/memory"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/identity"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type collector struct {
	mu   sync.Mutex
	sigs []model.InvalidationSignal
}

func (c *collector) add(s model.InvalidationSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sigs = append(c.sigs, s)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sigs)
}

func (c *collector) get(i int) model.InvalidationSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sigs[i]
}

func TestBusReachesOtherTabsOnly(t *testing.T) {
	profile := localstore.NewProfile()
	clk := clock.Fake(t0)
	a := NewBus(profile.View(), clk, 5*time.Minute)
	b := NewBus(profile.View(), clk, 5*time.Minute)

	var gotA, gotB collector
	defer a.Observe("u1", "tokA", 0, gotA.add)()
	defer b.Observe("u1", "tokB", 0, gotB.add)()

	require.NoError(t, a.Broadcast("u1", model.ReasonLogout, ""))
	require.Eventually(t, func() bool { return gotB.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.ReasonLogout, gotB.get(0).Reason)
	assert.Equal(t, t0.UnixMilli(), gotB.get(0).Timestamp)

	clk.Advance(time.Second)
	require.NoError(t, a.Broadcast("u1", model.ReasonForceLogout, "tokC"))
	require.NoError(t, a.Broadcast("u2", model.ReasonLogout, ""))
	clk.Advance(time.Second)
	require.NoError(t, a.Broadcast("u1", model.ReasonForceLogout, "tokB"))
	require.Eventually(t, func() bool { return gotB.len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "tokB", gotB.get(1).Token)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, gotA.len(), "own writes never loop back")
	assert.Equal(t, 2, gotB.len())
}

func TestStaleSignalIgnoredAndCleared(t *testing.T) {
	profile := localstore.NewProfile()
	clk := clock.Fake(t0)
	old := model.InvalidationSignal{Reason: model.ReasonLogout, Timestamp: t0.Add(-6 * time.Minute).UnixMilli()}
	raw, err := utils.Json.MarshalToString(old)
	require.NoError(t, err)
	seed := profile.View()
	require.NoError(t, seed.Set(SignalKey("u1"), raw))

	tab := profile.View()
	var got collector
	defer NewBus(tab, clk, 5*time.Minute).Observe("u1", "tokA", 0, got.add)()

	assert.Equal(t, 0, got.len())
	_, ok := tab.Get(SignalKey("u1"))
	assert.False(t, ok, "stale signal cleared")
}

func TestPendingSignalOfEarlierSessionIgnored(t *testing.T) {
	profile := localstore.NewProfile()
	clk := clock.Fake(t0)
	require.NoError(t, NewBus(profile.View(), clk, 0).Broadcast("u1", model.ReasonLogout, ""))

	clk.Advance(10 * time.Second)
	tab := profile.View()
	var before, after collector
	bus := NewBus(tab, clk, 0)
	defer bus.Observe("u1", "tokA", clock.UnixMilli(clk), before.add)()
	defer bus.Observe("u1", "tokA", 0, after.add)()
	assert.Equal(t, 0, before.len())
	assert.Equal(t, 1, after.len(), "a fresh pending signal is delivered on observe")
}

func TestRevokeReachesEveryUser(t *testing.T) {
	profile := localstore.NewProfile()
	clk := clock.Fake(t0)
	var got collector
	defer NewBus(profile.View(), clk, 0).Observe("u9", "tok", 0, got.add)()
	require.NoError(t, NewBus(profile.View(), clk, 0).Revoke(model.ReasonBlocked))
	require.Eventually(t, func() bool { return got.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.ReasonBlocked, got.get(0).Reason)
}

type steps struct {
	mu  sync.Mutex
	log []string
	err error
}

func (s *steps) add(step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, step)
	return s.err
}

type stopper struct{ *steps }

func (s stopper) Stop(context.Context) error { return s.add("stop") }

type signer struct{ *steps }

func (s signer) SignOut(context.Context) error { return s.add("signout") }

type wsCache struct{ *steps }

func (s wsCache) Forget(uid string) error { return s.add("workspace:" + uid) }

type tokens struct{ *steps }

func (s tokens) Forget(scope string) error { return s.add("token:" + scope) }

func TestTeardownOrderAndIdempotence(t *testing.T) {
	st := &steps{}
	e := NewEnforcer(EnforcerOptions{
		Session: stopper{st}, Identity: signer{st}, Workspace: wsCache{st}, Tokens: tokens{st},
		Scope: conf.ScopeProfile,
	})
	var notices []model.Notice
	e.OnSignedOut(func(n model.Notice) {
		st.add("notice")
		notices = append(notices, n)
	})

	e.Arm(model.Identity{UserID: "u1", Email: "a@x.io"})
	assert.True(t, e.Armed())
	n := e.Teardown(context.Background(), model.ReasonBlocked)
	assert.True(t, n.Blocking)
	assert.Equal(t, []string{"stop", "signout", "workspace:u1", "token:profile", "notice"}, st.log)

	again := e.Teardown(context.Background(), model.ReasonLogout)
	assert.Equal(t, n, again, "second teardown returns the first notice")
	assert.Len(t, notices, 1)
	assert.False(t, e.Armed())
	last, ok := e.LastNotice()
	assert.True(t, ok)
	assert.Equal(t, model.ReasonBlocked, last.Reason)
}

func TestTeardownContinuesPastFailures(t *testing.T) {
	st := &steps{err: errors.New("boom")}
	e := NewEnforcer(EnforcerOptions{
		Session: stopper{st}, Identity: signer{st}, Workspace: wsCache{st}, Tokens: tokens{st}, Scope: conf.ScopeTab,
	})
	e.Arm(model.Identity{UserID: "u1"})
	n := e.Teardown(context.Background(), model.ReasonLogout)
	assert.False(t, n.Blocking)
	assert.Equal(t, []string{"stop", "signout", "workspace:u1", "token:tab"}, st.log)
}

func TestConcurrentTeardownRunsOnce(t *testing.T) {
	st := &steps{}
	e := NewEnforcer(EnforcerOptions{Session: stopper{st}})
	var fired atomic.Int32
	e.OnSignedOut(func(model.Notice) { fired.Add(1) })
	e.Arm(model.Identity{UserID: "u1"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Teardown(context.Background(), model.ReasonForceLogout)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, []string{"stop"}, st.log)
}

func TestWatchdogFiresOnBlock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewServer().Connect()
	clk := clock.Fake(t0)
	var fired atomic.Int32
	w := StartWatchdog(store, clk, 30*time.Second, "u1", func() { fired.Add(1) })
	defer w.Stop()

	clk.Advance(30 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	require.NoError(t, identity.Block(ctx, store, "u1", "abuse", 1))
	clk.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watchdog kept running after block")
	}
}

func TestWatchdogFailsOpen(t *testing.T) {
	store := memory.NewServer().Connect()
	var gets atomic.Int32
	store.Intercept(func(op, path string, value any) error {
		gets.Add(1)
		return errors.New("offline")
	})
	clk := clock.Fake(t0)
	var fired atomic.Int32
	w := StartWatchdog(store, clk, time.Second, "u1", func() { fired.Add(1) })
	defer w.Stop()
	for i := int32(1); i <= 3; i++ {
		clk.Advance(time.Second)
		n := i
		require.Eventually(t, func() bool { return gets.Load() >= n }, time.Second, 5*time.Millisecond)
	}
	assert.Equal(t, int32(0), fired.Load())
}
