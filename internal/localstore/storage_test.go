package localstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smsdesk-org/smsdesk/internal/db"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
)

type events struct {
	mu  sync.Mutex
	got []Event
}

func (e *events) add(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, ev)
}

func (e *events) list() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.got...)
}

func TestProfileViewsShareDataAndSeeOthersOnly(t *testing.T) {
	p := NewProfile()
	a, b := p.View(), p.View()
	var seenByA, seenByB events
	stopA := a.Watch(seenByA.add)
	defer stopA()
	stopB := b.Watch(seenByB.add)
	defer stopB()

	require.NoError(t, a.Set("SESSION_ID", "sess_1"))
	v, ok := b.Get("SESSION_ID")
	assert.True(t, ok)
	assert.Equal(t, "sess_1", v)

	require.NoError(t, b.Remove("SESSION_ID"))
	require.NoError(t, b.Remove("SESSION_ID"))

	require.Eventually(t, func() bool { return len(seenByB.list()) == 1 && len(seenByA.list()) == 1 },
		time.Second, time.Millisecond)
	assert.Equal(t, Event{Key: "SESSION_ID", Value: "sess_1"}, seenByB.list()[0])
	assert.Equal(t, Event{Key: "SESSION_ID", Removed: true}, seenByA.list()[0])
	assert.Equal(t, 2, p.WatcherCount())
}

func TestTabStorage(t *testing.T) {
	s := NewTab()
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "1"))
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	require.NoError(t, s.Remove("a"))
	_, ok := s.Get("a")
	assert.False(t, ok)
	require.NoError(t, s.Clear())
	assert.Empty(t, s.Keys())
}

func openProfile(t *testing.T, c *clock.FakeClock) *db.Profile {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: c.Now})
	require.NoError(t, err)
	profile, err := db.Open(gdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = profile.Close() })
	return profile
}

func TestPersistentPollsOtherOrigins(t *testing.T) {
	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	profile := openProfile(t, c)
	a := NewPersistent(profile, c, 100*time.Millisecond)
	b := NewPersistent(profile, c, 100*time.Millisecond)

	var seen events
	stop := b.Watch(seen.add)
	defer stop()
	c.WaitForTimers(1)

	require.NoError(t, a.Set("force_logout_u1", `{"reason":"password-changed"}`))
	require.NoError(t, b.Set("own", "write"))
	require.NoError(t, a.Remove("force_logout_u1"))

	require.Eventually(t, func() bool {
		c.Advance(100 * time.Millisecond)
		return len(seen.list()) == 2
	}, time.Second, 5*time.Millisecond)
	got := seen.list()
	assert.Equal(t, "force_logout_u1", got[0].Key)
	assert.False(t, got[0].Removed)
	assert.True(t, got[1].Removed)

	v, ok := a.Get("own")
	assert.True(t, ok)
	assert.Equal(t, "write", v)
	assert.Equal(t, []string{"own"}, a.Keys())
}

func TestPersistentReplaysEveryWriteBetweenPolls(t *testing.T) {
	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	profile := openProfile(t, c)
	a := NewPersistent(profile, c, 100*time.Millisecond)
	b := NewPersistent(profile, c, 100*time.Millisecond)

	var seen events
	stop := b.Watch(seen.add)
	defer stop()
	c.WaitForTimers(1)

	require.NoError(t, a.Set("force_logout_u1", "tokX"))
	require.NoError(t, a.Set("force_logout_u1", "tokY"))
	require.NoError(t, a.Remove("force_logout_u1"))
	require.NoError(t, a.Set("force_logout_u1", "tokZ"))

	require.Eventually(t, func() bool {
		c.Advance(100 * time.Millisecond)
		return len(seen.list()) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Event{
		{Key: "force_logout_u1", Value: "tokX"},
		{Key: "force_logout_u1", Value: "tokY"},
		{Key: "force_logout_u1", Removed: true},
		{Key: "force_logout_u1", Value: "tokZ"},
	}, seen.list())
}

func TestPersistentCompact(t *testing.T) {
	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	profile := openProfile(t, c)
	a := NewPersistent(profile, c, 100*time.Millisecond)

	require.NoError(t, a.Set("SESSION_ID", "sess_1"))
	c.Advance(2 * time.Minute)
	require.NoError(t, a.Set("SESSION_ID", "sess_2"))

	require.NoError(t, a.Compact(time.Minute))
	evs, err := profile.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "sess_2", evs[0].Value)

	v, ok := a.Get("SESSION_ID")
	assert.True(t, ok)
	assert.Equal(t, "sess_2", v)
}
