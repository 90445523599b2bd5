package db

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTest(t *testing.T) *Profile {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	return openDSN(t, dsn)
}

func openDSN(t *testing.T, dsn string) *Profile {
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	p, err := Open(d)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProfileItems(t *testing.T) {
	p := openTest(t)

	require.NoError(t, p.PutItem("SESSION_ID", "sess_1", "a"))
	require.NoError(t, p.PutItem("dbPath_u1", "ws1", "a"))
	require.NoError(t, p.PutItem("SESSION_ID", "sess_2", "b"))

	it, err := p.GetItem("SESSION_ID")
	require.NoError(t, err)
	assert.Equal(t, "sess_2", it.Value)
	assert.Equal(t, int64(3), it.Rev)

	require.NoError(t, p.DeleteItem("dbPath_u1", "a"))
	require.NoError(t, p.DeleteItem("missing", "a"))
	_, err = p.GetItem("dbPath_u1")
	assert.Error(t, err)

	changes, err := p.EventsAfter(2)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "SESSION_ID", changes[0].Key)
	assert.Equal(t, "b", changes[0].Origin)
	assert.Equal(t, "dbPath_u1", changes[1].Key)
	assert.True(t, changes[1].Deleted)

	require.NoError(t, p.ClearItems("c"))
	items, err := p.ListItems()
	require.NoError(t, err)
	assert.Empty(t, items)
	rev, err := p.MaxRev()
	require.NoError(t, err)
	assert.Equal(t, int64(5), rev)
}

func TestEventsKeepEveryWriteToOneKey(t *testing.T) {
	p := openTest(t)

	require.NoError(t, p.PutItem("force_logout_u1", "tokX", "a"))
	require.NoError(t, p.PutItem("force_logout_u1", "tokY", "a"))
	require.NoError(t, p.DeleteItem("force_logout_u1", "a"))
	require.NoError(t, p.PutItem("force_logout_u1", "tokZ", "a"))

	evs, err := p.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, evs, 4)
	assert.Equal(t, "tokX", evs[0].Value)
	assert.Equal(t, "tokY", evs[1].Value)
	assert.True(t, evs[2].Deleted)
	assert.Equal(t, "tokZ", evs[3].Value)

	it, err := p.GetItem("force_logout_u1")
	require.NoError(t, err)
	assert.Equal(t, "tokZ", it.Value)
	assert.Equal(t, evs[3].Rev, it.Rev)
}

func TestConcurrentWritersGetUniqueRevs(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "profile.db") + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	p := openDSN(t, dsn)

	const writers, each = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*each)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				errs <- p.PutItem("SESSION_ID", fmt.Sprintf("sess_%d_%d", w, i), fmt.Sprintf("w%d", w))
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	evs, err := p.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, evs, writers*each)
	for i, ev := range evs {
		assert.Equal(t, int64(i+1), ev.Rev)
	}
	rev, err := p.MaxRev()
	require.NoError(t, err)
	assert.Equal(t, int64(writers*each), rev)

	it, err := p.GetItem("SESSION_ID")
	require.NoError(t, err)
	assert.Equal(t, rev, it.Rev)
	assert.Equal(t, evs[len(evs)-1].Value, it.Value)
}

func TestPruneEvents(t *testing.T) {
	p := openTest(t)
	require.NoError(t, p.PutItem("k", "v1", "a"))
	require.NoError(t, p.PutItem("k", "v2", "a"))

	n, err := p.PruneEvents(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = p.PruneEvents(time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	evs, err := p.EventsAfter(0)
	require.NoError(t, err)
	assert.Empty(t, evs)
	it, err := p.GetItem("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", it.Value)

	require.NoError(t, p.PutItem("k", "v3", "a"))
	evs, err = p.EventsAfter(2)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(3), evs[0].Rev)
}
