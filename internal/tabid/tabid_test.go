package tabid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
)

func TestGetOrCreateIsStablePerScope(t *testing.T) {
	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	profile := localstore.NewProfile()

	tab1 := New(c, profile.View(), localstore.NewTab())
	tab2 := New(c, profile.View(), localstore.NewTab())

	p1, err := tab1.GetOrCreate(conf.ScopeProfile)
	require.NoError(t, err)
	assert.Regexp(t, `^sess_\d+_[0-9a-f]+$`, p1)
	again, err := tab1.GetOrCreate(conf.ScopeProfile)
	require.NoError(t, err)
	assert.Equal(t, p1, again)

	p2, err := tab2.GetOrCreate(conf.ScopeProfile)
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "tabs of one profile share the profile token")

	t1, err := tab1.GetOrCreate(conf.ScopeTab)
	require.NoError(t, err)
	t2, err := tab2.GetOrCreate(conf.ScopeTab)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
	assert.NotEqual(t, p1, t1)

	require.NoError(t, tab1.Forget(conf.ScopeProfile))
	_, ok := tab2.Peek(conf.ScopeProfile)
	assert.False(t, ok)
	fresh, err := tab2.GetOrCreate(conf.ScopeProfile)
	require.NoError(t, err)
	assert.NotEqual(t, p1, fresh)

	_, err = tab1.GetOrCreate("window")
	assert.Error(t, err)
}
