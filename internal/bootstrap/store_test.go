package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/smsdesk-org/smsdesk/drivers/memory"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/errs"
)

func TestOpenStore(t *testing.T) {
	conf.Conf = conf.DefaultConfig(t.TempDir())
	t.Cleanup(func() { conf.Conf = nil })
	ctx := context.Background()

	conf.Conf.Store.Addition = `{"server":"bootstrap-test"}`
	d, err := OpenStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Memory", d.Config().Name)
	require.NoError(t, d.Drop(ctx))

	conf.Conf.Store.Driver = "Carrier Pigeon"
	_, err = OpenStore(ctx)
	assert.ErrorIs(t, err, errs.DriverNotFound)
	assert.Contains(t, err.Error(), "Memory")
}

func TestOpenProfile(t *testing.T) {
	p, err := OpenProfile("sqlite3", filepath.Join(t.TempDir(), "profile.db"))
	require.NoError(t, err)
	require.NoError(t, p.PutItem("SESSION_ID", "sess_1_abc", "test"))
	it, err := p.GetItem("SESSION_ID")
	require.NoError(t, err)
	assert.Equal(t, "sess_1_abc", it.Value)
	require.NoError(t, p.Close())
}

func TestOpenProfileUnknownDriver(t *testing.T) {
	_, err := OpenProfile("oracle", "x")
	assert.Error(t, err)
}
