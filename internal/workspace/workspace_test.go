package workspace

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/drivers/memory"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
)

func TestResolveCachesAndRereads(t *testing.T) {
	ctx := context.Background()
	store := memory.NewServer().Connect()
	local := localstore.NewProfile().View()
	r := NewResolver(store, local)

	_, err := r.Resolve(ctx, "u1")
	assert.ErrorIs(t, err, errs.WorkspaceNotBound)

	require.NoError(t, r.Bind(ctx, "u1", "a@x.io", "ws1", 10))
	ws, err := r.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ws1", ws)
	cached, ok := r.Cached("u1")
	assert.True(t, ok)
	assert.Equal(t, "ws1", cached)

	require.NoError(t, store.Set(ctx, "users/u1/dbPath", "ws2"))
	ws, err = r.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ws2", ws, "every resolve reads the store")

	require.NoError(t, r.Forget("u1"))
	_, ok = r.Cached("u1")
	assert.False(t, ok)
}

func TestResolveRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewServer().Connect()
	r := NewResolver(store, localstore.NewTab())
	require.NoError(t, r.Bind(ctx, "u1", "a@x.io", "ws1", 10))

	fails := 2
	store.Intercept(func(op, path string, value any) error {
		if op == "get" && fails > 0 {
			fails--
			return errors.New("unavailable")
		}
		return nil
	})
	ws, err := r.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ws1", ws)
}

func TestSessionVersionAndUsers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewServer().Connect()
	r := NewResolver(store, localstore.NewTab())
	require.NoError(t, r.Bind(ctx, "u2", "b@x.io", "ws1", 20))
	require.NoError(t, r.Bind(ctx, "u1", "a@x.io", "ws1", 10))
	require.NoError(t, r.Bind(ctx, "u3", "c@x.io", "ws2", 5))

	v, err := r.BumpSessionVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = r.BumpSessionVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	u, ok, err := r.User(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ws1", u.DBPath)

	members, err := r.Users(ctx, "ws1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].UserID)
	assert.Equal(t, "u2", members[1].UserID)
}
