package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/drivers/memory"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/console"
	"github.com/smsdesk-org/smsdesk/internal/directory"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
	"github.com/smsdesk-org/smsdesk/server/common"
)

type harness struct {
	srv   *memory.Server
	store *memory.Memory
	con   *console.Console
	e     *gin.Engine
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	cfg := conf.DefaultConfig(t.TempDir())
	cfg.Security.JwtSecret = "test-secret"
	srv := memory.NewServer()
	store := srv.Connect()
	con := console.New(console.Options{
		Config:    cfg,
		Store:     store,
		Clock:     clock.Fake(time.UnixMilli(1_700_000_000_000)),
		Profile:   localstore.NewProfile().View(),
		Tab:       localstore.NewTab(),
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0",
		IP:        "127.0.0.1",
	})
	t.Cleanup(func() { con.Close(context.Background()) })
	e := gin.New()
	Init(e, con)
	return &harness{srv: srv, store: store, con: con, e: e}
}

func do[T any](t *testing.T, h *harness, method, path string, body any) common.Resp[T] {
	var buf bytes.Buffer
	if body != nil {
		b, err := utils.Json.Marshal(body)
		require.NoError(t, err)
		buf.Write(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.e.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp common.Resp[T]
	require.NoError(t, utils.Json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (h *harness) register(t *testing.T) console.State {
	resp := do[console.State](t, h, http.MethodPost, "/api/auth/register", gin.H{
		"email": "admin@x.io", "password": "secret1", "confirm": "secret1", "db_path": "ws1",
	})
	require.Equal(t, 200, resp.Code, resp.Message)
	return resp.Data
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)
	me := do[console.State](t, h, http.MethodGet, "/api/me", nil)
	assert.Equal(t, 200, me.Code)
	assert.Nil(t, me.Data.Identity)

	resp := do[any](t, h, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLoginErrors(t *testing.T) {
	h := newHarness(t)
	resp := do[any](t, h, http.MethodPost, "/api/auth/login", gin.H{"email": "nobody@x.io", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = do[any](t, h, http.MethodPost, "/api/auth/login", gin.H{"email": "nobody@x.io"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSessionsAndEviction(t *testing.T) {
	h := newHarness(t)
	st := h.register(t)
	require.True(t, st.Active)
	dir, err := h.con.Directory()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return dir.Snapshot().Total == 1 }, time.Second, 5*time.Millisecond)

	list := do[directory.Snapshot](t, h, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, 200, list.Code)
	require.Len(t, list.Data.Entries, 1)
	assert.True(t, list.Data.Entries[0].Current)
	assert.Equal(t, st.Token, list.Data.Entries[0].Token)

	resp := do[any](t, h, http.MethodPost, "/api/sessions/evict", gin.H{"token": "sess_1_missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	members := do[[]model.Member](t, h, http.MethodGet, "/api/users", nil)
	require.Equal(t, 200, members.Code)
	require.Len(t, members.Data, 1)
	assert.Equal(t, 1, members.Data[0].Sessions)

	resp = do[any](t, h, http.MethodPost, "/api/sessions/evict", gin.H{"token": st.Token})
	assert.Equal(t, 200, resp.Code)
	me := do[console.State](t, h, http.MethodGet, "/api/me", nil)
	assert.Nil(t, me.Data.Identity)
	require.NotNil(t, me.Data.Notice)
	assert.Equal(t, model.ReasonForceLogout, me.Data.Notice.Reason)
}

func TestSendSmsValidation(t *testing.T) {
	h := newHarness(t)
	h.register(t)

	resp := do[any](t, h, http.MethodPost, "/api/devices/d1/sms", gin.H{
		"phoneNumber": "12345", "message": "hi", "simSlot": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	snap, err := h.store.Get(context.Background(), "ws1/d1/sms_send_commands")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	ok := do[map[string]string](t, h, http.MethodPost, "/api/devices/d1/sms", gin.H{
		"phoneNumber": "9876543210", "message": "hi", "simSlot": 1,
	})
	require.Equal(t, 200, ok.Code, ok.Message)
	assert.NotEmpty(t, ok.Data["id"])
	assert.Equal(t, string(model.StatusPending), ok.Data["status"])

	history := do[[]map[string]any](t, h, http.MethodGet, "/api/devices/d1/commands/send-sms", nil)
	require.Equal(t, 200, history.Code)
	assert.Len(t, history.Data, 1)

	bad := do[any](t, h, http.MethodGet, "/api/devices/d1/commands/fax", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestChangePasswordSignsOut(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	resp := do[any](t, h, http.MethodPost, "/api/me/password", gin.H{"password": "secret2", "confirm": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	n := do[model.Notice](t, h, http.MethodPost, "/api/me/password", gin.H{"password": "secret2", "confirm": "secret2"})
	require.Equal(t, 200, n.Code, n.Message)
	assert.Equal(t, model.ReasonPasswordChanged, n.Data.Reason)

	login := do[any](t, h, http.MethodPost, "/api/auth/login", gin.H{"email": "admin@x.io", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, login.Code)
	login = do[any](t, h, http.MethodPost, "/api/auth/login", gin.H{"email": "admin@x.io", "password": "secret2"})
	assert.Equal(t, 200, login.Code)
}

func TestStreamEndsWithSession(t *testing.T) {
	h := newHarness(t)
	st := h.register(t)
	ts := httptest.NewServer(h.e)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first directory.Snapshot
	for len(first.Entries) == 0 {
		require.NoError(t, conn.ReadJSON(&first))
	}
	assert.Equal(t, st.Token, first.Entries[0].Token)

	_, err = h.con.Logout(context.Background())
	require.NoError(t, err)

	var last console.State
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		last = console.State{}
		if err := utils.Json.Unmarshal(raw, &last); err == nil && last.Notice != nil {
			break
		}
	}
	assert.Nil(t, last.Identity)
	assert.Equal(t, model.ReasonLogout, last.Notice.Reason)
}
