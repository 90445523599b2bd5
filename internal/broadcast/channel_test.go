package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/internal/localstore"
)

type note struct {
	Reason string `json:"reason"`
}

func TestChannelDeliversToOtherTabs(t *testing.T) {
	p := localstore.NewProfile()
	tab1, tab2 := p.View(), p.View()
	match := Prefix("force_logout_", "auth_revoked")
	ch1, ch2 := New[note](tab1, match), New[note](tab2, match)

	got1 := make(chan Message[note], 4)
	got2 := make(chan Message[note], 4)
	defer ch1.Subscribe(func(m Message[note]) { got1 <- m })()
	defer ch2.Subscribe(func(m Message[note]) { got2 <- m })()

	require.NoError(t, ch1.Publish("force_logout_u1", note{Reason: "password-changed"}))
	require.NoError(t, tab1.Set("unrelated", "x"))
	require.NoError(t, tab1.Set("auth_revoked", "not json"))

	select {
	case m := <-got2:
		assert.Equal(t, "force_logout_u1", m.Key)
		assert.Equal(t, "password-changed", m.Value.Reason)
	case <-time.After(time.Second):
		t.Fatal("tab2 did not receive the message")
	}
	select {
	case m := <-got1:
		t.Fatalf("publisher received its own message %v", m)
	case m := <-got2:
		t.Fatalf("unexpected message %v", m)
	case <-time.After(50 * time.Millisecond):
	}

	v, ok := ch2.Pending("force_logout_u1")
	assert.True(t, ok)
	assert.Equal(t, "password-changed", v.Reason)
	require.NoError(t, ch2.Clear("force_logout_u1"))
	_, ok = ch1.Pending("force_logout_u1")
	assert.False(t, ok)

	assert.Error(t, ch1.Publish("SESSION_ID", note{}))
}
