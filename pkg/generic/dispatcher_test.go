package generic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int
	d := NewDispatcher(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	defer d.Close()
	for i := 0; i < 100; i++ {
		d.Push(i)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 100
	}, time.Second, 5*time.Millisecond)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(func(int) {})
	d.Close()
	d.Push(1)
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher goroutine still running")
	}
}
