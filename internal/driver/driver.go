package driver

import "context"

type Config struct {
	Name string `json:"name"`
	// DisconnectCleanup is set when the backend itself removes paths
	// registered with OnDisconnectRemove once the connection is lost.
	DisconnectCleanup bool `json:"disconnect_cleanup"`
	// LocalOnly backends are only visible inside this process.
	LocalOnly bool `json:"local_only"`
}

// Additional is the driver specific settings, filled from JSON.
type Additional interface{}

type Driver interface {
	Meta
	Store
}

type Meta interface {
	Config() Config
	GetAddition() Additional
	// Init connects to the backend.
	Init(ctx context.Context) error
	// Drop closes the connection. Paths registered with
	// OnDisconnectRemove are removed as if the connection was lost.
	Drop(ctx context.Context) error
}

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Store is a hierarchical JSON document store with change subscriptions.
// Paths are slash separated. Writing nil removes the path.
type Store interface {
	Get(ctx context.Context, path string) (*Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	// Update writes each field below path, leaving other children alone.
	// Field keys may themselves be relative paths.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Push stores value under a new, time ordered child key of path.
	Push(ctx context.Context, path string, value any) (string, error)
	Remove(ctx context.Context, path string) error
	// Subscribe calls fn with the current value of path, then again after
	// every change at, below or above it. Calls for one subscription are
	// never concurrent and arrive in write order.
	Subscribe(ctx context.Context, path string, fn func(*Snapshot)) (Unsubscribe, error)
	OnDisconnectRemove(ctx context.Context, path string) error
	CancelOnDisconnect(ctx context.Context, path string) error
}
