package memory

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// Interceptor sees every operation before it reaches the server. A
// non-nil error fails the operation.
type Interceptor func(op, path string, value any) error

type Memory struct {
	Addition

	srv       *Server
	mu        sync.Mutex
	closed    bool
	subs      mapset.Set[uint64]
	cleanup   mapset.Set[string]
	intercept Interceptor
}

func (d *Memory) Config() driver.Config {
	return config
}

func (d *Memory) GetAddition() driver.Additional {
	return &d.Addition
}

func (d *Memory) Init(ctx context.Context) error {
	name := d.Server
	if name == "" {
		name = "default"
	}
	d.attach(Shared(name))
	return nil
}

func (d *Memory) attach(s *Server) {
	d.srv = s
	d.subs = mapset.NewSet[uint64]()
	d.cleanup = mapset.NewSet[string]()
}

// Drop closes the connection and runs its disconnect cleanup, the same
// way the backend does when a client goes away.
func (d *Memory) Drop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed || d.srv == nil {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	subs := d.subs.ToSlice()
	paths := d.cleanup.ToSlice()
	d.mu.Unlock()

	for _, id := range subs {
		d.srv.unsubscribe(id)
	}
	writes := make([]write, 0, len(paths))
	for _, p := range paths {
		writes = append(writes, write{path: p})
	}
	if len(writes) > 0 {
		d.srv.apply(writes...)
	}
	return nil
}

// Intercept installs fn for every later operation on this connection.
func (d *Memory) Intercept(fn Interceptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intercept = fn
}

func (d *Memory) check(op, path string, value any) error {
	d.mu.Lock()
	closed, fn := d.closed, d.intercept
	d.mu.Unlock()
	if closed {
		return errors.WithStack(errs.StoreClosed)
	}
	if fn != nil {
		return fn(op, utils.JoinPath(path), value)
	}
	return nil
}

func (d *Memory) Get(ctx context.Context, path string) (*driver.Snapshot, error) {
	if err := d.check("get", path, nil); err != nil {
		return nil, err
	}
	return driver.NewSnapshot(path, d.srv.get(path)), nil
}

func (d *Memory) Set(ctx context.Context, path string, value any) error {
	if err := d.check("set", path, value); err != nil {
		return err
	}
	v, err := utils.Normalize(value)
	if err != nil {
		return errors.Wrapf(err, "failed encode %s", path)
	}
	d.srv.apply(write{path: path, value: v})
	return nil
}

func (d *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := d.check("update", path, fields); err != nil {
		return err
	}
	writes := make([]write, 0, len(fields))
	for k, f := range fields {
		v, err := utils.Normalize(f)
		if err != nil {
			return errors.Wrapf(err, "failed encode %s/%s", path, k)
		}
		writes = append(writes, write{path: utils.JoinPath(path, k), value: v})
	}
	d.srv.apply(writes...)
	return nil
}

func (d *Memory) Push(ctx context.Context, path string, value any) (string, error) {
	key, err := utils.NewPushKey()
	if err != nil {
		return "", err
	}
	return key, d.Set(ctx, utils.JoinPath(path, key), value)
}

func (d *Memory) Remove(ctx context.Context, path string) error {
	if err := d.check("remove", path, nil); err != nil {
		return err
	}
	d.srv.apply(write{path: path})
	return nil
}

func (d *Memory) Subscribe(ctx context.Context, path string, fn func(*driver.Snapshot)) (driver.Unsubscribe, error) {
	if err := d.check("subscribe", path, nil); err != nil {
		return nil, err
	}
	id := d.srv.subscribe(path, fn)
	d.mu.Lock()
	d.subs.Add(id)
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			d.subs.Remove(id)
			d.mu.Unlock()
			d.srv.unsubscribe(id)
		})
	}, nil
}

func (d *Memory) OnDisconnectRemove(ctx context.Context, path string) error {
	if err := d.check("on_disconnect", path, nil); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanup.Add(utils.JoinPath(path))
	return nil
}

func (d *Memory) CancelOnDisconnect(ctx context.Context, path string) error {
	if err := d.check("cancel_on_disconnect", path, nil); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanup.Remove(utils.JoinPath(path))
	return nil
}

var _ driver.Driver = (*Memory)(nil)
