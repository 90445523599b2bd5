package rtdb

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/pkg/generic"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// RTDB talks to a realtime database over its REST interface. The REST
// interface has no disconnect hooks, so stale presence records are left
// to the liveness window.
type RTDB struct {
	Addition

	client       *resty.Client
	streamClient *resty.Client

	mu     sync.Mutex
	cancel map[uint64]context.CancelFunc
	nextID uint64
}

func (d *RTDB) Config() driver.Config {
	return config
}

func (d *RTDB) GetAddition() driver.Additional {
	return &d.Addition
}

func (d *RTDB) Init(ctx context.Context) error {
	if d.URL == "" {
		return errors.New("rtdb url is required")
	}
	d.client = newClient(d.URL, d.Secret).SetTimeout(30 * time.Second)
	d.streamClient = newClient(d.URL, d.Secret)
	d.cancel = map[uint64]context.CancelFunc{}
	// shallow read of the root checks the url and the secret
	return d.request(ctx, http.MethodGet, "", nil, nil)
}

func (d *RTDB) Drop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, cancel := range d.cancel {
		cancel()
		delete(d.cancel, id)
	}
	return nil
}

func (d *RTDB) Get(ctx context.Context, path string) (*driver.Snapshot, error) {
	var v any
	if err := d.request(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return driver.NewSnapshot(path, v), nil
}

func (d *RTDB) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return d.Remove(ctx, path)
	}
	return d.request(ctx, http.MethodPut, path, value, nil)
}

func (d *RTDB) Update(ctx context.Context, path string, fields map[string]any) error {
	return d.request(ctx, http.MethodPatch, path, fields, nil)
}

func (d *RTDB) Push(ctx context.Context, path string, value any) (string, error) {
	var resp PushResp
	if err := d.request(ctx, http.MethodPost, path, value, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

func (d *RTDB) Remove(ctx context.Context, path string) error {
	return d.request(ctx, http.MethodDelete, path, nil, nil)
}

func (d *RTDB) Subscribe(ctx context.Context, path string, fn func(*driver.Snapshot)) (driver.Unsubscribe, error) {
	if d.client == nil {
		return nil, errors.WithStack(errs.StoreClosed)
	}
	path = utils.JoinPath(path)
	first, err := d.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	out := generic.NewDispatcher(fn)
	out.Push(first)

	sctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.cancel[id] = func() {
		cancel()
		out.Close()
	}
	d.mu.Unlock()

	go func() {
		last := first.Value
		for sctx.Err() == nil {
			err := d.stream(sctx, path, func(event string, ev StreamEvent) {
				snap, err := d.Get(sctx, path)
				if err != nil {
					log.Warnf("rtdb: failed refresh %s: %+v", path, err)
					return
				}
				if reflect.DeepEqual(snap.Value, last) {
					return
				}
				last = snap.Value
				out.Push(snap)
			})
			if sctx.Err() != nil {
				return
			}
			log.Warnf("rtdb: stream %s ended, reconnecting: %v", path, err)
			select {
			case <-sctx.Done():
			case <-time.After(time.Second):
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.cancel, id)
			d.mu.Unlock()
			cancel()
			out.Close()
		})
	}, nil
}

func (d *RTDB) OnDisconnectRemove(ctx context.Context, path string) error {
	return errors.WithStack(errs.NotSupport)
}

func (d *RTDB) CancelOnDisconnect(ctx context.Context, path string) error {
	return nil
}

var _ driver.Driver = (*RTDB)(nil)
