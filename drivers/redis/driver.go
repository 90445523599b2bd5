package redis

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/pkg/generic"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Redis struct {
	Addition

	client *redis.Client
	pubsub *redis.PubSub
	id     string
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
}

type subscription struct {
	path string
	last any
	sent bool
	out  *generic.Dispatcher[*driver.Snapshot]
}

func (d *Redis) Config() driver.Config {
	return config
}

func (d *Redis) GetAddition() driver.Additional {
	return &d.Addition
}

func (d *Redis) Init(ctx context.Context) error {
	if d.Prefix == "" {
		d.Prefix = "smsdesk:"
	}
	if d.LeaseTTL <= 0 {
		d.LeaseTTL = 10000
	}
	opts, err := redis.ParseURL(d.URL)
	if err != nil {
		return errors.Wrap(err, "invalid redis url")
	}
	d.client = redis.NewClient(opts)
	if err := d.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "failed to connect to redis")
	}
	d.id = uuid.NewString()
	d.subs = map[uint64]*subscription{}
	if err := d.renewLease(ctx); err != nil {
		return err
	}
	d.pubsub = d.client.Subscribe(ctx, d.channel())
	if _, err := d.pubsub.Receive(ctx); err != nil {
		return errors.Wrap(err, "failed to subscribe to changes")
	}

	bg, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(2)
	go d.listen(bg)
	go d.keepLease(bg)
	return nil
}

func (d *Redis) Drop(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	d.cancel()
	_ = d.pubsub.Close()
	d.wg.Wait()

	d.mu.Lock()
	for id, sub := range d.subs {
		sub.out.Close()
		delete(d.subs, id)
	}
	d.mu.Unlock()

	if err := d.releaseLease(ctx, d.id); err != nil {
		log.Warnf("redis: failed release lease %s: %+v", d.id, err)
	}
	return d.client.Close()
}

func (d *Redis) Get(ctx context.Context, path string) (*driver.Snapshot, error) {
	v, err := d.read(ctx, path)
	if err != nil {
		return nil, err
	}
	return driver.NewSnapshot(path, v), nil
}

func (d *Redis) read(ctx context.Context, path string) (any, error) {
	p := utils.JoinPath(path)
	keys := []string{}
	for _, a := range ancestors(p) {
		keys = append(keys, d.dataKey(a))
	}
	if p != "" {
		keys = append(keys, d.dataKey(p))
	}
	if len(keys) > 0 {
		vals, err := d.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "failed read %s", p)
		}
		for i, raw := range vals {
			if raw == nil {
				continue
			}
			if i < len(vals)-1 {
				// an ancestor is a plain value, so nothing lives here
				return nil, nil
			}
			return decodeLeaf(raw)
		}
	}
	found, err := d.scan(ctx, d.descendantsPattern(p))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	vals, err := d.client.MGet(ctx, found...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed read %s", p)
	}
	leaves := make(map[string]any, len(found))
	base := p + "/"
	for i, k := range found {
		if vals[i] == nil {
			continue
		}
		v, err := decodeLeaf(vals[i])
		if err != nil {
			return nil, err
		}
		rel := d.pathOf(k)
		if p != "" {
			rel = strings.TrimPrefix(rel, base)
		}
		leaves[rel] = v
	}
	return build(leaves), nil
}

func decodeLeaf(raw any) (any, error) {
	s, _ := raw.(string)
	var v any
	if err := utils.Json.UnmarshalFromString(s, &v); err != nil {
		return nil, errors.Wrap(err, "failed decode leaf")
	}
	return v, nil
}

func (d *Redis) scan(ctx context.Context, match string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := d.client.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "failed scan %s", match)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

type write struct {
	path  string
	value any
}

// apply replaces every written path with its new leaves in one transaction
// and announces the paths on the change channel.
func (d *Redis) apply(ctx context.Context, writes ...write) error {
	var stale []string
	for _, w := range writes {
		found, err := d.scan(ctx, d.descendantsPattern(w.path))
		if err != nil {
			return err
		}
		stale = append(stale, found...)
		stale = append(stale, d.dataKey(w.path))
		for _, a := range ancestors(w.path) {
			stale = append(stale, d.dataKey(a))
		}
	}
	leaves := map[string]any{}
	for _, w := range writes {
		flatten(w.path, w.value, leaves)
	}
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		for p, v := range leaves {
			b, err := utils.Json.MarshalToString(v)
			if err != nil {
				return errors.WithStack(err)
			}
			pipe.Set(ctx, d.dataKey(p), b, 0)
		}
		for _, w := range writes {
			pipe.Publish(ctx, d.channel(), utils.JoinPath(w.path))
		}
		return nil
	})
	return errors.Wrap(err, "failed write")
}

func (d *Redis) Set(ctx context.Context, path string, value any) error {
	v, err := utils.Normalize(value)
	if err != nil {
		return errors.Wrapf(err, "failed encode %s", path)
	}
	return d.apply(ctx, write{path: utils.JoinPath(path), value: v})
}

func (d *Redis) Update(ctx context.Context, path string, fields map[string]any) error {
	writes := make([]write, 0, len(fields))
	for k, f := range fields {
		v, err := utils.Normalize(f)
		if err != nil {
			return errors.Wrapf(err, "failed encode %s/%s", path, k)
		}
		writes = append(writes, write{path: utils.JoinPath(path, k), value: v})
	}
	return d.apply(ctx, writes...)
}

func (d *Redis) Push(ctx context.Context, path string, value any) (string, error) {
	key, err := utils.NewPushKey()
	if err != nil {
		return "", err
	}
	return key, d.Set(ctx, utils.JoinPath(path, key), value)
}

func (d *Redis) Remove(ctx context.Context, path string) error {
	return d.apply(ctx, write{path: utils.JoinPath(path)})
}

func (d *Redis) Subscribe(ctx context.Context, path string, fn func(*driver.Snapshot)) (driver.Unsubscribe, error) {
	if d.client == nil {
		return nil, errors.WithStack(errs.StoreClosed)
	}
	sub := &subscription{path: utils.JoinPath(path), out: generic.NewDispatcher(fn)}
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs[id] = sub
	d.mu.Unlock()
	if err := d.refresh(ctx, sub); err != nil {
		d.unsubscribe(id)
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { d.unsubscribe(id) }) }, nil
}

func (d *Redis) unsubscribe(id uint64) {
	d.mu.Lock()
	sub, ok := d.subs[id]
	delete(d.subs, id)
	d.mu.Unlock()
	if ok {
		sub.out.Close()
	}
}

func (d *Redis) refresh(ctx context.Context, sub *subscription) error {
	v, err := d.read(ctx, sub.path)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if sub.sent && reflect.DeepEqual(v, sub.last) {
		return nil
	}
	sub.last, sub.sent = v, true
	sub.out.Push(driver.NewSnapshot(sub.path, driver.DeepCopy(v)))
	return nil
}

func (d *Redis) listen(ctx context.Context) {
	defer d.wg.Done()
	ch := d.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			d.mu.Lock()
			var related []*subscription
			for _, sub := range d.subs {
				if utils.PathRelated(sub.path, msg.Payload) {
					related = append(related, sub)
				}
			}
			d.mu.Unlock()
			for _, sub := range related {
				if err := d.refresh(ctx, sub); err != nil {
					log.Warnf("redis: failed refresh %s: %+v", sub.path, err)
				}
			}
		}
	}
}

func (d *Redis) OnDisconnectRemove(ctx context.Context, path string) error {
	return errors.Wrap(d.client.SAdd(ctx, d.leasePathsKey(d.id), utils.JoinPath(path)).Err(), "failed register disconnect cleanup")
}

func (d *Redis) CancelOnDisconnect(ctx context.Context, path string) error {
	return errors.Wrap(d.client.SRem(ctx, d.leasePathsKey(d.id), utils.JoinPath(path)).Err(), "failed cancel disconnect cleanup")
}

func (d *Redis) ttl() time.Duration {
	return time.Duration(d.LeaseTTL) * time.Millisecond
}

func (d *Redis) renewLease(ctx context.Context) error {
	return errors.Wrap(d.client.Set(ctx, d.leaseKey(d.id), time.Now().UnixMilli(), d.ttl()).Err(), "failed renew lease")
}

// keepLease renews this connection's lease and runs the disconnect cleanup
// of connections whose lease has lapsed.
func (d *Redis) keepLease(ctx context.Context) {
	defer d.wg.Done()
	t := time.NewTicker(d.ttl() / 3)
	defer t.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := d.renewLease(ctx); err != nil {
			log.Warnf("redis: %+v", err)
		}
		if n++; n%3 == 0 {
			d.sweep(ctx)
		}
	}
}

func (d *Redis) sweep(ctx context.Context) {
	keys, err := d.scan(ctx, globEscaper.Replace(d.Prefix+"lease-paths:")+"*")
	if err != nil {
		log.Warnf("redis: %+v", err)
		return
	}
	for _, k := range keys {
		id := strings.TrimPrefix(k, d.Prefix+"lease-paths:")
		alive, err := d.client.Exists(ctx, d.leaseKey(id)).Result()
		if err != nil || alive > 0 {
			continue
		}
		log.Infof("redis: lease %s lapsed, running its disconnect cleanup", id)
		if err := d.releaseLease(ctx, id); err != nil {
			log.Warnf("redis: %+v", err)
		}
	}
}

func (d *Redis) releaseLease(ctx context.Context, id string) error {
	paths, err := d.client.SMembers(ctx, d.leasePathsKey(id)).Result()
	if err != nil {
		return errors.Wrap(err, "failed read lease paths")
	}
	writes := make([]write, 0, len(paths))
	for _, p := range paths {
		writes = append(writes, write{path: p})
	}
	if len(writes) > 0 {
		if err := d.apply(ctx, writes...); err != nil {
			return err
		}
	}
	return errors.Wrap(d.client.Del(ctx, d.leasePathsKey(id), d.leaseKey(id)).Err(), "failed delete lease")
}

var _ driver.Driver = (*Redis)(nil)
