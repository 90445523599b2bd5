package op

import (
	"context"

	"github.com/pkg/errors"

	"github.com/smsdesk-org/smsdesk/internal/driver"
)

// Get reads and decodes the value at path. The bool is false when the path is empty.
func Get[T any](ctx context.Context, s driver.Store, path string) (T, bool, error) {
	var v T
	snap, err := s.Get(ctx, path)
	if err != nil {
		return v, false, errors.WithMessagef(err, "failed get %s", path)
	}
	if !snap.Exists() {
		return v, false, nil
	}
	if err := snap.Decode(&v); err != nil {
		return v, false, errors.Wrapf(err, "failed decode %s", path)
	}
	return v, true, nil
}

// List decodes every child of path, keyed by child key.
func List[T any](ctx context.Context, s driver.Store, path string) (map[string]T, error) {
	snap, err := s.Get(ctx, path)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed list %s", path)
	}
	return DecodeChildren[T](snap), nil
}

// DecodeChildren skips children that do not decode into T.
func DecodeChildren[T any](snap *driver.Snapshot) map[string]T {
	out := make(map[string]T)
	if !snap.Exists() {
		return out
	}
	for _, c := range snap.Children() {
		var v T
		if err := c.Decode(&v); err != nil {
			continue
		}
		out[c.Key()] = v
	}
	return out
}
