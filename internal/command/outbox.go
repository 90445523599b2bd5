// Package command queues commands for device agents and waits for their
// answers.
package command

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// Spec describes one kind of command. Validate may normalize the payload
// in place.
type Spec[P any] struct {
	Kind       string
	Collection string
	Validate   func(p *P) error
}

// Record is a stored command: the payload plus the status fields the
// agent fills in.
type Record[P, R any] struct {
	ID       string              `json:"id"`
	Payload  P                   `json:"payload"`
	Status   model.CommandStatus `json:"status"`
	Created  int64               `json:"created"`
	Updated  int64               `json:"updated,omitempty"`
	Error    string              `json:"error,omitempty"`
	Response R                   `json:"response,omitempty"`
}

// Resolution is what Await settles on. StatusTimeout means no terminal
// status arrived in time.
type Resolution[R any] struct {
	ID       string              `json:"id"`
	Status   model.CommandStatus `json:"status"`
	Response R                   `json:"response,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type Outbox[P, R any] struct {
	spec      Spec[P]
	store     driver.Store
	clock     clock.Clock
	workspace string
}

func NewOutbox[P, R any](spec Spec[P], store driver.Store, c clock.Clock, workspace string) *Outbox[P, R] {
	return &Outbox[P, R]{spec: spec, store: store, clock: c, workspace: workspace}
}

func (o *Outbox[P, R]) Kind() string {
	return o.spec.Kind
}

func (o *Outbox[P, R]) path(deviceID string, id ...string) string {
	return utils.JoinPath(append([]string{o.workspace, deviceID, o.spec.Collection}, id...)...)
}

// Submit validates payload and queues it as pending. Nothing is written
// when validation fails.
func (o *Outbox[P, R]) Submit(ctx context.Context, deviceID string, payload P) (string, error) {
	if deviceID == "" {
		return "", errors.WithStack(errs.DeviceRequired)
	}
	if o.spec.Validate != nil {
		if err := o.spec.Validate(&payload); err != nil {
			return "", err
		}
	}
	v, err := utils.Normalize(payload)
	if err != nil {
		return "", errors.Wrapf(err, "failed encode %s command", o.spec.Kind)
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return "", errors.Errorf("%s command is not an object", o.spec.Kind)
	}
	fields["status"] = model.StatusPending
	fields["created"] = clock.UnixMilli(o.clock)
	id, err := o.store.Push(ctx, o.path(deviceID), fields)
	if err != nil {
		return "", errors.WithMessagef(err, "failed queue %s command", o.spec.Kind)
	}
	log.WithFields(log.Fields{"kind": o.spec.Kind, "device": deviceID, "id": id}).Info("command queued")
	return id, nil
}

// Await waits for the command to reach a terminal status. The
// subscription and the timer end together on every path out.
func (o *Outbox[P, R]) Await(ctx context.Context, deviceID, id string, timeout time.Duration) (Resolution[R], error) {
	res := Resolution[R]{ID: id, Status: model.StatusTimeout}
	resolved := make(chan Resolution[R], 1)
	expired := make(chan struct{})

	unsub, err := o.store.Subscribe(ctx, o.path(deviceID, id), func(snap *driver.Snapshot) {
		rec, ok := decode[P, R](snap)
		if !ok || !rec.Status.Terminal() {
			return
		}
		select {
		case resolved <- Resolution[R]{ID: id, Status: rec.Status, Response: rec.Response, Error: rec.Error}:
		default:
		}
	})
	if err != nil {
		return res, errors.WithMessage(err, "failed watch command")
	}
	defer unsub()
	timer := o.clock.AfterFunc(timeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case r := <-resolved:
		return r, nil
	case <-expired:
		log.WithFields(log.Fields{"kind": o.spec.Kind, "device": deviceID, "id": id}).Debug("command timed out")
		return res, nil
	case <-ctx.Done():
		return res, errors.WithStack(ctx.Err())
	}
}

// Send is Submit followed by Await.
func (o *Outbox[P, R]) Send(ctx context.Context, deviceID string, payload P, timeout time.Duration) (Resolution[R], error) {
	id, err := o.Submit(ctx, deviceID, payload)
	if err != nil {
		return Resolution[R]{}, err
	}
	return o.Await(ctx, deviceID, id, timeout)
}

// History lists the commands of a device, newest first.
func (o *Outbox[P, R]) History(ctx context.Context, deviceID string) ([]Record[P, R], error) {
	snap, err := o.store.Get(ctx, o.path(deviceID))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed list %s commands", o.spec.Kind)
	}
	return decodeAll[P, R](snap), nil
}

func decodeAll[P, R any](snap *driver.Snapshot) []Record[P, R] {
	var out []Record[P, R]
	for _, c := range snap.Children() {
		if rec, ok := decode[P, R](c); ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created > out[j].Created
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func decode[P, R any](snap *driver.Snapshot) (Record[P, R], bool) {
	var rec Record[P, R]
	if !snap.Exists() {
		return rec, false
	}
	var meta model.CommandMeta
	if err := snap.Decode(&meta); err != nil {
		log.Debugf("skipping command %s: %v", snap.Path, err)
		return rec, false
	}
	if err := snap.Decode(&rec.Payload); err != nil {
		log.Debugf("skipping command %s: %v", snap.Path, err)
		return rec, false
	}
	if resp := snap.Child("response"); resp.Exists() {
		if err := resp.Decode(&rec.Response); err != nil {
			log.Debugf("ignoring response of %s: %v", snap.Path, err)
		}
	}
	rec.ID = snap.Key()
	rec.Status = meta.Status
	rec.Created = meta.Created
	rec.Updated = meta.Updated
	rec.Error = meta.Error
	return rec, true
}

// Complete moves a pending command at path to a terminal status. It is
// what a device agent calls.
func Complete(ctx context.Context, store driver.Store, path string, status model.CommandStatus, response any, errMsg string, now int64) error {
	if !status.Terminal() {
		return errors.Errorf("%s is not a terminal status", status)
	}
	snap, err := store.Get(ctx, utils.JoinPath(path, "status"))
	if err != nil {
		return errors.WithMessage(err, "failed read command")
	}
	if !snap.Exists() {
		return errors.WithStack(errs.CommandNotFound)
	}
	var cur model.CommandStatus
	if err := snap.Decode(&cur); err != nil || cur != model.StatusPending {
		return errors.WithStack(errs.NotPending)
	}
	fields := map[string]any{"status": status, "updated": now}
	if response != nil {
		fields["response"] = response
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	return store.Update(ctx, path, fields)
}
