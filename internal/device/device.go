// Package device reads the handsets of a workspace and the SMS they
// captured.
package device

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Catalog struct {
	store driver.Store
}

func NewCatalog(store driver.Store) *Catalog {
	return &Catalog{store: store}
}

func fromSnapshot(snap *driver.Snapshot) (model.Device, bool) {
	var d model.Device
	if err := snap.Decode(&d); err != nil {
		log.Debugf("skipping device %s: %v", snap.Path, err)
		return d, false
	}
	d.ID = snap.Key()
	d.SmsCount = len(snap.Child("sms").Keys())
	return d, true
}

// List returns the devices of a workspace ordered by name.
func (c *Catalog) List(ctx context.Context, workspace string) ([]model.Device, error) {
	if workspace == "" {
		return nil, errors.WithStack(errs.WorkspaceNotBound)
	}
	snap, err := c.store.Get(ctx, workspace)
	if err != nil {
		return nil, errors.WithMessage(err, "failed list devices")
	}
	var out []model.Device
	for _, child := range snap.Children() {
		if _, ok := child.Value.(map[string]any); !ok {
			continue
		}
		if d, ok := fromSnapshot(child); ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name()), strings.ToLower(out[j].Name())
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, workspace, id string) (model.Device, error) {
	snap, err := c.store.Get(ctx, utils.JoinPath(workspace, id))
	if err != nil {
		return model.Device{}, errors.WithMessage(err, "failed get device")
	}
	if !snap.Exists() {
		return model.Device{}, errors.WithStack(errs.ObjectNotFound)
	}
	d, ok := fromSnapshot(snap)
	if !ok {
		return model.Device{}, errors.Errorf("device %s is malformed", id)
	}
	return d, nil
}

// Register writes the info a handset reports about itself. Existing
// SMS and commands are kept.
func (c *Catalog) Register(ctx context.Context, workspace, id string, info model.DeviceInfo, sim model.SimInfo) error {
	return c.store.Update(ctx, utils.JoinPath(workspace, id), map[string]any{
		"deviceInfo": info,
		"simInfo":    sim,
	})
}

// Search keeps the devices whose name, id, manufacturer, SIM numbers or
// operators contain text, ignoring case.
func Search(devices []model.Device, text string) []model.Device {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return devices
	}
	var out []model.Device
	for _, d := range devices {
		fields := []string{
			d.DeviceInfo.DeviceName, d.ID, d.DeviceInfo.Manufacturer,
			d.SimInfo.Sim1Number, d.SimInfo.Sim2Number,
			d.SimInfo.Sim1Operator, d.SimInfo.Sim2Operator,
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), text) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func messagesOf(snap *driver.Snapshot, d model.Device) []model.SMS {
	var out []model.SMS
	for _, c := range snap.Child("sms").Children() {
		var m model.SMS
		if err := c.Decode(&m); err != nil {
			continue
		}
		m.ID = c.Key()
		m.DeviceID = d.ID
		m.DeviceName = d.Name()
		out = append(out, m)
	}
	return out
}

func sortMessages(msgs []model.SMS) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp > msgs[j].Timestamp
	})
}

// Messages lists the SMS of one device, newest first.
func (c *Catalog) Messages(ctx context.Context, workspace, id string) ([]model.SMS, error) {
	snap, err := c.store.Get(ctx, utils.JoinPath(workspace, id))
	if err != nil {
		return nil, errors.WithMessage(err, "failed get messages")
	}
	if !snap.Exists() {
		return nil, errors.WithStack(errs.ObjectNotFound)
	}
	d, _ := fromSnapshot(snap)
	msgs := messagesOf(snap, d)
	sortMessages(msgs)
	return msgs, nil
}

// AllMessages lists the SMS of every device in the workspace.
func (c *Catalog) AllMessages(ctx context.Context, workspace string) ([]model.SMS, error) {
	snap, err := c.store.Get(ctx, workspace)
	if err != nil {
		return nil, errors.WithMessage(err, "failed get messages")
	}
	var msgs []model.SMS
	for _, child := range snap.Children() {
		d, ok := fromSnapshot(child)
		if !ok {
			continue
		}
		msgs = append(msgs, messagesOf(child, d)...)
	}
	sortMessages(msgs)
	return msgs, nil
}

// AddMessage stores a captured SMS under the device.
func (c *Catalog) AddMessage(ctx context.Context, workspace, id string, m model.SMS) (string, error) {
	m.ID, m.DeviceID, m.DeviceName = "", "", ""
	return c.store.Push(ctx, utils.JoinPath(workspace, id, "sms"), m)
}

func LastOnlineText(d *model.Device, now time.Time) string {
	return utils.LastOnline(d.LastOnline, now)
}
