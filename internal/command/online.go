package command

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// OnlineChecker asks a device agent to answer within a deadline. No
// answer in time means the device is offline.
type OnlineChecker struct {
	outbox    *Outbox[model.OnlineCheckCommand, model.OnlineReply]
	store     driver.Store
	clock     clock.Clock
	workspace string
	timeout   time.Duration
}

type OnlineResult struct {
	ID         string             `json:"id"`
	Online     bool               `json:"online"`
	Reply      *model.OnlineReply `json:"reply,omitempty"`
	LastOnline int64              `json:"lastOnline,omitempty"`
}

func NewOnlineChecker(store driver.Store, c clock.Clock, workspace string, timeout time.Duration) *OnlineChecker {
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &OnlineChecker{
		outbox:    NewOutbox[model.OnlineCheckCommand, model.OnlineReply](OnlineSpec(), store, c, workspace),
		store:     store,
		clock:     c,
		workspace: workspace,
		timeout:   timeout,
	}
}

func (o *OnlineChecker) Outbox() *Outbox[model.OnlineCheckCommand, model.OnlineReply] {
	return o.outbox
}

func (o *OnlineChecker) Check(ctx context.Context, deviceID string) (OnlineResult, error) {
	res, err := o.outbox.Send(ctx, deviceID, model.OnlineCheckCommand{}, o.timeout)
	if err != nil {
		return OnlineResult{ID: res.ID}, err
	}
	out := OnlineResult{ID: res.ID}
	if res.Status != model.StatusOnline {
		return out, nil
	}
	out.Online = true
	reply := res.Response
	out.Reply = &reply
	out.LastOnline = clock.UnixMilli(o.clock)
	if err := o.store.Set(ctx, utils.JoinPath(o.workspace, deviceID, "lastOnline"), out.LastOnline); err != nil {
		log.Warnf("failed record lastOnline of %s: %+v", deviceID, err)
	}
	return out, nil
}
