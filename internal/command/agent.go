package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

var collections = []string{
	conf.SmsSendCommands,
	conf.CallForwardCommands,
	conf.UssdCommands,
	conf.CheckOnlineCommands,
}

// Agent answers the pending commands of one device the way a handset
// would. It exists for development without a phone.
type Agent struct {
	Store     driver.Store
	Clock     clock.Clock
	Workspace string
	DeviceID  string
	// Delay is how long a command stays pending before it is answered.
	Delay time.Duration

	mu      sync.Mutex
	handled mapset.Set[string]
}

// Run answers commands until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	a.handled = mapset.NewSet[string]()
	var wg sync.WaitGroup
	var unsubs []driver.Unsubscribe
	defer func() {
		for _, u := range unsubs {
			u()
		}
		wg.Wait()
	}()
	for _, coll := range collections {
		coll := coll
		path := utils.JoinPath(a.Workspace, a.DeviceID, coll)
		unsub, err := a.Store.Subscribe(ctx, path, func(snap *driver.Snapshot) {
			for _, c := range snap.Children() {
				if c.Child("status").Value != string(model.StatusPending) {
					continue
				}
				if !a.claim(c.Path) {
					continue
				}
				wg.Add(1)
				go func(c *driver.Snapshot) {
					defer wg.Done()
					a.answer(ctx, coll, c)
				}(c)
			}
		})
		if err != nil {
			return errors.WithMessagef(err, "failed watch %s", path)
		}
		unsubs = append(unsubs, unsub)
	}
	log.Infof("agent for %s/%s is running", a.Workspace, a.DeviceID)
	<-ctx.Done()
	return nil
}

func (a *Agent) claim(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handled.Add(path)
}

func (a *Agent) answer(ctx context.Context, coll string, c *driver.Snapshot) {
	if a.Delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-a.Clock.After(a.Delay):
		}
	}
	var (
		status   model.CommandStatus
		response any
	)
	switch coll {
	case conf.SmsSendCommands:
		status = model.StatusSent
	case conf.CallForwardCommands:
		status = model.StatusDone
	case conf.UssdCommands:
		var u model.UssdCommand
		_ = c.Decode(&u)
		status = model.StatusDone
		response = fmt.Sprintf("Reply to %s on SIM %d", u.Code, u.SimSlot)
	case conf.CheckOnlineCommands:
		status = model.StatusOnline
		response = model.OnlineReply{Battery: 100, Network: "wifi"}
	}
	err := Complete(ctx, a.Store, c.Path, status, response, "", clock.UnixMilli(a.Clock))
	if err != nil {
		log.Warnf("agent failed answer %s: %+v", c.Path, err)
		return
	}
	log.Debugf("agent answered %s with %s", c.Path, status)
}
