package command

import (
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
)

// Commands bundles the outboxes of one workspace.
type Commands struct {
	Sms         *Outbox[model.SmsCommand, string]
	CallForward *Outbox[model.CallForwardCommand, string]
	Ussd        *Outbox[model.UssdCommand, string]
	Online      *OnlineChecker
}

func New(store driver.Store, c clock.Clock, workspace string, cfg conf.Command) (*Commands, error) {
	v, err := NewValidator(cfg.PhonePattern)
	if err != nil {
		return nil, err
	}
	return &Commands{
		Sms:         NewOutbox[model.SmsCommand, string](v.SmsSpec(), store, c, workspace),
		CallForward: NewOutbox[model.CallForwardCommand, string](v.CallForwardSpec(), store, c, workspace),
		Ussd:        NewOutbox[model.UssdCommand, string](UssdSpec(), store, c, workspace),
		Online:      NewOnlineChecker(store, c, workspace, cfg.OnlineCheckTimeout),
	}, nil
}
