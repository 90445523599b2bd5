package command

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/model"
)

const DefaultPhonePattern = `^[0-9]{10}$`

// Validator holds the compiled phone number pattern.
type Validator struct {
	phone *regexp2.Regexp
}

func NewValidator(pattern string) (*Validator, error) {
	if pattern == "" {
		pattern = DefaultPhonePattern
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid phone pattern %q", pattern)
	}
	re.MatchTimeout = 100 * time.Millisecond
	return &Validator{phone: re}, nil
}

func (v *Validator) Phone(number string) error {
	ok, err := v.phone.MatchString(number)
	if err != nil || !ok {
		return errors.WithStack(errs.InvalidPhone)
	}
	return nil
}

func simSlot(slot int) error {
	if slot != 1 && slot != 2 {
		return errors.WithStack(errs.InvalidSimSlot)
	}
	return nil
}

func (v *Validator) SmsSpec() Spec[model.SmsCommand] {
	return Spec[model.SmsCommand]{
		Kind:       "send-sms",
		Collection: conf.SmsSendCommands,
		Validate: func(c *model.SmsCommand) error {
			c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
			if err := v.Phone(c.PhoneNumber); err != nil {
				return err
			}
			if strings.TrimSpace(c.Message) == "" {
				return errors.WithStack(errs.EmptyMessage)
			}
			return simSlot(c.SimSlot)
		},
	}
}

func (v *Validator) CallForwardSpec() Spec[model.CallForwardCommand] {
	return Spec[model.CallForwardCommand]{
		Kind:       "call-forward",
		Collection: conf.CallForwardCommands,
		Validate: func(c *model.CallForwardCommand) error {
			c.Number = strings.TrimSpace(c.Number)
			switch c.Action {
			case model.ForwardActivate:
				if c.Number == "" {
					return errors.WithStack(errs.MissingNumber)
				}
				if err := v.Phone(c.Number); err != nil {
					return err
				}
			case model.ForwardDeactivate:
				if c.Number != "" {
					return errors.WithStack(errs.UnexpectedNumber)
				}
			default:
				return errors.WithStack(errs.InvalidAction)
			}
			return simSlot(c.SimSlot)
		},
	}
}

func UssdSpec() Spec[model.UssdCommand] {
	return Spec[model.UssdCommand]{
		Kind:       "ussd",
		Collection: conf.UssdCommands,
		Validate: func(c *model.UssdCommand) error {
			c.Code = strings.TrimSpace(c.Code)
			if c.Code == "" {
				return errors.WithStack(errs.EmptyUSSD)
			}
			return simSlot(c.SimSlot)
		},
	}
}

const CheckOnline = "check_online"

func OnlineSpec() Spec[model.OnlineCheckCommand] {
	return Spec[model.OnlineCheckCommand]{
		Kind:       "check-online",
		Collection: conf.CheckOnlineCommands,
		Validate: func(c *model.OnlineCheckCommand) error {
			c.Command = CheckOnline
			return nil
		},
	}
}
