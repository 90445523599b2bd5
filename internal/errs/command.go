package errs

import "errors"

var (
	InvalidPhone     = errors.New("enter a valid 10-digit phone number")
	EmptyMessage     = errors.New("message is empty")
	InvalidSimSlot   = errors.New("sim slot must be 1 or 2")
	MissingNumber    = errors.New("forwarding number is required to activate")
	UnexpectedNumber = errors.New("deactivation takes no forwarding number")
	InvalidAction    = errors.New("unknown call forward action")
	EmptyUSSD        = errors.New("ussd code is empty")
	DeviceRequired   = errors.New("device is required")
	CommandNotFound  = errors.New("command not found")
	NotPending       = errors.New("command is no longer pending")
)

// validation groups the errors caused by bad operator input.
var validation = []error{
	InvalidPhone, EmptyMessage, InvalidSimSlot, MissingNumber,
	UnexpectedNumber, InvalidAction, EmptyUSSD, DeviceRequired,
}

func IsValidation(err error) bool {
	for _, v := range validation {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
