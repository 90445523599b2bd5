package model

type CommandStatus string

const (
	StatusPending CommandStatus = "pending"
	StatusDone    CommandStatus = "done"
	StatusSent    CommandStatus = "sent"
	StatusFailed  CommandStatus = "failed"
	StatusOnline  CommandStatus = "online"
	// StatusTimeout is never written to the store. It only reports that
	// no terminal status arrived in time.
	StatusTimeout CommandStatus = "timeout"
)

func (s CommandStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusSent, StatusFailed, StatusOnline:
		return true
	}
	return false
}

// CommandMeta holds the fields every command record carries next to its payload.
type CommandMeta struct {
	Status   CommandStatus `json:"status"`
	Created  int64         `json:"created"`
	Updated  int64         `json:"updated,omitempty"`
	Error    string        `json:"error,omitempty"`
	Response any           `json:"response,omitempty"`
}

type SmsCommand struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	SimSlot     int    `json:"simSlot"`
}

const (
	ForwardActivate   = "activate"
	ForwardDeactivate = "deactivate"
)

type CallForwardCommand struct {
	Action  string `json:"action"`
	Number  string `json:"number,omitempty"`
	SimSlot int    `json:"simSlot"`
}

type UssdCommand struct {
	Code    string `json:"code"`
	SimSlot int    `json:"simSlot"`
}

type OnlineCheckCommand struct {
	Command string `json:"command"`
}

// OnlineReply is what a device agent may attach when answering a check.
type OnlineReply struct {
	Battery int    `json:"battery,omitempty"`
	Network string `json:"network,omitempty"`
}
