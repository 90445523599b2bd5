package command

import "github.com/smsdesk-org/smsdesk/internal/model"

type ForwardState struct {
	SimSlot int                 `json:"simSlot"`
	Known   bool                `json:"known"`
	Active  bool                `json:"active"`
	Number  string              `json:"number,omitempty"`
	Status  model.CommandStatus `json:"status,omitempty"`
}

// ForwardingStatus reads the call forward state of both SIMs from the
// latest command of each. history must be newest first.
func ForwardingStatus(history []Record[model.CallForwardCommand, string]) [2]ForwardState {
	out := [2]ForwardState{{SimSlot: 1}, {SimSlot: 2}}
	for _, rec := range history {
		i := rec.Payload.SimSlot - 1
		if i < 0 || i > 1 || out[i].Known {
			continue
		}
		out[i].Known = true
		out[i].Status = rec.Status
		out[i].Number = rec.Payload.Number
		out[i].Active = rec.Payload.Action == model.ForwardActivate && rec.Status == model.StatusDone
	}
	return out
}
