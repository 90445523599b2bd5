package memory

import (
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/op"
)

type Addition struct {
	// Server names the in-process store. Connections naming the same
	// server share data, like tabs sharing one realtime database.
	Server string `json:"server" default:"default"`
}

var config = driver.Config{
	Name:              "Memory",
	DisconnectCleanup: true,
	LocalOnly:         true,
}

func init() {
	op.RegisterDriver(func() driver.Driver {
		return &Memory{}
	})
}
