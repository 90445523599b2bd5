package redis

import (
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/op"
)

type Addition struct {
	URL      string `json:"url" required:"true" default:"redis://localhost:6379/0"`
	Prefix   string `json:"prefix" default:"smsdesk:"`
	LeaseTTL int    `json:"lease_ttl" default:"10000" help:"milliseconds before a silent connection's disconnect cleanup runs"`
}

var config = driver.Config{
	Name:              "Redis",
	DisconnectCleanup: true,
}

func init() {
	op.RegisterDriver(func() driver.Driver {
		return &Redis{}
	})
}
