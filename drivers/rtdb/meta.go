package rtdb

import (
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/op"
)

type Addition struct {
	URL    string `json:"url" required:"true" help:"database URL, like https://<project>-default-rtdb.firebaseio.com"`
	Secret string `json:"secret" help:"database secret or ID token passed as the auth query parameter"`
}

var config = driver.Config{
	Name: "RTDB",
}

func init() {
	op.RegisterDriver(func() driver.Driver {
		return &RTDB{}
	})
}
