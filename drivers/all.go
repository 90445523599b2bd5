package drivers

import (
	_ "github.com/smsdesk-org/smsdesk/drivers/memory"
	_ "github.com/smsdesk-org/smsdesk/drivers/redis"
	_ "github.com/smsdesk-org/smsdesk/drivers/rtdb"
)

// All do nothing,just for import
// same as _ import
func All() {

}
