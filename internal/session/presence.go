package session

import (
	"time"

	"github.com/smsdesk-org/smsdesk/internal/model"
)

// IsLive is the liveness rule every view of the directory shares.
func IsLive(r *model.PresenceRecord, now time.Time, window time.Duration) bool {
	return r.IsLive(now.UnixMilli(), window)
}
