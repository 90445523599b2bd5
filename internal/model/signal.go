package model

// invalidation reasons
const (
	ReasonLogout          = "logout"
	ReasonForceLogout     = "force-logout"
	ReasonPasswordChanged = "password-changed"
	ReasonBlocked         = "account-blocked"
	ReasonRevoked         = "session-revoked"
)

// InvalidationSignal asks every tab of a user, or the single tab holding
// Token when it is set, to tear its session down.
type InvalidationSignal struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
	Token     string `json:"token,omitempty"`
}

// Targets reports whether a tab holding token must act on the signal.
func (s *InvalidationSignal) Targets(token string) bool {
	return s.Token == "" || s.Token == token
}

// Notice is what the signed-out screen shows after a teardown.
type Notice struct {
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

func NoticeFor(reason string) Notice {
	switch reason {
	case ReasonBlocked:
		return Notice{Reason: reason, Message: "Your account has been blocked. Contact the administrator.", Blocking: true}
	case ReasonPasswordChanged:
		return Notice{Reason: reason, Message: "Your password was changed. Please log in again."}
	case ReasonForceLogout, ReasonRevoked:
		return Notice{Reason: reason, Message: "This session was logged out from another device."}
	default:
		return Notice{Reason: reason, Message: "You have been logged out."}
	}
}
