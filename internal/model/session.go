package model

import "time"

// PresenceRecord is one admin session, stored at presence/<workspace>/<token>.
// Timestamps are unix milliseconds.
type PresenceRecord struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	SessionToken string `json:"sessionToken"`
	Descriptor   string `json:"deviceDescriptor"`
	DeviceClass  string `json:"deviceClass"`
	IP           string `json:"ip,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	LastActiveAt int64  `json:"lastActiveAt"`
}

// IsLive reports whether the record heartbeated within window of now.
func (r *PresenceRecord) IsLive(now int64, window time.Duration) bool {
	return now-r.LastActiveAt < window.Milliseconds()
}

// Revocation is written at revocations/<workspace>/<token> when a session
// is forced out, so tabs in other profiles notice it too.
type Revocation struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
	By        string `json:"by,omitempty"`
}
