package model

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (i *Identity) IsZero() bool {
	return i == nil || i.UserID == ""
}

// User is the workspace binding at users/<uid>.
type User struct {
	Email          string `json:"email"`
	DBPath         string `json:"dbPath"`
	SessionVersion int64  `json:"sessionVersion"`
	CreatedAt      int64  `json:"createdAt"`
}

// Account is the credential record kept by the local identity provider.
type Account struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
	// PwdTS invalidates tokens issued before the last password change.
	PwdTS int64 `json:"pwdTs"`
}

// BlockEntry is the value at blocklist/<uid>. A bare true is accepted too.
type BlockEntry struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	At      int64  `json:"at,omitempty"`
}

// Member is a user bound to the same workspace, with session counts.
type Member struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	CreatedAt    int64  `json:"createdAt"`
	LiveSessions int    `json:"liveSessions"`
	Sessions     int    `json:"sessions"`
}
