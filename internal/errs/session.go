package errs

import "errors"

var (
	InvalidCredentials = errors.New("wrong email or password")
	AccountBlocked     = errors.New("account blocked")
	SessionActive      = errors.New("another session is active in this tab")
	SessionRevoked     = errors.New("session revoked")
	NotSignedIn        = errors.New("not signed in")
	WorkspaceNotBound  = errors.New("no workspace bound to user")
	EmailTaken         = errors.New("email already registered")
	PasswordTooShort   = errors.New("password too short")
	PasswordMismatch   = errors.New("passwords do not match")
	InvalidEmail       = errors.New("invalid email")
)
