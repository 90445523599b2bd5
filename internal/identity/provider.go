// Package identity authenticates operators and tells the rest of the
// console who is signed in.
package identity

import (
	"context"

	"github.com/smsdesk-org/smsdesk/internal/model"
)

// Provider is the identity backend.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
	SignUp(ctx context.Context, email, password string) (*model.Identity, error)
	SignOut(ctx context.Context) error
	// CurrentUser returns nil when signed out.
	CurrentUser() *model.Identity
	// OnAuthStateChange calls fn after every sign in or sign out.
	OnAuthStateChange(fn func(*model.Identity)) (cancel func())
	UpdatePassword(ctx context.Context, password string) error
}
