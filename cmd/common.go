package cmd

import (
	"context"

	"github.com/smsdesk-org/smsdesk/internal/bootstrap"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/identity"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

func Init() {
	bootstrap.InitConfig()
	bootstrap.Log()
}

func openStore(ctx context.Context) driver.Driver {
	store, err := bootstrap.OpenStore(ctx)
	if err != nil {
		utils.Log.Fatalf("failed open store: %+v", err)
	}
	return store
}

// accounts gives the CLI access to the account records without signing
// anybody in.
func accounts(store driver.Store) *identity.LocalProvider {
	return identity.NewLocalProvider(identity.LocalOptions{
		Store:          store,
		Tokens:         localstore.NewTab(),
		Clock:          clock.Real(),
		Secret:         []byte(conf.Conf.Security.JwtSecret),
		TokenExpiresIn: conf.Conf.Security.TokenExpiresIn,
		MinPassword:    conf.Conf.Security.MinPasswordLength,
	})
}
