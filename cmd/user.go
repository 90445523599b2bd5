package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/smsdesk-org/smsdesk/internal/identity"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/workspace"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

var dbPath string

// RegisterCmd creates an account bound to a workspace.
var RegisterCmd = &cobra.Command{
	Use:   "register <email> <password>",
	Short: "Create an account bound to a workspace",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		Init()
		ctx := context.Background()
		store := openStore(ctx)
		defer store.Drop(ctx)
		p := accounts(store)
		defer p.Close()
		id, err := p.SignUp(ctx, args[0], args[1])
		if err != nil {
			utils.Log.Fatalf("failed register: %+v", err)
		}
		if dbPath != "" {
			r := workspace.NewResolver(store, localstore.NewTab())
			if err := r.Bind(ctx, id.UserID, id.Email, dbPath, time.Now().UnixMilli()); err != nil {
				utils.Log.Fatalf("failed bind workspace: %+v", err)
			}
		}
		utils.Log.Infof("registered %s as %s", id.Email, id.UserID)
	},
}

func setBlocked(blocked bool) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		Init()
		ctx := context.Background()
		store := openStore(ctx)
		defer store.Drop(ctx)
		p := accounts(store)
		defer p.Close()
		uid, err := p.Lookup(ctx, args[0])
		if err != nil {
			utils.Log.Fatalf("failed find %s: %+v", args[0], err)
		}
		if blocked {
			reason, _ := cmd.Flags().GetString("reason")
			err = identity.Block(ctx, store, uid, reason, time.Now().UnixMilli())
		} else {
			err = identity.Unblock(ctx, store, uid)
		}
		if err != nil {
			utils.Log.Fatalf("failed update blocklist: %+v", err)
		}
		utils.Log.Infof("%s blocked: %v", args[0], blocked)
	}
}

var BlockCmd = &cobra.Command{
	Use:   "block <email>",
	Short: "Block an account, its sessions end at the next block check",
	Args:  cobra.ExactArgs(1),
	Run:   setBlocked(true),
}

var UnblockCmd = &cobra.Command{
	Use:   "unblock <email>",
	Short: "Unblock an account",
	Args:  cobra.ExactArgs(1),
	Run:   setBlocked(false),
}

func init() {
	RegisterCmd.Flags().StringVar(&dbPath, "db-path", "", "workspace to bind the account to")
	BlockCmd.Flags().String("reason", "", "reason shown in the blocklist")
	RootCmd.AddCommand(RegisterCmd, BlockCmd, UnblockCmd)
}
