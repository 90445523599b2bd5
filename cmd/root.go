package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smsdesk-org/smsdesk/cmd/flags"
	_ "github.com/smsdesk-org/smsdesk/drivers"
)

var RootCmd = &cobra.Command{
	Use:   "smsdesk",
	Short: "An admin console for SMS gateway devices.",
	Long: `An admin console for SMS gateway devices, with
live session tracking and remote logout.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flags.DataDir, "data", "data", "data folder")
	RootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "start with debug mode")
	RootCmd.PersistentFlags().BoolVar(&flags.NoPrefix, "no-prefix", false, "disable env prefix")
	RootCmd.PersistentFlags().BoolVar(&flags.Dev, "dev", false, "start with dev mode")
	RootCmd.PersistentFlags().BoolVar(&flags.LogStd, "log-std", false, "force to log to std")
}
