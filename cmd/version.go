package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/smsdesk-org/smsdesk/internal/conf"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current version of smsdesk",
	Run: func(cmd *cobra.Command, args []string) {
		goVersion := fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

		fmt.Printf(`Built At: %s
Go Version: %s
Author: %s
Commit ID: %s
Version: %s
`, conf.BuiltAt, goVersion, conf.GitAuthor, conf.GitCommit, conf.Version)
		os.Exit(0)
	},
}

func init() {
	RootCmd.AddCommand(VersionCmd)
}
