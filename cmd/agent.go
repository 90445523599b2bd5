package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smsdesk-org/smsdesk/internal/command"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/device"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

var agentInfo struct {
	name     string
	maker    string
	sim1     string
	operator string
}

// AgentCmd plays a handset: it registers a device and answers its
// commands, for working on the console without a phone.
var AgentCmd = &cobra.Command{
	Use:   "agent <db-path> <device-id>",
	Short: "Simulate a device answering commands",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		Init()
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		store := openStore(ctx)
		defer store.Drop(context.Background())
		ws, id := args[0], args[1]
		info := model.DeviceInfo{DeviceName: agentInfo.name, Manufacturer: agentInfo.maker}
		sim := model.SimInfo{Sim1Number: agentInfo.sim1, Sim1Operator: agentInfo.operator, PrimarySim: 1}
		if err := device.NewCatalog(store).Register(ctx, ws, id, info, sim); err != nil {
			utils.Log.Fatalf("failed register device: %+v", err)
		}
		a := &command.Agent{
			Store:     store,
			Clock:     clock.Real(),
			Workspace: ws,
			DeviceID:  id,
			Delay:     conf.Conf.Command.AgentPollInterval,
		}
		if err := a.Run(ctx); err != nil {
			utils.Log.Fatalf("agent stopped: %+v", err)
		}
	},
}

func init() {
	AgentCmd.Flags().StringVar(&agentInfo.name, "name", "Simulated Phone", "device name")
	AgentCmd.Flags().StringVar(&agentInfo.maker, "manufacturer", "smsdesk", "device manufacturer")
	AgentCmd.Flags().StringVar(&agentInfo.sim1, "sim1", "9876543210", "number of SIM 1")
	AgentCmd.Flags().StringVar(&agentInfo.operator, "operator", "Simulated", "operator of SIM 1")
	RootCmd.AddCommand(AgentCmd)
}
