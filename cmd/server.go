package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/smsdesk-org/smsdesk/cmd/flags"
	"github.com/smsdesk-org/smsdesk/internal/bootstrap"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/console"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
	"github.com/smsdesk-org/smsdesk/server"
)

const (
	profilePoll      = 200 * time.Millisecond
	profileRetention = time.Minute
)

// ServerCmd runs one console, the equivalent of one browser tab, and
// serves it over HTTP.
var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the console server at the specified address",
	Long: `Start the console server at the specified address
the address is defined in config file`,
	Run: func(cmd *cobra.Command, args []string) {
		Init()
		ctx := context.Background()
		store := openStore(ctx)
		profile, err := bootstrap.OpenProfile(conf.Conf.ProfileDriver, conf.Conf.Profile)
		if err != nil {
			utils.Log.Fatalf("failed open profile: %+v", err)
		}
		clk := clock.Real()
		shared := localstore.NewPersistent(profile, clk, profilePoll)
		stopCompact := compactProfile(shared, clk)
		con := console.New(console.Options{
			Config:    conf.Conf,
			Store:     store,
			Clock:     clk,
			Profile:   shared,
			Tab:       localstore.NewTab(),
			UserAgent: fmt.Sprintf("smsdesk/%s (%s; %s)", conf.Version, runtime.GOOS, runtime.GOARCH),
		})
		if st, err := con.Restore(ctx); err != nil {
			utils.Log.Warnf("failed restore session: %+v", err)
		} else if st.Identity != nil {
			utils.Log.Infof("restored session of %s in %s", st.Identity.Email, st.Workspace)
		}

		if !flags.Debug && !flags.Dev {
			gin.SetMode(gin.ReleaseMode)
		}
		r := gin.New()
		r.Use(gin.Logger(), gin.Recovery())
		server.Init(r, con)

		addr := fmt.Sprintf("%s:%d", conf.Conf.Scheme.Address, conf.Conf.Scheme.HttpPort)
		utils.Log.Infof("start HTTP server @ %s", addr)
		srv := &http.Server{Addr: addr, Handler: r}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				utils.Log.Fatalf("failed to start http: %s", err.Error())
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		utils.Log.Println("Shutdown server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Log.Errorf("failed shutdown http server: %v", err)
		}
		con.Close(shutdownCtx)
		stopCompact()
		if err := store.Drop(shutdownCtx); err != nil {
			utils.Log.Errorf("failed close store: %+v", err)
		}
		if err := profile.Close(); err != nil {
			utils.Log.Errorf("failed close profile: %+v", err)
		}
		utils.Log.Println("Server exit")
	},
}

func compactProfile(p *localstore.Persistent, clk clock.Clock) func() {
	stop := make(chan struct{})
	go func() {
		t := clk.NewTicker(profileRetention)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
			}
			if err := p.Compact(profileRetention); err != nil {
				utils.Log.Warnf("failed compact profile: %+v", err)
			}
		}
	}()
	return func() { close(stop) }
}

func init() {
	RootCmd.AddCommand(ServerCmd)
}
