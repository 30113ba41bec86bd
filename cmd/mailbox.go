package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findy-network/findy-vcx/agent/txp/mailbox"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var mailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Parent command for the HTTP mailbox",
	Long: `
Parent command for the HTTP mailbox which runtimes use with --mailbox-url.
	`,
	Run: func(cmd *cobra.Command, args []string) {
		SubCmdNeeded(cmd)
	},
}

var mailboxEnvs = map[string]string{
	"port": "PORT",
	"ttl":  "TTL",
}

var mailboxServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP mailbox server",
	Long: `
Starts the HTTP mailbox server. The server runs until it gets SIGINT or
SIGTERM. Messages older than --ttl are purged, 0 keeps them until acked.

Example
	findy-vcx mailbox serve --port 8080 --ttl 24h
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(mailboxEnvs, "MAILBOX")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		addr := fmt.Sprintf(":%d", mbFlags.port)
		if rootFlags.dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "mailbox", addr, mbFlags.ttl)
			return nil
		}
		cmd.SilenceUsage = true

		srv := mailbox.New(mbFlags.ttl)
		errCh := make(chan error, 1)
		go func() {
			glog.V(1).Infof("mailbox on %s, ttl %s", addr, mbFlags.ttl)
			errCh <- srv.ListenAndServe(addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			glog.V(1).Infoln("mailbox stopping:", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), mbFlags.grace)
		defer cancel()
		try.To(srv.Shutdown(ctx))
		return <-errCh
	},
}

var mbFlags struct {
	port  uint
	ttl   time.Duration
	grace time.Duration
}

func init() {
	f := mailboxServeCmd.Flags()
	f.UintVar(&mbFlags.port, "port", 8080, flagInfo("server port", mailboxCmd.Name(), mailboxEnvs["port"]))
	f.DurationVar(&mbFlags.ttl, "ttl", 24*time.Hour, flagInfo("message time to live", mailboxCmd.Name(), mailboxEnvs["ttl"]))
	f.DurationVar(&mbFlags.grace, "grace", 5*time.Second, "shutdown grace period")

	mailboxCmd.AddCommand(mailboxServeCmd)
	rootCmd.AddCommand(mailboxCmd)
}
