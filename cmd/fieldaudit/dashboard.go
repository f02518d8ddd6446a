package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dataworks/fieldaudit/internal/dashboard"
	"github.com/dataworks/fieldaudit/internal/ui"
)

var dashAddr string

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "audit",
	Short:   "Serve the audit monitoring dashboard",
	Long: `Serve WebSocket working-table snapshots for supervisors.

Live scan events stream only from the process running the scanning
session; use 'fieldaudit audit scan --dash' for that. This standalone
server reports the working table's current state to each client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		addr := dashAddr
		if addr == "" {
			addr = cfg.DashAddr
		}

		srv := dashboard.NewServer(addr, db, newLogger("dashboard"))
		if err := srv.Start(); err != nil {
			return err
		}
		fmt.Printf("%s Dashboard at http://%s (Ctrl-C to stop)\n", ui.RenderAccent("●"), srv.Addr())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		fmt.Println("\nStopping dashboard")
		return srv.Stop()
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashAddr, "addr", "", "listen address (defaults to config dash_addr)")
	rootCmd.AddCommand(dashboardCmd)
}
