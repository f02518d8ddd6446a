package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataworks/fieldaudit/internal/refsync"
	"github.com/dataworks/fieldaudit/internal/ui"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "data",
	Short:   "Mirror server reference data into the local cache",
	Long: `Pull buildings, rooms, departments, custodians, and assets from the
server into the local cache.

A collection whose local row count already matches the server's count is
skipped. Use --force to re-fetch everything, e.g. after the server has
replaced rows without changing the count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireCredentials(); err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		syncer := refsync.New(client, db)
		syncer.Force = syncForce
		syncer.SetLogger(newLogger("refsync"))

		fmt.Printf("%s Syncing from %s...\n", ui.RenderAccent("🔄"), cfg.ServerURL)
		report := syncer.Sync(cmd.Context())

		for _, res := range report.Results {
			switch {
			case res.Err != nil:
				fmt.Printf("  %s %-12s %v\n", ui.RenderErr("✗"), res.Collection, res.Err)
			case res.Skipped:
				fmt.Printf("  %s %-12s up to date\n", ui.RenderFaint("-"), res.Collection)
			default:
				fmt.Printf("  %s %-12s %d rows\n", ui.RenderPass("✓"), res.Collection, res.Fetched)
			}
		}
		fmt.Printf("Done in %v\n", report.Duration.Round(time.Millisecond))

		if report.Failed() {
			return fmt.Errorf("sync finished with errors")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "re-fetch all collections even when counts match")
	rootCmd.AddCommand(syncCmd)
}
