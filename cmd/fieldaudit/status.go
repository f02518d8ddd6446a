package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataworks/fieldaudit/internal/config"
	"github.com/dataworks/fieldaudit/internal/model"
	"github.com/dataworks/fieldaudit/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "data",
	Short:   "Show cache and session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fmt.Printf("\n%s\n", ui.RenderHeader("Field Audit Status"))

		creds, err := config.LoadCredentials()
		if err != nil {
			return err
		}
		if creds == nil {
			fmt.Printf("  Login:  %s\n", ui.RenderWarn("not logged in"))
		} else {
			fmt.Printf("  Login:  %s\n", creds.Email)
		}
		fmt.Printf("  Server: %s\n", orNone(cfg.ServerURL))

		info, err := os.Stat(cfg.DBPath)
		if os.IsNotExist(err) {
			fmt.Printf("  Cache:  %s\n\n", ui.RenderWarn("not initialized (run 'fieldaudit sync')"))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("  Cache:  %s (%.1f KB)\n", cfg.DBPath, float64(info.Size())/1024)

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("\n%s\n", ui.RenderHeader("Reference data"))
		for _, t := range []struct{ label, table string }{
			{"Buildings", "building"},
			{"Rooms", "room"},
			{"Departments", "department"},
			{"Custodians", "department_cust"},
			{"Assets", "asset_table"},
		} {
			n, err := db.Count(ctx, t.table)
			if err != nil {
				return err
			}
			fmt.Printf("  %-12s %d\n", t.label, n)
		}

		rows, err := db.AllAuditing(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", ui.RenderHeader("Working table"))
		if len(rows) == 0 {
			fmt.Printf("  %s\n\n", ui.RenderFaint("no audit in progress"))
			return nil
		}

		var found, extra, unset int
		for _, r := range rows {
			switch r.FoundStatus {
			case model.FoundStatusFound:
				found++
			case model.FoundStatusExtra:
				extra++
			default:
				unset++
			}
		}
		fmt.Printf("  Staged: %d   %s %d   %s %d   %s %d\n\n",
			len(rows),
			ui.RenderPass("Found:"), found,
			ui.RenderWarn("Extra:"), extra,
			ui.RenderFaint("Pending:"), unset)
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return ui.RenderFaint("(none)")
	}
	return s
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
