package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dataworks/fieldaudit/internal/audit"
	"github.com/dataworks/fieldaudit/internal/dashboard"
	"github.com/dataworks/fieldaudit/internal/importer"
	"github.com/dataworks/fieldaudit/internal/model"
	"github.com/dataworks/fieldaudit/internal/store"
	"github.com/dataworks/fieldaudit/internal/ui"
)

var auditCmd = &cobra.Command{
	Use:     "audit",
	GroupID: "audit",
	Short:   "Run a physical audit session",
	Long: `Manage one department's audit: stage the expected-asset manifest,
scan door by door, and submit the results.

A typical session:

  fieldaudit audit start FIN01      stage the manifest for dept FIN01
  fieldaudit audit scan --dept FIN01   scan doors and assets interactively
  fieldaudit audit finish --dept FIN01 submit the working table
  fieldaudit audit stop             clear the working table`,
}

var auditStartCmd = &cobra.Command{
	Use:   "start <dept_id>",
	Short: "Stage the expected-asset manifest for a department",
	Args:  cobra.ExactArgs(1),
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

		deptID := args[0]
		name := deptID
		if d, err := db.DepartmentByID(cmd.Context(), deptID); err == nil && d != nil {
			name = d.Name
		}

		sess := audit.NewSession(db, client, deptID, name)
		sess.SetLogger(newLogger("audit"))
		if err := sess.Start(cmd.Context(), client); err != nil {
			return err
		}

		n, err := db.Count(cmd.Context(), "auditing")
		if err != nil {
			return err
		}
		fmt.Printf("%s Audit %s staged for %s: %d expected asset(s)\n",
			ui.RenderPass("✓"), sess.AuditID(), name, n)
		return nil
	},
}

var (
	scanDept string
	scanLat  float64
	scanLon  float64
	scanAlt  float64
	scanDash bool
)

var auditScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Interactive door-and-asset scanning session",
	Long: `Read scan codes from stdin, one per line. The first code selects the
door; later codes pick assets for that door. Commands inside the loop:

  list            show assets picked for the current door
  remove <tag>    drop a picked asset
  save            commit found-status for the picked assets
  door            discard the current door and pick a new one
  quit            exit (unsaved picks are discarded)

Anything else is treated as a scanned code. Pass --lat/--lon to attach a
geolocation reading to the session's scans; omit them when no fix is
available and location falls back to a placeholder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		deptName := scanDept
		if d, err := db.DepartmentByID(ctx, scanDept); err == nil && d != nil {
			deptName = d.Name
		}

		sess := audit.NewSession(db, client, scanDept, deptName)
		sess.SetLogger(newLogger("audit"))

		if scanDash {
			dash := dashboard.NewServer(cfg.DashAddr, db, newLogger("dashboard"))
			if err := dash.Start(); err != nil {
				return err
			}
			defer dash.Stop()
			sess.SetSink(dash)
			fmt.Printf("%s Dashboard at http://%s\n", ui.RenderAccent("●"), dash.Addr())
		}

		var geo *model.Geo
		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
			geo = &model.Geo{Latitude: scanLat, Longitude: scanLon}
			if cmd.Flags().Changed("alt") {
				alt := scanAlt
				geo.Altitude = &alt
			}
		}
		sess.SetGeoSource(func(context.Context) *model.Geo { return geo })

		fmt.Printf("Scanning for %s. First code selects the door; 'quit' exits.\n", ui.RenderAccent(deptName))

		in := bufio.NewScanner(os.Stdin)
		for {
			prompt := "door> "
			if sess.Door() != nil {
				prompt = fmt.Sprintf("%s> ", sess.Door().RoomTag)
			}
			fmt.Print(prompt)
			if !in.Scan() {
				break
			}
			line := strings.TrimSpace(in.Text())

			switch {
			case line == "":
				continue

			case line == "quit" || line == "exit":
				if n := len(sess.PickedAssets()); n > 0 {
					fmt.Printf("%s %d unsaved pick(s) discarded\n", ui.RenderWarn("⚠"), n)
				}
				return in.Err()

			case line == "list":
				picked := sess.PickedAssets()
				if len(picked) == 0 {
					fmt.Println(ui.RenderFaint("nothing picked yet"))
					continue
				}
				for i, p := range picked {
					fmt.Printf("  %2d. %s  %s\n", i+1, ui.RenderAccent(p.Tag), p.Name)
				}

			case strings.HasPrefix(line, "remove "):
				tag := strings.TrimSpace(strings.TrimPrefix(line, "remove "))
				if sess.RemovePicked(tag) {
					fmt.Printf("%s removed %s\n", ui.RenderPass("✓"), tag)
				} else {
					fmt.Printf("%s %s is not on the picked list\n", ui.RenderWarn("⚠"), tag)
				}

			case line == "door":
				sess.ResetDoor()
				fmt.Println("door cleared, scan a new one")

			case line == "save":
				err := sess.SaveWork(ctx)
				switch e := err.(type) {
				case nil:
					fmt.Printf("%s Work saved\n", ui.RenderPass("✓"))
				case *audit.PartialSaveError:
					fmt.Printf("%s Partial save, rescan: %s\n", ui.RenderErr("✗"), strings.Join(e.Failed, ", "))
				default:
					fmt.Printf("%s %v\n", ui.RenderErr("✗"), err)
				}

			default:
				res, err := sess.Scan(ctx, line, geo)
				if err == audit.ErrScanLocked {
					continue
				}
				if err != nil {
					fmt.Printf("%s %v\n", ui.RenderErr("✗"), err)
					continue
				}
				switch res.Kind {
				case audit.ScanDoorSelected:
					fmt.Printf("%s Door %s (%s)\n", ui.RenderPass("✓"),
						ui.RenderAccent(res.Door.RoomTag), res.Door.RoomLocation)
				case audit.ScanAssetPicked:
					fmt.Printf("%s Picked %s  %s\n", ui.RenderPass("✓"),
						ui.RenderAccent(res.Asset.Tag), res.Asset.Name)
				case audit.ScanDuplicate:
					fmt.Printf("%s %s already picked\n", ui.RenderFaint("·"), res.Asset.Tag)
				}
			}
		}
		return in.Err()
	},
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the working table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.AllAuditing(cmd.Context())
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Printf("%s Working table is empty\n", ui.RenderFaint("-"))
			return nil
		}

		for _, r := range rows {
			status := ui.RenderFaint("pending")
			switch r.FoundStatus {
			case model.FoundStatusFound:
				status = ui.RenderPass("Found")
			case model.FoundStatusExtra:
				status = ui.RenderWarn("Extra")
			}
			room := r.FoundRoomTag
			if room == "" {
				room = r.RoomTag
			}
			fmt.Printf("%-14s %-8s %-10s %s\n", ui.RenderAccent(r.Tag), status, room, r.Name)
		}
		fmt.Printf("\n%d row(s)\n", len(rows))
		return nil
	},
}

var finishDept string

var auditFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Submit the working table to the server",
	Long: `POST the entire working table to the server as the audit result.

The table is left intact so a failed submission can be retried; run
'fieldaudit audit stop' afterwards to clear it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := requireCredentials()
		if err != nil {
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

		ctx := cmd.Context()
		n, err := db.Count(ctx, "auditing")
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("working table is empty, nothing to submit")
		}

		deptName := finishDept
		if d, err := db.DepartmentByID(ctx, finishDept); err == nil && d != nil {
			deptName = d.Name
		}

		var confirmed bool
		err = huh.NewConfirm().
			Title(fmt.Sprintf("Submit %d row(s) for %s?", n, deptName)).
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Submission cancelled")
			return nil
		}

		sess := audit.NewSession(db, client, finishDept, deptName)
		sess.SetLogger(newLogger("audit"))
		ack, err := sess.Finish(ctx, client, creds.Email, creds.PW)
		if err != nil {
			return err
		}

		fmt.Printf("%s Audit submitted (%d rows)", ui.RenderPass("✓"), n)
		if ack.Message != "" {
			fmt.Printf(": %s", ack.Message)
		}
		fmt.Printf("\nRun 'fieldaudit audit stop' to clear the working table.\n")
		return nil
	},
}

var stopYes bool

var auditStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Clear the working table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		n, err := db.Count(ctx, "auditing")
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Printf("%s Working table already empty\n", ui.RenderFaint("-"))
			return nil
		}

		if !stopYes {
			var confirmed bool
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Discard %d working row(s)?", n)).
				Description("Unsubmitted scans cannot be recovered.").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Stop cancelled")
				return nil
			}
		}

		if err := db.ClearAuditing(ctx); err != nil {
			return err
		}
		fmt.Printf("%s Working table cleared\n", ui.RenderPass("✓"))
		return nil
	},
}

var auditImportCmd = &cobra.Command{
	Use:   "import <file.csv|file.xlsx>",
	Short: "Stage an audit manifest from a file",
	Long: `Stage the working table from a CSV or XLSX manifest export instead of
the server, for audits that start with no connectivity.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := stageManifestFile(cmd, db, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Staged %d asset(s) from %s\n", ui.RenderPass("✓"), n, args[0])
		return nil
	},
}

var auditWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the import directory for dropped manifests",
	Long: `Watch the configured import directory and stage every manifest file
dropped into it. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := os.MkdirAll(cfg.ImportDir, 0o755); err != nil {
			return fmt.Errorf("failed to create import directory: %w", err)
		}

		w, err := importer.NewWatcher()
		if err != nil {
			return err
		}
		if err := w.Start(cfg.ImportDir); err != nil {
			return err
		}
		defer w.Stop()

		logger := newLogger("importer")
		fmt.Printf("%s Watching %s (Ctrl-C to stop)\n", ui.RenderAccent("●"), cfg.ImportDir)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case <-sig:
				fmt.Println("\nStopping watcher")
				return nil
			case ev, ok := <-w.Events():
				if !ok {
					return nil
				}
				n, err := stageManifestFile(cmd, db, ev.Path)
				if err != nil {
					logger.Printf("import of %s failed: %v", ev.Path, err)
					fmt.Printf("%s %s: %v\n", ui.RenderErr("✗"), ev.Path, err)
					continue
				}
				logger.Printf("imported %d assets from %s", n, ev.Path)
				fmt.Printf("%s Staged %d asset(s) from %s\n", ui.RenderPass("✓"), n, ev.Path)
			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				logger.Printf("watch error: %v", err)
			}
		}
	},
}

// stageManifestFile parses a manifest and upserts its assets into the
// working table under a fresh audit id, found-status unset.
func stageManifestFile(cmd *cobra.Command, db *store.DB, path string) (int, error) {
	assets, err := importer.ReadFile(path)
	if err != nil {
		return 0, err
	}
	auditID := uuid.NewString()
	for i := range assets {
		row := &model.AuditingRow{Asset: assets[i], AuditID: auditID}
		if err := db.UpsertAuditingRow(cmd.Context(), row); err != nil {
			return i, fmt.Errorf("failed to stage %s: %w", row.Tag, err)
		}
	}
	return len(assets), nil
}

func init() {
	auditScanCmd.Flags().StringVar(&scanDept, "dept", "", "department id being audited")
	auditScanCmd.Flags().Float64Var(&scanLat, "lat", 0, "latitude for this session's scans")
	auditScanCmd.Flags().Float64Var(&scanLon, "lon", 0, "longitude for this session's scans")
	auditScanCmd.Flags().Float64Var(&scanAlt, "alt", 0, "altitude in meters")
	auditScanCmd.Flags().BoolVar(&scanDash, "dash", false, "serve the live dashboard during the session")
	_ = auditScanCmd.MarkFlagRequired("dept")

	auditFinishCmd.Flags().StringVar(&finishDept, "dept", "", "department id being audited")
	_ = auditFinishCmd.MarkFlagRequired("dept")

	auditStopCmd.Flags().BoolVar(&stopYes, "yes", false, "skip the confirmation prompt")

	auditCmd.AddCommand(auditStartCmd, auditScanCmd, auditListCmd,
		auditFinishCmd, auditStopCmd, auditImportCmd, auditWatchCmd)
	rootCmd.AddCommand(auditCmd)
}
