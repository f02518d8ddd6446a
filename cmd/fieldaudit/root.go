// Command fieldaudit is the offline-first asset auditing CLI: it mirrors
// the inventory server's reference data into a local SQLite cache, runs
// door-by-door scanning sessions, and submits completed audits in bulk.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dataworks/fieldaudit/internal/api"
	"github.com/dataworks/fieldaudit/internal/config"
	"github.com/dataworks/fieldaudit/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "fieldaudit",
	Short: "Offline-first physical asset auditing",
	Long: `fieldaudit reconciles barcode scans against a remote inventory.

Reference data (buildings, rooms, departments, custodians, assets) is
mirrored into a local SQLite cache so lookups work with no signal.
Audit sessions stage an expected-asset manifest, record what was found
door by door, and submit the whole working table when the audit is done.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var cfg *config.Config

func init() {
	cobra.OnInitialize(func() {
		var err error
		cfg, err = config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	})

	rootCmd.AddGroup(
		&cobra.Group{ID: "auth", Title: "Authentication:"},
		&cobra.Group{ID: "data", Title: "Reference data:"},
		&cobra.Group{ID: "audit", Title: "Auditing:"},
	)
}

// newLogger returns a prefixed logger writing to the rotating log file.
func newLogger(prefix string) *log.Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(w, "["+prefix+"] ", log.LstdFlags)
}

// openStore opens the cache database and ensures the schema exists.
func openStore() (*store.DB, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newClient builds an API client from config, attaching the stored api
// key when one exists.
func newClient() (*api.Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("no server_url configured (set it in config.yaml or FIELDAUDIT_SERVER_URL)")
	}
	c := api.New(cfg.ServerURL)
	c.SetHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Second})
	if creds, err := config.LoadCredentials(); err == nil && creds != nil {
		c.SetAPIKey(creds.APIKey)
	}
	return c, nil
}

// requireCredentials loads stored credentials or fails with a login hint.
func requireCredentials() (*config.Credentials, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("not logged in (run 'fieldaudit login' first)")
	}
	return creds, nil
}
