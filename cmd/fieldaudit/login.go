package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/dataworks/fieldaudit/internal/config"
	"github.com/dataworks/fieldaudit/internal/ui"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "auth",
	Short:   "Authenticate against the inventory server",
	Long: `Authenticate with the inventory server and store credentials locally.

The stored password is reused when submitting a completed audit, which
the server requires alongside the row data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := loginEmail
		var pw string

		fields := []huh.Field{}
		if email == "" {
			fields = append(fields, huh.NewInput().
				Title("Email").
				Value(&email))
		}
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&pw))

		if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
			return fmt.Errorf("login cancelled: %w", err)
		}
		if email == "" || pw == "" {
			return fmt.Errorf("email and password are required")
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		res, err := client.Login(cmd.Context(), email, pw)
		if err != nil {
			return err
		}
		if res.Status != "" && res.Status != "ok" && res.Status != "success" {
			return fmt.Errorf("login rejected: %s", res.Status)
		}

		if err := config.SaveCredentials(&config.Credentials{
			Email:  email,
			PW:     pw,
			APIKey: res.APIKey,
		}); err != nil {
			return err
		}

		fmt.Printf("%s Logged in as %s\n", ui.RenderPass("✓"), email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "auth",
	Short:   "Discard credentials and wipe the local cache",
	Long: `Remove stored credentials and clear every table in the local cache.

The cache may contain another organization's inventory, so logout wipes
it wholesale rather than leaving stale reference data behind.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearCredentials(); err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			// Credentials are already gone; a missing cache is fine.
			fmt.Fprintf(os.Stderr, "Warning: could not open cache to clear it: %v\n", err)
			fmt.Printf("%s Logged out\n", ui.RenderPass("✓"))
			return nil
		}
		defer db.Close()

		if err := db.ClearAll(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Printf("%s Logged out, local cache cleared\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "login email (prompted when omitted)")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
