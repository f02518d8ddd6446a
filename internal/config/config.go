// Package config loads application settings and stored credentials.
//
// Settings come from a config file and environment variables, with
// sensible defaults for everything, so a fresh install works with only a
// server URL. Credentials are kept separately in a 0600 file under the
// user's home directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	ServerURL   string `mapstructure:"server_url"`
	DBPath      string `mapstructure:"db_path"`
	LogPath     string `mapstructure:"log_path"`
	ImportDir   string `mapstructure:"import_dir"`
	DashAddr    string `mapstructure:"dash_addr"`
	SyncPage    int    `mapstructure:"sync_page"`
	HTTPTimeout int    `mapstructure:"http_timeout_seconds"`
}

// Dir returns the application's state directory, created on demand.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".fieldaudit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// Load reads config.yaml from the state directory (or the file given by
// FIELDAUDIT_CONFIG), layered under FIELDAUDIT_* environment variables.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("server_url", "")
	v.SetDefault("db_path", filepath.Join(dir, "fieldaudit.db"))
	v.SetDefault("log_path", filepath.Join(dir, "fieldaudit.log"))
	v.SetDefault("import_dir", filepath.Join(dir, "import"))
	v.SetDefault("dash_addr", "127.0.0.1:7433")
	v.SetDefault("sync_page", 500)
	v.SetDefault("http_timeout_seconds", 30)

	v.SetEnvPrefix("FIELDAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("FIELDAUDIT_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Credentials are the stored login identity. The password is kept so a
// finished audit can be submitted with the submitter's credentials, per
// the server's completion contract.
type Credentials struct {
	Email  string `json:"email"`
	PW     string `json:"pw"`
	APIKey string `json:"api_key,omitempty"`
}

func credentialsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.json"), nil
}

// SaveCredentials writes credentials with owner-only permissions.
func SaveCredentials(c *Credentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// LoadCredentials reads stored credentials. Returns (nil, nil) when the
// user has never logged in.
func LoadCredentials() (*Credentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &c, nil
}

// ClearCredentials removes the stored credentials file.
func ClearCredentials() error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
