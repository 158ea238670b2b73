// Package config loads the daemon configuration from the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the daemon needs to start.
type Config struct {
	// ConfigDir holds device.yaml and credentials.yaml.
	ConfigDir string
	// TicketPath is the root of the ticket active/ and archive/ trees.
	TicketPath string
	// BearerToken guards the machine and admin endpoints. Empty means
	// those endpoints always reject.
	BearerToken string

	Listen          string
	MonitorInterval time.Duration
	LogLevel        string
	LogJSON         bool
	WatchCatalog    bool
}

// Load reads the configuration from environment variables, applying
// defaults for everything optional.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("CONFIG_DIR", "config")
	v.SetDefault("TICKET_PATH", "tickets")
	v.SetDefault("SWITCHYARD_LISTEN", ":8000")
	v.SetDefault("SWITCHYARD_MONITOR_INTERVAL", "10s")
	v.SetDefault("SWITCHYARD_LOG_LEVEL", "info")
	v.SetDefault("SWITCHYARD_LOG_JSON", false)
	v.SetDefault("SWITCHYARD_WATCH_CATALOG", false)

	interval, err := time.ParseDuration(v.GetString("SWITCHYARD_MONITOR_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("parsing SWITCHYARD_MONITOR_INTERVAL: %w", err)
	}

	return &Config{
		ConfigDir:       v.GetString("CONFIG_DIR"),
		TicketPath:      v.GetString("TICKET_PATH"),
		BearerToken:     v.GetString("API_BEARER_TOKEN"),
		Listen:          v.GetString("SWITCHYARD_LISTEN"),
		MonitorInterval: interval,
		LogLevel:        v.GetString("SWITCHYARD_LOG_LEVEL"),
		LogJSON:         v.GetBool("SWITCHYARD_LOG_JSON"),
		WatchCatalog:    v.GetBool("SWITCHYARD_WATCH_CATALOG"),
	}, nil
}

// CatalogPath is the device catalog file inside ConfigDir.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.ConfigDir, "device.yaml")
}

// CredentialsPath is the credential store file inside ConfigDir.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.ConfigDir, "credentials.yaml")
}
