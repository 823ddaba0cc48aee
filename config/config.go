/*
Package config holds the server settings.

SOURCES (later wins):
 1. Defaults
 2. TOML file: -config flag, else $ROUTINES_CONFIG, else ./routines.toml if present
 3. Environment: ROUTINES_PORT, ROUTINES_DB, ROUTINES_LOG_LEVEL, ROUTINES_LOG_FORMAT,
    ROUTINES_TZ, ROUTINES_ALLOWED_ORIGINS, ROUTINES_RECONCILE_INTERVAL
 4. Flags

EXAMPLE routines.toml:

	port = 8080
	db = "routines.db"
	timezone = "Europe/Paris"
	reconcile_interval = "1h"
	allowed_origins = ["http://localhost:5173"]

	[log]
	level = "debug"
	format = "console"
*/
package config

import (
	"fmt"
	"time"

	"github.com/routinely/routine-engine/logging"
)

const (
	DefaultPort              = 8080
	DefaultDBPath            = "routines.db"
	DefaultReconcileInterval = time.Hour
	DefaultConfigFile        = "routines.toml"
)

// Config is the resolved server configuration.
type Config struct {
	Port   int    `toml:"port"`
	DBPath string `toml:"db"`

	Log logging.Config `toml:"log"`

	// Timezone decides when "today" rolls over. Empty means UTC.
	Timezone string `toml:"timezone"`

	AllowedOrigins []string `toml:"allowed_origins"`

	// ReconcileInterval of 0 disables the background reconciler.
	ReconcileInterval Duration `toml:"reconcile_interval"`

	// LoadScenarios seeds the demo routines at startup.
	LoadScenarios bool `toml:"load_scenarios"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `toml:"-"`
}

// Duration decodes "90s" or "1h30m" from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func setDefaults(cfg *Config) {
	cfg.Port = DefaultPort
	cfg.DBPath = DefaultDBPath
	cfg.Log = logging.Config{Level: "info", Format: "json"}
	cfg.AllowedOrigins = []string{"*"}
	cfg.ReconcileInterval = Duration{DefaultReconcileInterval}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Addr is the listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.ReconcileInterval.Duration < 0 {
		return fmt.Errorf("reconcile interval must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
