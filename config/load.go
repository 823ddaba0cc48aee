package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load resolves the configuration from defaults, file, environment and
// flags, in that order. args excludes the program name.
func Load(fset *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	path, explicit := configPath(args)
	if path != "" {
		if err := loadConfigFile(cfg, path, explicit); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := parseFlags(cfg, fset, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configPath finds the file before flags are parsed, so -config can sit
// anywhere in args.
func configPath(args []string) (string, bool) {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value, true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
	}
	if v := os.Getenv("ROUTINES_CONFIG"); v != "" {
		return v, true
	}
	return DefaultConfigFile, false
}

func loadConfigFile(cfg *Config, path string, required bool) error {
	_, err := toml.DecodeFile(path, cfg)
	if err != nil && !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil {
		cfg.ConfigFile = path
	}
	return err
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("ROUTINES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROUTINES_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("ROUTINES_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ROUTINES_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ROUTINES_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ROUTINES_TZ"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("ROUTINES_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ROUTINES_RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ROUTINES_RECONCILE_INTERVAL: %w", err)
		}
		cfg.ReconcileInterval = Duration{d}
	}
	return nil
}

func parseFlags(cfg *Config, fset *flag.FlagSet, args []string) error {
	if fset == nil {
		fset = flag.NewFlagSet("routines", flag.ContinueOnError)
	}

	var origins string
	fset.String("config", cfg.ConfigFile, "Path to routines.toml")
	fset.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fset.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (:memory: for an ephemeral store)")
	fset.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	fset.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format: json or console")
	fset.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "IANA timezone used for today")
	fset.StringVar(&origins, "allowed-origins", strings.Join(cfg.AllowedOrigins, ","), "Comma-separated CORS origins")
	fset.DurationVar(&cfg.ReconcileInterval.Duration, "reconcile-interval", cfg.ReconcileInterval.Duration, "Background reconcile interval (0 disables)")
	fset.BoolVar(&cfg.LoadScenarios, "scenarios", cfg.LoadScenarios, "Load demo routines at startup")

	if err := fset.Parse(args); err != nil {
		return err
	}
	cfg.AllowedOrigins = splitList(origins)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
