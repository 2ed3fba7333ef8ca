package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/concave-dev/trail/internal/logging"
)

// EnvPrefix prefixes every environment variable traild reads, with dots and
// hyphens in config keys turned into underscores: database.dsn is read from
// TRAIL_DATABASE_DSN.
const EnvPrefix = "TRAIL"

// flagKeys maps flags of nested settings to their config keys. Other flags
// use their own name as key.
var flagKeys = map[string]string{
	"db-backend":            "database.backend",
	"db-dir":                "database.dir",
	"db-dsn":                "database.dsn",
	"ipfs-url":              "dispatch.ipfs-url",
	"gateway-url":           "dispatch.gateway-url",
	"gateway-username":      "dispatch.gateway-username",
	"gateway-password":      "dispatch.gateway-password",
	"request-timeout":       "dispatch.request-timeout",
	"kafka-brokers":         "notify.brokers",
	"kafka-topic":           "notify.topic",
	"event-buffer-size":     "notify.buffer-size",
	"publish-timeout":       "notify.publish-timeout",
	"batch-max-records":     "batch.batch_max_records",
	"batch-timeout-arrival": "batch.batch_timeout_arrival_ms",
	"batch-timeout-overall": "batch.batch_timeout_overall_ms",
	"add-timeout":           "batch.add_timeout_ms",
	"retry-initial-delay":   "batch.retry_initial_delay_ms",
	"retry-max-delay":       "batch.retry_max_delay_ms",
	"retry-alert-attempts":  "batch.retry_alert_attempts",
}

// Flags that only steer loading itself.
var unboundFlags = map[string]bool{
	"config":   true,
	"env-file": true,
	"help":     true,
	"version":  true,
}

// ConfigKey returns the config key bound to the named flag.
func ConfigKey(flag string) string {
	if key, ok := flagKeys[flag]; ok {
		return key
	}
	return flag
}

// Load merges the env file, TRAIL_ environment, config file and flags into
// Global. Flags must already be parsed.
func Load(flags *pflag.FlagSet) error {
	if err := loadEnvFile(Global.EnvFile, flags.Changed("env-file")); err != nil {
		return err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || unboundFlags[f.Name] {
			return
		}
		bindErr = v.BindPFlag(ConfigKey(f.Name), f)
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	if Global.ConfigFile != "" {
		v.SetConfigFile(Global.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", Global.ConfigFile, err)
		}
		logging.Info("Loaded config file %s", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&Global); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	Global.SetExplicitlySet(APIField, v.IsSet("api"))
	Global.SetExplicitlySet(GossipField, v.IsSet("gossip"))
	Global.SetExplicitlySet(LogFileField, v.IsSet("log-file"))
	return nil
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is only an error when the
// operator named it.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	logging.Debug("Loaded environment from %s", path)
	return nil
}
