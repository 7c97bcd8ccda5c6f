// Package config loads environment-driven runtime configuration using
// viper, following the same typed-getter-with-validated-fallback idiom the
// rest of this codebase uses for its settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every environment-tunable knob named in the external
// interfaces contract.
type Config struct {
	MaxConcurrentSyncs   int
	MaxConcurrentExports int

	SyncTimeoutSeconds   int
	ExportTimeoutMinutes int

	SchedulerEnabled        bool
	SchedulerIntervalSecs   int
	CleanupIntervalHours    int

	OperationRetentionDays int
	RecordRetentionDays    int

	ExportsDirectory string
	TempDirectory    string
	MaxExportSizeMB  int
}

// Load reads configuration from the process environment with
// TERRASYNC_-prefixed variable names, falling back to documented defaults.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("TERRASYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("max_concurrent_syncs", 5)
	v.SetDefault("max_concurrent_exports", 3)
	v.SetDefault("sync_timeout_seconds", 3600)
	v.SetDefault("export_timeout_minutes", 30)
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_interval_seconds", 60)
	v.SetDefault("cleanup_interval_hours", 24)
	v.SetDefault("operation_retention_days", 30)
	v.SetDefault("record_retention_days", 7)
	v.SetDefault("exports_directory", "./data/exports")
	v.SetDefault("temp_directory", os.TempDir())
	v.SetDefault("max_export_size_mb", 500)

	cfg := &Config{
		MaxConcurrentSyncs:     requirePositive(v, "max_concurrent_syncs", 5),
		MaxConcurrentExports:   requirePositive(v, "max_concurrent_exports", 3),
		SyncTimeoutSeconds:     requirePositive(v, "sync_timeout_seconds", 3600),
		ExportTimeoutMinutes:   requirePositive(v, "export_timeout_minutes", 30),
		SchedulerEnabled:       v.GetBool("scheduler_enabled"),
		SchedulerIntervalSecs:  requirePositive(v, "scheduler_interval_seconds", 60),
		CleanupIntervalHours:   requirePositive(v, "cleanup_interval_hours", 24),
		OperationRetentionDays: requirePositive(v, "operation_retention_days", 30),
		RecordRetentionDays:    requirePositive(v, "record_retention_days", 7),
		ExportsDirectory:       v.GetString("exports_directory"),
		TempDirectory:          v.GetString("temp_directory"),
		MaxExportSizeMB:        requirePositive(v, "max_export_size_mb", 500),
	}
	return cfg
}

// requirePositive reads an int setting, warning to stderr and falling back
// to fallback when the configured value is non-positive.
func requirePositive(v *viper.Viper, key string, fallback int) int {
	val := v.GetInt(key)
	if val > 0 {
		return val
	}
	fmt.Fprintf(os.Stderr, "Warning: invalid value for %s, using default %d\n", key, fallback)
	return fallback
}
