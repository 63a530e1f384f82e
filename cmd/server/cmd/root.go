// Package cmd implements the smoothstreamd command line.
package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"smoothstreamd/internal/config"
	"smoothstreamd/internal/logger"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "smoothstreamd",
	Short: "Local Smooth-Streaming fragment server",
	Long: `smoothstreamd answers Smooth-Streaming manifest and fragment requests for a
catalog of episodes. Fragments are served from local track files when present
and proxied from the remote origin otherwise. Caption fragments can be rewritten
with per-episode subtitle overrides on the way out.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// These flags are not bound to viper; they only override the loaded
	// configuration when set explicitly, keeping flag > env > file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./smoothstreamd.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// loadConfig reads the configuration and applies explicitly set CLI flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWith(viper.New(), cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	overrideString(flags, "log-level", &cfg.Logging.Level)
	overrideString(flags, "log-format", &cfg.Logging.Format)
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Lookup("offline") != nil && flags.Changed("offline") {
		cfg.Server.OfflineMode, _ = flags.GetBool("offline")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Lookup(name) == nil || !flags.Changed(name) {
		return
	}
	*dst, _ = flags.GetString(name)
}

func newLogger(cfg *config.Config) *logger.SlogLogger {
	return logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
}
