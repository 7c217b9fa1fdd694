package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/foxhui123/AutoQA/internal/config"
	"github.com/foxhui123/AutoQA/internal/settings"
)

var version = "dev"

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:     "autoqa",
		Short:   "AutoQA - LLM test case generation",
		Long:    `AutoQA turns requirement text or a flowchart image into structured test cases.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			} else if l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
				level = l
			}
			zerolog.SetGlobalLevel(level)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(generateCmd())
	cmd.AddCommand(settingsCmd())
	cmd.AddCommand(providersCmd())
	cmd.AddCommand(formatsCmd())
	cmd.AddCommand(initCmd())

	return cmd
}

// loadConfig reads and validates the environment configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured settings backend
func openStore(cfg *config.Config) (settings.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := settings.Open(ctx, cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s settings store: %w", cfg.Settings.Backend, err)
	}
	return store, nil
}

// storeLocation describes where a settings backend keeps its data, without secrets
func storeLocation(cfg config.SettingsConfig) string {
	switch cfg.Backend {
	case "file", "sqlite", "":
		return cfg.Path
	case "postgres":
		return maskConnectionString(cfg.DatabaseURL)
	case "redis":
		return maskConnectionString(cfg.RedisURL)
	}
	return "-"
}

// maskConnectionString hides the password in a URL-style connection string
func maskConnectionString(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	if _, ok := u.User.Password(); !ok {
		return s
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	// url.String escapes the mask
	return strings.Replace(u.String(), "%2A%2A%2A%2A", "****", 1)
}

// validateFilePath checks that path names an existing regular file
func validateFilePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return abs, nil
}

// validateDirPath checks that path names an existing directory
func validateDirPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("directory path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid directory path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return abs, nil
}
