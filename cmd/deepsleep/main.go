// DeepSleep device agent.
//
// This is the main entry point for the bedside sleep-environment agent.
// It polls the humidity/temperature sensor, drives the humidifier and the
// white-noise speaker, and talks to the control plane over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/deepsleep-agent/internal/agent"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the default configuration path.
const configEnvVar = "DEEPSLEEP_CONFIG"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the CLI: the root command runs the agent, `version`
// prints build information.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "deepsleep",
		Short:         "Run the DeepSleep sleep-environment agent.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on Ctrl+C and SIGTERM for graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := run(ctx, resolveConfigPath(configPath))
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			return err
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("path to configuration file (default %s, or $%s)", defaultConfigPath, configEnvVar))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deepsleep %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	return root
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown; config errors or agent.ErrStartup otherwise
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DeepSleep agent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("device_id", cfg.Device.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	a, err := agent.Open(ctx, cfg, log, version)
	if err != nil {
		return err
	}

	if err := a.Run(ctx); err != nil {
		if errors.Is(err, agent.ErrStartup) {
			log.Error("agent failed to start", "error", err)
		}
		return err
	}

	log.Info("DeepSleep agent stopped")
	return nil
}

// resolveConfigPath picks the flag value, then DEEPSLEEP_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
