// Command doorbell-pi rings a chime relay when the doorbell button is
// pressed, either a button wired to a GPIO line or a Flic button reached
// through the flicd daemon, and announces each press over HTTP, MQTT and
// WebSocket.
//
// Usage:
//
//	doorbell-pi run [--config doorbell.yaml]
//	doorbell-pi ring [--pattern single]
//	doorbell-pi state
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/doorbell-pi/internal/config"
	"github.com/sweeney/doorbell-pi/internal/logging"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "doorbell-pi",
	Short: "Doorbell daemon for the Raspberry Pi",
	Long: `doorbell-pi waits for doorbell presses and rings a chime relay.

Presses come from a push button on a GPIO line (input: gpio) or from a Flic
Bluetooth button through the flicd daemon (input: flic). Each press rings
the chime once and is then announced to an HTTP webhook, an MQTT broker and
WebSocket clients of the status page.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ringCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and initializes logging.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := logging.Initialize(cfg.Log.Level, cfg.Log.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "doorbell-pi %s (commit: %s)\n", version, commit)
	},
}
