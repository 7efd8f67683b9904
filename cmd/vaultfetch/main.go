package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/systmms/vaultfetch/cmd/vaultfetch/commands"
	"github.com/systmms/vaultfetch/internal/config"
	"github.com/systmms/vaultfetch/internal/logging"
	"github.com/systmms/vaultfetch/internal/resilience"
	"github.com/systmms/vaultfetch/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// os.Exit skips defers, so both paths purge explicitly before exiting.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		secure.Purge()
		os.Exit(1)
	}
	secure.Purge()
}

func run() error {
	var (
		configFile    string
		noColor       bool
		debug         bool
		metricsListen string
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "vaultfetch",
		Short: "Resolve vault:// secret references against a remote vault service",
		Long: `vaultfetch resolves vault://vault/item/field references to secret values,
batching lookups per item and riding out transient vault-service failures
with retries and a per-destination circuit breaker.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)

			resilience.InitMetrics()
			if metricsListen != "" {
				go func() {
					if err := http.ListenAndServe(metricsListen, promhttp.Handler()); err != nil {
						cfg.Logger.Warn("metrics endpoint failed: %v", err)
					}
				}()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "vaultfetch.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(
		commands.NewResolveCommand(cfg),
		commands.NewGetCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
