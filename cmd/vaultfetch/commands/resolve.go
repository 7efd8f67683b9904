package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/vaultfetch/internal/config"
	vferrors "github.com/systmms/vaultfetch/internal/errors"
)

func NewResolveCommand(cfg *config.Config) *cobra.Command {
	var (
		envName    string
		jsonOutput bool
		export     bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an environment's secret references",
		Long: `Resolve every vault:// reference in a named environment and print the
result as KEY=value lines.

All references are validated up front: one malformed reference fails the
whole run before any network call. Resolution failures are reported
per-variable; everything that could be resolved is still printed.

Examples:
  # Print resolved variables
  vaultfetch resolve --env production

  # Shell-ready export lines
  eval "$(vaultfetch resolve --env production --export)"

  # JSON with per-variable errors
  vaultfetch resolve --env production --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			env, err := cfg.GetEnv(envName)
			if err != nil {
				return err
			}

			resolver, _, err := buildResolver(cfg)
			if err != nil {
				return err
			}

			uris := make([]string, 0, len(env))
			uriToVar := make(map[string][]string, len(env))
			for _, varName := range sortedKeys(env) {
				uri := env[varName]
				uris = append(uris, uri)
				uriToVar[uri] = append(uriToVar[uri], varName)
			}

			report, err := resolver.ResolveAll(context.Background(), uris)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(env, report.Resolved, report.Errors)
			}

			for _, varName := range sortedKeys(env) {
				uri := env[varName]
				value, ok := report.Resolved[uri]
				if !ok {
					continue
				}
				if export {
					fmt.Printf("export %s=%q\n", varName, value)
				} else {
					fmt.Printf("%s=%s\n", varName, value)
				}
			}

			if !report.Ok() {
				for _, uri := range sortedKeys(report.Errors) {
					for _, varName := range uriToVar[uri] {
						cfg.Logger.Error("%s: %v", varName, report.Errors[uri])
					}
				}
				return vferrors.UserError{
					Message:    fmt.Sprintf("Failed to resolve %d of %d references", len(report.Errors), len(uris)),
					Suggestion: "Fix the errors above and try again. Use 'vaultfetch doctor' to check connectivity",
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Environment name (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON with per-variable detail")
	cmd.Flags().BoolVar(&export, "export", false, "Print shell export lines")
	_ = cmd.MarkFlagRequired("env")

	return cmd
}

func printJSON(env config.EnvSet, resolved map[string]string, errs map[string]error) error {
	type entry struct {
		Reference string `json:"reference"`
		Value     string `json:"value,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	out := make(map[string]entry, len(env))
	for varName, uri := range env {
		e := entry{Reference: uri}
		if value, ok := resolved[uri]; ok {
			e.Value = value
		} else if err, ok := errs[uri]; ok {
			e.Error = err.Error()
		}
		out[varName] = e
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
