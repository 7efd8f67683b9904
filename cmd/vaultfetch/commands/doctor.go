package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/vaultfetch/internal/config"
	vferrors "github.com/systmms/vaultfetch/internal/errors"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and vault connectivity",
		Long: `Verify that vaultfetch is ready to resolve secrets.

This command checks:
- Configuration file validity (including schema)
- Access token availability
- Vault service reachability

Use --env to also validate that a specific environment's references parse.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking vaultfetch configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("Configuration loaded and schema-valid")

			_, client, err := buildResolver(cfg)
			if err != nil {
				cfg.Logger.Error("Client setup failed: %v", err)
				return err
			}
			cfg.Logger.Info("Access token available")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Health(ctx); err != nil {
				cfg.Logger.Error("Vault service unreachable: %v", err)
				return vferrors.UserError{
					Message:    "Vault service health check failed",
					Details:    err.Error(),
					Suggestion: "Check server.url, network connectivity, and that the token is valid",
					Err:        err,
				}
			}
			cfg.Logger.Info("Vault service reachable at %s", cfg.Definition.Server.URL)

			if envName != "" {
				if err := checkEnvReferences(cfg, envName); err != nil {
					return err
				}
				cfg.Logger.Info("All references in environment '%s' parse cleanly", envName)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Also validate a specific environment's references")

	return cmd
}

func checkEnvReferences(cfg *config.Config, envName string) error {
	env, err := cfg.GetEnv(envName)
	if err != nil {
		return err
	}

	for _, varName := range sortedKeys(env) {
		if parseErr := validateReference(env[varName]); parseErr != nil {
			cfg.Logger.Error("%s: %v", varName, parseErr)
			return vferrors.ConfigError{
				Field:      varName,
				Value:      env[varName],
				Message:    "invalid secret reference",
				Suggestion: "References must look like vault://vault/item/field or vault://vault/item/section/field",
			}
		}
	}
	return nil
}
