package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/vaultfetch/internal/config"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <vault://vault/item/field>",
		Short: "Resolve a single secret reference",
		Long: `Resolve one vault:// reference and print the raw value to stdout,
suitable for command substitution in scripts.

Examples:
  vaultfetch get vault://Production/database/password
  export DB_PASSWORD=$(vaultfetch get vault://Production/database/password)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			resolver, _, err := buildResolver(cfg)
			if err != nil {
				return err
			}

			report, err := resolver.ResolveAll(context.Background(), args)
			if err != nil {
				return err
			}
			if resolveErr, ok := report.Errors[args[0]]; ok {
				return resolveErr
			}

			fmt.Print(report.Resolved[args[0]])
			return nil
		},
	}

	return cmd
}
