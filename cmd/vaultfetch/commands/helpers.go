package commands

import (
	"sort"

	"github.com/systmms/vaultfetch/internal/config"
	"github.com/systmms/vaultfetch/internal/refs"
	"github.com/systmms/vaultfetch/internal/resilience"
	"github.com/systmms/vaultfetch/internal/resolve"
	"github.com/systmms/vaultfetch/internal/vault"
)

// buildResolver wires the vault client, resilience pipeline, and cache from
// the loaded configuration.
func buildResolver(cfg *config.Config) (*resolve.Resolver, *vault.Client, error) {
	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, nil, err
	}

	pipeline := resilience.New(cfg.ResilienceOptions(), cfg.Logger)
	resolver := resolve.New(client, pipeline, nil, cfg.Logger)
	return resolver, client, nil
}

// validateReference checks that a URI parses without resolving it.
func validateReference(uri string) error {
	_, err := refs.Parse(uri)
	return err
}

// sortedKeys returns map keys in deterministic order for output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
