package vault

import (
	"os"

	"github.com/zalando/go-keyring"

	vferrors "github.com/systmms/vaultfetch/internal/errors"
)

// TokenSource describes where the access token comes from. Sources are
// consulted in order: an explicit value, then an environment variable, then
// the OS keyring. The token is opaque; only presence and shape are checked.
type TokenSource struct {
	// Value is an explicit token, mainly for tests.
	Value string

	// Env names an environment variable holding the token.
	Env string

	// KeyringService and KeyringAccount address an OS keyring entry.
	KeyringService string
	KeyringAccount string
}

// Resolve returns the access token from the first available source.
func (s TokenSource) Resolve() (string, error) {
	if s.Value != "" {
		return s.Value, nil
	}

	if s.Env != "" {
		if token := os.Getenv(s.Env); token != "" {
			return token, nil
		}
	}

	if s.KeyringService != "" {
		token, err := keyring.Get(s.KeyringService, s.KeyringAccount)
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil && err != keyring.ErrNotFound {
			return "", vferrors.UserError{
				Message:    "Failed to read access token from OS keyring",
				Details:    err.Error(),
				Suggestion: "Check that the keyring service is available, or set the token environment variable instead",
				Err:        err,
			}
		}
	}

	return "", vferrors.ConfigError{
		Field:      "server",
		Message:    "no access token available",
		Suggestion: "Export the configured token environment variable or store the token in the OS keyring",
	}
}
