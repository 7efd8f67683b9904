// Package vault implements the HTTP client for the remote vault service.
// One GetItem call fetches a whole item with all its fields, so callers can
// satisfy every field lookup for a (vault, item) pair with a single round
// trip. Status codes are mapped onto the shared error taxonomy here and
// nowhere else.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	vferrors "github.com/systmms/vaultfetch/internal/errors"
)

// ClientConfig configures the connection to the vault service. The base
// address and credential are supplied once at construction; TLS setup is
// the host environment's concern.
type ClientConfig struct {
	// BaseURL is the root of the vault service API, e.g.
	// https://vault.internal.example.com.
	BaseURL string

	// Token is the opaque access credential sent as a bearer token.
	Token string
}

// Client talks to the vault service. Safe for concurrent use. The client
// carries no timeout of its own: attempts are bounded by the context the
// resilience pipeline passes in.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Item is the structured payload returned for one (vault, item) fetch.
type Item struct {
	Vault  string  `json:"vault"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field is one name/value pair inside an item, optionally grouped under a
// section.
type Field struct {
	Section string `json:"section,omitempty"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

// FieldValue looks up a field by section and name. An empty section matches
// only fields outside any section.
func (it *Item) FieldValue(section, name string) (string, bool) {
	for _, f := range it.Fields {
		if f.Name == name && f.Section == section {
			return f.Value, true
		}
	}
	return "", false
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, vferrors.ConfigError{
			Field:      "server.url",
			Value:      cfg.BaseURL,
			Message:    "invalid vault server URL",
			Suggestion: "Set server.url to the full base address, e.g. https://vault.example.com",
		}
	}
	if strings.TrimSpace(cfg.Token) == "" || strings.ContainsAny(cfg.Token, " \t\r\n") {
		return nil, vferrors.ConfigError{
			Field:      "server.token",
			Message:    "missing or malformed access token",
			Suggestion: "Provide the token via the configured environment variable or OS keyring",
		}
	}

	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
	}, nil
}

// GetItem fetches one item with all its fields.
func (c *Client) GetItem(ctx context.Context, vaultName, itemName string) (*Item, error) {
	endpoint := fmt.Sprintf("%s/v1/vaults/%s/items/%s",
		c.baseURL, url.PathEscape(vaultName), url.PathEscape(itemName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &vferrors.TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, vaultName, itemName)
	}

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode item response: %w", err)
	}
	return &item, nil
}

// Health probes the service's health endpoint. Used by doctor.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &vferrors.TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, "", "")
	}
	return nil
}

// errorEnvelope is the service's JSON error body. The missing discriminator
// distinguishes a 404 on the vault from a 404 on the item.
type errorEnvelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Missing string `json:"missing,omitempty"`
}

func (c *Client) statusError(resp *http.Response, vaultName, itemName string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		// The envelope message is server-supplied and safe; the token
		// itself never appears in an error.
		return &vferrors.AuthError{Status: resp.StatusCode, Message: envelope.Message}
	case http.StatusNotFound:
		kind := vferrors.KindItem
		if envelope.Missing == string(vferrors.KindVault) {
			kind = vferrors.KindVault
		}
		return &vferrors.NotFoundError{Kind: kind, Vault: vaultName, Item: itemName}
	}

	if vferrors.ClassifyStatus(resp.StatusCode) == vferrors.Transient {
		return &vferrors.TransientError{Status: resp.StatusCode}
	}
	return fmt.Errorf("vault service returned unexpected status %d", resp.StatusCode)
}
