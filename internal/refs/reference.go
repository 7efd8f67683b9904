// Package refs parses and represents vault:// secret references.
//
// A reference addresses a single field inside an item held by the remote
// vault service:
//
//	vault://<vault>/<item>/<field>
//	vault://<vault>/<item>/<section>/<field>
//
// Each segment is percent-decoded, so item names containing slashes or
// spaces can be encoded. Parsing is pure and deterministic: the same URI
// always yields the same Reference value, and Reference is comparable so it
// can serve directly as a cache and deduplication key.
package refs

import (
	"fmt"
	"net/url"
	"strings"
)

// Scheme is the URI prefix shared by all secret references.
const Scheme = "vault://"

// Reference is the parsed form of a vault:// URI. It is a value type:
// construct it only through Parse, never mutate it after construction.
type Reference struct {
	Vault   string
	Item    string
	Section string // optional, empty when the URI has three segments
	Field   string
}

// Group identifies the (vault, item) pair a reference belongs to. All
// references sharing a Group are satisfied by one remote item fetch.
type Group struct {
	Vault string
	Item  string
}

// ParseError describes why a reference string could not be parsed.
type ParseError struct {
	URI    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid secret reference %q: %s", e.URI, e.Reason)
}

// IsReference reports whether the value looks like a vault:// URI.
func IsReference(value string) bool {
	return strings.HasPrefix(value, Scheme)
}

// Parse converts a vault:// URI into a Reference. It validates shape before
// any network activity happens: a malformed reference never costs a round
// trip.
func Parse(uri string) (Reference, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return Reference{}, &ParseError{URI: uri, Reason: "missing vault:// scheme"}
	}

	path := strings.TrimPrefix(uri, Scheme)
	segments := strings.Split(path, "/")
	if len(segments) < 3 || len(segments) > 4 {
		return Reference{}, &ParseError{
			URI:    uri,
			Reason: fmt.Sprintf("expected vault://vault/item/[section/]field, got %d segments", len(segments)),
		}
	}

	decoded := make([]string, len(segments))
	for i, seg := range segments {
		if seg == "" {
			return Reference{}, &ParseError{URI: uri, Reason: "empty path segment"}
		}
		d, err := url.PathUnescape(seg)
		if err != nil {
			return Reference{}, &ParseError{URI: uri, Reason: "malformed percent-encoding in segment " + seg}
		}
		if d == "" {
			return Reference{}, &ParseError{URI: uri, Reason: "empty path segment"}
		}
		decoded[i] = d
	}

	ref := Reference{Vault: decoded[0], Item: decoded[1]}
	if len(decoded) == 4 {
		ref.Section = decoded[2]
		ref.Field = decoded[3]
	} else {
		ref.Field = decoded[2]
	}
	return ref, nil
}

// Group returns the (vault, item) fetch group for this reference.
func (r Reference) Group() Group {
	return Group{Vault: r.Vault, Item: r.Item}
}

// String re-encodes the reference as a vault:// URI.
func (r Reference) String() string {
	parts := []string{
		url.PathEscape(r.Vault),
		url.PathEscape(r.Item),
	}
	if r.Section != "" {
		parts = append(parts, url.PathEscape(r.Section))
	}
	parts = append(parts, url.PathEscape(r.Field))
	return Scheme + strings.Join(parts, "/")
}

// String identifies the group in logs and breaker destinations.
func (g Group) String() string {
	return url.PathEscape(g.Vault) + "/" + url.PathEscape(g.Item)
}
