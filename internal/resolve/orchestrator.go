package resolve

import (
	"context"
	"fmt"

	vferrors "github.com/systmms/vaultfetch/internal/errors"
	"github.com/systmms/vaultfetch/internal/refs"
)

// Report aggregates one resolution cycle back onto the original URI
// strings. Two URIs that parse to the same reference share an outcome.
type Report struct {
	Resolved map[string]string
	Errors   map[string]error
}

// Ok reports whether every URI resolved.
func (r *Report) Ok() bool {
	return len(r.Errors) == 0
}

// ResolveAll is the top-level entry point. All URIs are parsed before any
// network call: a batch containing a malformed URI fails outright with that
// URI identified and zero remote fetches issued. Resolution failures do not
// fail the call; they appear per-URI in the report.
func (r *Resolver) ResolveAll(ctx context.Context, uris []string) (*Report, error) {
	parsed := make(map[string]refs.Reference, len(uris))
	var references []refs.Reference
	for _, uri := range uris {
		if _, ok := parsed[uri]; ok {
			continue
		}
		ref, err := refs.Parse(uri)
		if err != nil {
			return nil, vferrors.UserError{
				Message:    fmt.Sprintf("Invalid secret reference %q", uri),
				Details:    err.Error(),
				Suggestion: "References must look like vault://vault/item/field or vault://vault/item/section/field",
				Err:        err,
			}
		}
		parsed[uri] = ref
		references = append(references, ref)
	}

	outcomes := r.Resolve(ctx, references)

	report := &Report{
		Resolved: make(map[string]string),
		Errors:   make(map[string]error),
	}
	for _, uri := range uris {
		out := outcomes[parsed[uri]]
		if out.Err != nil {
			report.Errors[uri] = out.Err
			continue
		}
		report.Resolved[uri] = out.Value
	}
	return report, nil
}
