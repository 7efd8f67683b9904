// Package resolve turns sets of secret references into values.
//
// The batch resolver deduplicates references, consults the cache, groups
// the misses by (vault, item), and issues one remote fetch per group
// through the resilience pipeline. Groups fetch concurrently; one group's
// failure never cancels or masks another group's success.
package resolve

import (
	"context"
	"sync"

	"github.com/systmms/vaultfetch/internal/cache"
	vferrors "github.com/systmms/vaultfetch/internal/errors"
	"github.com/systmms/vaultfetch/internal/logging"
	"github.com/systmms/vaultfetch/internal/refs"
	"github.com/systmms/vaultfetch/internal/resilience"
	"github.com/systmms/vaultfetch/internal/vault"
)

// ItemFetcher fetches one item with all its fields. *vault.Client satisfies
// it; tests substitute fakes.
type ItemFetcher interface {
	GetItem(ctx context.Context, vaultName, itemName string) (*vault.Item, error)
}

// Outcome is the per-reference result of one resolution cycle. Err is nil
// for a resolved reference; a missing field surfaces as a NotFoundError, a
// failed group fetch as the group's shared error.
type Outcome struct {
	Value string
	Err   error
}

// Resolver coordinates cache, grouping, and the resilience pipeline.
type Resolver struct {
	fetcher       ItemFetcher
	pipeline      *resilience.Pipeline
	cache         *cache.Store
	logger        *logging.Logger
	maxConcurrent int
}

// New creates a resolver. The cache lives as long as the resolver: values
// resolved once are never fetched again in this process.
func New(fetcher ItemFetcher, pipeline *resilience.Pipeline, store *cache.Store, logger *logging.Logger) *Resolver {
	if store == nil {
		store = cache.NewStore()
	}
	if logger == nil {
		logger = logging.New(false, true)
	}
	return &Resolver{
		fetcher:  fetcher,
		pipeline: pipeline,
		cache:    store,
		logger:   logger,
		// Bounds concurrent group fetches so a large batch cannot
		// overwhelm the vault service.
		maxConcurrent: 10,
	}
}

// Resolve resolves a batch of references and returns an outcome for every
// unique reference. Duplicates collapse to a single lookup; cache hits
// short-circuit with no network activity.
func (r *Resolver) Resolve(ctx context.Context, references []refs.Reference) map[refs.Reference]Outcome {
	results := make(map[refs.Reference]Outcome)

	unique := dedup(references)

	var misses []refs.Reference
	for _, ref := range unique {
		if value, ok := r.cache.Get(ref); ok {
			results[ref] = Outcome{Value: value}
			continue
		}
		misses = append(misses, ref)
	}
	if len(misses) == 0 {
		return results
	}

	groups := groupByItem(misses)
	r.logger.Debug("resolving %d references in %d groups (%d cache hits)",
		len(misses), len(groups.order), len(unique)-len(misses))

	var (
		wg        sync.WaitGroup
		resultsMu sync.Mutex
	)
	semaphore := make(chan struct{}, r.maxConcurrent)

	for _, g := range groups.order {
		members := groups.members[g]
		wg.Add(1)
		go func(g refs.Group, members []refs.Reference) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes := r.fetchGroup(ctx, g, members)

			resultsMu.Lock()
			for ref, out := range outcomes {
				results[ref] = out
			}
			resultsMu.Unlock()
		}(g, members)
	}
	wg.Wait()

	return results
}

// fetchGroup issues the single remote fetch for a (vault, item) group and
// demultiplexes the returned fields onto the member references. A group
// failure marks every member with the same error; a field missing from an
// otherwise healthy item fails only its own reference.
func (r *Resolver) fetchGroup(ctx context.Context, g refs.Group, members []refs.Reference) map[refs.Reference]Outcome {
	outcomes := make(map[refs.Reference]Outcome, len(members))

	var item *vault.Item
	err := r.pipeline.Execute(ctx, g.String(), func(ctx context.Context) error {
		fetched, fetchErr := r.fetcher.GetItem(ctx, g.Vault, g.Item)
		if fetchErr != nil {
			return fetchErr
		}
		item = fetched
		return nil
	})

	if err != nil {
		if circuitErr, ok := err.(*vferrors.CircuitOpenError); ok {
			// Record which references never got a network attempt so
			// callers can act on the rest of the batch.
			circuitErr.Unattempted = append(circuitErr.Unattempted, members...)
		}
		r.logger.Debug("group %s failed: %v", g, err)
		for _, ref := range members {
			outcomes[ref] = Outcome{Err: err}
		}
		return outcomes
	}

	for _, ref := range members {
		value, ok := item.FieldValue(ref.Section, ref.Field)
		if !ok {
			outcomes[ref] = Outcome{Err: &vferrors.NotFoundError{
				Kind:  vferrors.KindField,
				Vault: ref.Vault,
				Item:  ref.Item,
				Field: ref.Field,
			}}
			continue
		}
		r.cache.Put(ref, value)
		outcomes[ref] = Outcome{Value: value}
	}
	return outcomes
}

func dedup(references []refs.Reference) []refs.Reference {
	seen := make(map[refs.Reference]struct{}, len(references))
	unique := make([]refs.Reference, 0, len(references))
	for _, ref := range references {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		unique = append(unique, ref)
	}
	return unique
}

// grouping keeps first-appearance order so demultiplexing is deterministic
// once all groups complete.
type grouping struct {
	order   []refs.Group
	members map[refs.Group][]refs.Reference
}

func groupByItem(references []refs.Reference) grouping {
	g := grouping{members: make(map[refs.Group][]refs.Reference)}
	for _, ref := range references {
		key := ref.Group()
		if _, ok := g.members[key]; !ok {
			g.order = append(g.order, key)
		}
		g.members[key] = append(g.members[key], ref)
	}
	return g
}
