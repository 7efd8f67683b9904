package resolve

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultfetch/internal/cache"
	vferrors "github.com/systmms/vaultfetch/internal/errors"
	"github.com/systmms/vaultfetch/internal/refs"
	"github.com/systmms/vaultfetch/internal/resilience"
	"github.com/systmms/vaultfetch/internal/vault"
)

// fakeFetcher serves canned items and counts fetches per (vault, item).
type fakeFetcher struct {
	mu    sync.Mutex
	items map[string]*vault.Item
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		items: make(map[string]*vault.Item),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) add(vaultName, itemName string, fields ...vault.Field) {
	f.items[vaultName+"/"+itemName] = &vault.Item{Vault: vaultName, Name: itemName, Fields: fields}
}

func (f *fakeFetcher) fail(vaultName, itemName string, err error) {
	f.errs[vaultName+"/"+itemName] = err
}

func (f *fakeFetcher) GetItem(ctx context.Context, vaultName, itemName string) (*vault.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := vaultName + "/" + itemName
	f.calls[key]++
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if item, ok := f.items[key]; ok {
		return item, nil
	}
	return nil, &vferrors.NotFoundError{Kind: vferrors.KindItem, Vault: vaultName, Item: itemName}
}

func (f *fakeFetcher) callCount(vaultName, itemName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[vaultName+"/"+itemName]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func testOptions() resilience.Options {
	// No retries and no jitter so failures surface immediately.
	return resilience.Options{
		MaxRetries:       0,
		BaseDelay:        time.Millisecond,
		Jitter:           false,
		RequestTimeout:   time.Second,
		FailureThreshold: 100,
		BreakDuration:    time.Minute,
	}
}

func newTestResolver(fetcher ItemFetcher) *Resolver {
	return New(fetcher, resilience.New(testOptions(), nil), nil, nil)
}

func mustParse(t *testing.T, uri string) refs.Reference {
	t.Helper()
	ref, err := refs.Parse(uri)
	require.NoError(t, err)
	return ref
}

func TestResolveGroupsFieldsIntoOneFetch(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1",
		vault.Field{Name: "password", Value: "hunter2"},
		vault.Field{Name: "username", Value: "admin"},
	)
	resolver := newTestResolver(fetcher)

	password := mustParse(t, "vault://vault1/item1/password")
	username := mustParse(t, "vault://vault1/item1/username")

	outcomes := resolver.Resolve(context.Background(), []refs.Reference{password, username})

	require.Len(t, outcomes, 2)
	assert.Equal(t, Outcome{Value: "hunter2"}, outcomes[password])
	assert.Equal(t, Outcome{Value: "admin"}, outcomes[username])
	assert.Equal(t, 1, fetcher.callCount("vault1", "item1"))
}

func TestResolveDeduplicatesReferences(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "hunter2"})
	resolver := newTestResolver(fetcher)

	ref := mustParse(t, "vault://vault1/item1/password")
	batch := []refs.Reference{ref, ref, ref, ref, ref}

	outcomes := resolver.Resolve(context.Background(), batch)

	require.Len(t, outcomes, 1)
	assert.Equal(t, "hunter2", outcomes[ref].Value)
	assert.Equal(t, 1, fetcher.callCount("vault1", "item1"))
}

func TestResolveCacheHitSkipsNetwork(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "hunter2"})
	resolver := newTestResolver(fetcher)

	ref := mustParse(t, "vault://vault1/item1/password")

	first := resolver.Resolve(context.Background(), []refs.Reference{ref})
	require.NoError(t, first[ref].Err)
	assert.Equal(t, 1, fetcher.totalCalls())

	second := resolver.Resolve(context.Background(), []refs.Reference{ref})
	assert.Equal(t, "hunter2", second[ref].Value)
	assert.Equal(t, 1, fetcher.totalCalls(), "cache hit must not refetch")
}

func TestResolveCacheIsFirstWriterWins(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "before-rotation"})
	store := cache.NewStore()
	resolver := New(fetcher, resilience.New(testOptions(), nil), store, nil)

	ref := mustParse(t, "vault://vault1/item1/password")
	first := resolver.Resolve(context.Background(), []refs.Reference{ref})
	assert.Equal(t, "before-rotation", first[ref].Value)

	// The backend rotates the value; this process keeps the original.
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "after-rotation"})
	second := resolver.Resolve(context.Background(), []refs.Reference{ref})
	assert.Equal(t, "before-rotation", second[ref].Value)
}

func TestResolveMissingFieldFailsOnlyThatReference(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "hunter2"})
	resolver := newTestResolver(fetcher)

	password := mustParse(t, "vault://vault1/item1/password")
	missing := mustParse(t, "vault://vault1/item1/no-such-field")

	outcomes := resolver.Resolve(context.Background(), []refs.Reference{password, missing})

	assert.Equal(t, "hunter2", outcomes[password].Value)
	require.Error(t, outcomes[missing].Err)
	var nfErr *vferrors.NotFoundError
	require.ErrorAs(t, outcomes[missing].Err, &nfErr)
	assert.Equal(t, vferrors.KindField, nfErr.Kind)
	assert.Equal(t, "no-such-field", nfErr.Field)
	assert.Equal(t, 1, fetcher.callCount("vault1", "item1"))
}

func TestResolveSectionMustMatchExactly(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1",
		vault.Field{Section: "credentials", Name: "password", Value: "sectioned"},
	)
	resolver := newTestResolver(fetcher)

	sectioned := mustParse(t, "vault://vault1/item1/credentials/password")
	unsectioned := mustParse(t, "vault://vault1/item1/password")

	outcomes := resolver.Resolve(context.Background(), []refs.Reference{sectioned, unsectioned})

	assert.Equal(t, "sectioned", outcomes[sectioned].Value)
	require.Error(t, outcomes[unsectioned].Err)
}

func TestResolveGroupFailureDoesNotMaskOtherGroups(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "hunter2"})
	fetcher.fail("vault1", "item2", &vferrors.TransientError{Status: 503})
	resolver := newTestResolver(fetcher)

	healthy := mustParse(t, "vault://vault1/item1/password")
	broken := mustParse(t, "vault://vault1/item2/password")

	outcomes := resolver.Resolve(context.Background(), []refs.Reference{healthy, broken})

	assert.Equal(t, "hunter2", outcomes[healthy].Value)
	require.Error(t, outcomes[broken].Err)
	var exhausted *vferrors.RetryExhaustedError
	assert.ErrorAs(t, outcomes[broken].Err, &exhausted)
}

func TestResolveGroupFailureMarksAllMembers(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.fail("vault1", "item1", &vferrors.AuthError{Status: 403})
	resolver := newTestResolver(fetcher)

	password := mustParse(t, "vault://vault1/item1/password")
	username := mustParse(t, "vault://vault1/item1/username")

	outcomes := resolver.Resolve(context.Background(), []refs.Reference{password, username})

	require.Error(t, outcomes[password].Err)
	require.Error(t, outcomes[username].Err)
	assert.Equal(t, outcomes[password].Err, outcomes[username].Err)
	assert.Equal(t, 1, fetcher.callCount("vault1", "item1"))
}

func TestResolveOpenBreakerReportsUnattempted(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.FailureThreshold = 1
	fetcher := newFakeFetcher()
	fetcher.fail("vault1", "item1", &vferrors.TransientError{Status: 503})
	resolver := New(fetcher, resilience.New(opts, nil), nil, nil)

	ref := mustParse(t, "vault://vault1/item1/password")

	// First cycle trips the breaker for the group's destination.
	first := resolver.Resolve(context.Background(), []refs.Reference{ref})
	require.Error(t, first[ref].Err)
	callsAfterFirst := fetcher.totalCalls()

	second := resolver.Resolve(context.Background(), []refs.Reference{ref})
	require.Error(t, second[ref].Err)
	var circuitErr *vferrors.CircuitOpenError
	require.ErrorAs(t, second[ref].Err, &circuitErr)
	assert.Contains(t, circuitErr.Unattempted, ref)
	assert.Equal(t, callsAfterFirst, fetcher.totalCalls(), "open breaker must not fetch")
}

func TestResolveEmptyBatch(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(newFakeFetcher())
	outcomes := resolver.Resolve(context.Background(), nil)
	assert.Empty(t, outcomes)
}

func TestResolveManyGroupsConcurrently(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	var batch []refs.Reference
	for _, item := range []string{"a", "b", "c", "d", "e", "f"} {
		fetcher.add("vault1", item, vault.Field{Name: "password", Value: "secret-" + item})
		batch = append(batch, refs.Reference{Vault: "vault1", Item: item, Field: "password"})
	}
	resolver := newTestResolver(fetcher)

	outcomes := resolver.Resolve(context.Background(), batch)

	require.Len(t, outcomes, len(batch))
	for _, ref := range batch {
		require.NoError(t, outcomes[ref].Err)
		assert.Equal(t, "secret-"+ref.Item, outcomes[ref].Value)
		assert.Equal(t, 1, fetcher.callCount("vault1", ref.Item))
	}
}

func TestResolveAll(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1",
		vault.Field{Name: "password", Value: "hunter2"},
		vault.Field{Name: "username", Value: "admin"},
	)
	resolver := newTestResolver(fetcher)

	report, err := resolver.ResolveAll(context.Background(), []string{
		"vault://vault1/item1/password",
		"vault://vault1/item1/username",
		"vault://vault1/item1/password", // duplicate URI
	})
	require.NoError(t, err)

	assert.True(t, report.Ok())
	assert.Equal(t, "hunter2", report.Resolved["vault://vault1/item1/password"])
	assert.Equal(t, "admin", report.Resolved["vault://vault1/item1/username"])
	assert.Equal(t, 1, fetcher.callCount("vault1", "item1"))
}

func TestResolveAllFailsFastOnMalformedURI(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "hunter2"})
	resolver := newTestResolver(fetcher)

	report, err := resolver.ResolveAll(context.Background(), []string{
		"vault://vault1/item1/password",
		"vault://vault1//password",
	})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "vault://vault1//password")
	assert.Equal(t, 0, fetcher.totalCalls(), "malformed batch must not fetch")
}

func TestResolveAllPartialFailure(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.add("vault1", "item1", vault.Field{Name: "password", Value: "hunter2"})
	resolver := newTestResolver(fetcher)

	report, err := resolver.ResolveAll(context.Background(), []string{
		"vault://vault1/item1/password",
		"vault://vault1/missing-item/password",
	})
	require.NoError(t, err)

	assert.False(t, report.Ok())
	assert.Equal(t, "hunter2", report.Resolved["vault://vault1/item1/password"])
	require.Contains(t, report.Errors, "vault://vault1/missing-item/password")
	var nfErr *vferrors.NotFoundError
	assert.ErrorAs(t, report.Errors["vault://vault1/missing-item/password"], &nfErr)
}
