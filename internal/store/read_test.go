package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Missing(t *testing.T) {
	s := createTestStore(t)

	got, found, err := s.Get(context.Background(), addr("app", "config", "nope"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "", got)
}

func TestGet_AbsentContextMatchesOnlyNull(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, addr("app", "config", "key").WithContext("prod"), "v"))

	_, found, err := s.Get(ctx, addr("app", "config", "key"))
	require.NoError(t, err)
	assert.False(t, found, "absent context is not a wildcard")
}

func TestGet_ExpiredIsReclaimed(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()
	a := addr("app", "cache", "k")

	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", time.Minute))
	require.NoError(t, s.Set(ctx, a, "v"))
	clock.Advance(2 * time.Minute)

	_, found, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, found)

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&rows))
	assert.Equal(t, 0, rows)
}

func TestKeys_OrderedWithContexts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, addr("app", "config", "b"), "1"))
	require.NoError(t, s.Set(ctx, addr("app", "config", "a").WithContext("prod"), "2"))
	require.NoError(t, s.Set(ctx, addr("app", "config", "a"), "3"))
	require.NoError(t, s.Set(ctx, addr("app", "other", "z"), "4"))

	keys, err := s.Keys(ctx, "app", "config", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a__prod", "b"}, keys)
}

func TestKeys_Prefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"user_1", "user_2", "admin", "user%"} {
		require.NoError(t, s.Set(ctx, addr("app", "config", k), "v"))
	}

	keys, err := s.Keys(ctx, "app", "config", "user_")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_1", "user_2"}, keys, "prefix is literal, not a LIKE pattern")

	keys, err = s.Keys(ctx, "app", "config", "missing")
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestScan_SkipsExpiredWithoutDeleting(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", 30*time.Second))
	require.NoError(t, s.Set(ctx, addr("app", "cache", "short"), "1"))
	clock.Advance(20 * time.Second)
	require.NoError(t, s.Set(ctx, addr("app", "cache", "fresh"), "2"))
	clock.Advance(15 * time.Second)

	entries, err := s.Scan(ctx, "app", "cache", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Address.Key)
	assert.Equal(t, "2", entries[0].Value)

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&rows))
	assert.Equal(t, 2, rows, "scan does not reclaim")
}

func TestScan_EntryFields(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, addr("app", "config", "k").WithContext("dev"), "v"))

	entries, err := s.Scan(ctx, "app", "config", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, addr("app", "config", "k").WithContext("dev"), e.Address)
	assert.Equal(t, clock.Now().UTC(), e.CreatedAt)
	assert.False(t, e.Expires())
}

func TestProjectsAndNamespaces_LiveOnly(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, addr("beta", "config", "k"), "v"))
	require.NoError(t, s.Set(ctx, addr("alpha", "config", "k"), "v"))
	require.NoError(t, s.Set(ctx, addr("alpha", "notes", "k"), "v"))
	require.NoError(t, s.CreateTTLNamespace(ctx, "temp", "cache", 10*time.Second))
	require.NoError(t, s.Set(ctx, addr("temp", "cache", "k"), "v"))

	projects, err := s.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "temp"}, projects)

	namespaces, err := s.Namespaces(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "notes"}, namespaces)

	clock.Advance(time.Minute)

	projects, err = s.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, projects, "expired-only project disappears")

	namespaces, err = s.Namespaces(ctx, "temp")
	require.NoError(t, err)
	assert.Empty(t, namespaces, "registered namespace without live rows is not listed")
}

func TestNamespaceTTL_Standard(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.NamespaceTTL(context.Background(), "app", "config")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTTLNamespaces_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTTLNamespace(ctx, "web", "sessions", time.Hour))
	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", time.Minute))

	namespaces, err := s.TTLNamespaces(ctx)
	require.NoError(t, err)
	require.Len(t, namespaces, 2)
	assert.Equal(t, "app", namespaces[0].Project)
	assert.Equal(t, "cache", namespaces[0].Namespace)
	assert.Equal(t, time.Minute, namespaces[0].DefaultTTL)
	assert.Equal(t, "web", namespaces[1].Project)
}
