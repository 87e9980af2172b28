package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prontodb/internal/address"
)

func TestSet_ThenGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, addr("app", "config", "key"), "v1"))

	got, found, err := s.Get(ctx, addr("app", "config", "key"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", got)
}

func TestSet_OverwriteKeepsCreatedAt(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()
	a := addr("app", "config", "key")

	require.NoError(t, s.Set(ctx, a, "v1"))
	created := clock.Now().Unix()

	clock.Advance(time.Minute)
	require.NoError(t, s.Set(ctx, a, "v2"))

	entries, err := s.Scan(ctx, "app", "config", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].Value)
	assert.Equal(t, created, entries[0].CreatedAt.Unix())
	assert.Equal(t, clock.Now().Unix(), entries[0].UpdatedAt.Unix())

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSet_EmptyValue(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, addr("app", "config", "empty"), ""))

	got, found, err := s.Get(ctx, addr("app", "config", "empty"))
	require.NoError(t, err)
	assert.True(t, found, "empty value is distinct from a missing value")
	assert.Equal(t, "", got)
}

func TestSet_IncompleteAddress(t *testing.T) {
	s := createTestStore(t)

	err := s.Set(context.Background(), addr("app", "", "key"), "v")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestSet_ContextIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	plain := addr("app", "config", "key")
	prod := plain.WithContext("prod")
	empty := plain.WithContext("")

	require.NoError(t, s.Set(ctx, plain, "base"))
	require.NoError(t, s.Set(ctx, prod, "production"))
	require.NoError(t, s.Set(ctx, empty, "blank"))

	for _, tc := range []struct {
		addr address.Address3
		want string
	}{
		{plain, "base"},
		{prod, "production"},
		{empty, "blank"},
	} {
		got, found, err := s.Get(ctx, tc.addr)
		require.NoError(t, err)
		assert.True(t, found, tc.addr.String())
		assert.Equal(t, tc.want, got, tc.addr.String())
	}

	// Deleting the context row leaves its siblings alone
	removed, err := s.Delete(ctx, prod)
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := s.Get(ctx, plain)
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = s.Get(ctx, empty)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSetWithTTL_RejectedOnStandardNamespace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := addr("app", "config", "key")

	err := s.SetWithTTL(ctx, a, "v", time.Minute)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "TTL not allowed")

	// No partial state
	_, found, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetWithTTL_RejectsSubSecond(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", time.Hour))

	err := s.SetWithTTL(ctx, addr("app", "cache", "k"), "v", 500*time.Millisecond)
	assert.True(t, IsConfigurationError(err))
}

func TestSet_TTLNamespaceDefaultApplies(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()
	a := addr("app", "cache", "session")

	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", 60*time.Second))
	require.NoError(t, s.Set(ctx, a, "token"))

	entries, err := s.Scan(ctx, "app", "cache", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Expires())
	assert.Equal(t, clock.Now().Add(60*time.Second).Unix(), entries[0].ExpiresAt.Unix())

	clock.Advance(59 * time.Second)
	_, found, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.True(t, found)

	clock.Advance(time.Second)
	_, found, err = s.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, found, "value expires exactly at expires_at")
}

func TestSetWithTTL_OverridesDefault(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()
	a := addr("app", "cache", "short")

	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", time.Hour))
	require.NoError(t, s.SetWithTTL(ctx, a, "v", 10*time.Second))

	clock.Advance(11 * time.Second)
	_, found, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSet_RevivesExpiredRow(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()
	a := addr("app", "cache", "k")

	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", 10*time.Second))
	require.NoError(t, s.Set(ctx, a, "old"))

	clock.Advance(time.Minute)
	require.NoError(t, s.Set(ctx, a, "new"))

	entries, err := s.Scan(ctx, "app", "cache", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Value)
	assert.Equal(t, clock.Now().Unix(), entries[0].CreatedAt.Unix(), "expired row is recreated, not updated")
}

func TestDelete_Reports(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := addr("app", "config", "key")

	removed, err := s.Delete(ctx, a)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, s.Set(ctx, a, "v"))

	removed, err = s.Delete(ctx, a)
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete_ExpiredIsAbsent(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()
	a := addr("app", "cache", "k")

	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", 5*time.Second))
	require.NoError(t, s.Set(ctx, a, "v"))
	clock.Advance(10 * time.Second)

	removed, err := s.Delete(ctx, a)
	require.NoError(t, err)
	assert.False(t, removed)

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&rows))
	assert.Equal(t, 0, rows, "expired row reclaimed")
}

func TestCreateTTLNamespace_UpdatesDefault(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", time.Minute))
	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", time.Hour))

	ns, found, err := s.NamespaceTTL(ctx, "app", "cache")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, ns.TTL)
	assert.Equal(t, time.Hour, ns.DefaultTTL)
}

func TestCreateTTLNamespace_DoesNotTouchExistingRows(t *testing.T) {
	s, clock := createTestStoreWithClock(t)
	ctx := context.Background()
	a := addr("app", "cache", "permanent")

	require.NoError(t, s.Set(ctx, a, "v"))
	require.NoError(t, s.CreateTTLNamespace(ctx, "app", "cache", time.Second))

	clock.Advance(time.Hour)
	_, found, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCreateTTLNamespace_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.True(t, IsConfigurationError(s.CreateTTLNamespace(ctx, "", "cache", time.Minute)))
	assert.True(t, IsConfigurationError(s.CreateTTLNamespace(ctx, "app", "cache", 0)))
}
