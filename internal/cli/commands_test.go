package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prontodb/internal/cursor"
	"github.com/roach88/prontodb/internal/paths"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func seedConfig(t *testing.T, e *testEnv) {
	t.Helper()
	e.mustRun(t, "set", "app.config.url", "https://example.com")
	e.mustRun(t, "set", "app.config.url__prod", "https://prod.example.com")
	e.mustRun(t, "set", "app.config.user", "admin")
}

func TestSetGetDel(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, "ok\n", e.mustRun(t, "set", "app.config.key", "v1"))
	assert.Equal(t, "v1\n", e.mustRun(t, "get", "app.config.key"))

	assert.Equal(t, "1\n", e.mustRun(t, "del", "app.config.key"))
	assert.Equal(t, "0\n", e.mustRun(t, "del", "app.config.key"))

	_, errOut, err := e.run(t, "get", "app.config.key")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, GetExitCode(err))
	assert.Contains(t, errOut, "not found or expired")
}

func TestGet_JSON(t *testing.T) {
	e := newTestEnv(t)
	e.mustRun(t, "set", "app.config.key", "v1")

	out := e.mustRun(t, "--format", "json", "get", "app.config.key")
	assert.JSONEq(t, `{"status":"ok","data":{"address":"app.config.key","value":"v1"}}`, out)

	out, _, err := e.run(t, "--format", "json", "get", "app.config.missing")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestSet_InvalidAddress(t *testing.T) {
	e := newTestEnv(t)

	_, errOut, err := e.run(t, "set", "app..key", "v")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "INVALID_ADDRESS")
}

func TestShortAddressesUseFlags(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun(t, "-p", "app", "-n", "config", "set", "key", "v")
	assert.Equal(t, "v\n", e.mustRun(t, "get", "app.config.key"))

	e.mustRun(t, "-p", "app", "set", "other.key", "w")
	assert.Equal(t, "w\n", e.mustRun(t, "get", "app.other.key"))
}

func TestSet_TTL(t *testing.T) {
	e := newTestEnv(t)

	_, errOut, err := e.run(t, "set", "app.config.key", "v", "--ttl", "60")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "TTL not allowed")

	assert.Equal(t, "ok\n", e.mustRun(t, "create-cache", "app.sessions", "--timeout", "3600"))
	e.mustRun(t, "set", "app.sessions.short", "a", "--ttl", "60")
	e.mustRun(t, "set", "app.sessions.long", "b")
	e.mustRun(t, "set", "app.config.key", "c")
	assert.Equal(t, "config\nsessions\t1h0m0s\n", e.mustRun(t, "namespaces", "app"))

	e.clock.Advance(2 * time.Minute)
	_, _, err = e.run(t, "get", "app.sessions.short")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
	assert.Equal(t, "b\n", e.mustRun(t, "get", "app.sessions.long"))

	e.clock.Advance(time.Hour)
	_, _, err = e.run(t, "get", "app.sessions.long")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
}

func TestCreateCache_InvalidNamespace(t *testing.T) {
	e := newTestEnv(t)

	for _, arg := range []string{"app", "app.", ".sessions", "app.sessions.extra"} {
		_, _, err := e.run(t, "create-cache", arg)
		assert.Equal(t, ExitFailure, GetExitCode(err), arg)
	}
}

func TestKeys_Golden(t *testing.T) {
	e := newTestEnv(t)
	seedConfig(t, e)

	out := e.mustRun(t, "keys", "app.config")
	newGolden(t).Assert(t, "keys_text", []byte(out))

	assert.Equal(t, "url\nurl__prod\n", e.mustRun(t, "keys", "app.config.url"))
	assert.Empty(t, e.mustRun(t, "keys", "app.empty"))
}

func TestScan_Golden(t *testing.T) {
	e := newTestEnv(t)
	seedConfig(t, e)

	out := e.mustRun(t, "--format", "json", "scan", "app.config")
	newGolden(t).Assert(t, "scan_json", []byte(out))

	assert.Equal(t, "url__prod=https://prod.example.com\n", e.mustRun(t, "scan", "app.config.url__prod"))
}

func TestProjectsAndNamespaces(t *testing.T) {
	e := newTestEnv(t)
	e.mustRun(t, "set", "app.config.key", "v")
	e.mustRun(t, "set", "app.cache.key", "v")
	e.mustRun(t, "set", "web.config.key", "v")

	assert.Equal(t, "app\nweb\n", e.mustRun(t, "projects"))
	assert.Equal(t, "cache\nconfig\n", e.mustRun(t, "namespaces", "app"))
	assert.Equal(t, "config\n", e.mustRun(t, "-p", "web", "namespaces"))
}

func TestMetaIsolation(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun(t, "cursor", "set", "keeper", "main", "--cursor-meta", "keeper")
	e.mustRun(t, "cursor", "set", "other", "main", "--cursor-meta", "other")

	e.mustRun(t, "set", "app.config.key", "unscoped")
	e.mustRun(t, "--cursor", "keeper", "set", "app.config.key", "scoped")

	assert.Equal(t, "scoped\n", e.mustRun(t, "--cursor", "keeper", "get", "app.config.key"))
	assert.Equal(t, "unscoped\n", e.mustRun(t, "get", "app.config.key"))
	assert.Equal(t, "scoped\n", e.mustRun(t, "get", "keeper.app.config.key"))

	_, _, err := e.run(t, "--cursor", "other", "get", "app.config.key")
	assert.Equal(t, ExitNotFound, GetExitCode(err))

	_, errOut, err := e.run(t, "--cursor", "keeper", "get", "other.app.config.key")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "ISOLATION")

	_, _, err = e.run(t, "--cursor", "keeper", "--meta", "other", "get", "app.config.key")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Equal(t, "app\n", e.mustRun(t, "--cursor", "keeper", "projects"))
	assert.Equal(t, "app\nkeeper.app\n", e.mustRun(t, "projects"))
}

func TestMetaFlag(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun(t, "--meta", "keeper", "set", "app.config.key", "v")
	assert.Equal(t, "v\n", e.mustRun(t, "get", "keeper.app.config.key"))
	assert.Equal(t, "v\n", e.mustRun(t, "--meta", "keeper", "get", "keeper.app.config.key"))

	_, _, err := e.run(t, "--meta", "keeper", "get", "other.app.config.key")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCursorLifecycle(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun(t, "cursor", "set", "work", "work", "--default-project", "app", "--default-namespace", "config")
	e.mustRun(t, "cursor", "set", "keeper", "main", "--cursor-meta", "keeper")

	out := e.mustRun(t, "cursor", "list")
	newGolden(t).Assert(t, "cursor_list_text", []byte(out))

	// Cursor defaults complete short addresses and route to the work database
	e.mustRun(t, "--cursor", "work", "set", "key", "v")
	assert.Equal(t, "v\n", e.mustRun(t, "--cursor", "work", "get", "app.config.key"))
	_, _, err := e.run(t, "get", "app.config.key")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
	assert.Equal(t, "v\n", e.mustRun(t, "--db", "work", "get", "app.config.key"))

	out = e.mustRun(t, "--format", "json", "cursor", "get", "work")
	var resp struct {
		Data cursor.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	p := paths.FromHome(e.home)
	assert.Equal(t, p.DatabasePath("work"), resp.Data.DatabasePath)
	assert.Equal(t, "app", resp.Data.DefaultProject)

	assert.Equal(t, "ok\n", e.mustRun(t, "cursor", "delete", "work"))
	_, _, err = e.run(t, "cursor", "get", "work")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
	_, _, err = e.run(t, "cursor", "delete", "work")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
}

func TestCursor_UnknownFallsBackToPrimary(t *testing.T) {
	e := newTestEnv(t)
	e.mustRun(t, "set", "app.config.key", "v")

	assert.Equal(t, "v\n", e.mustRun(t, "--cursor", "missing", "get", "app.config.key"))
}

func TestCursor_PerUser(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun(t, "--user", "alice", "cursor", "set", "work", "work")
	_, _, err := e.run(t, "--user", "bob", "cursor", "get", "work")
	assert.Equal(t, ExitNotFound, GetExitCode(err))

	out := e.mustRun(t, "--user", "alice", "cursor", "get", "work")
	assert.Contains(t, out, "user: alice")
}

func TestCursorMigrate(t *testing.T) {
	e := newTestEnv(t)
	p := paths.FromHome(e.home)

	legacy := p.LegacyCursorDir()
	require.NoError(t, os.MkdirAll(legacy, 0o755))
	rec := `{"database_path": "` + p.DatabasePath("work") + `", "created_at": "2024-01-01T00:00:00Z", "user": "default"}`
	require.NoError(t, os.WriteFile(filepath.Join(legacy, "old.cursor"), []byte(rec), 0o644))

	assert.Equal(t, "1\n", e.mustRun(t, "cursor", "migrate"))
	assert.Equal(t, "0\n", e.mustRun(t, "cursor", "migrate"))

	_, err := os.Stat(filepath.Join(p.CursorDir("work"), "old.cursor"))
	assert.NoError(t, err)
}

func TestAdminTTLNamespaces_Golden(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun(t, "create-cache", "app.sessions", "--timeout", "3600")
	e.mustRun(t, "create-cache", "web.tokens")
	e.mustRun(t, "--meta", "keeper", "create-cache", "app.cache", "--timeout", "30")

	out := e.mustRun(t, "admin", "ttl-namespaces")
	newGolden(t).Assert(t, "ttl_namespaces_text", []byte(out))

	out = e.mustRun(t, "--format", "json", "--meta", "keeper", "admin", "ttl-namespaces")
	newGolden(t).Assert(t, "ttl_namespaces_meta_json", []byte(out))
}

func TestAdminCreateCache(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, "ok\n", e.mustRun(t, "admin", "create-cache", "app.sessions", "--timeout", "120"))
	e.mustRun(t, "set", "app.sessions.k", "v")

	out := e.mustRun(t, "--format", "json", "namespaces", "app")
	assert.Contains(t, out, `"namespace":"sessions"`)
	assert.Contains(t, out, `"default_ttl_seconds":120`)

	e.clock.Advance(121 * time.Second)
	_, _, err := e.run(t, "get", "app.sessions.k")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
}

func TestNsDelimFlag(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun(t, "--ns-delim", ":", "set", "app:config:key", "v")
	assert.Equal(t, "v\n", e.mustRun(t, "get", "app.config.key"))
	assert.Equal(t, "v\n", e.mustRun(t, "--ns-delim", "/", "get", "app/config/key"))

	_, _, err := e.run(t, "--ns-delim", "_", "projects")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestProjectFlagCannotReachTenant(t *testing.T) {
	e := newTestEnv(t)
	e.mustRun(t, "cursor", "set", "keeper", "main", "--cursor-meta", "keeper")

	_, errOut, err := e.run(t, "-p", "keeper.app", "set", "config.key", "planted")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "INVALID_ADDRESS")

	_, _, err = e.run(t, "--ns-delim", ":", "-p", "keeper.app", "set", "config:key", "planted")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, _, err = e.run(t, "--cursor", "keeper", "get", "app.config.key")
	assert.Equal(t, ExitNotFound, GetExitCode(err))
	assert.Equal(t, "", e.mustRun(t, "--cursor", "keeper", "projects"))

	_, _, err = e.run(t, "cursor", "set", "forged", "main", "--default-project", "keeper.app")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
