// Package paths locates ProntoDB's data, config and cache directories.
//
// Layout under the data directory:
//
//	<data>/main/pronto.main.prdb        primary database
//	<data>/<name>/pronto.<name>.prdb    named databases
//	<data>/<name>/cursors/              cursor records scoped to a database
//	<data>/cursors/                     legacy flat cursor directory
//
// All mutable state lives under the data directory so that archiving it
// captures everything.
package paths

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	vendor = "odx"
	app    = "prontodb"

	// PrimaryName is the short name of the primary database.
	PrimaryName = "main"

	// EnvDB overrides the primary database path.
	EnvDB = "PRONTO_DB"

	// EnvConfig overrides the config file path.
	EnvConfig = "PRONTO_CONFIG"

	cursorDirName  = "cursors"
	configFileName = "main.conf.yaml"
)

// Paths is the resolved set of base directories and well-known files.
type Paths struct {
	Home       string
	DataDir    string
	ConfigDir  string
	CacheDir   string
	DBPath     string
	ConfigFile string
}

// FromEnv resolves paths from the environment. getenv is usually os.Getenv;
// tests pass a map lookup.
//
// XDG_{DATA,CONFIG,CACHE}_HOME are honoured when set and free of unexpanded
// shell syntax; otherwise the directories fall back to ~/.local/data,
// ~/.local/etc and ~/.cache. PRONTO_DB and PRONTO_CONFIG override the
// primary database and config file.
func FromEnv(getenv func(string) string) (Paths, error) {
	home := getenv("HOME")
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolve home directory: %w", err)
		}
		home = h
	}

	p := FromHome(home)
	if dir, ok := xdgDir(getenv, "XDG_DATA_HOME"); ok {
		p.DataDir = dir
		p.DBPath = ""
		p.DBPath = p.DatabasePath(PrimaryName)
	}
	if dir, ok := xdgDir(getenv, "XDG_CONFIG_HOME"); ok {
		p.ConfigDir = dir
		p.ConfigFile = filepath.Join(dir, configFileName)
	}
	if dir, ok := xdgDir(getenv, "XDG_CACHE_HOME"); ok {
		p.CacheDir = dir
	}

	if db := getenv(EnvDB); db != "" {
		if err := checkSafe(db); err != nil {
			return Paths{}, fmt.Errorf("%s: %w", EnvDB, err)
		}
		p.DBPath = db
	}
	if cfg := getenv(EnvConfig); cfg != "" {
		if err := checkSafe(cfg); err != nil {
			return Paths{}, fmt.Errorf("%s: %w", EnvConfig, err)
		}
		p.ConfigFile = cfg
	}
	return p, nil
}

// FromHome lays out paths under home, ignoring the environment.
func FromHome(home string) Paths {
	p := Paths{
		Home:      home,
		DataDir:   filepath.Join(home, ".local", "data", vendor, app),
		ConfigDir: filepath.Join(home, ".local", "etc", vendor, app),
		CacheDir:  filepath.Join(home, ".cache", vendor, app),
	}
	p.DBPath = p.DatabasePath(PrimaryName)
	p.ConfigFile = filepath.Join(p.ConfigDir, configFileName)
	return p
}

// DatabaseDir is the directory holding database name and its cursors.
func (p Paths) DatabaseDir(name string) string {
	return filepath.Join(p.DataDir, name)
}

// DatabasePath is the default file for database name. The primary database
// honours any PRONTO_DB override already folded into DBPath.
func (p Paths) DatabasePath(name string) string {
	if name == PrimaryName && p.DBPath != "" {
		return p.DBPath
	}
	return filepath.Join(p.DatabaseDir(name), "pronto."+name+".prdb")
}

// CursorDir is the cursor directory scoped to database name.
func (p Paths) CursorDir(name string) string {
	return filepath.Join(p.DatabaseDir(name), cursorDirName)
}

// LegacyCursorDir is the pre-scoping flat cursor directory.
func (p Paths) LegacyCursorDir() string {
	return filepath.Join(p.DataDir, cursorDirName)
}

// EnsureDirs creates the data, config and cache directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.ConfigDir, p.CacheDir} {
		if err := checkSafe(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ErrUnsafePath reports a path still carrying shell expansion syntax.
var ErrUnsafePath = errors.New("path contains unexpanded shell syntax")

func checkSafe(path string) error {
	if strings.Contains(path, "${") {
		return fmt.Errorf("%w: %s", ErrUnsafePath, path)
	}
	return nil
}

func xdgDir(getenv func(string) string, name string) (string, bool) {
	base := getenv(name)
	if base == "" {
		return "", false
	}
	if err := checkSafe(base); err != nil {
		slog.Warn("ignoring malformed environment path", "var", name, "value", base)
		return "", false
	}
	return filepath.Join(base, vendor, app), true
}
