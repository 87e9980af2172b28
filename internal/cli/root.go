package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prontodb/internal/config"
	"github.com/roach88/prontodb/internal/cursor"
	"github.com/roach88/prontodb/internal/paths"
	"github.com/roach88/prontodb/internal/pronto"
	"github.com/roach88/prontodb/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Cursor    string
	User      string
	Meta      string
	Project   string
	Namespace string
	Database  string
	Config    string
	Delimiter string

	getenv func(string) string
	clock  store.Clock
	level  *slog.LevelVar
}

// Option customizes the root command.
type Option func(*RootOptions)

// WithGetenv replaces os.Getenv for path and config resolution.
func WithGetenv(getenv func(string) string) Option {
	return func(o *RootOptions) { o.getenv = getenv }
}

// WithClock drives store timestamps and expiry from c.
func WithClock(c store.Clock) Option {
	return func(o *RootOptions) { o.clock = c }
}

// WithLogLevel lets commands raise or lower the level of the installed
// log handler once flags and config are known.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(o *RootOptions) { o.level = level }
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the prontodb CLI.
func NewRootCommand(options ...Option) *cobra.Command {
	opts := &RootOptions{getenv: os.Getenv}
	for _, o := range options {
		o(opts)
	}

	cmd := &cobra.Command{
		Use:   "prontodb",
		Short: "ProntoDB - addressable key-value store",
		Long: `A key-value store addressed as project.namespace.key[__context].

Addresses with three or more delimiters carry a leading meta context
(meta.project.namespace.key) that scopes data to a tenant. Cursors bind a
name to a database file plus optional meta context and defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Cursor, "cursor", "", "cursor to operate through (default \"default\")")
	pf.StringVar(&opts.User, "user", "", "cursor owner (default from config)")
	pf.StringVar(&opts.Meta, "meta", "", "meta context for this invocation")
	pf.StringVarP(&opts.Project, "project", "p", "", "default project for short addresses")
	pf.StringVarP(&opts.Namespace, "namespace", "n", "", "default namespace for short addresses")
	pf.StringVar(&opts.Database, "db", "", "database name or .prdb path, bypassing cursors")
	pf.StringVar(&opts.Config, "config", "", "config file path")
	pf.StringVar(&opts.Delimiter, "ns-delim", "", "address delimiter for this invocation (default from config)")

	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewDelCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewCreateCacheCommand(opts))
	cmd.AddCommand(NewProjectsCommand(opts))
	cmd.AddCommand(NewNamespacesCommand(opts))
	cmd.AddCommand(NewCursorCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// session is the per-invocation state shared by commands.
type session struct {
	opts  *RootOptions
	paths paths.Paths
	cfg   config.Config
	user  string
	db    *pronto.DB
	out   *OutputFormatter
}

// openSession resolves paths and config and opens the facade. Callers must
// Close the session.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	out := &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}

	p, err := paths.FromEnv(o.getenv)
	if err != nil {
		return nil, out.Fail(WrapExitError(ExitFailure, "resolve paths", err))
	}

	cfgPath := p.ConfigFile
	if o.Config != "" {
		cfgPath = o.Config
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, out.Fail(WrapExitError(ExitFailure, "load config", err))
	}

	if o.level != nil {
		if o.Verbose {
			o.level.Set(slog.LevelDebug)
		} else {
			o.level.Set(cfg.Level())
		}
	}

	// PRONTO_DB beats the config file.
	if cfg.Database != "" && o.getenv(paths.EnvDB) == "" {
		p.DBPath = cfg.Database
	}

	user := o.User
	if user == "" {
		user = cfg.DefaultUser
	}
	if err := cursor.ValidateUser(user); err != nil {
		return nil, out.Fail(err)
	}

	delim := cfg.Delimiter
	if o.Delimiter != "" {
		delim = o.Delimiter
	}

	db, err := pronto.Open(pronto.Config{
		Paths:       p,
		Delimiter:   delim,
		BusyTimeout: cfg.BusyTimeout(),
		Clock:       o.clock,
		Logger:      slog.Default(),
	})
	if err != nil {
		return nil, out.Fail(err)
	}

	slog.Debug("session opened", "db", p.DBPath, "config", cfgPath, "user", user)
	return &session{opts: o, paths: p, cfg: cfg, user: user, db: db, out: out}, nil
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// handle binds the session to --db or the selected cursor, then applies
// the -p/-n/--meta overrides.
func (s *session) handle() (*pronto.Handle, error) {
	var (
		h   *pronto.Handle
		err error
	)
	if s.opts.Database != "" {
		h, err = s.db.Database(s.databasePath(s.opts.Database))
	} else {
		h, err = s.db.Cursor(s.opts.Cursor, s.user)
	}
	if err != nil {
		return nil, err
	}
	return h.With(pronto.Overrides{
		Project:   s.opts.Project,
		Namespace: s.opts.Namespace,
		Meta:      s.opts.Meta,
	})
}

// databasePath maps a --db value to a file: bare names select a database
// under the data directory, anything path-like is used as given.
func (s *session) databasePath(v string) string {
	if strings.ContainsRune(v, filepath.Separator) || strings.HasSuffix(v, ".prdb") {
		return v
	}
	return s.paths.DatabasePath(v)
}
