package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prontodb/internal/cursor"
)

// CursorSetOptions holds flags for the cursor set command.
type CursorSetOptions struct {
	*RootOptions
	CursorMeta       string
	DefaultProject   string
	DefaultNamespace string
}

// NewCursorCommand creates the cursor command group.
func NewCursorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Manage cursors",
		Long: `Cursors bind a name to a database file, an optional meta context and
optional default project/namespace. Each user has a "default" cursor on the
primary database, created on first use.`,
	}

	cmd.AddCommand(newCursorSetCommand(rootOpts))
	cmd.AddCommand(newCursorGetCommand(rootOpts))
	cmd.AddCommand(newCursorListCommand(rootOpts))
	cmd.AddCommand(newCursorDeleteCommand(rootOpts))
	cmd.AddCommand(newCursorMigrateCommand(rootOpts))

	return cmd
}

func newCursorSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CursorSetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <name> <database>",
		Short: "Create or replace a cursor",
		Long: `Create or replace a cursor. <database> is a database name under the
data directory ("main" is the primary database) or a path to a .prdb file.

Example:
  prontodb cursor set work work
  prontodb cursor set keeper main --cursor-meta keeper`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCursorSet(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.CursorMeta, "cursor-meta", "", "meta context bound to the cursor")
	cmd.Flags().StringVar(&opts.DefaultProject, "default-project", "", "project for short addresses")
	cmd.Flags().StringVar(&opts.DefaultNamespace, "default-namespace", "", "namespace for short addresses")

	return cmd
}

func runCursorSet(cmd *cobra.Command, opts *CursorSetOptions, name, database string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	rec, err := s.db.Cursors().Set(name, s.databasePath(database), s.user, cursor.SetOptions{
		Meta:             opts.CursorMeta,
		DefaultProject:   opts.DefaultProject,
		DefaultNamespace: opts.DefaultNamespace,
	})
	if err != nil {
		return s.out.Fail(err)
	}

	s.out.VerboseLog("cursor %s -> %s", name, rec.DatabasePath)
	if s.out.Format == "json" {
		return s.out.Success(rec)
	}
	return s.out.Success("ok")
}

func newCursorGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [name]",
		Short: "Show a cursor",
		Long:  "Show a cursor (default \"default\"). Exits 2 when it does not exist.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCursorGet(cmd, rootOpts, optionalArg(args))
		},
	}
}

func runCursorGet(cmd *cobra.Command, opts *RootOptions, name string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if name == "" {
		name = cursor.DefaultCursor
	}
	if name == cursor.DefaultCursor {
		if _, err := s.db.Cursors().EnsureDefault(s.user); err != nil {
			return s.out.Fail(err)
		}
	}

	rec, err := s.db.Cursors().Get(name, s.user)
	if errors.Is(err, cursor.ErrNotFound) {
		return s.out.Fail(WrapExitError(ExitNotFound, "cursor get", err))
	}
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(rec)
	}
	return s.out.Lines(describeCursor(name, rec))
}

func describeCursor(name string, rec cursor.Record) []string {
	lines := []string{
		"name: " + name,
		"user: " + rec.User,
		"database: " + rec.DatabasePath,
	}
	if rec.MetaContext != "" {
		lines = append(lines, "meta: "+rec.MetaContext)
	}
	if rec.DefaultProject != "" {
		lines = append(lines, "default project: "+rec.DefaultProject)
	}
	if rec.DefaultNamespace != "" {
		lines = append(lines, "default namespace: "+rec.DefaultNamespace)
	}
	return append(lines, "created: "+formatTime(rec.CreatedAt))
}

func newCursorListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cursors",
		Long:  "List the user's cursors as name, database short name and meta context.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCursorList(cmd, rootOpts)
		},
	}
}

func runCursorList(cmd *cobra.Command, opts *RootOptions) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	cursors := s.db.Cursors()
	if _, err := cursors.EnsureDefault(s.user); err != nil {
		return s.out.Fail(err)
	}
	records, err := cursors.List(s.user)
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(records)
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	slices.Sort(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		rec := records[name]
		fields := []string{name, cursors.ShortName(rec.DatabasePath)}
		if rec.MetaContext != "" {
			fields = append(fields, "meta="+rec.MetaContext)
		}
		lines = append(lines, strings.Join(fields, "\t"))
	}
	return s.out.Lines(lines)
}

func newCursorDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a cursor",
		Long:  "Delete a cursor from every location it is stored in. Exits 2 when it does not exist.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCursorDelete(cmd, rootOpts, args[0])
		},
	}
}

func runCursorDelete(cmd *cobra.Command, opts *RootOptions, name string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := s.db.Cursors().Delete(name, s.user)
	if err != nil {
		return s.out.Fail(err)
	}
	if !removed {
		return s.out.Fail(NewExitError(ExitNotFound, fmt.Sprintf("cursor %q not found", name)))
	}
	return s.out.Success("ok")
}

func newCursorMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [name]",
		Short: "Move legacy cursors into database scopes",
		Long: `Move cursor records from the legacy flat directory into the directory
of the database they point at. Without a name every legacy cursor of the user
is migrated. Prints the number of cursors moved.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCursorMigrate(cmd, rootOpts, optionalArg(args))
		},
	}
}

func runCursorMigrate(cmd *cobra.Command, opts *RootOptions, name string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var moved int
	if name == "" {
		moved, err = s.db.Cursors().MigrateAllLegacy(s.user)
	} else {
		var ok bool
		ok, err = s.db.Cursors().MigrateLegacy(name, s.user)
		if ok {
			moved = 1
		}
	}
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]int{"migrated": moved})
	}
	return s.out.Success(moved)
}
