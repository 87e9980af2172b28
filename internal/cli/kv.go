package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/prontodb/internal/store"
)

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	TTL int
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <address> <value>",
		Short: "Store a value",
		Long: `Store a value at an address.

Short addresses are completed from -p/-n or the cursor's defaults:
  key                    default.default.key
  namespace.key          default.namespace.key
  project.namespace.key
  meta.project.namespace.key

--ttl is only accepted in namespaces created with create-cache.

Example:
  prontodb set app.config.url https://example.com
  prontodb set app.sessions.abc token --ttl 300`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&opts.TTL, "ttl", 0, "expire after SECONDS (TTL namespaces only)")

	return cmd
}

func runSet(cmd *cobra.Command, opts *SetOptions, input, value string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	if cmd.Flags().Changed("ttl") {
		err = h.SetWithTTL(cmd.Context(), input, value, time.Duration(opts.TTL)*time.Second)
	} else {
		err = h.Set(cmd.Context(), input, value)
	}
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]string{"address": input})
	}
	return s.out.Success("ok")
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <address>",
		Short: "Print a value",
		Long: `Print the value stored at an address.

Exits 2 when the value is missing or expired.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, rootOpts, args[0])
		},
	}
}

func runGet(cmd *cobra.Command, opts *RootOptions, input string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	value, found, err := h.Get(cmd.Context(), input)
	if err != nil {
		return s.out.Fail(err)
	}
	if !found {
		return s.out.Fail(NewExitError(ExitNotFound, fmt.Sprintf("%s: not found or expired", input)))
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]string{"address": input, "value": value})
	}
	return s.out.Success(value)
}

// NewDelCommand creates the del command.
func NewDelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "del <address>",
		Aliases: []string{"delete"},
		Short:   "Delete a value",
		Long:    "Delete the value at an address and print how many values were removed (0 or 1).",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDel(cmd, rootOpts, args[0])
		},
	}
}

func runDel(cmd *cobra.Command, opts *RootOptions, input string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	removed, err := h.Delete(cmd.Context(), input)
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]bool{"deleted": removed})
	}
	if removed {
		return s.out.Success(1)
	}
	return s.out.Success(0)
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "keys [project.namespace[.prefix]]",
		Aliases: []string{"ls"},
		Short:   "List keys",
		Long: `List live keys in a namespace, optionally filtered by key prefix.

Keys with a context are printed as key__context. Without an argument the
cursor's default project and namespace are listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(cmd, rootOpts, optionalArg(args))
		},
	}
}

func runKeys(cmd *cobra.Command, opts *RootOptions, input string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	keys, err := h.Keys(cmd.Context(), input)
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Lines(keys)
}

// scanEntry is the JSON form of one scanned value.
type scanEntry struct {
	Project   string `json:"project"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Context   string `json:"context,omitempty"`
	Value     string `json:"value"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func newScanEntry(e store.Entry) scanEntry {
	out := scanEntry{
		Project:   e.Address.Project,
		Namespace: e.Address.Namespace,
		Key:       e.Address.Key,
		Context:   e.Address.Context,
		Value:     e.Value,
		CreatedAt: formatTime(e.CreatedAt),
		UpdatedAt: formatTime(e.UpdatedAt),
	}
	if e.Expires() {
		out.ExpiresAt = formatTime(e.ExpiresAt)
	}
	return out
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [project.namespace[.prefix][__context]]",
		Short: "List keys with their values",
		Long: `List live key/value pairs in a namespace.

A __context suffix restricts the listing to that context. Text output is
key[__context]=value, one per line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, rootOpts, optionalArg(args))
		},
	}
}

func runScan(cmd *cobra.Command, opts *RootOptions, input string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	entries, err := h.Scan(cmd.Context(), input)
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		data := make([]scanEntry, 0, len(entries))
		for _, e := range entries {
			data = append(data, newScanEntry(e))
		}
		return s.out.Success(data)
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Address.KeyWithContext()+"="+e.Value)
	}
	return s.out.Lines(lines)
}

// CreateCacheOptions holds flags for the create-cache command.
type CreateCacheOptions struct {
	*RootOptions
	Timeout int
}

// NewCreateCacheCommand creates the create-cache command.
func NewCreateCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateCacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create-cache <project.namespace>",
		Short: "Create a TTL namespace",
		Long: `Mark a namespace as TTL-enabled. Values set there expire after
--timeout seconds unless set with their own --ttl.

Example:
  prontodb create-cache app.sessions --timeout 3600`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateCache(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Timeout, "timeout", 60, "default TTL in SECONDS")

	return cmd
}

func runCreateCache(cmd *cobra.Command, opts *CreateCacheOptions, input string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	project, namespace, ok := strings.Cut(input, s.db.Delimiter())
	if !ok || project == "" || namespace == "" || strings.Contains(namespace, s.db.Delimiter()) {
		return s.out.Fail(NewExitError(ExitFailure,
			fmt.Sprintf("invalid namespace %q: use project%snamespace", input, s.db.Delimiter())))
	}
	if opts.Timeout < 1 {
		return s.out.Fail(NewExitError(ExitFailure, "timeout must be at least 1 second"))
	}

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	ttl := time.Duration(opts.Timeout) * time.Second
	if err := h.CreateTTLNamespace(cmd.Context(), project, namespace, ttl); err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]string{
			"project":     project,
			"namespace":   namespace,
			"default_ttl": strconv.Itoa(opts.Timeout) + "s",
		})
	}
	return s.out.Success("ok")
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
