package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/prontodb/internal/address"
)

// NewProjectsCommand creates the projects command.
func NewProjectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects with live data",
		Long: `List projects holding at least one live value.

Under a meta context only that tenant's projects are listed, without the
meta prefix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjects(cmd, rootOpts)
		},
	}
}

func runProjects(cmd *cobra.Command, opts *RootOptions) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	projects, err := h.Projects(cmd.Context())
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Lines(projects)
}

// NewNamespacesCommand creates the namespaces command.
func NewNamespacesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "namespaces [project]",
		Aliases: []string{"nss"},
		Short:   "List namespaces of a project",
		Long: `List namespaces of a project holding at least one live value.
TTL-enabled namespaces are followed by a tab and their default TTL.

The project defaults to -p, then the cursor's default project, then
"default".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNamespaces(cmd, rootOpts, optionalArg(args))
		},
	}
}

func runNamespaces(cmd *cobra.Command, opts *RootOptions, project string) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	if project == "" {
		project = opts.Project
	}
	if project == "" {
		project = h.Target().Project
	}
	if project == "" {
		project = address.DefaultSegment
	}

	namespaces, err := h.Namespaces(cmd.Context(), project)
	if err != nil {
		return s.out.Fail(err)
	}

	data := make([]namespaceInfo, 0, len(namespaces))
	lines := make([]string, 0, len(namespaces))
	for _, name := range namespaces {
		ns, ttl, err := h.NamespaceTTL(cmd.Context(), project, name)
		if err != nil {
			return s.out.Fail(err)
		}
		info := namespaceInfo{Namespace: name}
		line := name
		if ttl {
			info.DefaultTTL = int64(ns.DefaultTTL / time.Second)
			line += "\t" + ns.DefaultTTL.String()
		}
		data = append(data, info)
		lines = append(lines, line)
	}

	if s.out.Format == "json" {
		return s.out.Success(data)
	}
	return s.out.Lines(lines)
}

// namespaceInfo is the JSON form of one namespaces entry.
type namespaceInfo struct {
	Namespace  string `json:"namespace"`
	DefaultTTL int64  `json:"default_ttl_seconds,omitempty"`
}
