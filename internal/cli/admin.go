package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewAdminCommand creates the admin command group.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newTTLNamespacesCommand(rootOpts))
	cmd.AddCommand(NewCreateCacheCommand(rootOpts))

	return cmd
}

// ttlNamespace is the JSON form of a TTL namespace.
type ttlNamespace struct {
	Project    string `json:"project"`
	Namespace  string `json:"namespace"`
	DefaultTTL int64  `json:"default_ttl_seconds"`
	CreatedAt  string `json:"created_at"`
}

func newTTLNamespacesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ttl-namespaces",
		Short: "List TTL-enabled namespaces",
		Long: `List TTL-enabled namespaces with their default TTL, as
project.namespace<TAB>ttl. Under a meta context only that tenant's
namespaces are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTTLNamespaces(cmd, rootOpts)
		},
	}
}

func runTTLNamespaces(cmd *cobra.Command, opts *RootOptions) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.handle()
	if err != nil {
		return s.out.Fail(err)
	}

	namespaces, err := h.TTLNamespaces(cmd.Context())
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		data := make([]ttlNamespace, 0, len(namespaces))
		for _, ns := range namespaces {
			data = append(data, ttlNamespace{
				Project:    ns.Project,
				Namespace:  ns.Namespace,
				DefaultTTL: int64(ns.DefaultTTL / time.Second),
				CreatedAt:  formatTime(ns.CreatedAt),
			})
		}
		return s.out.Success(data)
	}

	lines := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		lines = append(lines, fmt.Sprintf("%s%s%s\t%s", ns.Project, s.db.Delimiter(), ns.Namespace, ns.DefaultTTL))
	}
	return s.out.Lines(lines)
}
