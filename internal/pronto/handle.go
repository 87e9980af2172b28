package pronto

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/prontodb/internal/address"
	"github.com/roach88/prontodb/internal/cursor"
	"github.com/roach88/prontodb/internal/meta"
	"github.com/roach88/prontodb/internal/store"
)

// Target describes what a Handle is bound to.
type Target struct {
	Path      string
	Cursor    string
	User      string
	Meta      string
	Project   string
	Namespace string
}

// Overrides are per-invocation address defaults, typically from flags.
type Overrides struct {
	Project   string
	Namespace string
	Meta      string
}

// Handle performs operations against one database, applying the bound
// cursor's meta context and defaults.
type Handle struct {
	st       *store.Store
	target   Target
	tr       meta.Transform
	resolver address.Resolver
}

// Target returns the binding of h.
func (h *Handle) Target() Target {
	return h.target
}

// With returns a copy of h using o for address defaults. A meta override
// scopes the copy to that tenant; one that differs from an active cursor
// meta is refused with ErrIsolation. Project and namespace overrides must
// be single segments.
func (h *Handle) With(o Overrides) (*Handle, error) {
	d := address.Defaults{Project: o.Project, Namespace: o.Namespace}
	if err := d.Validate(h.resolver.Delimiter); err != nil {
		return nil, err
	}
	if o.Meta != "" && o.Meta != address.DefaultSegment {
		if err := cursor.ValidateMeta(o.Meta); err != nil {
			return nil, err
		}
	}

	c := *h
	if o.Project != "" {
		c.resolver.Project = o.Project
	}
	if o.Namespace != "" {
		c.resolver.Namespace = o.Namespace
	}
	if o.Meta != "" {
		if h.tr.Active() && o.Meta != h.tr.Meta() {
			return nil, fmt.Errorf("%w: meta override %q on cursor scoped to %q", ErrIsolation, o.Meta, h.tr.Meta())
		}
		c.resolver.Meta = o.Meta
		if o.Meta != address.DefaultSegment {
			c.tr = meta.New(o.Meta)
			c.target.Meta = o.Meta
		}
	}
	return &c, nil
}

// Set stores value at the address named by input.
func (h *Handle) Set(ctx context.Context, input, value string) error {
	a, err := h.resolve(input, address.ModeKeyAccess)
	if err != nil {
		return err
	}
	return h.st.Set(ctx, a, value)
}

// SetWithTTL stores value at input expiring after ttl. The namespace must
// be TTL-enabled.
func (h *Handle) SetWithTTL(ctx context.Context, input, value string, ttl time.Duration) error {
	a, err := h.resolve(input, address.ModeKeyAccess)
	if err != nil {
		return err
	}
	return h.st.SetWithTTL(ctx, a, value, ttl)
}

// Get returns the value at input. found distinguishes a missing value from
// an empty one.
func (h *Handle) Get(ctx context.Context, input string) (value string, found bool, err error) {
	a, err := h.resolve(input, address.ModeKeyAccess)
	if err != nil {
		return "", false, err
	}
	return h.st.Get(ctx, a)
}

// Delete removes the value at input and reports whether it existed.
func (h *Handle) Delete(ctx context.Context, input string) (bool, error) {
	a, err := h.resolve(input, address.ModeKeyAccess)
	if err != nil {
		return false, err
	}
	return h.st.Delete(ctx, a)
}

// Keys lists live keys under the discovery address input
// ("project.namespace[.prefix]"), rendered key[__context]. A context suffix
// restricts results to that context.
func (h *Handle) Keys(ctx context.Context, input string) ([]string, error) {
	a, err := h.resolve(input, address.ModeDiscovery)
	if err != nil {
		return nil, err
	}
	if !a.HasContext {
		return h.st.Keys(ctx, a.Project, a.Namespace, a.Key)
	}

	entries, err := h.filter(ctx, a)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Address.KeyWithContext())
	}
	return keys, nil
}

// Scan returns live entries under the discovery address input. A context
// suffix restricts results to that context. Entry addresses are in display
// form.
func (h *Handle) Scan(ctx context.Context, input string) ([]store.Entry, error) {
	a, err := h.resolve(input, address.ModeDiscovery)
	if err != nil {
		return nil, err
	}
	return h.filter(ctx, a)
}

// filter scans storage address a, keeping only a's context when it has one.
func (h *Handle) filter(ctx context.Context, a address.Address3) ([]store.Entry, error) {
	entries, err := h.st.Scan(ctx, a.Project, a.Namespace, a.Key)
	if err != nil {
		return nil, err
	}

	out := entries[:0]
	for _, e := range entries {
		if a.HasContext && (!e.Address.HasContext || e.Address.Context != a.Context) {
			continue
		}
		e.Address = h.tr.ToDisplay(e.Address)
		out = append(out, e)
	}
	return out, nil
}

// CreateTTLNamespace marks (project, namespace) as TTL-enabled with the
// given default TTL.
func (h *Handle) CreateTTLNamespace(ctx context.Context, project, namespace string, defaultTTL time.Duration) error {
	if err := h.checkScope(project, namespace); err != nil {
		return err
	}
	return h.st.CreateTTLNamespace(ctx, h.tr.Project(project), namespace, defaultTTL)
}

// NamespaceTTL reports whether (project, namespace) is TTL-enabled.
func (h *Handle) NamespaceTTL(ctx context.Context, project, namespace string) (store.Namespace, bool, error) {
	if err := h.checkScope(project, namespace); err != nil {
		return store.Namespace{}, false, err
	}
	ns, found, err := h.st.NamespaceTTL(ctx, h.tr.Project(project), namespace)
	if err != nil || !found {
		return store.Namespace{}, found, err
	}
	ns.Project = project
	return ns, true, nil
}

// Projects lists projects with live data. Under a meta context only that
// tenant's projects are listed, unprefixed.
func (h *Handle) Projects(ctx context.Context) ([]string, error) {
	projects, err := h.st.Projects(ctx)
	if err != nil {
		return nil, err
	}
	return h.tr.DisplayProjects(projects), nil
}

// Namespaces lists namespaces of project with live data.
func (h *Handle) Namespaces(ctx context.Context, project string) ([]string, error) {
	if err := h.checkScope(project, ""); err != nil {
		return nil, err
	}
	return h.st.Namespaces(ctx, h.tr.Project(project))
}

// TTLNamespaces lists TTL-enabled namespaces visible to h.
func (h *Handle) TTLNamespaces(ctx context.Context) ([]store.Namespace, error) {
	all, err := h.st.TTLNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.Namespace, 0, len(all))
	for _, ns := range all {
		shown, ok := h.tr.StripProject(ns.Project)
		if !ok {
			continue
		}
		ns.Project = shown
		out = append(out, ns)
	}
	return out, nil
}

// checkScope rejects a project or namespace argument that spans segments.
func (h *Handle) checkScope(project, namespace string) error {
	return address.Defaults{Project: project, Namespace: namespace}.Validate(h.resolver.Delimiter)
}

// resolve parses input and maps it to its storage address.
//
// A 4-layer address selects its own tenant on an unscoped handle. On a
// meta-scoped handle it must name the handle's tenant; meta "default" (the
// unscoped namespace) is refused like any other tenant.
func (h *Handle) resolve(input string, mode address.Mode) (address.Address3, error) {
	res, err := h.resolver.Resolve(input, mode)
	if err != nil {
		return address.Address3{}, err
	}
	if res.Layer == address.LayerThree {
		return h.tr.ToStorage(res.Three), nil
	}

	named, rest := meta.FromAddress4(res.Four)
	if h.tr.Active() {
		if named.Meta() != h.tr.Meta() {
			return address.Address3{}, fmt.Errorf("%w: address %q names tenant %q on cursor scoped to %q",
				ErrIsolation, input, res.Four.Meta, h.tr.Meta())
		}
		return h.tr.ToStorage(rest), nil
	}
	return named.ToStorage(rest), nil
}
