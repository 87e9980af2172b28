// Package meta folds a tenant scope into the project column.
//
// A cursor with meta context "m" stores user project "p" as "m.p". Nothing
// else in the schema knows about tenants; isolation holds because every read,
// write and delete under an active meta goes through the prefixed form and
// never consults the unprefixed one.
package meta

import (
	"strings"

	"github.com/roach88/prontodb/internal/address"
)

// Separator joins the meta scope and the user project in storage.
const Separator = address.ScopeSeparator

// Transform rewrites addresses for a single tenant. The zero value is the
// identity transform (no active meta).
type Transform struct {
	meta string
}

// New returns the transform for meta m. An empty m yields the identity.
func New(m string) Transform {
	return Transform{meta: m}
}

// FromAddress4 returns the transform named by a's meta segment together with
// the 3-layer remainder. Meta "default" is the unscoped namespace.
func FromAddress4(a address.Address4) (Transform, address.Address3) {
	if a.Meta == address.DefaultSegment {
		return Transform{}, a.Address3
	}
	return New(a.Meta), a.Address3
}

// Meta returns the active tenant scope, or "".
func (t Transform) Meta() string { return t.meta }

// Active reports whether a tenant scope is in effect.
func (t Transform) Active() bool { return t.meta != "" }

// Project maps a user-visible project to its storage form.
func (t Transform) Project(project string) string {
	if !t.Active() {
		return project
	}
	return t.meta + Separator + project
}

// StripProject maps a storage project back to what the tenant sees. ok is
// false when the project does not belong to this tenant.
func (t Transform) StripProject(project string) (string, bool) {
	if !t.Active() {
		return project, true
	}
	rest, found := strings.CutPrefix(project, t.meta+Separator)
	if !found || rest == "" {
		return project, false
	}
	return rest, true
}

// ToStorage rewrites a user-visible address into its storage form.
func (t Transform) ToStorage(a address.Address3) address.Address3 {
	a.Project = t.Project(a.Project)
	return a
}

// ToDisplay is the inverse of ToStorage. Addresses outside the tenant are
// returned unchanged.
func (t Transform) ToDisplay(a address.Address3) address.Address3 {
	a.Project, _ = t.StripProject(a.Project)
	return a
}

// DisplayProjects keeps only this tenant's storage projects, stripped of the
// prefix, preserving order.
func (t Transform) DisplayProjects(projects []string) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		if shown, ok := t.StripProject(p); ok {
			out = append(out, shown)
		}
	}
	return out
}
