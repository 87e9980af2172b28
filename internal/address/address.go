package address

import (
	"strings"
)

const (
	// DefaultDelimiter separates address segments unless configured otherwise.
	DefaultDelimiter = "."

	// ContextMarker introduces the context suffix on the final segment.
	ContextMarker = "__"

	// DefaultSegment fills any omitted meta, project or namespace segment.
	DefaultSegment = "default"

	// ScopeSeparator joins a meta scope to a project in storage. It is fixed
	// regardless of the configured delimiter, so neither a meta nor a
	// project may contain it.
	ScopeSeparator = "."
)

// Mode tells the parser how to read a two-segment 3-layer address.
type Mode int

const (
	// ModeKeyAccess reads "a.b" as namespace.key (get/set/delete).
	ModeKeyAccess Mode = iota

	// ModeDiscovery reads "a.b" as project.namespace with an empty key
	// (keys/scan).
	ModeDiscovery
)

func (m Mode) String() string {
	switch m {
	case ModeKeyAccess:
		return "key-access"
	case ModeDiscovery:
		return "discovery"
	default:
		return "unknown"
	}
}

// Defaults supplies project and namespace for addresses that omit them.
// Empty fields fall back to DefaultSegment.
type Defaults struct {
	Project   string
	Namespace string
}

// Validate rejects defaults that would add segments to the addresses they
// complete: a project containing delim or ScopeSeparator, or a namespace
// containing delim. Empty fields are fine.
func (d Defaults) Validate(delim string) error {
	if delim == "" {
		delim = DefaultDelimiter
	}
	input := d.Project + delim + d.Namespace
	return checkScope(input, delim, d.Project, d.Namespace)
}

func (d Defaults) project() string {
	if d.Project == "" {
		return DefaultSegment
	}
	return d.Project
}

func (d Defaults) namespace() string {
	if d.Namespace == "" {
		return DefaultSegment
	}
	return d.Namespace
}

// Address3 is a resolved project.namespace.key address.
//
// HasContext distinguishes an absent context from a present but empty one:
// "k__" carries an empty context and is a different row than "k".
type Address3 struct {
	Project    string
	Namespace  string
	Key        string
	Context    string
	HasContext bool
}

// New3 builds a context-less Address3.
func New3(project, namespace, key string) Address3 {
	return Address3{Project: project, Namespace: namespace, Key: key}
}

// WithContext returns a copy of a carrying the given context.
func (a Address3) WithContext(ctx string) Address3 {
	a.Context = ctx
	a.HasContext = true
	return a
}

// WithoutContext returns a copy of a with the context cleared.
func (a Address3) WithoutContext() Address3 {
	a.Context = ""
	a.HasContext = false
	return a
}

// Format joins the segments with delim and appends the context suffix.
func (a Address3) Format(delim string) string {
	return appendContext(strings.Join([]string{a.Project, a.Namespace, a.Key}, delim), a.Context, a.HasContext)
}

// KeyWithContext renders key[__context], the form used in listings.
func (a Address3) KeyWithContext() string {
	return appendContext(a.Key, a.Context, a.HasContext)
}

func (a Address3) String() string {
	return a.Format(DefaultDelimiter)
}

// Address4 is a resolved meta.project.namespace.key address. The embedded
// Address3 holds everything below the tenant scope.
type Address4 struct {
	Meta string
	Address3
}

// New4 builds a context-less Address4.
func New4(meta, project, namespace, key string) Address4 {
	return Address4{Meta: meta, Address3: New3(project, namespace, key)}
}

// WithContext returns a copy of a carrying the given context.
func (a Address4) WithContext(ctx string) Address4 {
	a.Address3 = a.Address3.WithContext(ctx)
	return a
}

// Format joins all four segments with delim and appends the context suffix.
func (a Address4) Format(delim string) string {
	return a.Meta + delim + a.Address3.Format(delim)
}

// Display drops the meta segment, for surfaces that must look 3-layer
// while storage keeps the tenant scope.
func (a Address4) Display(delim string) string {
	return a.Address3.Format(delim)
}

func (a Address4) String() string {
	return a.Format(DefaultDelimiter)
}

func appendContext(base, ctx string, has bool) string {
	if !has {
		return base
	}
	return base + ContextMarker + ctx
}
