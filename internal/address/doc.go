// Package address parses, formats and resolves ProntoDB addresses.
//
// An address names a single value in the store:
//
//	[meta.]project.namespace.key[__context]
//
// Two layers exist:
//   - Address3: project.namespace.key, the shape users normally type
//   - Address4: meta.project.namespace.key, where meta is a tenant scope
//
// The delimiter is configurable (default "."). The context suffix is
// introduced by the reserved marker "__" on the final segment and is part
// of the value's identity: "k" and "k__prod" are different values.
//
// # Defaulting
//
// Short addresses are completed from caller-supplied defaults, falling back
// to the literal "default":
//
//	key            -> default.default.key
//	ns.key         -> default.ns.key      (key access)
//	project.ns     -> project.ns.""       (discovery, no key filter)
//	project.ns.key -> as written
//
// # Resolution
//
// Resolver picks the layer from the number of delimiters and any explicit
// meta override, then applies the defaulting rules for that layer. Layer
// selection (SelectLayer) and segment defaulting (Parse3, Parse4) are
// separate pure functions.
package address
