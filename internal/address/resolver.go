package address

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Layer identifies which address shape a resolution produced.
type Layer int

const (
	LayerThree Layer = 3
	LayerFour  Layer = 4
)

func (l Layer) String() string {
	return fmt.Sprintf("%d-layer", int(l))
}

// Resolved is the outcome of resolving one user-supplied address.
// Exactly one of Three and Four is meaningful, chosen by Layer.
type Resolved struct {
	Layer Layer
	Three Address3
	Four  Address4
}

// Address returns the project.namespace.key part regardless of layer.
func (r Resolved) Address() Address3 {
	if r.Layer == LayerFour {
		return r.Four.Address3
	}
	return r.Three
}

// Meta returns the tenant scope, or "" for a 3-layer resolution.
func (r Resolved) Meta() string {
	if r.Layer == LayerFour {
		return r.Four.Meta
	}
	return ""
}

// Format renders the resolution in its own layer's canonical form.
func (r Resolved) Format(delim string) string {
	if r.Layer == LayerFour {
		return r.Four.Format(delim)
	}
	return r.Three.Format(delim)
}

// SelectLayer picks the address layer for input. An explicit meta override
// or three or more delimiters select the 4-layer form.
func SelectLayer(input, delim string, metaOverride bool) Layer {
	if delim == "" {
		delim = DefaultDelimiter
	}
	if metaOverride || strings.Count(input, delim) >= 3 {
		return LayerFour
	}
	return LayerThree
}

// Resolver turns user input into a concrete address.
//
// Project and Namespace complete short addresses (a cursor's defaults,
// typically). Meta is an explicit tenant override; when set, every
// resolution is 4-layer.
type Resolver struct {
	Delimiter string
	Project   string
	Namespace string
	Meta      string
}

func (r Resolver) delimiter() string {
	if r.Delimiter == "" {
		return DefaultDelimiter
	}
	return r.Delimiter
}

// Resolve parses input for the given mode. Input is NFC-normalized first so
// that visually identical addresses map to the same row.
//
// A multi-delimiter input that fails strict 4-layer parsing (an empty
// segment, say) is re-read under meta "default" from its non-empty
// segments. An explicit 4-layer meta that disagrees with the override is
// rejected.
func (r Resolver) Resolve(input string, mode Mode) (Resolved, error) {
	delim := r.delimiter()
	input = norm.NFC.String(input)
	defaults := Defaults{Project: r.Project, Namespace: r.Namespace}
	if r.Meta != "" && (strings.Contains(r.Meta, delim) || strings.Contains(r.Meta, ScopeSeparator)) {
		return Resolved{}, &ParseError{Input: input, Reason: fmt.Sprintf("meta override %q is not a single segment", r.Meta)}
	}

	if SelectLayer(input, delim, r.Meta != "") == LayerThree {
		a, err := Parse3(input, delim, mode, defaults)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Layer: LayerThree, Three: a}, nil
	}

	if strings.Count(input, delim) < 3 {
		a, err := Parse3(input, delim, mode, defaults)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Layer: LayerFour, Four: Address4{Meta: r.Meta, Address3: a}}, nil
	}

	a4, err := Parse4(input, delim, mode, defaults)
	if err != nil {
		if r.Meta != "" {
			return Resolved{}, err
		}
		a4, err = parse4Lenient(input, delim, mode, defaults)
		if err != nil {
			return Resolved{}, err
		}
	}
	if r.Meta != "" && a4.Meta != r.Meta {
		return Resolved{}, &ParseError{
			Input:  input,
			Reason: fmt.Sprintf("meta %q conflicts with meta override %q", a4.Meta, r.Meta),
		}
	}
	return Resolved{Layer: LayerFour, Four: a4}, nil
}
