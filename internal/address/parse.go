package address

import (
	"fmt"
	"strings"
)

// SplitContext separates a trailing context suffix from the final segment
// of input. A marker with nothing after it still counts as a context; only
// a missing marker yields has == false. Markers in earlier segments are
// left alone.
func SplitContext(input, delim string) (base, ctx string, has bool) {
	start := 0
	if i := strings.LastIndex(input, delim); i >= 0 {
		start = i + len(delim)
	}
	final := input[start:]
	idx := strings.LastIndex(final, ContextMarker)
	if idx < 0 {
		return input, "", false
	}
	return input[:start+idx], final[idx+len(ContextMarker):], true
}

// Parse3 parses a 3-layer address, completing omitted segments from
// defaults. More than three segments is an error.
//
// An empty input is accepted only in discovery mode, where it means "the
// default project and namespace, no key filter".
func Parse3(input, delim string, mode Mode, defaults Defaults) (Address3, error) {
	if delim == "" {
		delim = DefaultDelimiter
	}
	if input == "" {
		if mode != ModeDiscovery {
			return Address3{}, &ParseError{Input: input, Reason: "address is empty"}
		}
		a := Address3{Project: defaults.project(), Namespace: defaults.namespace()}
		if err := checkScope(input, delim, a.Project, a.Namespace); err != nil {
			return Address3{}, err
		}
		return a, nil
	}

	base, ctx, hasCtx := SplitContext(input, delim)
	parts := strings.Split(base, delim)

	var a Address3
	switch len(parts) {
	case 1:
		a = Address3{Project: defaults.project(), Namespace: defaults.namespace(), Key: parts[0]}
	case 2:
		if mode == ModeDiscovery {
			a = Address3{Project: parts[0], Namespace: parts[1]}
		} else {
			a = Address3{Project: defaults.project(), Namespace: parts[0], Key: parts[1]}
		}
	case 3:
		a = Address3{Project: parts[0], Namespace: parts[1], Key: parts[2]}
	default:
		return Address3{}, &ParseError{
			Input:  input,
			Reason: fmt.Sprintf("expected at most 3 segments, got %d", len(parts)),
		}
	}

	if hasCtx {
		a = a.WithContext(ctx)
	}
	if err := checkSegments(input, delim, a, mode, false); err != nil {
		return Address3{}, err
	}
	return a, nil
}

// Parse4 parses a 4-layer address. Inputs with fewer than four segments get
// meta "default" and 3-layer defaulting; inputs with more than four fold
// the tail, delimiter-joined, into the key.
func Parse4(input, delim string, mode Mode, defaults Defaults) (Address4, error) {
	if delim == "" {
		delim = DefaultDelimiter
	}
	if input == "" {
		return Address4{}, &ParseError{Input: input, Reason: "address is empty"}
	}

	base, ctx, hasCtx := SplitContext(input, delim)
	parts := strings.Split(base, delim)
	if len(parts) < 4 {
		a3, err := Parse3(input, delim, mode, defaults)
		if err != nil {
			return Address4{}, err
		}
		return Address4{Meta: DefaultSegment, Address3: a3}, nil
	}

	a := Address4{
		Meta: parts[0],
		Address3: Address3{
			Project:   parts[1],
			Namespace: parts[2],
			Key:       strings.Join(parts[3:], delim),
		},
	}
	if hasCtx {
		a.Address3 = a.Address3.WithContext(ctx)
	}
	if a.Meta == "" {
		return Address4{}, &ParseError{Input: input, Reason: "meta is empty"}
	}
	if strings.Contains(a.Meta, ScopeSeparator) {
		return Address4{}, &ParseError{Input: input, Reason: fmt.Sprintf("meta %q cannot contain %q", a.Meta, ScopeSeparator)}
	}
	if err := checkSegments(input, delim, a.Address3, mode, true); err != nil {
		return Address4{}, err
	}
	return a, nil
}

// parse4Lenient rebuilds a 4-layer address under meta "default" from the
// non-empty segments of input. It backs the resolver's catch-all for
// multi-delimiter strings that fail strict parsing.
func parse4Lenient(input, delim string, mode Mode, defaults Defaults) (Address4, error) {
	base, ctx, hasCtx := SplitContext(input, delim)

	var segs []string
	for _, s := range strings.Split(base, delim) {
		if s != "" {
			segs = append(segs, s)
		}
	}

	var a Address3
	switch len(segs) {
	case 0:
		return Address4{}, &ParseError{Input: input, Reason: "address has no segments"}
	case 1:
		a = Address3{Project: defaults.project(), Namespace: defaults.namespace(), Key: segs[0]}
	case 2:
		if mode == ModeDiscovery {
			a = Address3{Project: segs[0], Namespace: segs[1]}
		} else {
			a = Address3{Project: defaults.project(), Namespace: segs[0], Key: segs[1]}
		}
	default:
		a = Address3{Project: segs[0], Namespace: segs[1], Key: strings.Join(segs[2:], delim)}
	}
	if hasCtx {
		a = a.WithContext(ctx)
	}
	if err := checkSegments(input, delim, a, mode, true); err != nil {
		return Address4{}, err
	}
	return Address4{Meta: DefaultSegment, Address3: a}, nil
}

// checkSegments enforces the rules shared by every parsed address.
// folded permits the key to contain the delimiter (4-layer tail folding).
func checkSegments(input, delim string, a Address3, mode Mode, folded bool) error {
	if a.Project == "" {
		return &ParseError{Input: input, Reason: "project is empty"}
	}
	if a.Namespace == "" {
		return &ParseError{Input: input, Reason: "namespace is empty"}
	}
	if err := checkScope(input, delim, a.Project, a.Namespace); err != nil {
		return err
	}
	if mode == ModeKeyAccess && a.Key == "" {
		return &ParseError{Input: input, Reason: "key is empty"}
	}
	if mode == ModeDiscovery && a.Key == "" && a.HasContext {
		return &ParseError{Input: input, Reason: "context suffix requires a key"}
	}
	if !folded && strings.Contains(a.Key, delim) {
		return &ParseError{Input: input, Reason: fmt.Sprintf("key %q cannot contain delimiter %q", a.Key, delim)}
	}
	return nil
}

// checkScope keeps project and namespace single segments, whether they came
// from input or from defaults. A project also may not contain the scope
// separator, or it could pass for another tenant's meta-prefixed project.
func checkScope(input, delim, project, namespace string) error {
	if strings.Contains(project, delim) {
		return &ParseError{Input: input, Reason: fmt.Sprintf("project %q cannot contain delimiter %q", project, delim)}
	}
	if strings.Contains(project, ScopeSeparator) {
		return &ParseError{Input: input, Reason: fmt.Sprintf("project %q cannot contain %q", project, ScopeSeparator)}
	}
	if strings.Contains(namespace, delim) {
		return &ParseError{Input: input, Reason: fmt.Sprintf("namespace %q cannot contain delimiter %q", namespace, delim)}
	}
	return nil
}
