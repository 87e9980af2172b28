package address

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed address. Parse errors are final: the
// resolver never retries an input that produced one, except for the
// documented 4-layer fallback.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
