package cursor

import (
	"fmt"

	"golang.org/x/text/cases"
)

// MaxUserLength bounds user names.
const MaxUserLength = 32

// MaxNameLength bounds cursor names and meta contexts.
const MaxNameLength = 64

var reservedWords = []string{
	"default", "pronto", "prontodb", "pdb", "main", "rust", "user", "name",
	"config", "cache", "data", "temp", "tmp", "system", "admin", "root",
	"database", "db", "storage", "cursor", "meta", "namespace", "project",
}

var reserved = func() map[string]struct{} {
	fold := cases.Fold()
	m := make(map[string]struct{}, len(reservedWords))
	for _, w := range reservedWords {
		m[fold.String(w)] = struct{}{}
	}
	return m
}()

// ValidationError reports a rejected user, cursor or meta name.
type ValidationError struct {
	Kind   string
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Kind, e.Name, e.Reason)
}

// ValidateName checks that name is a non-reserved ASCII identifier of at
// most maxLen characters that does not start with a digit. Reserved words
// are matched case-insensitively.
func ValidateName(kind, name string, maxLen int) error {
	if name == "" {
		return &ValidationError{Kind: kind, Name: name, Reason: "cannot be empty"}
	}
	if maxLen > 0 && len(name) > maxLen {
		return &ValidationError{Kind: kind, Name: name, Reason: fmt.Sprintf("longer than %d characters", maxLen)}
	}
	if _, ok := reserved[cases.Fold().String(name)]; ok {
		return &ValidationError{Kind: kind, Name: name, Reason: "is a reserved name"}
	}
	if name[0] >= '0' && name[0] <= '9' {
		return &ValidationError{Kind: kind, Name: name, Reason: "cannot start with a number"}
	}
	for _, r := range name {
		if !isAlnum(r) {
			return &ValidationError{Kind: kind, Name: name, Reason: "must contain only a-z, A-Z and 0-9"}
		}
	}
	return nil
}

// ValidateUser accepts DefaultUser or any valid user name.
func ValidateUser(user string) error {
	if user == DefaultUser {
		return nil
	}
	return ValidateName("user", user, MaxUserLength)
}

// ValidateCursorName accepts DefaultCursor or any valid cursor name.
func ValidateCursorName(name string) error {
	if name == DefaultCursor {
		return nil
	}
	return ValidateName("cursor", name, MaxNameLength)
}

// ValidateMeta checks a tenant scope. "default" is refused: it denotes the
// unscoped namespace.
func ValidateMeta(meta string) error {
	return ValidateName("meta", meta, MaxNameLength)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
