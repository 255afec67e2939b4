package profile

import (
	"errors"
	"fmt"
)

// LoadErrorKind categorizes profile load failures.
type LoadErrorKind string

const (
	// KindNotFound indicates no document exists at the path.
	KindNotFound LoadErrorKind = "NOT_FOUND"

	// KindTypeMismatch indicates the document has a different kind.
	KindTypeMismatch LoadErrorKind = "TYPE_MISMATCH"

	// KindMalformed indicates the path or document could not be parsed.
	KindMalformed LoadErrorKind = "MALFORMED"

	// KindInvalid indicates the document parsed but its values are invalid.
	KindInvalid LoadErrorKind = "INVALID"
)

// LoadError describes why a document could not be loaded.
type LoadError struct {
	Kind    LoadErrorKind
	Path    string
	Message string
	Err     error

	// Found is the document kind that was present, set for KindTypeMismatch.
	Found string
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// KindOf returns the LoadErrorKind of err, or "" if err is not a LoadError.
func KindOf(err error) LoadErrorKind {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsNotFound returns true if no document exists at the requested path.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsTypeMismatch returns true if the document has the wrong kind.
func IsTypeMismatch(err error) bool {
	return KindOf(err) == KindTypeMismatch
}

// FoundKind returns the kind of the document found at the path of a type
// mismatch, or "".
func FoundKind(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Found
	}
	return ""
}

func loadErrorf(kind LoadErrorKind, path, format string, args ...any) *LoadError {
	return &LoadError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}
