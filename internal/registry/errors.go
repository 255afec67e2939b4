package registry

import (
	"errors"
	"fmt"
)

// RegistryError represents a failure to bring the system set up.
//
// Registry errors include:
//   - Structural problems in the specs (empty or duplicate ids)
//   - Dependency cycles
//   - Factory or Init failures of a single system
//
// After any RegistryError the registry is empty and uninitialized.
type RegistryError struct {
	// Code identifies the error category.
	Code RegistryErrorCode

	// Message is a human-readable description.
	Message string

	// SystemID identifies the affected system, if any.
	SystemID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RegistryErrorCode categorizes registry errors.
type RegistryErrorCode string

const (
	// ErrCodeDuplicateSystem indicates two specs share one system id.
	ErrCodeDuplicateSystem RegistryErrorCode = "DUPLICATE_SYSTEM"

	// ErrCodeEmptySystemID indicates a spec without an id.
	ErrCodeEmptySystemID RegistryErrorCode = "EMPTY_SYSTEM_ID"

	// ErrCodeDependencyCycle indicates the dependency graph is not a DAG.
	ErrCodeDependencyCycle RegistryErrorCode = "DEPENDENCY_CYCLE"

	// ErrCodeFactoryFailed indicates a factory returned an error or nil.
	ErrCodeFactoryFailed RegistryErrorCode = "FACTORY_FAILED"

	// ErrCodeInitFailed indicates a system's Init returned an error.
	ErrCodeInitFailed RegistryErrorCode = "INIT_FAILED"

	// ErrCodeEmptySpecs indicates there was nothing to initialize.
	ErrCodeEmptySpecs RegistryErrorCode = "EMPTY_SPECS"

	// ErrCodeNilManifest indicates InitializeFromManifest got no manifest.
	ErrCodeNilManifest RegistryErrorCode = "NIL_MANIFEST"
)

// Error implements the error interface.
func (e *RegistryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SystemID != "" {
		msg = fmt.Sprintf("%s (system=%s)", msg, e.SystemID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RegistryError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is a RegistryError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code RegistryErrorCode) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCycleError returns true if the error is a dependency cycle error.
func IsCycleError(err error) bool {
	return HasCode(err, ErrCodeDependencyCycle)
}

// IsDuplicateError returns true if the error is a duplicate id error.
func IsDuplicateError(err error) bool {
	return HasCode(err, ErrCodeDuplicateSystem)
}

// IsInitError returns true if a system failed to initialize.
func IsInitError(err error) bool {
	return HasCode(err, ErrCodeInitFailed)
}

func newError(code RegistryErrorCode, systemID, format string, args ...any) *RegistryError {
	return &RegistryError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		SystemID: systemID,
	}
}
