// Package engineerr defines the error-kind taxonomy surfaced by the core.
// Errors the core raises itself are *Error values (sometimes wrapped with
// fmt.Errorf's %w) with a Kind a caller can switch on via errors.As or Is;
// some boundaries (configuration loading, addon directory discovery in
// the engine, cache file I/O) return plain errors instead.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds the core can surface.
type Kind string

const (
	KindInvalidHandler            Kind = "INVALID_HANDLER"
	KindInvalidShare              Kind = "INVALID_SHARE"
	KindManifestMissing           Kind = "MANIFEST_MISSING"
	KindManifestMalformed         Kind = "MANIFEST_MALFORMED"
	KindIncompatibleVersion       Kind = "INCOMPATIBLE_VERSION"
	KindRequiredDependencyMissing Kind = "REQUIRED_DEPENDENCY_MISSING"
	KindSelfDependency            Kind = "SELF_DEPENDENCY"
	KindDependencyCycle           Kind = "DEPENDENCY_CYCLE"
	KindInvalidMain               Kind = "INVALID_MAIN"
	KindArtifactUnresolved        Kind = "ARTIFACT_UNRESOLVED"
	KindArtifactMismatch          Kind = "ARTIFACT_MISMATCH"
	KindNameConflict              Kind = "NAME_CONFLICT"
	KindNotFound                  Kind = "NOT_FOUND"
	KindDeadline                  Kind = "DEADLINE"
)

// Error is the sentinel error type returned across core component
// boundaries. Subject names the entity the error concerns (an addon name, a
// coordinate string, a path), and Err optionally wraps the cause.
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Subject != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, subject string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: cause}
}

// Is reports whether err carries the given kind, for use with errors.Is
// style checks against a kind-only sentinel.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
