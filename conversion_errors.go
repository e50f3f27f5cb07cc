package epcisconv

import (
	"errors"
	"fmt"
)

// ErrKind classifies conversion failures with stable string codes.
type ErrKind string

const (
	KindSchemaVersionMissing  ErrKind = "schema_version_missing"
	KindUnsupportedVersion    ErrKind = "unsupported_version"
	KindUnsupportedConversion ErrKind = "unsupported_conversion"
	KindMalformedInput        ErrKind = "malformed_input"
	KindValidationFailure     ErrKind = "validation_failure"
	KindMappingFailure        ErrKind = "mapping_failure"
	KindIOFailure             ErrKind = "io_failure"
)

// ConversionError is the structured error surfaced by every stage.
type ConversionError struct {
	Kind   ErrKind
	Detail string
	Cause  error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ConversionError) Unwrap() error { return e.Cause }

// Errf builds a ConversionError with a formatted detail message.
func Errf(kind ErrKind, format string, args ...any) error {
	return &ConversionError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds a ConversionError around a cause.
func Wrap(kind ErrKind, cause error, format string, args ...any) error {
	return &ConversionError{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is (or wraps) a ConversionError of the given
// kind.
func IsKind(err error, kind ErrKind) bool {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the error kind, defaulting to io_failure for foreign
// errors.
func KindOf(err error) ErrKind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindIOFailure
}
