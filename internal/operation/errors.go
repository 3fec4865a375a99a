package operation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindValidation             ErrorKind = "validation"
	KindSymbolNotFound         ErrorKind = "symbol_not_found"
	KindNamingConflict         ErrorKind = "naming_conflict"
	KindUnsupportedSymbolKind  ErrorKind = "unsupported_symbol_kind"
	KindExternalReferences     ErrorKind = "external_references"
	KindDependencyVerification ErrorKind = "dependency_verification"
	KindVerificationFailure    ErrorKind = "verification_failure"
	KindInternal               ErrorKind = "internal"
)

// Error is a classified operation failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a classified error.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind ErrorKind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
