package cloud

import (
	"errors"
	"fmt"
)

// Code is a stable, vendor-agnostic failure class. Adapters translate vendor
// errors into the most specific code they can; the dispatcher and the HTTP
// layer only ever see these.
type Code string

const (
	CodeUnknownProvider     Code = "unknown_provider"
	CodeUnsupportedAction   Code = "unsupported_action"
	CodeProviderUnavailable Code = "provider_unavailable"
	CodeRegionInvalid       Code = "region_invalid"
	CodeInvalidSpec         Code = "invalid_spec"
	CodeResourceConflict    Code = "resource_conflict"
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeNotFound            Code = "not_found"
	CodeUnsupported         Code = "unsupported"
	CodeNameTaken           Code = "name_taken"
	CodeInvalidName         Code = "invalid_name"
	CodeNotEmpty            Code = "not_empty"
)

// Error carries a failure code plus the underlying vendor error, if any.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a coded error with a formatted message.
func E(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying vendor error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the failure code from err. Errors that did not come from an
// adapter (network failures, SDK internals) degrade to provider_unavailable.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeProviderUnavailable
}

// Detail returns the underlying vendor error text, when present.
func Detail(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
