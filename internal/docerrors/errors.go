// Package docerrors provides the structured error type nodes use to report
// failures across the workflow node boundary. A docerrors.Error carries a
// stable Code (the taxonomy surfaced to HTTP callers) and an optional Cause
// chain, and implements errors.Is/As via Unwrap while remaining cheap to
// attach to WorkflowState.Errors as data rather than propagate as a panic.
package docerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable string identifying an error class. Codes are part of the
// wire contract: clients match on them, so renaming one is a breaking change.
type Code string

const (
	// UnsupportedSource marks a source type the pipeline refuses to ingest
	// (e.g. spreadsheets). Terminal.
	UnsupportedSource Code = "UNSUPPORTED_SOURCE"
	// ParseFailed marks an external parser refusal or crash. Terminal.
	ParseFailed Code = "PARSE_FAILED"
	// LLMUnavailable marks missing credentials or an absent provider library.
	// Terminal only when the affected node is mandatory.
	LLMUnavailable Code = "LLM_UNAVAILABLE"
	// LLMTransient marks a provider error recognized as transient; it drives
	// model fallback in the gateway and is not, by itself, surfaced to callers.
	LLMTransient Code = "LLM_TRANSIENT"
	// GenerationFailed marks a render step that produced no output file.
	// Retryable up to the configured retry budget.
	GenerationFailed Code = "GENERATION_FAILED"
	// ValidationFailed marks an output file that exists but is empty or has
	// the wrong extension. Retryable up to the configured retry budget.
	ValidationFailed Code = "VALIDATION_FAILED"
	// Auth marks a missing or invalid provider API key. Terminal.
	Auth Code = "AUTH"
	// Cancelled marks a client disconnect or explicit cancellation. Terminal.
	Cancelled Code = "CANCELLED"
	// Internal marks an uncaught or unexpected failure. Terminal.
	Internal Code = "INTERNAL"
)

// Retryable reports whether the runtime is authorized to retry the node pair
// that produced an error with this code: only
// GENERATION_FAILED and VALIDATION_FAILED are retryable.
func (c Code) Retryable() bool {
	return c == GenerationFailed || c == ValidationFailed
}

// Error is a structured, chainable failure record. The zero value is not
// useful; construct with New, Errorf, or Wrap.
type Error struct {
	// Code classifies the failure for routing and for the HTTP Error event.
	Code Code
	// Message is the human-readable summary.
	Message string
	// Step names the node that produced the error, for logs and events.
	Step string
	// Cause links to an underlying error, preserved through Unwrap.
	Cause error
}

// New constructs an Error with the given code and message.
func New(code Code, step, message string) *Error {
	return &Error{Code: code, Step: step, Message: message}
}

// Errorf constructs an Error with a formatted message.
func Errorf(code Code, step, format string, args ...any) *Error {
	return &Error{Code: code, Step: step, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that carries an underlying cause. If err is
// already a *Error, its code is preserved unless explicitly overridden by
// code; passing code == "" keeps the wrapped error's code.
func Wrap(code Code, step string, err error) *Error {
	if err == nil {
		return nil
	}
	if code == "" {
		var existing *Error
		if errors.As(err, &existing) {
			code = existing.Code
		} else {
			code = Internal
		}
	}
	return &Error{Code: code, Step: step, Message: err.Error(), Cause: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", e.Step, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Code, so callers can
// write errors.Is(err, docerrors.New(docerrors.ParseFailed, "", "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// IsTransient reports whether the error message matches the substring set
// the LLM gateway recognizes as a transient provider overload:
// "503", "overload", "unavailable", "capacity" (case-insensitive).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return matchesAny(err.Error(), "503", "overload", "unavailable", "capacity")
}

// IsRetryableRender reports whether err authorizes the render retry pair:
// either err wraps an *Error whose Code is Retryable, or its message contains
// "Generation failed" or "Validation failed", matched case-insensitively.
func IsRetryableRender(err error) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) && de.Code.Retryable() {
		return true
	}
	return matchesAny(err.Error(), "generation failed", "validation failed")
}

func matchesAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
