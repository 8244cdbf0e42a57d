// Package errs defines the tagged error type used across the correlation
// engine, modeled on the kind+context pattern spec.md's error model (C11)
// calls for.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can branch with errors.Is / a type
// switch on Kind without parsing messages.
type Kind string

const (
	KindQueryParse     Kind = "QUERY_PARSE_ERROR"
	KindAdapterExists  Kind = "ADAPTER_EXISTS"
	KindAdapterMissing Kind = "ADAPTER_NOT_FOUND"
	KindAuthRequired   Kind = "AUTH_REQUIRED"
	KindWindowFull     Kind = "WINDOW_FULL"
	KindUpstream       Kind = "UPSTREAM_ERROR"
)

// Error is the single tagged error type used across the core.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	err     error
}

func (e *Error) Error() string {
	if e.Context == nil || len(e.Context) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Context)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is allows errors.Is(err, &Error{Kind: KindAdapterMissing}) style checks
// by comparing Kind only.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an Error with an optional context bag.
func New(kind Kind, message string, ctx map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: ctx}
}

// Wrap builds an Error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error, ctx map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: ctx, err: cause}
}

// QueryParseError builds a QUERY_PARSE_ERROR carrying the offending token
// and its position, per §4.1.
func QueryParseError(pos int, token, message string) *Error {
	return New(KindQueryParse, message, map[string]any{"position": pos, "token": token})
}

// AdapterExists builds an ADAPTER_EXISTS error for a duplicate registration.
func AdapterExists(name string) *Error {
	return New(KindAdapterExists, "adapter already registered", map[string]any{"name": name})
}

// AdapterNotFound builds an ADAPTER_NOT_FOUND error listing what is available.
func AdapterNotFound(name string, available []string) *Error {
	return New(KindAdapterMissing, "adapter not registered", map[string]any{
		"name":      name,
		"available": available,
	})
}

// WindowFull builds a WINDOW_FULL error; non-fatal, used for counting only.
func WindowFull(key string, maxEvents int) *Error {
	return New(KindWindowFull, "window at capacity", map[string]any{"key": key, "max_events": maxEvents})
}

// Upstream wraps an adapter-produced error as UPSTREAM_ERROR.
func Upstream(source string, cause error) *Error {
	return Wrap(KindUpstream, "adapter produced an error", cause, map[string]any{"source": source})
}
