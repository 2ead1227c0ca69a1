package tools

import (
	"errors"
	"fmt"
)

const (
	providerErrorPrefix = "search provider error: "
	unknownErrorMessage = "unknown error"
)

// ErrorKind classifies why an invocation failed.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindProvider          ErrorKind = "provider"
	KindTransport         ErrorKind = "transport"
	KindUnknownCapability ErrorKind = "unknown_capability"
)

// ProviderError is a non-success answer from the search API.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return unknownErrorMessage
	}
	return e.Message
}

// TransportError is a failure to get any answer from the search API.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return unknownErrorMessage
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvocationError is the single failure shape a tool call can produce.
type InvocationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *InvocationError) Error() string { return e.Message }

func (e *InvocationError) Unwrap() error { return e.Err }

// ErrorKindOf returns the kind of an *InvocationError in err's chain, or "".
func ErrorKindOf(err error) ErrorKind {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

func unknownCapability(name string) *InvocationError {
	return &InvocationError{
		Kind:    KindUnknownCapability,
		Message: fmt.Sprintf("unknown tool: %s", name),
	}
}

func validationFailure(err error) *InvocationError {
	return &InvocationError{Kind: KindValidation, Message: err.Error(), Err: err}
}

// providerFailure wraps a provider or transport error with the fixed prefix.
func providerFailure(err error) *InvocationError {
	kind := KindProvider
	var te *TransportError
	if errors.As(err, &te) {
		kind = KindTransport
	}
	msg := err.Error()
	if msg == "" {
		msg = unknownErrorMessage
	}
	return &InvocationError{Kind: kind, Message: providerErrorPrefix + msg, Err: err}
}
