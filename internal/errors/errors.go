// SPDX-License-Identifier: AGPL-3.0-only
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a provider failure so callers can react differently
// (recover, surface, or abandon the turn).
type Kind string

const (
	KindInvalidCredential Kind = "invalid_credential"
	KindInvalidEndpoint   Kind = "invalid_endpoint"
	KindNetwork           Kind = "network"
	KindDecoding          Kind = "decoding"
	KindAPI               Kind = "api"
	KindModelNotFound     Kind = "model_not_found"
	KindServerUnreachable Kind = "server_unreachable"
	KindToolsNotSupported Kind = "tools_not_supported"
	KindUnknown           Kind = "unknown"
)

// ProviderError is the normalized failure shape raised by every provider
// adapter. Adapters raise the most specific Kind they can determine from the
// HTTP status and response body; downstream layers never downgrade it.
type ProviderError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// InvalidCredential reports a missing or rejected API credential.
func InvalidCredential(message string) *ProviderError {
	return &ProviderError{Kind: KindInvalidCredential, Message: message}
}

// InvalidEndpoint reports an endpoint that could not be used as given.
func InvalidEndpoint(endpoint string, err error) *ProviderError {
	return &ProviderError{Kind: KindInvalidEndpoint, Message: endpoint, Err: err}
}

// Network reports a transport-level failure (timeout, reset, DNS).
func Network(err error) *ProviderError {
	return &ProviderError{Kind: KindNetwork, Err: err}
}

// Decoding reports a response body that could not be decoded into the
// unified completion shape.
func Decoding(err error) *ProviderError {
	return &ProviderError{Kind: KindDecoding, Err: err}
}

// API reports a non-2xx response whose body yielded a readable message.
func API(message string) *ProviderError {
	return &ProviderError{Kind: KindAPI, Message: message}
}

// ModelNotFound reports that the selected model does not exist on the
// provider.
func ModelNotFound(model string) *ProviderError {
	return &ProviderError{Kind: KindModelNotFound, Message: fmt.Sprintf("model %q not found", model)}
}

// ServerUnreachable reports that the provider host could not be reached at
// all (connection refused, no route).
func ServerUnreachable(endpoint string, err error) *ProviderError {
	return &ProviderError{Kind: KindServerUnreachable, Message: endpoint, Err: err}
}

// ToolsNotSupported reports that the selected model rejected the tool
// declarations. The agent loop recovers from this with a single tools-absent
// fallback call; every other kind ends the turn.
func ToolsNotSupported(model string) *ProviderError {
	return &ProviderError{Kind: KindToolsNotSupported, Message: fmt.Sprintf("model %q does not support tool calling", model)}
}

// Unknown wraps a failure that fits no more specific kind.
func Unknown(err error) *ProviderError {
	return &ProviderError{Kind: KindUnknown, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown when err is not a
// ProviderError.
func KindOf(err error) Kind {
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *ProviderError
	return stderrors.As(err, &pe) && pe.Kind == kind
}
