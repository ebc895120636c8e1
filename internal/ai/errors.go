package ai

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indicates the provider credentials are missing; no model
// call was attempted.
var ErrNotConfigured = errors.New("ai gateway is not configured")

// BlockedError indicates the model's safety filter rejected the request or
// response.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return "request blocked by the model safety filter"
	}
	return fmt.Sprintf("request blocked by the model safety filter: %s", e.Reason)
}

// TransportError wraps network or API failures talking to the provider,
// including timeouts and empty replies.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
