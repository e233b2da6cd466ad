package chatgate

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrRateLimited         = errors.New("chatgate: rate limited by provider")
	ErrAuthFailed          = errors.New("chatgate: authentication failed")
	ErrInvalidRequest      = errors.New("chatgate: invalid request")
	ErrProviderUnavailable = errors.New("chatgate: provider unavailable")
	ErrAllProvidersFailed  = errors.New("chatgate: all providers failed")
	ErrPaymentFailed       = errors.New("chatgate: payment reference could not be created")
	ErrStorage             = errors.New("chatgate: storage failure")
)

// GatewayError wraps a provider failure with routing context.
type GatewayError struct {
	Err      error
	Provider string
	Attempts int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("chatgate: provider=%s attempts=%d: %v", e.Provider, e.Attempts, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
