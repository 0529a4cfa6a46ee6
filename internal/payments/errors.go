package payments

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrSessionNotFound  = errors.New("payment session not found")
)

// GatewayUnavailableError marks transport-level failures talking to the
// provider; reconciliation treats these as "still unknown", never as a
// payment failure.
type GatewayUnavailableError struct {
	Op  string
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("payment gateway unavailable during %s: %v", e.Op, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }
