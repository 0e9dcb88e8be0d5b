package clients

import (
	"errors"
	"fmt"
)

// ErrNoTransactions signals that the queried window holds no (more) transactions.
// It marks the end of a pagination sequence rather than a failure.
var ErrNoTransactions = errors.New("no transactions found")

// ProtocolError reports a response whose shape does not match the indexer schema.
type ProtocolError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid indexer response: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: invalid indexer response: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed request or a non-200 HTTP status.
type TransportError struct {
	Op         string
	StatusCode int // zero when no response was received
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP error %d: %s", e.Op, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
