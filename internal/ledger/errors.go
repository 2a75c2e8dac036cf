// ABOUTME: Error taxonomy for ledger operations
// ABOUTME: Sentinel errors mapped from transport, gateway, and chaincode failures

package ledger

import "errors"

// ErrConfiguration is returned when a required path or endpoint is missing or
// unreadable at session-open time. Fatal for the request, not retried.
var ErrConfiguration = errors.New("ledger configuration error")

// ErrNotFound is returned when an identity or ledger asset is absent.
var ErrNotFound = errors.New("not found on ledger")

// ErrTimeout is returned when a per-operation deadline elapsed. Evaluate
// calls are safe to retry; submit timeouts are ambiguous (the transaction may
// have been ordered anyway) and must never be blindly retried.
var ErrTimeout = errors.New("ledger operation timed out")

// ErrMalformedResult is returned when ledger response bytes did not decode as
// the expected structured data. Non-retryable.
var ErrMalformedResult = errors.New("malformed ledger result")

// ErrTransport is returned when the secured channel could not be established
// or was lost mid-call. Retryable only by opening a fresh session.
var ErrTransport = errors.New("ledger transport failure")
