package models

import "errors"

// Error taxonomy. Everything below the gateway either resolves locally or is
// converted into one of these kinds before crossing the gateway boundary;
// callers never see raw transport errors.
var (
	// ErrConfiguration marks invalid retry/tier/sizing parameters. Fatal,
	// raised before any I/O, never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataQuality marks a malformed input bar. Rejected at ingestion
	// without corrupting aggregator state.
	ErrDataQuality = errors.New("data quality error")

	// ErrAmbiguousOutcome marks a response timeout on a non-idempotent order
	// call. Surfaced as an UNKNOWN outcome, never auto-retried.
	ErrAmbiguousOutcome = errors.New("order outcome unknown")

	// ErrBrokerRejected marks an explicit broker reject. Terminal; the broker
	// reason is surfaced verbatim.
	ErrBrokerRejected = errors.New("broker rejected order")
)
