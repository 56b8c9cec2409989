package billing

import "errors"

var (
	ErrEventInFlight    = errors.New("billing: event is being processed")
	ErrMissingEventID   = errors.New("billing: event id is required")
	ErrDecodeEvent      = errors.New("billing: failed to decode event payload")
	ErrEmptyResponse    = errors.New("billing: provider returned an empty response")
	ErrDeduplicatorDown = errors.New("billing: deduplicator unavailable")
)
