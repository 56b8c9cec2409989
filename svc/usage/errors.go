package usage

import "errors"

var (
	ErrNoEntitlement      = errors.New("usage.errors.no_entitlement")
	ErrEntitlementExpired = errors.New("usage.errors.entitlement_expired")
	ErrLimitExceeded      = errors.New("usage.errors.limit_exceeded")
	ErrInvalidResource    = errors.New("usage.errors.invalid_resource")
	ErrInvalidAmount      = errors.New("usage.errors.invalid_amount")

	ErrFailedToReadUsage   = errors.New("usage.errors.failed_to_read_usage")
	ErrFailedToUpdateUsage = errors.New("usage.errors.failed_to_update_usage")
)
