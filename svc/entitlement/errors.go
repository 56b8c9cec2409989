package entitlement

import "errors"

var (
	ErrUserNotFound        = errors.New("entitlement: user not found")
	ErrPlanNotFound        = errors.New("entitlement: plan not found for product")
	ErrEntitlementNotFound = errors.New("entitlement: entitlement not found")

	ErrMissingPriceID         = errors.New("entitlement: simulated event has no price id")
	ErrIncompletePeriod       = errors.New("entitlement: subscription period is not available")
	ErrIncompleteSubscription = errors.New("entitlement: subscription has no priced items")
	ErrProviderError          = errors.New("entitlement: billing provider error")
	ErrStoreError             = errors.New("entitlement: store error")
)
