package checkout

import "errors"

var (
	ErrMissingCustomerDetails = errors.New("checkout: email or user id is required")
	ErrInvalidPrice           = errors.New("checkout: price is not a valid recurring price")
	ErrUserNotFound           = errors.New("checkout: user not found")
	ErrProviderError          = errors.New("checkout: billing provider error")
	ErrStoreError             = errors.New("checkout: store error")
)
