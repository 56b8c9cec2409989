// Package checkout hands out billing sessions.
//
// A user without an active entitlement gets a provider checkout session for
// the requested price. A user whose entitlement is active and not pending
// cancellation gets a billing portal session instead, so they manage the
// existing subscription rather than buying a second one.
//
// Outside production the service can simulate the provider's confirmation:
// shortly after a checkout session is created it reconciles a synthetic
// subscription for the same price, so the rest of the system behaves as if
// the payment went through.
package checkout
