// Package billing connects the Stripe API to the entitlement reconciler.
//
// StripeProvider implements entitlement.Provider and checkout.Provider on
// top of stripe-go. WebhookHandler verifies Stripe-Signature headers,
// decodes the handful of event types that affect access and hands them to
// the reconciler:
//
//	checkout.session.completed              -> Reconcile (checkout_completed)
//	invoice.paid, invoice.payment_succeeded -> ReconcileRenewal
//	customer.subscription.created/updated   -> Reconcile (subscription_updated)
//	customer.subscription.deleted           -> ReconcileCancellation
//
// Other event types are acknowledged and ignored. A processing failure
// answers 500 so Stripe redelivers the event later. When a Deduplicator is
// configured, an event id that was processed successfully is acknowledged
// without running again.
package billing
