// Package entitlement turns billing-provider lifecycle events into the
// single Entitlement row that decides what a user currently has access to.
//
// Service.Reconcile is the only place that decides. It resolves the user,
// fetches the canonical subscription (or fabricates one for a simulated
// activation), classifies the subscription status and then either upserts
// the entitlement and possibly resets the usage cycle, or deletes the
// entitlement together with its usage counters.
//
// ReconcileRenewal and ReconcileCancellation are thin wrappers for the
// invoice-paid and subscription-deleted notifications.
//
// Events are expected to be duplicated and reordered. Replaying an event
// never resets usage twice for the same cycle: see shouldResetUsage.
//
// Errors follow one convention. Malformed or irrelevant events produce a
// zero Result and a nil error. Missing reference data, incomplete provider
// data and provider failures are returned so that the caller (the webhook)
// answers with a failure and the provider redelivers.
package entitlement
