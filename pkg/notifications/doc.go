// Package notifications delivers entitlement changes to users.
//
// Every type implements entitlement.Notifier:
//
//   - Multi fans a notification out to named channels and logs failures
//     without returning them.
//   - Live pushes to the connections this instance holds in a registry.
//   - RedisFanout publishes over Redis Pub/Sub; each instance runs the
//     subscriber loop and hands messages to its own Live notifier.
//   - EmailNotifier renders a short message and sends it through pkg/email.
//
// Delivery is best effort. The reconciliation outcome never depends on it.
package notifications
