// Package logger builds *slog.Logger instances for the billing service.
//
// New assembles a JSON or text handler from functional options and wraps it
// with a context handler that copies request-scoped values (request id,
// environment, anything registered through WithContextExtractors) into every
// record written with the *Context logging methods.
//
// Attribute helpers in attr.go keep key names stable across packages, so
// that log queries like `subscription_id="sub_123"` work regardless of which
// component emitted the line.
//
//	log := logger.New(
//		logger.WithEnvironment("production", "artshare"),
//		logger.WithContextExtractors(requestIDExtractor),
//	)
//	log.InfoContext(ctx, "entitlement activated",
//		logger.UserID(userID),
//		logger.PlanID(planID),
//	)
package logger
