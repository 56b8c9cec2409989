// Package handler turns typed request handlers into http.HandlerFunc values.
//
// A HandlerFunc receives a Context and a bound request value and returns a
// Response. Wrap runs the binders, calls the handler and renders the result;
// binding and rendering errors go to the configured ErrorHandler.
//
//	type CheckoutRequest struct {
//	    PriceID string `json:"price_id" validate:"required"`
//	}
//
//	r.Post("/billing/checkout", handler.Wrap(
//	    func(ctx handler.Context, req CheckoutRequest) handler.Response {
//	        sess, err := svc.Start(ctx, ...)
//	        if err != nil {
//	            return handler.JSONError(err)
//	        }
//	        return handler.JSON(sess)
//	    },
//	    handler.WithBinders[handler.Context, CheckoutRequest](binder.JSON(), binder.Validate()),
//	    handler.WithErrorHandler[handler.Context, CheckoutRequest](errHandler),
//	))
//
// Errors are rendered as JSON. HTTPError carries the status code and a stable
// key; ValidationError carries per-field messages and maps to 422.
//
// SSE returns a long-lived datastar stream. The stream handler pushes signal
// patches until the client disconnects.
package handler
