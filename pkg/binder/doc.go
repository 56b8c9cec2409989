// Package binder fills request structs from HTTP requests and validates them.
//
// JSON decodes a strict JSON body with a size cap. Validate runs
// go-playground/validator struct tags and reports failures as a
// handler.ValidationError keyed by the JSON field name. Both return
// handler.Bind values and are used together:
//
//	handler.WithBinders[handler.Context, CheckoutRequest](binder.JSON(), binder.Validate())
package binder
