// Package jwt issues and verifies the HS256 bearer tokens that identify the
// calling user on the billing endpoints.
//
// Tokens carry the user id as the subject and, optionally, the user's email.
// Middleware verifies the Authorization header and stores the claims in the
// request context; UserID and ClaimsFromContext read them back.
//
//	svc, err := jwt.New(cfg)
//	if err != nil {
//	    return err
//	}
//	r.With(jwt.Middleware(svc)).Post("/billing/checkout", handler)
package jwt
