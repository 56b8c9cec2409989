package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc extracts a raw token from a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// Middleware rejects requests without a valid bearer token with 401 and
// stores the verified claims in the request context.
func Middleware(svc *Service, extractors ...TokenExtractorFunc) func(http.Handler) http.Handler {
	if svc == nil {
		panic("jwt: service is required")
	}
	if len(extractors) == 0 {
		extractors = []TokenExtractorFunc{BearerTokenExtractor}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extract(r, extractors)
			if err != nil {
				unauthorized(w, err)
				return
			}
			claims, err := svc.Parse(token)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetClaims(r.Context(), claims)))
		})
	}
}

func extract(r *http.Request, extractors []TokenExtractorFunc) (string, error) {
	var lastErr error
	for _, ex := range extractors {
		token, err := ex(r)
		if err == nil && token != "" {
			return token, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrInvalidToken
	}
	return "", lastErr
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	http.Error(w, err.Error(), http.StatusUnauthorized)
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// QueryTokenExtractor reads the token from a query parameter. EventSource
// clients cannot set headers, so the live events stream accepts it.
func QueryTokenExtractor(param string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		token := r.URL.Query().Get(param)
		if token == "" {
			return "", ErrInvalidToken
		}
		return token, nil
	}
}
