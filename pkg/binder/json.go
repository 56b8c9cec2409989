package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrymomot/artshare/handler"
)

// DefaultMaxJSONSize caps request bodies at 1 MiB.
const DefaultMaxJSONSize = 1 << 20

var errUnsupportedMedia = handler.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type")

// JSON decodes an application/json body into v. Unknown fields, trailing
// data and bodies over DefaultMaxJSONSize are rejected with 400.
func JSON() handler.Bind {
	return func(r *http.Request, v any) error {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			return errors.Join(errUnsupportedMedia, fmt.Errorf("%w: expected application/json", ErrMissingContentType))
		}
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return errors.Join(errUnsupportedMedia, fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, ct))
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxJSONSize+1))
		if err != nil {
			return badJSON(fmt.Errorf("read body: %w", err))
		}
		if len(body) > DefaultMaxJSONSize {
			return badJSON(fmt.Errorf("request body too large (max %d bytes)", DefaultMaxJSONSize))
		}
		if len(body) == 0 {
			return badJSON(errors.New("empty body"))
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return badJSON(err)
		}
		if dec.More() {
			return badJSON(errors.New("unexpected data after JSON object"))
		}
		return nil
	}
}

func badJSON(err error) error {
	return errors.Join(handler.ErrBadRequest, ErrFailedToParseJSON, err)
}
