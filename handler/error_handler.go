package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/requestid"
)

// NewErrorHandler logs err and renders it as a JSON error. Client errors log
// at warn level and everything else at error level.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx Context, err error) {
		r := ctx.Request()
		resp := JSONError(err, WithJSONMeta(map[string]any{"request_id": requestid.FromContext(r.Context())}))

		level := slog.LevelError
		if status := resp.(*jsonResponse).status; status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request error",
			logger.Error(err),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil && !errors.Is(renderErr, http.ErrHandlerTimeout) {
			log.LogAttrs(r.Context(), slog.LevelError, "failed to render error", logger.Error(renderErr))
		}
	}
}
