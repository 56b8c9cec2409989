package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"
)

// Stream pushes datastar events over an open SSE connection.
type Stream interface {
	Context
	// PatchSignals merges signals into the client's signal store.
	PatchSignals(signals any) error
}

// StreamHandler runs for the lifetime of the connection. Returning ends the stream.
type StreamHandler func(stream Stream) error

type stream struct {
	Context
	sse *datastar.ServerSentEventGenerator
}

func (s *stream) PatchSignals(signals any) error {
	data, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return s.sse.PatchSignals(data)
}

type sseResponse struct {
	handler StreamHandler
}

func (s sseResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if !AcceptsEventStream(r) {
		return NewHTTPError(http.StatusNotAcceptable, "event_stream_required")
	}
	if _, ok := w.(http.Flusher); !ok {
		return ErrStreamNotSupported
	}
	return s.handler(&stream{
		Context: NewContext(w, r),
		sse:     datastar.NewSSE(w, r),
	})
}

// SSE opens a datastar event stream and runs h on it.
// Requests that do not accept text/event-stream get 406.
func SSE(h StreamHandler) Response {
	return sseResponse{handler: h}
}

// AcceptsEventStream reports whether the client asked for server-sent events
// or is a datastar request.
func AcceptsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		r.URL.Query().Has("datastar")
}
