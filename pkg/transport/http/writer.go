package http

import (
	"errors"
	"net/http"

	"github.com/rhuss/gantry/pkg/transport"
)

// WriteResponse serializes resp onto w. Header keys are written with the
// casing they were registered with. Streaming bodies are flushed after
// every chunk. The body is closed on every path.
func WriteResponse(w http.ResponseWriter, resp *transport.Response) error {
	h := w.Header()
	resp.Header.Each(func(key string, values []string) {
		h[key] = append(h[key], values...)
	})

	if !transport.BodyAllowed(resp.Status) {
		w.WriteHeader(resp.Status)
		return resp.Body.Close()
	}

	w.WriteHeader(resp.Status)

	rc := http.NewResponseController(w)
	flush := func() error {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}
	return transport.WriteBody(w, resp.Body, flush)
}
