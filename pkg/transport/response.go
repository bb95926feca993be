package transport

import (
	"fmt"
	"net/http"
	"strings"
)

// Header is an ordered header map. Keys are case-sensitive as registered
// and keep their registration order when written to the wire.
type Header struct {
	keys   []string
	values map[string][]string
}

// NewHeader creates an empty Header.
func NewHeader() *Header {
	return &Header{values: make(map[string][]string)}
}

// key returns the stored spelling of name. Lookups match exactly first,
// then case-insensitively.
func (h *Header) key(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	if _, ok := h.values[name]; ok {
		return name, true
	}
	for _, k := range h.keys {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Get returns the first value for key.
func (h *Header) Get(key string) string {
	if vs := h.Values(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns all values for key.
func (h *Header) Values(key string) []string {
	k, ok := h.key(key)
	if !ok {
		return nil
	}
	return h.values[k]
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	_, ok := h.key(key)
	return ok
}

// Set replaces the values for key. An existing spelling of the name is
// kept.
func (h *Header) Set(key string, values ...string) {
	if k, ok := h.key(key); ok {
		key = k
	} else {
		h.keys = append(h.keys, key)
	}
	h.values[key] = append([]string(nil), values...)
}

// Add appends a value for key.
func (h *Header) Add(key, value string) {
	if k, ok := h.key(key); ok {
		key = k
	} else {
		h.keys = append(h.keys, key)
	}
	h.values[key] = append(h.values[key], value)
}

// Del removes every spelling of key.
func (h *Header) Del(key string) {
	if h == nil {
		return
	}
	kept := h.keys[:0]
	for _, k := range h.keys {
		if strings.EqualFold(k, key) {
			delete(h.values, k)
			continue
		}
		kept = append(kept, k)
	}
	h.keys = kept
}

// Keys returns the header names in registration order.
func (h *Header) Keys() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.keys...)
}

// Len returns the number of distinct header names.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.keys)
}

// Each calls fn for every header in registration order.
func (h *Header) Each(fn func(key string, values []string)) {
	if h == nil {
		return
	}
	for _, k := range h.keys {
		fn(k, h.values[k])
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	c := NewHeader()
	h.Each(func(k string, vs []string) { c.Set(k, vs...) })
	return c
}

// Response is the (status, headers, body) triple returned by a Handler.
type Response struct {
	Status int
	Header *Header
	Body   Body
}

// NewResponse creates a Response with an empty header set. A nil body is
// replaced with an empty buffered body.
func NewResponse(status int, body Body) *Response {
	if body == nil {
		body = EmptyBody()
	}
	return &Response{Status: status, Header: NewHeader(), Body: body}
}

// TextResponse creates a text/plain response.
func TextResponse(status int, text string) *Response {
	resp := NewResponse(status, BufferedBody(text))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp
}

// HTMLResponse creates a text/html response.
func HTMLResponse(status int, html string) *Response {
	resp := NewResponse(status, BufferedBody(html))
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return resp
}

// ValidStatus reports whether status is a well-formed HTTP status code.
func ValidStatus(status int) bool {
	return status >= 100 && status <= 999
}

// Validate checks the response invariants.
func (r *Response) Validate() error {
	if !ValidStatus(r.Status) {
		return fmt.Errorf("invalid response status %d", r.Status)
	}
	if r.Header == nil {
		r.Header = NewHeader()
	}
	if r.Body == nil {
		r.Body = EmptyBody()
	}
	return nil
}

// BodyAllowed reports whether a response with this status may carry a body.
func BodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// ReplaceBody swaps the body, closing the previous one.
func (r *Response) ReplaceBody(body Body) {
	if r.Body != nil {
		r.Body.Close()
	}
	if body == nil {
		body = EmptyBody()
	}
	r.Body = body
}
