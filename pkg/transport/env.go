package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strconv"
	"strings"
)

// Well-known Env keys. Header values use HeaderKey(name).
const (
	KeyMethod        = "REQUEST_METHOD"
	KeyPathInfo      = "PATH_INFO"
	KeyRequestPath   = "REQUEST_PATH"
	KeyRequestURI    = "REQUEST_URI"
	KeyQueryString   = "QUERY_STRING"
	KeyScriptName    = "SCRIPT_NAME"
	KeyServerName    = "SERVER_NAME"
	KeyServerPort    = "SERVER_PORT"
	KeyRemoteAddr    = "REMOTE_ADDR"
	KeyContentType   = "CONTENT_TYPE"
	KeyContentLength = "CONTENT_LENGTH"
	KeyInput         = "rack.input"

	KeyRequestID   = "gantry.request_id"
	KeySessionID   = "gantry.session_id"
	KeySession     = "gantry.session"
	KeyRouteParams = "gantry.route_params"
	KeyDeferred    = "gantry.deferred"

	keyForm = "gantry.form"
)

// maxFormMemory bounds the in-memory part of multipart form parsing.
const maxFormMemory = 10 << 20

// Env is the per-request environment record. It is passed by reference
// through the chain; any middleware may mutate it, and mutations are seen
// by every handler further in.
type Env map[string]any

// NewEnv builds an Env for method and target (a request URI such as
// "/users?page=2"). Adapters fill in headers, remote address and body.
func NewEnv(method, target string) Env {
	env := Env{
		KeyMethod:      strings.ToUpper(method),
		KeyRequestURI:  target,
		KeyScriptName:  "",
		KeyQueryString: "",
	}
	path := target
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path = target[:i]
		env[KeyQueryString] = target[i+1:]
	}
	if path == "" {
		path = "/"
	}
	env[KeyPathInfo] = path
	env[KeyRequestPath] = path
	return env
}

// HeaderKey returns the Env key for an HTTP header name. Content-Type and
// Content-Length are stored without the HTTP_ prefix.
func HeaderKey(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	switch key {
	case KeyContentType, KeyContentLength:
		return key
	}
	return "HTTP_" + key
}

// String returns the value stored under key when it is a string.
func (e Env) String(key string) string {
	if v, ok := e[key].(string); ok {
		return v
	}
	return ""
}

// Method returns the request method.
func (e Env) Method() string { return e.String(KeyMethod) }

// Path returns PATH_INFO.
func (e Env) Path() string { return e.String(KeyPathInfo) }

// QueryString returns the raw query string.
func (e Env) QueryString() string { return e.String(KeyQueryString) }

// SetPath rewrites PATH_INFO and REQUEST_PATH, keeping the query part of
// REQUEST_URI intact.
func (e Env) SetPath(path string) {
	e[KeyPathInfo] = path
	e[KeyRequestPath] = path
	if q := e.QueryString(); q != "" {
		e[KeyRequestURI] = path + "?" + q
	} else {
		e[KeyRequestURI] = path
	}
}

// Header returns the value of the named request header.
func (e Env) Header(name string) string { return e.String(HeaderKey(name)) }

// SetHeader stores a request header value.
func (e Env) SetHeader(name, value string) { e[HeaderKey(name)] = value }

// ContentType returns the media type of the request body without
// parameters, lower-cased.
func (e Env) ContentType() string {
	ct := e.String(KeyContentType)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mt
}

// ContentLength returns the declared body length, or -1 when unknown.
func (e Env) ContentLength() int64 {
	n, err := strconv.ParseInt(e.String(KeyContentLength), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// Input returns the request body stream. It never returns nil.
func (e Env) Input() io.Reader {
	if r, ok := e[KeyInput].(io.Reader); ok && r != nil {
		return r
	}
	return bytes.NewReader(nil)
}

// SetInput replaces the request body stream.
func (e Env) SetInput(r io.Reader) { e[KeyInput] = r }

// RequestID returns the request ID assigned by the RequestID middleware.
func (e Env) RequestID() string { return e.String(KeyRequestID) }

// SessionID returns the session identifier resolved for this request.
func (e Env) SessionID() string { return e.String(KeySessionID) }

// RouteParams returns the parameters captured by the dispatcher.
func (e Env) RouteParams() map[string]string {
	if p, ok := e[KeyRouteParams].(map[string]string); ok {
		return p
	}
	return nil
}

// Form parses the query string and, for urlencoded or multipart bodies,
// the request body. The result is cached in the Env. After parsing, the
// body stream is replaced with a fresh reader over the consumed bytes so
// handlers further in can still read it.
func (e Env) Form() (url.Values, error) {
	if f, ok := e[keyForm].(url.Values); ok {
		return f, nil
	}

	form, err := url.ParseQuery(e.QueryString())
	if err != nil {
		return nil, fmt.Errorf("parsing query string: %w", err)
	}

	switch e.ContentType() {
	case "application/x-www-form-urlencoded":
		body, err := e.bufferInput()
		if err != nil {
			return nil, err
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parsing form body: %w", err)
		}
		for k, vs := range values {
			form[k] = append(form[k], vs...)
		}
	case "multipart/form-data":
		body, err := e.bufferInput()
		if err != nil {
			return nil, err
		}
		values, err := parseMultipart(e.String(KeyContentType), body)
		if err != nil {
			return nil, err
		}
		for k, vs := range values {
			form[k] = append(form[k], vs...)
		}
	}

	e[keyForm] = form
	return form, nil
}

// FormValue returns the first value for key, or "" when the form can not
// be parsed or the key is absent.
func (e Env) FormValue(key string) string {
	form, err := e.Form()
	if err != nil {
		return ""
	}
	return form.Get(key)
}

// bufferInput reads the whole body and replaces the stream with a reader
// over the same bytes.
func (e Env) bufferInput() ([]byte, error) {
	body, err := io.ReadAll(e.Input())
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if c, ok := e[KeyInput].(io.Closer); ok {
		c.Close()
	}
	e.SetInput(bytes.NewReader(body))
	return body, nil
}

// Clone returns a shallow copy of the Env.
func (e Env) Clone() Env {
	c := make(Env, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}
