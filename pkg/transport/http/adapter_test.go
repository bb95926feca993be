package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/gantry/pkg/transport"
)

func echoApp() transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, env transport.Env) (*transport.Response, error) {
		return transport.TextResponse(http.StatusOK, env.Path()), nil
	})
}

func TestRequestEnv(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com:8081/users/42?page=2", strings.NewReader("a=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Accept", "text/html")
	req.Header.Add("Accept", "application/json")

	env := RequestEnv(req)

	tests := map[string]string{
		transport.KeyMethod:        "POST",
		transport.KeyPathInfo:      "/users/42",
		transport.KeyQueryString:   "page=2",
		transport.KeyServerName:    "example.com",
		transport.KeyServerPort:    "8081",
		transport.KeyContentType:   "application/x-www-form-urlencoded",
		transport.KeyContentLength: "3",
		"HTTP_ACCEPT":              "text/html, application/json",
	}
	for key, want := range tests {
		if got := env.String(key); got != want {
			t.Errorf("env[%s] = %q, want %q", key, got, want)
		}
	}

	if env.FormValue("a") != "1" {
		t.Errorf("form value a = %q, want 1", env.FormValue("a"))
	}
}

func TestAdapterServesChain(t *testing.T) {
	adapter := NewAdapter(echoApp(), DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	adapter.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "/users" {
		t.Errorf("body = %q, want %q", w.Body.String(), "/users")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAdapterConvertsBareChainError(t *testing.T) {
	app := transport.HandlerFunc(func(ctx context.Context, env transport.Env) (*transport.Response, error) {
		return nil, errors.New("boom")
	})
	adapter := NewAdapter(app, DefaultConfig())

	w := httptest.NewRecorder()
	adapter.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "boom\n\n") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestAdapterBodyTooLarge(t *testing.T) {
	app := transport.NewApplication(transport.HandlerFunc(func(ctx context.Context, env transport.Env) (*transport.Response, error) {
		if _, err := io.ReadAll(env.Input()); err != nil {
			return nil, err
		}
		return transport.TextResponse(http.StatusOK, "read"), nil
	}))
	adapter := NewAdapter(app, Config{MaxBodySize: 8})

	w := httptest.NewRecorder()
	adapter.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestAdapterStreamsChunkedBody(t *testing.T) {
	app := transport.HandlerFunc(func(ctx context.Context, env transport.Env) (*transport.Response, error) {
		return transport.NewResponse(http.StatusOK, transport.ProducerBody(func(w io.Writer) error {
			for _, part := range []string{"one ", "two ", "three"} {
				if _, err := io.WriteString(w, part); err != nil {
					return err
				}
			}
			return nil
		}, nil)), nil
	})

	w := httptest.NewRecorder()
	NewAdapter(app, DefaultConfig()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	if w.Body.String() != "one two three" {
		t.Errorf("body = %q", w.Body.String())
	}
	if !w.Flushed {
		t.Error("expected streaming body to be flushed")
	}
}
