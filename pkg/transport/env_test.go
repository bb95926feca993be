package transport

import (
	"bytes"
	"io"
	"mime/multipart"
	"strings"
	"testing"
)

func TestNewEnvSplitsTarget(t *testing.T) {
	env := NewEnv("get", "/users/42?page=2&sort=name")

	if env.Method() != "GET" {
		t.Errorf("Method() = %q, want GET", env.Method())
	}
	if env.Path() != "/users/42" {
		t.Errorf("Path() = %q", env.Path())
	}
	if env.QueryString() != "page=2&sort=name" {
		t.Errorf("QueryString() = %q", env.QueryString())
	}
	if env.String(KeyRequestURI) != "/users/42?page=2&sort=name" {
		t.Errorf("REQUEST_URI = %q", env.String(KeyRequestURI))
	}
}

func TestSetPathKeepsQuery(t *testing.T) {
	env := NewEnv("GET", "/app/users?page=2")
	env.SetPath("/users")

	if env.Path() != "/users" || env.String(KeyRequestPath) != "/users" {
		t.Errorf("path not rewritten: %v", env)
	}
	if got := env.String(KeyRequestURI); got != "/users?page=2" {
		t.Errorf("REQUEST_URI = %q, want %q", got, "/users?page=2")
	}
}

func TestHeaderKey(t *testing.T) {
	tests := map[string]string{
		"Accept":         "HTTP_ACCEPT",
		"X-Request-ID":   "HTTP_X_REQUEST_ID",
		"content-type":   "CONTENT_TYPE",
		"Content-Length": "CONTENT_LENGTH",
	}
	for in, want := range tests {
		if got := HeaderKey(in); got != want {
			t.Errorf("HeaderKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInputNeverNil(t *testing.T) {
	env := NewEnv("GET", "/")
	b, err := io.ReadAll(env.Input())
	if err != nil || len(b) != 0 {
		t.Errorf("Input() = %q, %v; want empty reader", b, err)
	}
}

func TestFormParsesURLEncodedBody(t *testing.T) {
	env := NewEnv("POST", "/login?next=/home")
	env[KeyContentType] = "application/x-www-form-urlencoded; charset=utf-8"
	env.SetInput(strings.NewReader("user=ada&token=abc"))

	form, err := env.Form()
	if err != nil {
		t.Fatalf("Form() error: %v", err)
	}
	if form.Get("user") != "ada" || form.Get("token") != "abc" || form.Get("next") != "/home" {
		t.Errorf("Form() = %v", form)
	}

	rest, _ := io.ReadAll(env.Input())
	if string(rest) != "user=ada&token=abc" {
		t.Errorf("body after Form() = %q, want it replayable", rest)
	}

	// Cached: the second call must not need the body again.
	env.SetInput(strings.NewReader(""))
	if env.FormValue("user") != "ada" {
		t.Error("expected cached form value")
	}
}

func TestFormParsesMultipartBody(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("authenticity_token", "tok")
	fw, _ := w.CreateFormFile("upload", "a.txt")
	fw.Write([]byte("file content"))
	w.Close()

	env := NewEnv("POST", "/uploads")
	env[KeyContentType] = w.FormDataContentType()
	env.SetInput(&buf)

	if got := env.FormValue("authenticity_token"); got != "tok" {
		t.Errorf("FormValue() = %q, want %q", got, "tok")
	}
}

func TestFormIgnoresOtherBodies(t *testing.T) {
	env := NewEnv("POST", "/api")
	env[KeyContentType] = "application/json"
	env.SetInput(strings.NewReader(`{"a":1}`))

	form, err := env.Form()
	if err != nil {
		t.Fatalf("Form() error: %v", err)
	}
	if len(form) != 0 {
		t.Errorf("Form() = %v, want empty", form)
	}
	rest, _ := io.ReadAll(env.Input())
	if string(rest) != `{"a":1}` {
		t.Errorf("body consumed: %q", rest)
	}
}

func TestContentLength(t *testing.T) {
	env := NewEnv("POST", "/")
	if env.ContentLength() != -1 {
		t.Errorf("ContentLength() = %d, want -1", env.ContentLength())
	}
	env[KeyContentLength] = "12"
	if env.ContentLength() != 12 {
		t.Errorf("ContentLength() = %d, want 12", env.ContentLength())
	}
}
