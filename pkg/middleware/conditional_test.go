package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/rhuss/gantry/pkg/transport"
)

func validatorResponse(etag, lastModified string) func(transport.Env) *transport.Response {
	return func(transport.Env) *transport.Response {
		resp := transport.TextResponse(http.StatusOK, "full body")
		if etag != "" {
			resp.Header.Set("ETag", etag)
		}
		if lastModified != "" {
			resp.Header.Set("Last-Modified", lastModified)
		}
		resp.Header.Set("Content-Length", "9")
		return resp
	}
}

func TestConditionalGet(t *testing.T) {
	const lm = "Mon, 02 Jan 2006 15:04:05 GMT"

	tests := []struct {
		name         string
		etag, lm     string
		reqHeaders   map[string]string
		wantStatus   int
		wantBodyText string
	}{
		{"etag match", `"abc"`, "", map[string]string{"If-None-Match": `"abc"`}, 304, ""},
		{"etag mismatch", `"abc"`, "", map[string]string{"If-None-Match": `"xyz"`}, 200, "full body"},
		{"last modified match", "", lm, map[string]string{"If-Modified-Since": lm}, 304, ""},
		{"last modified is string equality only", "", lm, map[string]string{"If-Modified-Since": "Mon, 02 Jan 2006 15:04:06 GMT"}, 200, "full body"},
		{"no conditional headers", `"abc"`, lm, nil, 200, "full body"},
		{"no validators", "", "", map[string]string{"If-None-Match": `"abc"`}, 200, "full body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ConditionalGet()(&recordingHandler{resp: validatorResponse(tt.etag, tt.lm)})
			env := transport.NewEnv("GET", "/doc")
			for k, v := range tt.reqHeaders {
				env.SetHeader(k, v)
			}

			resp, err := h.Handle(context.Background(), env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.Status, tt.wantStatus)
			}
			if got := bodyString(t, resp); got != tt.wantBodyText {
				t.Errorf("body = %q, want %q", got, tt.wantBodyText)
			}
			if tt.wantStatus == 304 && resp.Header.Has("Content-Length") {
				t.Error("304 should not keep Content-Length")
			}
		})
	}
}

func TestConditionalGetClosesOriginalBody(t *testing.T) {
	src := &closeCounter{}
	h := ConditionalGet()(&recordingHandler{resp: func(transport.Env) *transport.Response {
		resp := transport.NewResponse(200, transport.ReaderBody(src, -1))
		resp.Header.Set("ETag", "v1")
		return resp
	}})
	env := transport.NewEnv("GET", "/")
	env.SetHeader("If-None-Match", "v1")

	h.Handle(context.Background(), env)
	if src.closed != 1 {
		t.Errorf("original body closed %d times, want 1", src.closed)
	}
}

type closeCounter struct{ closed int }

func (c *closeCounter) Read([]byte) (int, error) { return 0, nil }
func (c *closeCounter) Close() error             { c.closed++; return nil }
