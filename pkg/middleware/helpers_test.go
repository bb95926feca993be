package middleware

import (
	"context"
	"testing"

	"github.com/rhuss/gantry/pkg/transport"
)

// recordingHandler remembers the environment it was called with.
type recordingHandler struct {
	calls int
	env   transport.Env
	resp  func(env transport.Env) *transport.Response
}

func (r *recordingHandler) Handle(ctx context.Context, env transport.Env) (*transport.Response, error) {
	r.calls++
	r.env = env.Clone()
	if r.resp != nil {
		return r.resp(env), nil
	}
	return transport.TextResponse(200, env.Path()), nil
}

func bodyString(t *testing.T, resp *transport.Response) string {
	t.Helper()
	b, err := transport.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(b)
}
