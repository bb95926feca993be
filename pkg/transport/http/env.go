package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rhuss/gantry/pkg/transport"
)

// RequestEnv builds the environment record for r. Header values with
// several lines are joined with ", ". The body is exposed as rack.input
// without buffering.
func RequestEnv(r *http.Request) transport.Env {
	env := transport.NewEnv(r.Method, r.URL.RequestURI())
	env[transport.KeyPathInfo] = r.URL.Path
	env[transport.KeyRequestPath] = r.URL.Path

	host, port := splitHostPort(r.Host)
	env[transport.KeyServerName] = host
	env[transport.KeyServerPort] = port
	env[transport.KeyRemoteAddr] = r.RemoteAddr
	env["HTTP_HOST"] = r.Host
	env["SERVER_PROTOCOL"] = r.Proto

	for name, values := range r.Header {
		env[transport.HeaderKey(name)] = strings.Join(values, ", ")
	}
	if r.ContentLength >= 0 && r.Body != nil && r.Body != http.NoBody {
		env[transport.KeyContentLength] = strconv.FormatInt(r.ContentLength, 10)
	}
	if r.Body != nil {
		env.SetInput(r.Body)
	}
	return env
}

func splitHostPort(hostport string) (string, string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, "80"
	}
	return host, port
}
