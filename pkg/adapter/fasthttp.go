package adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"golang.org/x/sync/semaphore"

	"github.com/rhuss/gantry/pkg/debug"
	"github.com/rhuss/gantry/pkg/transport"
)

// FastHTTP serves the chain on valyala/fasthttp's worker pool. Requests
// the chain reports as deferred run under a separate bounded budget so
// slow actions can not occupy every worker.
type FastHTTP struct {
	app      transport.Handler
	opts     Options
	deferred *semaphore.Weighted
	inflight *transport.InFlightRegistry
	metrics  fasthttp.RequestHandler

	// base is the parent of every request context. It outlives ctx so
	// requests can drain during shutdown.
	base       context.Context
	cancelBase context.CancelFunc
}

// Name implements Adapter.
func (*FastHTTP) Name() string { return "fasthttp" }

// Start implements Adapter.
func (f *FastHTTP) Start(ctx context.Context, app transport.Handler, opts Options) error {
	f.init(app, opts)
	defer f.cancelBase()

	srv := &fasthttp.Server{
		Handler:                       f.serve,
		Name:                          "gantry",
		MaxRequestBodySize:            int(f.opts.MaxBodySize),
		ReadTimeout:                   f.opts.ReadHeaderTimeout,
		DisableHeaderNamesNormalizing: true,
		Logger:                        fasthttpLogger{f.opts.Logger},
	}

	ln, err := f.opts.listen()
	if err != nil {
		return err
	}
	f.opts.Logger.Info("fasthttp server starting", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	f.opts.Logger.Info("shutting down gracefully", slog.Duration("timeout", f.opts.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), f.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		n := f.inflight.CancelAll()
		f.opts.Logger.Error("shutdown error",
			slog.String("error", err.Error()),
			slog.Int("cancelled_deferred", n),
		)
		return err
	}
	f.opts.Logger.Info("server stopped")
	return nil
}

func (f *FastHTTP) init(app transport.Handler, opts Options) {
	f.app = app
	f.opts = opts.withDefaults()
	f.deferred = semaphore.NewWeighted(f.opts.DeferredLimit)
	f.inflight = transport.NewInFlightRegistry()
	f.base, f.cancelBase = context.WithCancel(context.Background())
	if f.opts.MetricsPath != "" && f.opts.MetricsHandler != nil {
		f.metrics = fasthttpadaptor.NewFastHTTPHandler(f.opts.MetricsHandler)
	}
}

// serve is the fasthttp request handler.
func (f *FastHTTP) serve(rc *fasthttp.RequestCtx) {
	if f.metrics != nil && string(rc.Path()) == f.opts.MetricsPath {
		f.metrics(rc)
		return
	}

	env := fastEnv(rc)
	if !transport.IsDeferred(f.app, env) {
		f.handle(f.base, rc, env)
		return
	}

	waitCtx, cancelWait := context.WithTimeout(f.base, f.opts.DeferredWait)
	err := f.deferred.Acquire(waitCtx, 1)
	cancelWait()
	if err != nil {
		debug.Log("deferral", "deferred budget exhausted", "path", env.Path())
		writeFastResponse(rc, transport.TextResponse(http.StatusServiceUnavailable, "Service Unavailable"))
		return
	}
	defer f.deferred.Release(1)

	ctx, cancel := context.WithCancel(f.base)
	defer cancel()
	id := env.RequestID()
	if id == "" {
		id = uuid.NewString()
	}
	f.inflight.Register(id, cancel)
	defer f.inflight.Remove(id)

	f.handle(ctx, rc, env)
}

func (f *FastHTTP) handle(ctx context.Context, rc *fasthttp.RequestCtx, env transport.Env) {
	resp, err := f.app.Handle(ctx, env)
	if err != nil {
		resp = transport.ErrorResponse(err)
	}
	if resp == nil {
		resp = transport.TextResponse(http.StatusInternalServerError, "handler returned no response")
	}
	if err := resp.Validate(); err != nil {
		resp = transport.ErrorResponse(err)
	}
	writeFastResponse(rc, resp)
}

// fastEnv builds the environment record for a fasthttp request.
func fastEnv(rc *fasthttp.RequestCtx) transport.Env {
	env := transport.NewEnv(string(rc.Method()), string(rc.RequestURI()))
	path := string(rc.Path())
	env[transport.KeyPathInfo] = path
	env[transport.KeyRequestPath] = path

	host := string(rc.Host())
	env["HTTP_HOST"] = host
	if name, port, err := net.SplitHostPort(host); err == nil {
		env[transport.KeyServerName] = name
		env[transport.KeyServerPort] = port
	} else {
		env[transport.KeyServerName] = host
		env[transport.KeyServerPort] = "80"
	}
	env[transport.KeyRemoteAddr] = rc.RemoteAddr().String()
	env["SERVER_PROTOCOL"] = string(rc.Request.Header.Protocol())

	rc.Request.Header.VisitAll(func(k, v []byte) {
		key := transport.HeaderKey(string(k))
		if prev, ok := env[key].(string); ok && key != "HTTP_HOST" {
			env[key] = prev + ", " + string(v)
			return
		}
		env[key] = string(v)
	})

	body := rc.PostBody()
	if len(body) > 0 {
		env[transport.KeyContentLength] = strconv.Itoa(len(body))
	}
	env.SetInput(bytes.NewReader(body))
	return env
}

// writeFastResponse serializes resp onto rc. Buffered bodies are copied
// into the response; other bodies are streamed after the handler returns,
// with a fixed length when their size is known.
func writeFastResponse(rc *fasthttp.RequestCtx, resp *transport.Response) {
	rc.SetStatusCode(resp.Status)
	declared := -1
	resp.Header.Each(func(key string, values []string) {
		switch {
		case strings.EqualFold(key, "Content-Length"):
			// fasthttp writes the length itself; a declared one only
			// survives on HEAD responses.
			if len(values) > 0 {
				if n, err := strconv.Atoi(values[0]); err == nil && n >= 0 {
					declared = n
				}
			}
		case strings.EqualFold(key, "Content-Type"):
			if len(values) > 0 {
				rc.SetContentType(values[0])
			}
		default:
			for _, v := range values {
				rc.Response.Header.Add(key, v)
			}
		}
	})

	if !transport.BodyAllowed(resp.Status) {
		resp.Body.Close()
		return
	}

	body := resp.Body
	if rc.IsHead() {
		size := int(body.Size())
		body.Close()
		if declared < 0 && body.Kind() != transport.Producer {
			declared = size
		}
		if declared >= 0 {
			rc.Response.Header.SetContentLength(declared)
		}
		return
	}

	switch {
	case body.Kind() == transport.Buffered:
		data, err := transport.ReadAll(body)
		if err != nil {
			debug.Log("adapter", "reading buffered body failed", "error", err)
		}
		rc.SetBody(data)
	case body.Kind() == transport.Chunked && body.Size() >= 0:
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(transport.WriteBody(pw, body, nil))
		}()
		rc.SetBodyStream(pr, int(body.Size()))
	default:
		rc.SetBodyStreamWriter(func(w *bufio.Writer) {
			if err := transport.WriteBody(w, body, w.Flush); err != nil {
				debug.Log("adapter", "streaming body aborted", "error", err)
				return
			}
			w.Flush()
		})
	}
}

// fasthttpLogger routes fasthttp's internal messages into slog.
type fasthttpLogger struct{ l *slog.Logger }

func (f fasthttpLogger) Printf(format string, args ...any) {
	f.l.Warn("fasthttp", slog.String("message", strings.TrimSpace(fmt.Sprintf(format, args...))))
}
