package adapter

// Default returns a frozen registry with the built-in backends:
//
//	nethttp  (aliases mongrel, webrick)
//	fasthttp (alias thin)
//	fcgi
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(func() Adapter { return &NetHTTP{} }, "nethttp", "mongrel", "webrick")
	r.MustRegister(func() Adapter { return &FastHTTP{} }, "fasthttp", "thin")
	r.MustRegister(func() Adapter { return &FCGI{} }, "fcgi")
	r.Freeze()
	return r
}
