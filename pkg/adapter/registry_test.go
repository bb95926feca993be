package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/gantry/pkg/transport"
)

type stubAdapter struct{ name string }

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Start(context.Context, transport.Handler, Options) error { return nil }

func stub(name string) Factory {
	return func() Adapter { return &stubAdapter{name: name} }
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stub("one"), "one", "uno"))

	a, err := r.Lookup("uno")
	require.NoError(t, err)
	assert.Equal(t, "one", a.Name())

	assert.Equal(t, []string{"one", "uno"}, r.IDs())
	assert.Equal(t, map[string][]string{"one": {"one", "uno"}}, r.Aliases())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stub("one"), "one"))

	err := r.Register(stub("two"), "two", "one")
	require.ErrorIs(t, err, ErrDuplicateAdapter)

	_, err = r.Lookup("two")
	assert.ErrorIs(t, err, ErrUnknownAdapter, "failed registration must not leave partial aliases")
}

func TestRegistryFreeze(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stub("one"), "one"))
	r.Freeze()

	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Register(stub("two"), "two"), ErrRegistryFrozen)

	a, err := r.Lookup("one")
	require.NoError(t, err)
	assert.Equal(t, "one", a.Name())
}

func TestRegistryUnknownAdapter(t *testing.T) {
	_, err := Default().Lookup("webrick2")
	require.ErrorIs(t, err, ErrUnknownAdapter)
	assert.Contains(t, err.Error(), "webrick2")
}

func TestRegistryRejectsInvalidRegistration(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil, "x"))
	assert.Error(t, r.Register(stub("x")))
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	require.True(t, r.Frozen())

	tests := map[string]string{
		"nethttp":  "nethttp",
		"mongrel":  "nethttp",
		"webrick":  "nethttp",
		"fasthttp": "fasthttp",
		"thin":     "fasthttp",
		"fcgi":     "fcgi",
	}
	for id, want := range tests {
		a, err := r.Lookup(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, a.Name(), id)
	}
}

func TestRegistryConcurrentLookups(t *testing.T) {
	r := Default()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Lookup("thin")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestOptionsDefaults(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", Options{}.Addr())
	assert.Equal(t, "127.0.0.1:9000", Options{Host: "127.0.0.1", Port: 9000}.Addr())

	o := Options{}.withDefaults()
	assert.NotNil(t, o.Logger)
	assert.Positive(t, o.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, o.ReadHeaderTimeout)
	assert.Equal(t, int64(10<<20), o.MaxBodySize)
}
