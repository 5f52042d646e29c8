// Package nethttp integrates the Catcher with plain net/http servers.
//
//	mux := http.NewServeMux()
//	mux.Handle("GET /users/{id}", nethttp.HandlerFunc(getUser))
//	handler := nethttp.Setup(mux, catcher, adapters.Options{SkipStatusCodes: []int{404}})
//	http.ListenAndServe(":8080", handler)
//
// Panics are recovered and reported; handlers written as HandlerFunc have
// their returned errors reported and answered with the mapped status.
package nethttp

import (
	"net/http"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
	"github.com/strongdm/sentinel-catcher/pkg/sentinel/adapters"
)

// FrameworkName tags reports captured by this adapter.
const FrameworkName = "net/http"

// HandlerFunc is a handler that returns its error.
type HandlerFunc = adapters.HandlerFunc

// New creates the adapter for c. Unset options take the Catcher's defaults.
func New(c *sentinel.Catcher, opts adapters.Options) *adapters.Base {
	return adapters.NewBase(adapters.Framework{
		Name:  FrameworkName,
		Route: routePattern,
	}, c, opts.WithDefaults(c.Config()))
}

// Middleware returns the recovering, reporting middleware for c.
func Middleware(c *sentinel.Catcher, opts adapters.Options) func(http.Handler) http.Handler {
	return New(c, opts).Middleware(c)
}

// Setup wraps mux with the middleware and returns the handler to serve. It is
// idempotent per mux: later calls return the handler built by the first one,
// whatever Catcher they pass.
func Setup(mux *http.ServeMux, c *sentinel.Catcher, opts adapters.Options) http.Handler {
	reg, first := adapters.Register(mux, func() adapters.Registration {
		b := New(c, opts)
		return adapters.Registration{Catcher: c, Adapter: b, Value: b.Middleware(c)(mux)}
	})
	if !first && reg.Catcher != c {
		reg.Adapter.Logger().Warn("sentinel: mux already set up with another catcher")
	}
	return reg.Value.(http.Handler)
}

// routePattern returns the ServeMux pattern that matched r.
func routePattern(r *http.Request) string {
	return r.Pattern
}
