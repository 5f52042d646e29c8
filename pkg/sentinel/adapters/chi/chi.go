// Package chi integrates the Catcher with go-chi routers. Reports carry the
// chi route pattern and the request ID set by chi's RequestID middleware.
package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
	"github.com/strongdm/sentinel-catcher/pkg/sentinel/adapters"
)

// FrameworkName tags reports captured by this adapter.
const FrameworkName = "chi"

// New creates the adapter for c. Unset options take the Catcher's defaults.
func New(c *sentinel.Catcher, opts adapters.Options) *adapters.Base {
	return adapters.NewBase(adapters.Framework{
		Name:      FrameworkName,
		Route:     RoutePattern,
		RequestID: requestID,
	}, c, opts.WithDefaults(c.Config()))
}

// Middleware returns the recovering, reporting middleware for c.
func Middleware(c *sentinel.Catcher, opts adapters.Options) func(http.Handler) http.Handler {
	return New(c, opts).Middleware(c)
}

// Setup installs the middleware on r and returns the Catcher attached to it.
// It is idempotent per router; like any chi middleware it must run before
// routes are defined.
func Setup(r gochi.Router, c *sentinel.Catcher, opts adapters.Options) *sentinel.Catcher {
	reg, first := adapters.Register(r, func() adapters.Registration {
		b := New(c, opts)
		r.Use(b.Middleware(c))
		return adapters.Registration{Catcher: c, Adapter: b}
	})
	if !first && reg.Catcher != c {
		reg.Adapter.Logger().Warn("sentinel: router already set up with another catcher")
	}
	return reg.Catcher
}

// RoutePattern returns the chi route pattern matched so far, e.g.
// "/users/{id}".
func RoutePattern(r *http.Request) string {
	rctx := gochi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
