package adapters

import (
	"context"
	"net/http"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
	"github.com/strongdm/sentinel-catcher/pkg/sentinel/hook"
)

type baseKey struct{}

// NewContext returns a context carrying b.
func NewContext(ctx context.Context, b *Base) context.Context {
	return context.WithValue(ctx, baseKey{}, b)
}

// FromContext returns the adapter attached by the middleware, or nil.
func FromContext(ctx context.Context) *Base {
	b, _ := ctx.Value(baseKey{}).(*Base)
	return b
}

// responseCapture records whether a handler already started its response.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// Middleware recovers panics from the handler chain, reports them and answers
// 500. It attaches b, and the Catcher when c is non-nil, to the request
// context so that HandlerFunc errors and manual reports find them. It should
// be the outermost middleware.
func (b *Base) Middleware(c *sentinel.Catcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := NewContext(r.Context(), b)
			if c != nil {
				ctx = sentinel.NewContext(ctx, c)
			}
			r = r.WithContext(ctx)
			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				b.log.Error("sentinel: panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", asError(rvr).Error())
				b.OnRequestPanic(r.Context(), rvr, hook.Callers(1), b.Describe(r))

				if !rc.written {
					http.Error(rc, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(rc, r)
		})
	}
}

// HandlerFunc is an http.Handler that returns its error instead of writing
// it. A non-nil error is reported through the adapter in the request context
// and answered with the status it maps to.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (h HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h(w, r); err != nil {
		Error(w, r, err)
	}
}

// Error reports err for r and, unless the handler already responded, writes
// the mapped status. Requests that did not pass through the middleware are
// answered without a report.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if b := FromContext(r.Context()); b != nil {
		desc := b.Describe(r)
		desc.StatusCode = status
		b.OnRequestError(r.Context(), err, desc)
	}

	if responded(w) {
		return
	}
	http.Error(w, http.StatusText(status), status)
}

// responded reports whether the handler already started the response,
// looking through writers that wrap the middleware's capture.
func responded(w http.ResponseWriter) bool {
	for {
		switch v := w.(type) {
		case *responseCapture:
			return v.written
		case interface{ Unwrap() http.ResponseWriter }:
			w = v.Unwrap()
		default:
			return false
		}
	}
}
