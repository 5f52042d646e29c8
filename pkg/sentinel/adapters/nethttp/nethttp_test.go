package nethttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
	"github.com/strongdm/sentinel-catcher/pkg/sentinel/adapters"
)

type chanDeliverer struct {
	envs chan sentinel.Envelope
}

func (d *chanDeliverer) Send(ctx context.Context, env sentinel.Envelope) sentinel.Outcome {
	d.envs <- env
	return sentinel.Outcome{Status: sentinel.StatusDelivered, Attempts: 1}
}

func (d *chanDeliverer) Ping(context.Context) error { return nil }

func newCatcher(t *testing.T, skip ...int) (*sentinel.Catcher, *chanDeliverer) {
	t.Helper()
	d := &chanDeliverer{envs: make(chan sentinel.Envelope, 16)}
	c, err := sentinel.New(sentinel.Config{
		SentinelURL:     "https://s.test",
		ServiceName:     "svc",
		SkipStatusCodes: skip,
	}, sentinel.WithDeliverer(d), sentinel.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	c.Initialize()
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c, d
}

func TestSetup_ReportsHandlerErrorsWithPattern(t *testing.T) {
	c, d := newCatcher(t)
	mux := http.NewServeMux()
	t.Cleanup(func() { adapters.Unregister(mux) })
	mux.Handle("GET /users/{id}", HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return adapters.Errorf(http.StatusServiceUnavailable, "user %s unavailable", r.PathValue("id"))
	}))

	srv := httptest.NewServer(Setup(mux, c, adapters.Options{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/users/42")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	select {
	case env := <-d.envs:
		assert.Equal(t, "user 42 unavailable", env.Error.Message)
		assert.Equal(t, "GET /users/{id}", env.Context["route"])
		assert.Equal(t, []string{"framework", FrameworkName}, env.Tags)
	case <-time.After(2 * time.Second):
		t.Fatal("handler error was not reported")
	}
}

func TestSetup_SkipStatusCodesFromConfig(t *testing.T) {
	c, d := newCatcher(t, http.StatusNotFound)
	mux := http.NewServeMux()
	t.Cleanup(func() { adapters.Unregister(mux) })
	mux.Handle("/users/{id}", HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return adapters.NewHTTPError(http.StatusNotFound, errors.New("user not found"))
	}))

	rec := httptest.NewRecorder()
	Setup(mux, c, adapters.Options{}).ServeHTTP(rec, httptest.NewRequest("GET", "/users/404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	select {
	case env := <-d.envs:
		t.Fatalf("skipped status was reported: %+v", env.Error)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetup_RecoversPanics(t *testing.T) {
	c, d := newCatcher(t)
	mux := http.NewServeMux()
	t.Cleanup(func() { adapters.Unregister(mux) })
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("this is a test exception"))
	})

	rec := httptest.NewRecorder()
	Setup(mux, c, adapters.Options{}).ServeHTTP(rec, httptest.NewRequest("GET", "/error", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := <-d.envs
	assert.Equal(t, "this is a test exception", env.Error.Message)
	assert.Equal(t, sentinel.SeverityCritical, env.Severity)
}

func TestSetup_IsIdempotentPerMux(t *testing.T) {
	c, d := newCatcher(t)
	other, otherD := newCatcher(t)
	mux := http.NewServeMux()
	t.Cleanup(func() { adapters.Unregister(mux) })
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	Setup(mux, c, adapters.Options{})
	h := Setup(mux, other, adapters.Options{})
	assert.Same(t, c, adapters.Lookup(mux))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/error", nil))

	assert.Equal(t, "boom", (<-d.envs).Error.Message)
	select {
	case env := <-d.envs:
		t.Fatalf("panic reported twice: %+v", env.Error)
	case env := <-otherD.envs:
		t.Fatalf("second Setup installed another catcher: %+v", env.Error)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMiddleware_ManualReportFromHandler(t *testing.T) {
	c, d := newCatcher(t)
	h := Middleware(c, adapters.Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		catcher := sentinel.FromContext(r.Context())
		out, err := catcher.Report(r.Context(), errors.New("manually reported"),
			sentinel.WithContext(map[string]any{"operation": "manual_test"}),
			sentinel.WithTags("manual", "test"),
			sentinel.WithSeverity(sentinel.SeverityMedium))
		if err != nil || !out.OK() {
			http.Error(w, "report failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/manual-report", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	env := <-d.envs
	assert.Equal(t, sentinel.SourceManual, env.Source)
	assert.Equal(t, "manual_test", env.Context["operation"])
}
