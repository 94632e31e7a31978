package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeGate struct {
	locked  bool
	touches int
}

func (g *fakeGate) Touch() bool {
	g.touches++
	return !g.locked
}

func TestRequireUnlocked(t *testing.T) {
	gate := &fakeGate{locked: true}
	called := false
	h := RequireUnlocked(gate, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	if rec.Code != http.StatusLocked || called {
		t.Fatalf("expected 423 without calling handler, got %d called=%v", rec.Code, called)
	}

	gate.locked = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected pass through, got %d", rec.Code)
	}
	if gate.touches != 2 {
		t.Fatalf("expected every request to touch the session, got %d", gate.touches)
	}
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	h := RequestID(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc" {
		t.Fatalf("expected echoed id, got %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get(requestIDHeader); len(got) != 36 {
		t.Fatalf("expected minted uuid, got %q", got)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLoggingRecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Logging(logger.Nop(), metrics.NewHTTPMetrics(reg)))
	r.Get("/api/v1/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/42", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["route"] == "/api/v1/products/{id}" && labels["status"] == "418" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected a sample labelled with the route pattern")
	}
}
