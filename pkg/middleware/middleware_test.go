package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := Prometheus(WithRegistry(reg))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "cascade_http_requests_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			var path, status string
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "path":
					path = l.GetValue()
				case "status":
					status = l.GetValue()
				}
			}
			got[path+" "+status] = m.GetCounter().GetValue()
		}
	}
	if got["/healthz 200"] != 3 {
		t.Errorf("healthz 200 count = %v, want 3", got["/healthz 200"])
	}
	if got["/missing 404"] != 1 {
		t.Errorf("missing 404 count = %v, want 1", got["/missing 404"])
	}
}

func TestPrometheusDurationHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := Prometheus(WithRegistry(reg), WithSubsystem("api"))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() == "cascade_api_request_duration_seconds" {
			found = true
			if n := fam.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
				t.Errorf("sample count = %d, want 1", n)
			}
		}
	}
	if !found {
		t.Fatal("duration histogram not registered")
	}
}

func TestMiddlewareKeepsWriterHijackable(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Hijacker); !ok {
			t.Error("writer is not an http.Hijacker inside the middleware chain")
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := OpenTelemetry()(Prometheus(WithRegistry(prometheus.NewRegistry()))(inner))

	// A real server so the underlying writer supports hijacking at all.
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestOpenTelemetryPassesThrough(t *testing.T) {
	mw := OpenTelemetry(WithTracerName("test"))
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("handler not called")
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
}
