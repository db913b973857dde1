package internal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()

	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	// Make a request to generate some metrics
	testReq := httptest.NewRequest("GET", "/ping", nil)
	testW := httptest.NewRecorder()
	router.ServeHTTP(testW, testReq)

	if testW.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", testW.Code)
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 from /metrics, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "http_requests_total") {
		t.Error("Expected http_requests_total in metrics output")
	}
	if !strings.Contains(body, `path="/ping"`) {
		t.Error("Expected route pattern label in metrics output")
	}
}

func TestObserveLoanOp(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveLoanOp("close", nil)
	metrics.ObserveLoanOp("close", nil)
	metrics.ObserveLoanOp("close", errors.New("boom"))

	router := chi.NewRouter()
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `loan_operations_total{operation="close",outcome="ok"} 2`) {
		t.Errorf("Expected ok counter at 2, body:\n%s", body)
	}
	if !strings.Contains(body, `loan_operations_total{operation="close",outcome="error"} 1`) {
		t.Errorf("Expected error counter at 1, body:\n%s", body)
	}
}

func TestStatusRecorderCapturesCode(t *testing.T) {
	metrics := NewMetrics()

	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(w.Body.String(), `status="Not Found"`) {
		t.Error("Expected Not Found status label in metrics output")
	}
}
