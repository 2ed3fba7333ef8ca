package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/concave-dev/trail/internal/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config := DefaultConfig()
	config.Registry = newTestService(t)
	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return server
}

// TestCORSMiddleware tests CORS header setting
func TestCORSMiddleware(t *testing.T) {
	server := newTestServer(t)

	router := gin.New()
	router.Use(server.corsMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request with CORS headers", "GET", 200},
		{"OPTIONS request should return 204", "OPTIONS", 204},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			expectedHeaders := map[string]string{
				"Access-Control-Allow-Origin":      "*",
				"Access-Control-Allow-Methods":     "GET, POST, PUT, DELETE, OPTIONS",
				"Access-Control-Allow-Headers":     "Accept, Authorization, Content-Type, X-CSRF-Token",
				"Access-Control-Expose-Headers":    "Link, Retry-After",
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Max-Age":           "300",
			}
			for header, expectedValue := range expectedHeaders {
				if actual := w.Header().Get(header); actual != expectedValue {
					t.Errorf("Header %s = %q, want %q", header, actual, expectedValue)
				}
			}
		})
	}
}

// TestMetricsMiddleware tests that requests are counted by route template
func TestMetricsMiddleware(t *testing.T) {
	server := newTestServer(t)

	router := gin.New()
	router.Use(server.metricsMiddleware())
	router.GET("/things/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	counter := metrics.APIRequests.WithLabelValues("GET", "/things/:id", "204")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/things/"+id, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("Expected 3 requests counted under the route template, got %v", got)
	}

	unmatched := metrics.APIRequests.WithLabelValues("GET", "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/elsewhere", nil))
	if got := testutil.ToFloat64(unmatched) - before; got != 1 {
		t.Errorf("Expected unmatched request to be counted once, got %v", got)
	}
}
