package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/api/requests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/requests/{id}", "404"))
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/requests/{id}", "404"))
	assert.Equal(t, 3.0, after-before)
}

func TestGaugesReflectLatestCounts(t *testing.T) {
	SetRequestsByStatus(map[string]int{"pending": 4, "fulfilled": 1})
	assert.Equal(t, 4.0, testutil.ToFloat64(requestsByStatus.WithLabelValues("pending")))

	SetRequestsByStatus(map[string]int{"pending": 2})
	assert.Equal(t, 2.0, testutil.ToFloat64(requestsByStatus.WithLabelValues("pending")))

	SetDonorsByGroup(map[string]int{"O-": 7})
	assert.Equal(t, 7.0, testutil.ToFloat64(donorsByGroup.WithLabelValues("O-")))
}
