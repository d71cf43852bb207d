package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/vendas/api/vendas/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	req := httptest.NewRequest(http.MethodGet, "/vendas/api/vendas/99", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	// The route label uses the chi pattern, never the raw path.
	assert.Contains(t, body, `pdv_http_requests_total{code="404",route="/vendas/api/vendas/{id}"}`)
	assert.False(t, strings.Contains(body, "/vendas/api/vendas/99"))
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.SalesFinalized.Inc()
	m.SalesCancelled.Inc()
	m.CartItemsRejected.WithLabelValues("serial").Inc()
	m.PricingComputed.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "pdv_sales_finalized_total 1")
	assert.Contains(t, body, "pdv_sales_cancelled_total 1")
	assert.Contains(t, body, `pdv_cart_items_rejected_total{reason="serial"} 1`)
	assert.Contains(t, body, "pdv_pricing_computations_total 1")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
