package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func scrape(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusBucket(tt.code), "statusBucket(%d)", tt.code)
	}
}

func TestExposition(t *testing.T) {
	r := gin.New()
	r.GET("/metrics", Handler())

	// Gauges export at their zero value without any observation.
	body := scrape(t, r)
	assert.Contains(t, body, "pointsguard_active_feed_clients")
	assert.Contains(t, body, "pointsguard_db_open_connections")

	// Counters only appear once a label set has been touched.
	TransactionsScoredTotal.WithLabelValues("LOW").Inc()
	assert.Contains(t, scrape(t, r), "pointsguard_transactions_scored_total")
}

func TestFlaggedCounterAdvances(t *testing.T) {
	before := flaggedCount(t, "high_value_redemption")
	TransactionsFlaggedTotal.WithLabelValues("high_value_redemption").Inc()
	TransactionsFlaggedTotal.WithLabelValues("high_value_redemption").Inc()
	assert.Equal(t, before+2, flaggedCount(t, "high_value_redemption"))
}

func flaggedCount(t *testing.T, rule string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, TransactionsFlaggedTotal.WithLabelValues(rule).Write(&m))
	return m.GetCounter().GetValue()
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := gin.New()
	r.Use(Middleware())
	r.GET("/metrics", Handler())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/items/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := scrape(t, r)
	assert.Contains(t, body, `path="/items/:id"`, "labels use the pattern, not the raw path")
	assert.False(t, strings.Contains(body, `path="/items/42"`))
}
