package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New()

	router := gin.New()
	router.Use(r.GinMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	r.Handler().ServeHTTP(metricsRec, metricsReq)

	body := metricsRec.Body.String()
	assert.True(t, strings.Contains(body, "mnemo_http_requests_total"))
	assert.True(t, strings.Contains(body, `method="GET"`))
}

func TestRecordDecayPassIncrementsCounters(t *testing.T) {
	r := New()
	r.RecordDecayPass(2, 1, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "mnemo_lifecycle_memories_forgotten_total 2"))
	assert.True(t, strings.Contains(body, "mnemo_lifecycle_memories_archived_total 1"))
}
