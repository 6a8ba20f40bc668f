package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/embedding"
	"github.com/mnemo-db/mnemo/pkg/fulltext"
	"github.com/mnemo-db/mnemo/pkg/lifecycle"
	"github.com/mnemo-db/mnemo/pkg/query"
	"github.com/mnemo-db/mnemo/pkg/storage/embedded"
	"github.com/mnemo-db/mnemo/pkg/vectorindex"
)

const testDimension = 16

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend, err := embedded.Open(filepath.Join(t.TempDir(), "mnemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	vecIndex := vectorindex.New(testDimension)
	ftIndex := fulltext.New()

	engine := &query.Engine{
		Storage:        backend,
		Embedder:       embedding.NewNoOp(testDimension),
		VectorIndex:    vecIndex,
		FullText:       ftIndex,
		DefaultAgentID: "a",
	}
	manager := &lifecycle.Manager{Storage: backend, VectorIndex: vecIndex, FullText: ftIndex}

	server := &Server{Engine: engine, Lifecycle: manager, Storage: backend}
	return server, server.NewRouter()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRememberThenRecallExact(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/memories", rememberBody{
		AgentID: "a", Content: "The user prefers dark mode", Importance: 0.8,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created["id"])

	rec = doJSON(t, router, http.MethodGet, "/v1/memories?agent_id=a&query=anything&strategy=exact", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, float64(1), result["total"])
}

func TestRememberRejectsEmptyContent(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/memories", rememberBody{AgentID: "a", Content: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForgetThenGetMemoryReturnsNotFoundAfterHardDelete(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/memories", rememberBody{AgentID: "a", Content: "throwaway"})
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	rec = doJSON(t, router, http.MethodDelete, "/v1/memories/"+id+"?agent_id=a&strategy=hard_delete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/memories/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStatsReportsMemoryCounts(t *testing.T) {
	_, router := newTestServer(t)
	for i := 0; i < 3; i++ {
		rec := doJSON(t, router, http.MethodPost, "/v1/memories", rememberBody{AgentID: "a", Content: "m"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/admin/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(3), stats["total_memories"])
	assert.Equal(t, float64(1), stats["agent_count"])
}

func TestAdminQuarantineThenUnquarantine(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/memories", rememberBody{AgentID: "a", Content: "m"})
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/admin/api/quarantine/"+id+"?reason=suspicious", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, true, result["quarantined"])

	rec = doJSON(t, router, http.MethodPost, "/admin/api/unquarantine/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, false, result["quarantined"])
}

func TestOTLPIngestMapsSpanToEvent(t *testing.T) {
	_, router := newTestServer(t)
	payload := map[string]any{
		"resourceSpans": []map[string]any{
			{
				"resource": map[string]any{
					"attributes": []map[string]any{
						{"key": "service.name", "value": map[string]any{"stringValue": "agent-7"}},
					},
				},
				"scopeSpans": []map[string]any{
					{
						"spans": []map[string]any{
							{
								"traceId":           "abc123",
								"spanId":             "def456",
								"startTimeUnixNano":  "1000000000",
								"endTimeUnixNano":    "1500000000",
								"attributes": []map[string]any{
									{"key": "gen_ai.operation.name", "value": map[string]any{"stringValue": "chat"}},
									{"key": "gen_ai.request.model", "value": map[string]any{"stringValue": "gpt-4"}},
								},
							},
						},
					},
				},
			},
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/ingest/otlp", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, float64(1), result["ingested"])
}
