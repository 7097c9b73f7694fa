package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, s *Server, path string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, testConfig(), 100, stubEnhancer{})

	body := getJSON(t, s, "/health")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestServiceInfo(t *testing.T) {
	s := newTestServer(t, testConfig(), 100, stubEnhancer{})

	body := getJSON(t, s, "/")
	assert.Equal(t, ServiceName, body["name"])
	assert.Equal(t, "ready", body["status"])
	assert.Contains(t, body["endpoints"], "enhance")
}

func TestStats(t *testing.T) {
	s := newTestServer(t, testConfig(), 100, stubEnhancer{})

	// One successful anonymous request so there is something to count.
	req := uploadRequest(t, "/enhance?scale=2", pngBytes(t, 400, 400), "image/png")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body := getJSON(t, s, "/stats")
	assert.Equal(t, true, body["redis_connected"])
	assert.Equal(t, float64(1), body["total_ips_today"])
	assert.Equal(t, float64(0), body["total_api_keys_today"])
	assert.Equal(t, float64(1), body["total_requests_today"])
	assert.Equal(t, float64(100), body["daily_limit_per_key"])
	assert.Equal(t, "freeApiluminascalem", body["free_api_key_name"])

	process, ok := body["process"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), process["served"])
	assert.Equal(t, float64(0), process["rejected"])

	// Stats reads never consume quota: a follow-up request still sees used=2.
	req = uploadRequest(t, "/enhance?scale=2", pngBytes(t, 400, 400), "image/png")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Quota-Used"))
}
