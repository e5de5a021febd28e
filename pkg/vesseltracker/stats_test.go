package vesseltracker

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, handler http.Handler, path string) (int, string) {
	t.Helper()

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))

	body, err := io.ReadAll(recorder.Result().Body)
	require.NoError(t, err)

	return recorder.Code, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	healthy := true
	check := func() error {
		if !healthy {
			return errors.New("stream is reconnect-scheduled")
		}
		return nil
	}
	mux := NewStatsMux(prometheus.NewRegistry(), check, nil)

	code, body := get(t, mux, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)

	healthy = false
	code, body = get(t, mux, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "reconnect-scheduled")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	registerCacheMetrics(reg, func() int { return 3 }, func() int { return 4 })

	code, body := get(t, NewStatsMux(reg, nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `vesseltracker_cache_size{cache="location"} 3`)
	assert.Contains(t, body, `vesseltracker_cache_size{cache="metadata"} 4`)
}

func TestQueueStatsOnlyWithQueue(t *testing.T) {
	code, _ := get(t, NewStatsMux(prometheus.NewRegistry(), nil, nil), "/vessel-events/stats")
	assert.Equal(t, http.StatusNotFound, code)
}
