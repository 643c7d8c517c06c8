package metrics

import (
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	m := NewMetrics("synthesis")

	m.CapturesTotal.WithLabelValues("completed").Inc()
	m.URLResolutions.WithLabelValues("applescript", "hit").Inc()
	m.URLResolutions.WithLabelValues("session_file", "miss").Add(2)
	m.TokenRefreshes.WithLabelValues("scheduled", "success").Inc()
	m.DeepLinkCallbacks.WithLabelValues("state_mismatch").Inc()
	m.TempFilesSwept.Add(3)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	captures, ok := byName["synthesis_captures_total"]
	require.True(t, ok)
	assert.Equal(t, float64(1), captures.GetMetric()[0].GetCounter().GetValue())

	urls, ok := byName["synthesis_url_resolutions_total"]
	require.True(t, ok)
	assert.Len(t, urls.GetMetric(), 2)

	swept, ok := byName["synthesis_temp_files_swept_total"]
	require.True(t, ok)
	assert.Equal(t, float64(3), swept.GetMetric()[0].GetCounter().GetValue())
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics("synthesis")
	m.CapturesTotal.WithLabelValues("cancelled").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "synthesis_captures_total")
}
