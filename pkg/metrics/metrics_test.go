package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRun("chatbot", "stream", nil, time.Second)
	m.ObserveRun("chatbot", "stream", errors.New("boom"), time.Second)
	m.ObserveRun("chatbot", "stream", nil, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("chatbot", "stream", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("chatbot", "stream", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("a", "invoke", nil, 0)
		m.ObserveFrame("token")
		m.ObserveHTTP("/", "GET", 200, 0)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveFrame("token")
	m.ObserveHTTP("/chat/stream", "POST", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `machine_translation_stream_frames_total{type="token"} 1`)
	assert.Contains(t, string(body), "machine_translation_http_requests_total")
}
