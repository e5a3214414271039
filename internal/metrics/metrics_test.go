package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.MessagesSent.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.MessagesSent))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MessagesSent))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.SignIns.WithLabelValues("credentials", "success").Inc()
	m.RequestsTotal.WithLabelValues("/api/send-message", "POST", "201").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `whisper_sign_ins_total{method="credentials",outcome="success"} 1`)
	assert.Contains(t, body, `whisper_http_requests_total{method="POST",route="/api/send-message",status="201"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
