package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDecision(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveDecision(true, "allowlisted")
	m.ObserveDecision(true, "allowlisted")
	m.ObserveDecision(false, "invalid api key")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("allowed", "allowlisted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("denied", "invalid api key")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.decisions.WithLabelValues("denied", "allowlisted")))
}

func TestObserveSend(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveSend("smtp", "success", 120*time.Millisecond)
	m.ObserveSend("smtp", "auth_error", 40*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("smtp", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("smtp", "auth_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.sendDuration))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveDecision(false, "ip not allowlisted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mailrelay_access_decisions_total{outcome="denied",reason="ip not allowlisted"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRegistry_IsolatedPerInstance(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.ObserveSend("ses", "success", time.Second)
	a.ObserveSend("smtp", "protocol_error", time.Second)

	count, err := testutil.GatherAndCount(a.Registry(), "mailrelay_send_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(b.Registry(), "mailrelay_send_total")
	require.NoError(t, err)
	assert.Zero(t, count)

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "mailrelay_send_duration_seconds")
	assert.Contains(t, names, "go_goroutines")
}
