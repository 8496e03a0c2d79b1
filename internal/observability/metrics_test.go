package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.RecordRealtimeMessage("new_message")
	m1.RecordRealtimeMessage("new_message")
	m2.RecordRealtimeMessage("new_message")

	assert.Equal(t, float64(2), testutil.ToFloat64(m1.realtimeMessagesTotal.WithLabelValues("new_message")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m2.realtimeMessagesTotal.WithLabelValues("new_message")))
}

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics()

	m.SetRealtimeConnections(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.realtimeConnections))

	m.RecordRealtimePublish("typing")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.realtimePublishTotal.WithLabelValues("typing")))

	m.RecordRealtimeError("write_failed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.realtimeErrorsTotal.WithLabelValues("write_failed")))

	m.RecordPresenceRefresh()
	m.RecordPresenceRefresh()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.presenceRefreshTotal))

	m.RecordHTTPRequest("GET", "/health", "200")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))
}
