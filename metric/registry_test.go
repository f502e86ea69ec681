package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wskeeper/errors"
)

func newCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wskeeper",
		Name:      name,
		Help:      "test counter",
	})
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg.PrometheusRegistry())

	err := reg.Register("conn-1", "sent_total", newCounter("sent_total"))
	require.NoError(t, err)
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("conn-1", "sent_total", newCounter("sent_total")))

	err := reg.Register("conn-1", "sent_total", newCounter("other"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_PrometheusConflict(t *testing.T) {
	reg := NewRegistry()

	// Same fully qualified metric name under a different owner key: the
	// registry map allows it, Prometheus does not.
	require.NoError(t, reg.Register("conn-1", "sent_total", newCounter("sent_total")))

	err := reg.Register("conn-2", "sent_total", newCounter("sent_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("conn-1", "sent_total", newCounter("sent_total")))
	assert.True(t, reg.Unregister("conn-1", "sent_total"))
	assert.False(t, reg.Unregister("conn-1", "sent_total"))

	// Slot is free again after unregistering.
	require.NoError(t, reg.Register("conn-1", "sent_total", newCounter("sent_total")))
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry()
	c := newCounter("handled_total")
	require.NoError(t, reg.Register("conn-1", "handled_total", c))
	c.Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "wskeeper_handled_total 1")
}
