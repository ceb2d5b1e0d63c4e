package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/rentals", "201")
	})
}

func TestCounters(t *testing.T) {
	before := counterValue(t, rentalTransitions.WithLabelValues("accepted"))
	IncRentalTransition("accepted")
	assert.Equal(t, before+1, counterValue(t, rentalTransitions.WithLabelValues("accepted")))

	before = counterValue(t, paymentCallbacks.WithLabelValues("invalid"))
	IncPaymentCallback("invalid")
	IncPaymentCallback("invalid")
	assert.Equal(t, before+2, counterValue(t, paymentCallbacks.WithLabelValues("invalid")))

	before = counterValue(t, notifications.WithLabelValues("email", "failed"))
	IncNotification("email", "failed")
	assert.Equal(t, before+1, counterValue(t, notifications.WithLabelValues("email", "failed")))
}
