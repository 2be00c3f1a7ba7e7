package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDispense(t *testing.T) {
	before := testutil.ToFloat64(pillsDispensed.WithLabelValues("2", "http"))

	ObserveDispense(2, "http", 3, 7)

	assert.Equal(t, before+3, testutil.ToFloat64(pillsDispensed.WithLabelValues("2", "http")))
	assert.Equal(t, float64(7), testutil.ToFloat64(boxStock.WithLabelValues("2")))
}

func TestSetBoxStockAndForget(t *testing.T) {
	SetBoxStock(3, 42)
	assert.Equal(t, float64(42), testutil.ToFloat64(boxStock.WithLabelValues("3")))

	ForgetBox(3)
	assert.Equal(t, float64(0), testutil.ToFloat64(boxStock.WithLabelValues("3")))
}

func TestDeviceReport(t *testing.T) {
	before := testutil.ToFloat64(deviceReports.WithLabelValues(ResultUnauthorized))
	DeviceReport(ResultUnauthorized)
	assert.Equal(t, before+1, testutil.ToFloat64(deviceReports.WithLabelValues(ResultUnauthorized)))
}
