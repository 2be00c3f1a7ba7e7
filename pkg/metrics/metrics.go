// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the dispenser service. Labels are kept to route patterns and box ids so
// cardinality stays bounded.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Device report outcomes used as the result label
const (
	ResultSuccess      = "success"
	ResultUnauthorized = "unauthorized"
	ResultBadRequest   = "bad_request"
	ResultNotFound     = "not_found"
	ResultError        = "error"
)

var (
	// HTTPRequests counts requests by method, route pattern and status code.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration records request latency by method and route pattern.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pillbox_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPInflight gauges requests currently being served.
	HTTPInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pillbox_http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	pillsDispensed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_pills_dispensed_total",
			Help: "Pills reported as dispensed by controllers.",
		},
		[]string{"box", "source"},
	)

	boxStock = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pillbox_box_stock",
			Help: "Last known remaining pill count per box.",
		},
		[]string{"box"},
	)

	deviceReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillbox_device_reports_total",
			Help: "Device dispense reports by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration, HTTPInflight,
		pillsDispensed, boxStock, deviceReports,
	)
}

// ObserveDispense records a successful dispense and the stock it left behind.
func ObserveDispense(boxID int, source string, dispensed, remaining int) {
	box := strconv.Itoa(boxID)
	pillsDispensed.WithLabelValues(box, source).Add(float64(dispensed))
	boxStock.WithLabelValues(box).Set(float64(remaining))
}

// SetBoxStock updates the stock gauge for a box.
func SetBoxStock(boxID, remaining int) {
	boxStock.WithLabelValues(strconv.Itoa(boxID)).Set(float64(remaining))
}

// ForgetBox drops the stock gauge of an emptied slot.
func ForgetBox(boxID int) {
	boxStock.DeleteLabelValues(strconv.Itoa(boxID))
}

// DeviceReport counts a device report outcome.
func DeviceReport(result string) {
	deviceReports.WithLabelValues(result).Inc()
}
