// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LockoutsTotal   prometheus.Counter
}

// NewMetrics creates the auth metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phonegate_auth_requests_total",
				Help: "Total number of auth API requests by route and status code",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "phonegate_auth_request_duration_seconds",
				Help:    "Auth API request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		LockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phonegate_lockouts_total",
			Help: "Total number of sign-in attempts rejected by the lockout policy",
		}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.LockoutsTotal)
	return m
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordLockout counts a sign-in rejected because the account is locked.
func (m *Metrics) RecordLockout() {
	m.LockoutsTotal.Inc()
}
