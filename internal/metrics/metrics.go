// Package metrics holds the Prometheus collectors of the docdash client.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	// the exchange succeeded but the session ended or changed meanwhile
	RefreshDiscarded = "discarded"
)

// Aggregator stages.
const (
	StageAssignments = "assignments"
	StageCategory    = "category"
)

// Client groups the collectors. A nil *Client is valid and records nothing,
// so components can be built without metrics in tests.
type Client struct {
	requests       *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	refreshWaiters prometheus.Gauge
	branchFailures *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Client, error) {
	m := &Client{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docdash_http_client_requests_total",
				Help: "Total number of API requests issued by the client, by final status.",
			},
			[]string{"method", "status"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docdash_token_refresh_total",
				Help: "Token refresh exchanges by outcome.",
			},
			[]string{"outcome"},
		),
		refreshWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docdash_refresh_waiters",
			Help: "Requests currently queued behind an in-flight token refresh.",
		}),
		branchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docdash_aggregator_branch_failures_total",
				Help: "Failed sub-fetches while assembling document categories.",
			},
			[]string{"stage"},
		),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.refreshes, err = register(reg, m.refreshes); err != nil {
		return nil, err
	}
	if m.refreshWaiters, err = register(reg, m.refreshWaiters); err != nil {
		return nil, err
	}
	if m.branchFailures, err = register(reg, m.branchFailures); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the collector already registered under the
// same name so that several clients can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveRequest counts a finished request. Status 0 means no response.
func (m *Client) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Client) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// SetRefreshWaiters reports the length of the refresh queue.
func (m *Client) SetRefreshWaiters(n int) {
	if m == nil {
		return
	}
	m.refreshWaiters.Set(float64(n))
}

func (m *Client) ObserveBranchFailure(stage string) {
	if m == nil {
		return
	}
	m.branchFailures.WithLabelValues(stage).Inc()
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
