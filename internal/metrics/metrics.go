// Package metrics registers the portal's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Registry holds every collector the service exports.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Orders       *prometheus.CounterVec
	WalletEntry  *prometheus.CounterVec
	Withdrawals  *prometheus.CounterVec
	Emails       *prometheus.CounterVec
}

// New creates a Registry with the Go and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders created or moved, by resulting status",
		}, []string{"status"}),
		WalletEntry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_entries_total",
			Help:      "Wallet ledger entries written, by type",
		}, []string{"type"}),
		Withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests moved, by resulting status",
		}, []string{"status"}),
		Emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Transactional emails sent, by template and result",
		}, []string{"template", "result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.HTTPRequests, r.HTTPDuration, r.Orders, r.WalletEntry, r.Withdrawals, r.Emails,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
}

// Middleware records request count and latency labelled by the matched route.
func (r *Registry) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		labels := []string{c.Method(), route, strconv.Itoa(status)}
		r.HTTPRequests.WithLabelValues(labels...).Inc()
		r.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}

// The helpers below are nil-safe so services can run without a registry.

func (r *Registry) OrderStatus(status string) {
	if r != nil {
		r.Orders.WithLabelValues(status).Inc()
	}
}

func (r *Registry) WalletEntryWritten(entryType string) {
	if r != nil {
		r.WalletEntry.WithLabelValues(entryType).Inc()
	}
}

func (r *Registry) WithdrawalStatus(status string) {
	if r != nil {
		r.Withdrawals.WithLabelValues(status).Inc()
	}
}

func (r *Registry) EmailSent(template string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Emails.WithLabelValues(template, result).Inc()
}
