package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

// Outcomes of a /subscribe request, as recorded in SubscribeRequests.
const (
	SubscribeUpgraded      = "upgraded"
	SubscribeRoomFull      = "room_full"
	SubscribeLimited       = "limited"
	SubscribeUnknownRoom   = "unknown_room"
	SubscribeUpgradeFailed = "upgrade_failed"
)

// HTTPMetrics covers the REST surface and subscription attempts. Requests are
// labelled by echo route template, so every room shares one series per route.
type HTTPMetrics struct {
	RequestDuration   *prometheus.HistogramVec
	RequestsTotal     *prometheus.CounterVec
	InFlightGauge     prometheus.Gauge
	SubscribeRequests *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of REST requests by route template.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "REST requests by route template and status class.",
		}, []string{"method", "route", "status"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "REST requests currently being served.",
		}),
		SubscribeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "subscribe_requests_total",
			Help:      "Event stream subscription attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge, m.SubscribeRequests)
	return m
}

// Middleware records REST requests. Health checks, /metrics and the long-lived
// subscribe route are left out; subscriptions go through ObserveSubscribe.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := RouteLabel(c)
			if !tracked(route) {
				return next(c)
			}

			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			method := c.Request().Method
			timer := prometheus.NewTimer(m.RequestDuration.WithLabelValues(method, route))
			err := next(c)
			timer.ObserveDuration()

			m.RequestsTotal.WithLabelValues(method, route, statusClass(responseStatus(c, err))).Inc()
			return err
		}
	}
}

// ObserveSubscribe counts one subscription attempt.
func (m *HTTPMetrics) ObserveSubscribe(outcome string) {
	m.SubscribeRequests.WithLabelValues(outcome).Inc()
}

// RouteLabel is the matched route template, or "unmatched" for requests no
// route accepted.
func RouteLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return unmatchedRoute
}

// responseStatus is the status the client will see. An error not yet
// rendered is written by echo's error handler after this middleware returns.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func tracked(route string) bool {
	switch route {
	case "/metrics", "/health/live", "/health/ready", "/subscribe/:room_id":
		return false
	}
	return true
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
