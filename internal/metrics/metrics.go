package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the live-mode instruments. Each set carries its own
// registry so parallel simulations don't collide.
type Collectors struct {
	registry *prometheus.Registry

	TradesTotal   *prometheus.CounterVec
	Equity        prometheus.Gauge
	OpenPositions prometheus.Gauge
	PollErrors    prometheus.Counter
}

// NewCollectors builds and registers the instrument set.
func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perpsim_trades_total",
				Help: "Total number of closed trades by exit reason.",
			},
			[]string{"exit_reason"},
		),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perpsim_equity",
			Help: "Current realized capital.",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perpsim_open_positions",
			Help: "Number of currently open positions (0 or 1).",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perpsim_poll_errors_total",
			Help: "Total number of failed live poll iterations.",
		}),
	}
	c.registry.MustRegister(c.TradesTotal, c.Equity, c.OpenPositions, c.PollErrors)
	return c
}

// Handler exposes the registry for an HTTP metrics endpoint.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
