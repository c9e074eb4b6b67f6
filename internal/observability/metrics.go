package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results recorded by InventoryCollector.
const (
	LookupOK       = "ok"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// InventoryCollector bundles Prometheus metrics for port inventory lookups
// and provides the /metrics handler.
type InventoryCollector struct {
	gatherer prometheus.Gatherer

	Lookups        *prometheus.CounterVec
	LookupDuration prometheus.Histogram
}

// NewInventoryCollector registers inventory metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewInventoryCollector(reg prometheus.Registerer) (*InventoryCollector, error) {
	reg, gatherer := defaults(reg)

	lookups, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_port_lookups_total",
		Help: "Port speed lookups against the inventory, labeled by backend and result.",
	}, []string{"backend", "result"}), "inventory_port_lookups_total")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_port_lookup_duration_seconds",
		Help:    "Port speed lookup latency in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "inventory_port_lookup_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &InventoryCollector{
		gatherer:       gatherer,
		Lookups:        lookups,
		LookupDuration: duration,
	}, nil
}

// ObserveLookup records one lookup.
func (c *InventoryCollector) ObserveLookup(backend, result string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Lookups != nil {
		c.Lookups.WithLabelValues(backend, result).Inc()
	}
	if c.LookupDuration != nil {
		c.LookupDuration.Observe(d.Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *InventoryCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func defaults(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return reg, gatherer
}

// register registers c, reusing an already-registered collector of the
// same type so constructors can be called more than once per registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) (C, error) {
	if err := reg.Register(c); err != nil {
		var zero C
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return c, nil
}
